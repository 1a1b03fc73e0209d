package zsim

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/hdf5"
	"github.com/robert-malhotra/zsimview/internal/message"
	"github.com/robert-malhotra/zsimview/internal/sample"
)

func writeSample(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zsim.h5")
	require.NoError(t, sample.Write(path, sample.Options{Snapshots: n, ChunkRows: 2}))
	return path
}

func openSample(t *testing.T, n int, opts ...Option) *Stats {
	t.Helper()
	s, err := Open(writeSample(t, n), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var u64 = message.NewFixedPointDatatype(8, false, message.OrderLE)

// writeStats writes a file whose /stats dataset has type dt and one zero record.
func writeStats(t *testing.T, dt *message.Datatype) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bad.h5")
	f, err := hdf5.Create(path)
	require.NoError(t, err)
	_, err = f.Root().CreateDataset("stats", dt, []uint64{1}, make([]byte, dt.Size))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path
}

func TestOpenErrors(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.h5")
	f, err := hdf5.Create(empty)
	require.NoError(t, err)
	_, err = f.Root().CreateGroup("stats_old")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	groupStats := filepath.Join(t.TempDir(), "group.h5")
	f, err = hdf5.Create(groupStats)
	require.NoError(t, err)
	_, err = f.Root().CreateGroup("stats")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tests := []struct {
		name string
		path string
		want error
	}{
		{"no stats", empty, ErrNoStats},
		{"stats is a group", groupStats, ErrNoStats},
		{"not compound", writeStats(t, u64), ErrNoRoot},
		{"no root member", writeStats(t, message.NewPackedCompound([]string{"phase"}, []*message.Datatype{u64})), ErrNoRoot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = Open(filepath.Join(t.TempDir(), "missing.h5"))
	assert.Error(t, err)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "file does not contain a 'stats' dataset", ErrNoStats.Error())
	assert.Contains(t, ErrNoRoot.Error(), "tailored to ZSim/BZSim files")
}

func TestSnapshot(t *testing.T) {
	s := openSample(t, 5)
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, "zsim.h5", filepath.Base(s.Path()))

	for _, i := range []int{0, 3, 4} {
		sn, err := s.Snapshot(i)
		require.NoError(t, err)
		assert.Equal(t, i, sn.Index)
		if diff := cmp.Diff(sample.Root(i), sn.Root); diff != "" {
			t.Errorf("snapshot %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	sn, err := s.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"phase", "time", "ipc", "sched", "core", "hist", "name"}, sn.Fields())
	ipc, ok := sn.Field("ipc")
	require.True(t, ok)
	assert.Equal(t, dtype.FloatValue(0.75), ipc)

	for _, i := range []int{-1, 5, 100} {
		_, err := s.Snapshot(i)
		assert.ErrorIs(t, err, ErrSnapshotRange)
	}
}

func TestLabels(t *testing.T) {
	s := openSample(t, 7, WithConcurrency(3))

	labels, err := s.Labels(context.Background())
	require.NoError(t, err)
	require.Len(t, labels, 7)
	for i, l := range labels {
		assert.Equal(t, fmt.Sprintf("%d: phase=%d, time=%d", i, 10*i, 1000*i+750), l)
	}
	assert.Equal(t, "9", s.Label(9))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Labels(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLabelFallback(t *testing.T) {
	u := func(v uint64) dtype.Value { return dtype.UintValue(v) }
	f := func(name string, v dtype.Value) dtype.Field { return dtype.Field{Name: name, Value: v} }

	tests := []struct {
		name string
		root dtype.Value
		want string
	}{
		{"scalar time", dtype.CompoundValue(f("phase", u(2)), f("time", u(40))), "3: phase=2, time=40"},
		{"array time", dtype.CompoundValue(f("phase", u(2)), f("time", dtype.ArrayValue([]uint64{2}, []dtype.Value{u(1), u(9)}))), "3: phase=2, time=9"},
		{"float phase", dtype.CompoundValue(f("phase", dtype.FloatValue(2.9)), f("time", u(1))), "3: phase=2, time=1"},
		{"huge time", dtype.CompoundValue(f("phase", u(1)), f("time", u(math.MaxUint64-5))), "3: phase=1, time=18446744073709551610"},
		{"negative phase", dtype.CompoundValue(f("phase", dtype.IntValue(-4)), f("time", u(1))), "3: phase=-4, time=1"},
		{"nan time", dtype.CompoundValue(f("phase", u(1)), f("time", dtype.FloatValue(math.NaN()))), "3"},
		{"no phase", dtype.CompoundValue(f("time", u(1))), "3"},
		{"no time", dtype.CompoundValue(f("phase", u(1))), "3"},
		{"string phase", dtype.CompoundValue(f("phase", dtype.StringValue("x")), f("time", u(1))), "3"},
		{"empty time", dtype.CompoundValue(f("phase", u(1)), f("time", dtype.ArrayValue([]uint64{0}, nil))), "3"},
		{"array phase", dtype.CompoundValue(f("phase", dtype.ArrayValue([]uint64{2}, []dtype.Value{u(1), u(2)})), f("time", u(1))), "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, label(Snapshot{Index: 3, Root: tt.root}))
		})
	}
}

func TestSchema(t *testing.T) {
	s := openSample(t, 2)
	fields := s.Schema()
	require.Len(t, fields, 7)
	assert.Equal(t, FieldInfo{Name: "time", Class: "integer", Type: "<u8", Shape: []uint64{4}}, fields[1])
	assert.Equal(t, "compound", fields[4].Class)
	assert.Equal(t, []uint64{4}, fields[4].Shape)

	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, fields))
	assert.Equal(t, `phase <u8
time [4]<u8
ipc <f8
sched compound
  ticks <u8
  switches <u8
core [4]compound
  cycles <u8
  instrs <u8
  lat [2]<u8
  stall compound
    mem <u8
    br <u8
hist [2][3]<u8
name S16
`, buf.String())
}
