// Package sample writes synthetic ZSim-shaped statistics files. The
// values are deterministic, so tests can generate fixtures on the fly and
// predict every cell.
package sample

import (
	"fmt"

	"github.com/robert-malhotra/zsimview/internal/dtype"
	"github.com/robert-malhotra/zsimview/internal/hdf5"
	"github.com/robert-malhotra/zsimview/internal/message"
)

// Generator is the value of the generator attribute on the root group.
const Generator = "zsimview sample"

// Cores is the length of the per-core array in each snapshot.
const Cores = 4

// Options control the generated file.
type Options struct {
	Snapshots   int // number of records in /stats, default 5
	ChunkRows   int // records per chunk, default 2
	Compression int // deflate level, 0 stores chunks unfiltered
}

func (o Options) withDefaults() Options {
	if o.Snapshots <= 0 {
		o.Snapshots = 5
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = 2
	}
	return o
}

var (
	u64 = message.NewFixedPointDatatype(8, false, message.OrderLE)
	f64 = message.NewFloatDatatype(8, message.OrderLE)
)

func compound(names []string, types ...*message.Datatype) *message.Datatype {
	return message.NewPackedCompound(names, types)
}

// RootType returns the datatype of the root member of each record.
func RootType() *message.Datatype {
	stall := compound([]string{"mem", "br"}, u64, u64)
	core := compound([]string{"cycles", "instrs", "lat", "stall"},
		u64, u64, message.NewArrayDatatype([]uint32{2}, u64), stall)
	return compound(
		[]string{"phase", "time", "ipc", "sched", "core", "hist", "name"},
		u64,
		message.NewArrayDatatype([]uint32{4}, u64),
		f64,
		compound([]string{"ticks", "switches"}, u64, u64),
		message.NewArrayDatatype([]uint32{Cores}, core),
		message.NewArrayDatatype([]uint32{2, 3}, u64),
		message.NewStringDatatype(16, message.PadNullTerm, message.CharsetASCII),
	)
}

// RecordType returns the datatype of one /stats record.
func RecordType() *message.Datatype {
	return compound([]string{"root"}, RootType())
}

func u(v int) dtype.Value { return dtype.UintValue(uint64(v)) }

func field(name string, v dtype.Value) dtype.Field {
	return dtype.Field{Name: name, Value: v}
}

// Root returns the root value of snapshot s.
func Root(s int) dtype.Value {
	time := make([]dtype.Value, 4)
	for k := range time {
		time[k] = u(1000*s + 250*k)
	}
	cores := make([]dtype.Value, Cores)
	for c := range cores {
		cores[c] = dtype.CompoundValue(
			field("cycles", u(1000*(s+1)+c)),
			field("instrs", u(500*(s+1)+10*c)),
			field("lat", dtype.ArrayValue([]uint64{2}, []dtype.Value{u(c), u(c + s)})),
			field("stall", dtype.CompoundValue(field("mem", u(2*c+s)), field("br", u(c)))),
		)
	}
	hist := make([]dtype.Value, 0, 6)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			hist = append(hist, u(s+3*i+j))
		}
	}
	return dtype.CompoundValue(
		field("phase", u(10*s)),
		field("time", dtype.ArrayValue([]uint64{4}, time)),
		field("ipc", dtype.FloatValue(0.5+0.25*float64(s))),
		field("sched", dtype.CompoundValue(field("ticks", u(100*(s+1))), field("switches", u(3*s)))),
		field("core", dtype.ArrayValue([]uint64{Cores}, cores)),
		field("hist", dtype.ArrayValue([]uint64{2, 3}, hist)),
		field("name", dtype.StringValue(fmt.Sprintf("snap-%d", s))),
	)
}

// Notes are written to /notes as variable-length strings, standing in
// for the configuration dump a simulator keeps next to its stats.
var Notes = []string{
	"sys.cores = 4",
	"sys.frequency = 2000",
	"sim.phaseLength = 10000",
}

// Write creates path holding opts.Snapshots records in a chunked /stats
// dataset, the /notes strings and root attributes naming the generator
// and the snapshot count.
func Write(path string, opts Options) (err error) {
	opts = opts.withDefaults()

	records := make([]dtype.Value, opts.Snapshots)
	for s := range records {
		records[s] = dtype.CompoundValue(field("root", Root(s)))
	}
	rt := RecordType()
	raw, err := dtype.EncodeAll(rt, records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	f, err := hdf5.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	dsOpts := []hdf5.DatasetOption{
		hdf5.WithChunks(uint64(opts.ChunkRows)),
		hdf5.WithMaxDims(0),
	}
	if opts.Compression > 0 {
		dsOpts = append(dsOpts, hdf5.WithShuffle(), hdf5.WithCompression(opts.Compression))
	}
	root := f.Root()
	if _, err := root.CreateDataset("stats", rt, []uint64{uint64(opts.Snapshots)}, raw, dsOpts...); err != nil {
		return err
	}
	if _, err := root.CreateStringDataset("notes", Notes); err != nil {
		return err
	}
	if err := root.SetAttribute("generator", dtype.StringValue(Generator)); err != nil {
		return err
	}
	return root.SetAttribute("snapshots", dtype.UintValue(uint64(opts.Snapshots)))
}
