package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/zsimview/internal/sample"
	"github.com/robert-malhotra/zsimview/internal/zsim"
)

type result struct {
	stdout, stderr string
	err            error
}

// run executes the root command with a config file that does not exist,
// so defaults apply, and logs going to a temp file.
func run(t *testing.T, gui GUIFunc, args ...string) result {
	t.Helper()
	dir := t.TempDir()
	if gui == nil {
		gui = func(*RootOptions, string) error {
			t.Fatal("gui started")
			return nil
		}
	}
	cmd := NewRootCommand(gui)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "config.yaml"),
		"--log-file", filepath.Join(dir, "zsimview.log"),
	}, args...))
	err := cmd.Execute()
	return result{out.String(), errOut.String(), err}
}

func writeSample(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zsim.h5")
	require.NoError(t, sample.Write(path, sample.Options{Snapshots: n}))
	return path
}

func TestRootLaunchesGUI(t *testing.T) {
	var got string
	var opts *RootOptions
	r := run(t, func(o *RootOptions, file string) error {
		opts, got = o, file
		return nil
	}, "stats.h5")
	require.NoError(t, r.err)
	assert.Equal(t, "stats.h5", got)
	require.NotNil(t, opts.Config)
	require.NotNil(t, opts.Logger)
	assert.Equal(t, "system", opts.Config.Theme)
}

func TestRootBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("theme: neon\n"), 0o644))

	cmd := NewRootCommand(func(*RootOptions, string) error { return nil })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfg})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid theme")
}

func TestVersion(t *testing.T) {
	r := run(t, nil, "version")
	require.NoError(t, r.err)
	assert.Equal(t, "zsimview dev\n", r.stdout)
}

func TestDumpListsFields(t *testing.T) {
	path := writeSample(t, 3)
	r := run(t, nil, "dump", path, "-s", "2")
	require.NoError(t, r.err)
	assert.Equal(t, `Snapshots:
  0: phase=0, time=750
  1: phase=10, time=1750
  2: phase=20, time=2750
Fields in snapshot 2:
  phase
  time
  ipc
  sched
  core
  hist
  name
`, r.stdout)
}

func TestDumpField(t *testing.T) {
	path := writeSample(t, 2)

	r := run(t, nil, "dump", path, "-s", "1", "-f", "sched", "--format", "tsv")
	require.NoError(t, r.err)
	assert.Equal(t, "\tticks\tswitches\n0\t200\t3\n", r.stdout)
	assert.NotEmpty(t, strings.TrimSpace(r.stderr))

	r = run(t, nil, "dump", path, "-f", "core", "--format", "csv")
	require.NoError(t, r.err)
	lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
	assert.Len(t, lines, 6) // header, sum, four cores
	assert.True(t, strings.HasPrefix(lines[1], "SUM,"))

	r = run(t, nil, "dump", path, "-f", "core")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "cycles")
	assert.Contains(t, r.stdout, "SUM")
}

func TestDumpErrors(t *testing.T) {
	path := writeSample(t, 2)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing field", []string{"-f", "nope"}, `no field "nope"`},
		{"snapshot out of range", []string{"-s", "7"}, zsim.ErrSnapshotRange.Error()},
		{"bad format", []string{"-f", "core", "--format", "xml"}, "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, nil, append([]string{"dump", path}, tt.args...)...)
			require.Error(t, r.err)
			assert.Contains(t, r.err.Error(), tt.want)
		})
	}

	r := run(t, nil, "dump", filepath.Join(t.TempDir(), "missing.h5"))
	assert.Error(t, r.err)
}

func TestSchema(t *testing.T) {
	path := writeSample(t, 3)

	r := run(t, nil, "schema", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "3 snapshots")
	assert.Contains(t, r.stdout, "core")
	assert.NotContains(t, r.stdout, "attributes")

	r = run(t, nil, "schema", "--all", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "group /\n")
	assert.Contains(t, r.stdout, "dataset /stats [3]")
	assert.Contains(t, r.stdout, "dataset /notes [3]")
	assert.Contains(t, r.stdout, "/@generator = zsimview sample")
	assert.Contains(t, r.stdout, "/@snapshots = 3")
}

func TestSample(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.h5")
	r := run(t, nil, "sample", out, "--snapshots", "7", "--chunk-rows", "3", "--compression", "6")
	require.NoError(t, r.err)

	stats, err := zsim.Open(out)
	require.NoError(t, err)
	defer stats.Close()
	assert.Equal(t, 7, stats.Len())
}
