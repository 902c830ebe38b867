package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t      *testing.T
	config string
	dir    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gre2g.yaml")
	yaml := fmt.Sprintf(`settings:
  blob_db_path: %s
  temp_path: %s
  mapping_table_format: csv
  blob_db_recordings_loc: data/recordings
logging:
  level: error
`, filepath.Join(dir, "db"), filepath.Join(dir, "temp"))
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))
	return &cli{t: t, config: configPath, dir: dir}
}

func (c *cli) run(args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", c.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionAndHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"version"}, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "gre2g "))

	stdout.Reset()
	assert.Equal(t, exitOK, run(context.Background(), []string{"help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "index-recording")
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"frobnicate"}},
		{name: "unknown flag", args: []string{"ls", "-x"}},
		{name: "add without tech", args: []string{"add-recording", "-game", "g", "-track", "t", "-file", "f"}},
		{name: "add without file", args: []string{"add-recording", "-game", "g", "-track", "t", "-tech", "c"}},
		{name: "get without path", args: []string{"get"}},
		{name: "rm with two paths", args: []string{"rm", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := c.run(tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestBadConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", "/nonexistent/gre2g.yaml", "ls"}, &stdout, &stderr)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr.String(), "failed to read config")
}

func TestStoreWorkflow(t *testing.T) {
	c := newCLI(t)

	video := filepath.Join(c.dir, "final match.mp4")
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0o644))

	code, out, errOut := c.run("init")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "Initialized blob store")
	assert.FileExists(t, filepath.Join(c.dir, "db", "mapping_table.csv"))

	code, out, errOut = c.run("add-recording", "-game", "chess", "-track", "final", "-tech", "cam1", "-file", video)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, "data/recordings/chess/final/cam1/final match.mp4\n", out)

	code, out, _ = c.run("ls")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "data\n", out)

	code, out, _ = c.run("ls", "data/recordings/chess/final/cam1")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "final match.mp4\n", out)

	code, out, _ = c.run("get", "data/recordings/chess/final/cam1/final match.mp4")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "not really a video", out)

	copyPath := filepath.Join(c.dir, "copy.mp4")
	code, _, _ = c.run("get", "-o", copyPath, "data/recordings/chess/final/cam1/final match.mp4")
	require.Equal(t, exitOK, code)
	assert.FileExists(t, copyPath)

	code, _, _ = c.run("key-frames", "-game", "chess", "-track", "final", "-tech", "cam1")
	assert.Equal(t, exitError, code, "nothing indexed yet")

	code, _, _ = c.run("rm", "data/recordings/chess/final/cam1/final match.mp4")
	require.Equal(t, exitOK, code)
	code, out, _ = c.run("ls", "data/recordings/chess/final/cam1")
	require.Equal(t, exitOK, code)
	assert.Empty(t, out)

	code, _, _ = c.run("rm", "-level", "data/recordings/chess")
	require.Equal(t, exitOK, code)
	code, out, _ = c.run("ls", "data/recordings")
	require.Equal(t, exitOK, code)
	assert.Empty(t, out)

	code, _, errOut = c.run("get", "data/recordings/chess/final/cam1/final match.mp4")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "Error:")
}

func TestAddRecordingMissingFile(t *testing.T) {
	c := newCLI(t)
	code, _, _ := c.run("init")
	require.Equal(t, exitOK, code)

	code, _, errOut := c.run("add-recording", "-game", "g", "-track", "t", "-tech", "c", "-file", filepath.Join(c.dir, "missing.mp4"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "missing.mp4")
}

func TestIndexRecordingWithoutRecording(t *testing.T) {
	c := newCLI(t)
	code, _, _ := c.run("init")
	require.Equal(t, exitOK, code)

	code, _, _ = c.run("index-recording", "-game", "g", "-track", "t", "-tech", "c")
	assert.Equal(t, exitError, code)
}

func TestIndexRecordingUnknownAlgorithm(t *testing.T) {
	c := newCLI(t)
	video := filepath.Join(c.dir, "v.mp4")
	require.NoError(t, os.WriteFile(video, []byte("x"), 0o644))

	code, _, _ := c.run("init")
	require.Equal(t, exitOK, code)
	code, _, _ = c.run("add-recording", "-game", "g", "-track", "t", "-tech", "c", "-file", video)
	require.Equal(t, exitOK, code)

	code, _, errOut := c.run("index-recording", "-game", "g", "-track", "t", "-tech", "c", "-algorithm", "optical_flow")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "optical_flow")
}
