package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/internal/config"
	"github.com/born-ml/eisnet/internal/serialization"
)

// eisnet runs the CLI with a private config environment.
func eisnet(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{config.EnvConfig, config.EnvLogLevel, config.EnvLogFile, config.EnvOutDir} {
		t.Setenv(key, "")
	}
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersion(t *testing.T) {
	code, stdout, _ := eisnet(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "eisnet "+version+"\n", stdout)
}

func TestUsage(t *testing.T) {
	code, _, stderr := eisnet(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage: eisnet")
	for _, c := range commands {
		assert.Contains(t, stderr, c.name)
	}

	code, _, stderr = eisnet(t, "train")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "train"`)
}

func TestBuildUnknownType(t *testing.T) {
	code, _, stderr := eisnet(t, "build", "-t", "transformer", "-o", "3", "--out-dir", t.TempDir())
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "transformer is not a valid network type, valid types are: simple, conv, resnet, upsamplenet")
	assert.Contains(t, stderr, "Usage: eisnet build")
}

func TestBuildRequiresFlags(t *testing.T) {
	code, _, stderr := eisnet(t, "build", "--type", "simple")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "--type and --output-size are required")
}

func TestBuildExportInspect(t *testing.T) {
	dir := t.TempDir()
	code, stdout, stderr := eisnet(t, "build", "-t", "simple", "-i", "20", "-o", "3", "--out-dir", dir)
	require.Equal(t, exitOK, code, stderr)
	network := filepath.Join(dir, "simplenet20-3.born")
	assert.Contains(t, stdout, "Saved model as "+network)
	assert.FileExists(t, network)

	code, stdout, stderr = eisnet(t, "export", "-n", network, "-p", "Circuit", "-v", "2", "--train", "--out-dir", dir)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Exported "+filepath.Join(dir, "simplenet20-3.onnx"))
	assert.Contains(t, stdout, "Training artifacts in "+filepath.Join(dir, "simplenet20-3_train.tar"))
	assert.NoFileExists(t, filepath.Join(dir, "simplenet20-3_train.onnx"))

	code, stdout, stderr = eisnet(t, "inspect", network, filepath.Join(dir, "simplenet20-3.onnx"))
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Model type:  simple")
	assert.Contains(t, stdout, "Producer:    eisnet")
	assert.Contains(t, stdout, "purpose")
}

func TestBuildSeed(t *testing.T) {
	sum := func(seed string) [32]byte {
		dir := t.TempDir()
		code, _, stderr := eisnet(t, "build", "-t", "simple", "-i", "20", "-o", "3", "--seed", seed, "--out-dir", dir)
		require.Equal(t, exitOK, code, stderr)
		r, err := serialization.Open(filepath.Join(dir, "simplenet20-3.born"))
		require.NoError(t, err)
		return r.Checksum()
	}
	assert.Equal(t, sum("7"), sum("7"))
	assert.NotEqual(t, sum("7"), sum("8"))
}

func TestExportMissingNetwork(t *testing.T) {
	code, _, stderr := eisnet(t, "export", "-n", filepath.Join(t.TempDir(), "missing.born"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "cannot open network")

	code, _, _ = eisnet(t, "export")
	assert.Equal(t, exitUsage, code)
}

func TestPlotAndReport(t *testing.T) {
	logDir := t.TempDir()
	out := filepath.Join(t.TempDir(), "plots")
	run0 := filepath.Join(logDir, "run0")
	require.NoError(t, os.MkdirAll(run0, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(run0, "hist.csv"), []byte("class_predictions, 3\n1,2,3\n"), 0o600))

	code, _, stderr := eisnet(t, "plot", logDir)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage: eisnet plot")

	code, _, stderr = eisnet(t, "plot", logDir, out)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(out, "hist.png"))

	report := filepath.Join(logDir, "report.csv")
	require.NoError(t, os.WriteFile(report, []byte("Name,Size\nset,10\n0,1\na,b\n7,3\n"), 0o600))
	code, _, stderr = eisnet(t, "report", report, out)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(out, "report.png"))

	code, _, stderr = eisnet(t, "report", filepath.Join(run0, "hist.csv"), out)
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "is not a valid histogram file")
}

func TestConfigAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "eisnet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logLevel: error\noutDir: "+dir+"\n"), 0o600))

	// Config error level hides the info records build logs.
	code, _, stderr := eisnet(t, "--config", cfgPath, "build", "-t", "simple", "-i", "20", "-o", "2")
	require.Equal(t, exitOK, code, stderr)
	assert.NotContains(t, stderr, "validated network")
	assert.FileExists(t, filepath.Join(dir, "simplenet20-2.born"))

	code, _, stderr = eisnet(t, "--config", cfgPath, "--log-level", "info", "build", "-t", "simple", "-i", "20", "-o", "2")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, "validated network")

	code, _, stderr = eisnet(t, "--log-level", "loud", "version")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown level "loud"`)

	code, _, _ = eisnet(t, "--config", filepath.Join(dir, "missing.yaml"), "version")
	assert.Equal(t, exitError, code)
}
