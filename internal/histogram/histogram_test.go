package histogram_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/eisnet/internal/histogram"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const predictions = "class_predictions, 4\n0.1,0.4,0.2,0.3\n"

const report = "Name,\tSize,\tClass Count,\tMulitclass\n" +
	"EisSpectraDataset,\t120,\t3,\t0\n" +
	"0,\t1,\t2\n" +
	"r-rc,\t rc-rc ,\tr\n" +
	"100,\t0,\t20\n"

const loss = "n,epoch,step,loss,acc\n" +
	"0,0,0,2.302585e+00,1.000000e-01\n" +
	"1,0,1,1.500000e+00,3.000000e-01\n" +
	"2,0,2,9.000000e-01,5.000000e-01\n"

func TestReadClassPredictions(t *testing.T) {
	buckets, err := histogram.ReadClassPredictions(strings.NewReader(predictions))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.4, 0.2, 0.3}, buckets)

	buckets, err = histogram.ReadClassPredictions(strings.NewReader(" class_predictions \n1, 2, 3,\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, buckets)

	for name, input := range map[string]string{
		"wrong marker": "predictions\n1,2\n",
		"report":       report,
		"single row":   "class_predictions\n",
		"empty":        "",
		"no buckets":   "class_predictions\n,\n",
	} {
		_, err := histogram.ReadClassPredictions(strings.NewReader(input))
		assert.ErrorIs(t, err, histogram.ErrInvalidHistogram, name)
	}

	_, err = histogram.ReadClassPredictions(strings.NewReader("class_predictions\n1,x\n"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, histogram.ErrInvalidHistogram)
}

func TestReadReport(t *testing.T) {
	r, err := histogram.ReadReport(strings.NewReader(report))
	require.NoError(t, err)
	assert.Equal(t, []string{"r-rc", "rc-rc", "r"}, r.Labels)
	assert.Equal(t, []float64{100, 0, 20}, r.Counts)

	_, err = histogram.ReadReport(strings.NewReader(predictions))
	assert.ErrorIs(t, err, histogram.ErrInvalidHistogram)

	_, err = histogram.ReadReport(strings.NewReader("Name\na\nb\nx,y\n1\n"))
	assert.ErrorIs(t, err, histogram.ErrInvalidHistogram)
}

func TestReadLoss(t *testing.T) {
	points, err := histogram.ReadLoss(strings.NewReader(loss))
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, histogram.LossPoint{N: 1, Epoch: 0, Step: 1, Loss: 1.5, Acc: 0.3}, points[1])

	_, err = histogram.ReadLoss(strings.NewReader("epoch,loss\n1,2\n"))
	assert.ErrorIs(t, err, histogram.ErrInvalidHistogram)

	_, err = histogram.ReadLoss(strings.NewReader("n,epoch,step,loss,acc\n1,2,3\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestBarChartAxes(t *testing.T) {
	p, err := histogram.BarChart([]float64{1, 4, 2}, histogram.BarOptions{})
	require.NoError(t, err)
	assert.Equal(t, -0.5, p.X.Min)
	assert.Equal(t, 2.5, p.X.Max)
	assert.Equal(t, 0.0, p.Y.Min)
	assert.InDelta(t, 4.4, p.Y.Max, 1e-12)

	p, err = histogram.BarChart([]float64{100, 0, 20}, histogram.BarOptions{Log: true, Labels: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, 0.9, p.Y.Min)
	assert.InDelta(t, 110, p.Y.Max, 1e-9)

	_, err = histogram.BarChart(nil, histogram.BarOptions{})
	assert.Error(t, err)
	_, err = histogram.BarChart([]float64{1}, histogram.BarOptions{Labels: []string{"a", "b"}})
	assert.Error(t, err)
}

func TestPlotterRendersFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	p, err := histogram.NewPlotter(out, quietLogger())
	require.NoError(t, err)

	hist := filepath.Join(dir, "hist_epoch3.csv")
	writeFile(t, hist, predictions)
	png, err := p.Histogram(hist)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "hist_epoch3.png"), png)
	assertPNG(t, png)

	rep := filepath.Join(dir, "report.csv")
	writeFile(t, rep, report)
	png, err = p.Report(rep)
	require.NoError(t, err)
	assertPNG(t, png)

	_, err = p.Report(hist)
	assert.ErrorIs(t, err, histogram.ErrInvalidHistogram)
}

func TestLogDir(t *testing.T) {
	logDir := t.TempDir()
	out := filepath.Join(t.TempDir(), "plots")
	writeFile(t, filepath.Join(logDir, "run0", "predictions_1.csv"), predictions)
	writeFile(t, filepath.Join(logDir, "run0", "metadata.json"), "{\n}\n")
	writeFile(t, filepath.Join(logDir, "run0", histogram.LossTrainFile), loss)
	writeFile(t, filepath.Join(logDir, "run0", histogram.LossValidateFile), loss)
	writeFile(t, filepath.Join(logDir, "run1", "predictions_2.csv"), predictions)
	writeFile(t, filepath.Join(logDir, "toplevel.csv"), predictions)

	var logs bytes.Buffer
	p, err := histogram.NewPlotter(out, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	require.NoError(t, p.LogDir(logDir))

	assertPNG(t, filepath.Join(out, "predictions_1.png"))
	assertPNG(t, filepath.Join(out, "predictions_2.png"))
	assertPNG(t, filepath.Join(out, "run0_loss.png"))
	assert.NoFileExists(t, filepath.Join(out, "toplevel.png"))
	assert.NoFileExists(t, filepath.Join(out, "metadata.png"))
	assert.NoFileExists(t, filepath.Join(out, "run1_loss.png"))
	assert.Contains(t, logs.String(), "metadata.json is not a valid histogram file")
	assert.Contains(t, logs.String(), "entering")
}

func TestWatchRendersNewFiles(t *testing.T) {
	logDir := t.TempDir()
	out := filepath.Join(t.TempDir(), "plots")
	require.NoError(t, os.MkdirAll(filepath.Join(logDir, "run0"), 0o750))
	p, err := histogram.NewPlotter(out, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx, logDir, 20*time.Millisecond) }()

	target := filepath.Join(out, "late.png")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher is running and has picked the file up.
		writeFile(t, filepath.Join(logDir, "run0", "late.csv"), predictions)
		_, err := os.Stat(target)
		return err == nil
	}, 5*time.Second, 100*time.Millisecond)

	// A run directory that already holds files when it appears.
	staged := filepath.Join(t.TempDir(), "run1")
	writeFile(t, filepath.Join(staged, "early.csv"), predictions)
	require.NoError(t, os.Rename(staged, filepath.Join(logDir, "run1")))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(out, "early.png"))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])
}
