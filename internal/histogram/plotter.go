package histogram

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Plotter renders trainer logs into an output directory as PNG files.
type Plotter struct {
	outDir string
	log    *slog.Logger
}

// NewPlotter creates outDir if needed.
func NewPlotter(outDir string, logger *slog.Logger) (*Plotter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating %s", outDir)
	}
	return &Plotter{outDir: outDir, log: logger}, nil
}

// OutputPath returns the image path for an input file: <outDir>/<basename>.png.
func (p *Plotter) OutputPath(path string) string {
	base := filepath.Base(path)
	return filepath.Join(p.outDir, strings.TrimSuffix(base, filepath.Ext(base))+".png")
}

// Histogram renders one class_predictions file.
func (p *Plotter) Histogram(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening histogram")
	}
	defer f.Close()

	buckets, err := ReadClassPredictions(f)
	if err != nil {
		return "", errors.Wrap(err, path)
	}
	chart, err := BarChart(buckets, BarOptions{FontSize: histogramFontSize})
	if err != nil {
		return "", errors.Wrap(err, path)
	}
	out := p.OutputPath(path)
	return out, Save(chart, out)
}

// Report renders a dataset report with a logarithmic axis.
func (p *Plotter) Report(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening report")
	}
	defer f.Close()

	report, err := ReadReport(f)
	if err != nil {
		return "", errors.Wrap(err, path)
	}
	chart, err := BarChart(report.Counts, BarOptions{
		Labels:       report.Labels,
		Log:          true,
		RotateLabels: true,
		FontSize:     reportFontSize,
	})
	if err != nil {
		return "", errors.Wrap(err, path)
	}
	out := p.OutputPath(path)
	return out, Save(chart, out)
}

// Loss renders the loss logs of runDir as <outDir>/<run>_loss.png. It returns
// an empty path when the directory has no loss logs.
func (p *Plotter) Loss(runDir string) (string, error) {
	var series [2][]LossPoint
	found := false
	for i, name := range []string{LossTrainFile, LossValidateFile} {
		f, err := os.Open(filepath.Join(runDir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "opening loss log")
		}
		series[i], err = ReadLoss(f)
		f.Close()
		if err != nil {
			return "", errors.Wrapf(err, "%s", filepath.Join(runDir, name))
		}
		found = true
	}
	if !found || len(series[0])+len(series[1]) == 0 {
		return "", nil
	}
	run := filepath.Base(runDir)
	chart, err := LossChart(run, series[0], series[1])
	if err != nil {
		return "", errors.Wrap(err, runDir)
	}
	out := filepath.Join(p.outDir, run+"_loss.png")
	return out, Save(chart, out)
}

// File renders path by kind: loss logs render their run, anything else is
// treated as a histogram. Files that cannot be rendered are reported and skipped.
func (p *Plotter) File(path string) error {
	if isLossLog(path) {
		out, err := p.Loss(filepath.Dir(path))
		if err == nil && out != "" {
			p.log.Info("plotted loss", "path", out)
		}
		return err
	}
	p.log.Info("plotting", "path", path)
	_, err := p.Histogram(path)
	switch {
	case errors.Is(err, ErrInvalidHistogram):
		p.log.Warn(path+" is not a valid histogram file", "error", err)
	case err != nil:
		p.log.Warn("skipping "+path, "error", err)
	}
	return nil
}

// RunDir renders every regular file of one run directory.
func (p *Plotter) RunDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "reading %s", dir)
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.Type().IsRegular() || isLossLog(path) {
			continue
		}
		if err := p.File(path); err != nil {
			return err
		}
	}
	out, err := p.Loss(dir)
	if err != nil {
		p.log.Warn("skipping loss curves", "dir", dir, "error", err)
		return nil
	}
	if out != "" {
		p.log.Info("plotted loss", "path", out)
	}
	return nil
}

// LogDir renders every run directory directly below logDir.
func (p *Plotter) LogDir(logDir string) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return errors.Wrapf(err, "reading %s", logDir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(logDir, e.Name())
		p.log.Info("entering", "path", dir)
		if err := p.RunDir(dir); err != nil {
			return err
		}
	}
	return nil
}

func isLossLog(path string) bool {
	base := filepath.Base(path)
	return base == LossTrainFile || base == LossValidateFile
}
