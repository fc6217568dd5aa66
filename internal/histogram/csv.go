// Package histogram renders the CSV logs written by the trainer: class
// prediction histograms, dataset reports and loss curves.
package histogram

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Header markers.
const (
	ClassPredictionsMarker = "class_predictions"
	ReportMarker           = "Name"
)

// Loss log file names written into every run directory.
const (
	LossTrainFile    = "lossTrain.csv"
	LossValidateFile = "lossValidate.csv"
)

// ErrInvalidHistogram is returned when a file does not start with the expected marker.
var ErrInvalidHistogram = errors.New("not a valid histogram file")

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// readRows reads n records. A short file is an ErrInvalidHistogram.
func readRows(cr *csv.Reader, n int) ([][]string, error) {
	rows := make([][]string, 0, n)
	for len(rows) < n {
		row, err := cr.Read()
		if err == io.EOF {
			return nil, errors.Wrapf(ErrInvalidHistogram, "expected %d rows, got %d", n, len(rows))
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading csv")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func checkMarker(row []string, marker string) error {
	if len(row) == 0 || strings.TrimSpace(row[0]) != marker {
		return errors.Wrapf(ErrInvalidHistogram, "first cell is not %q", marker)
	}
	return nil
}

// trimCells trims every cell and drops empty trailing cells.
func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func parseFloats(row []string) ([]float64, error) {
	cells := trimCells(row)
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cell %d", i)
		}
		values[i] = v
	}
	return values, nil
}

// ReadClassPredictions reads a class_predictions histogram: a marker row
// followed by one row of bucket values.
func ReadClassPredictions(r io.Reader) ([]float64, error) {
	rows, err := readRows(newReader(r), 2)
	if err != nil {
		return nil, err
	}
	if err := checkMarker(rows[0], ClassPredictionsMarker); err != nil {
		return nil, err
	}
	buckets, err := parseFloats(rows[1])
	if err != nil {
		return nil, errors.Wrap(err, "parsing buckets")
	}
	if len(buckets) == 0 {
		return nil, errors.Wrap(ErrInvalidHistogram, "no buckets")
	}
	return buckets, nil
}

// Report is the class distribution of a dataset report.
type Report struct {
	Labels []string
	Counts []float64
}

// ReadReport reads a dataset report: a row starting with "Name", a summary row,
// the class indices, the class labels and the class counts.
func ReadReport(r io.Reader) (*Report, error) {
	rows, err := readRows(newReader(r), 5)
	if err != nil {
		return nil, err
	}
	if err := checkMarker(rows[0], ReportMarker); err != nil {
		return nil, err
	}
	counts, err := parseFloats(rows[4])
	if err != nil {
		return nil, errors.Wrap(err, "parsing class counts")
	}
	labels := trimCells(rows[3])
	if len(labels) != len(counts) {
		return nil, errors.Wrapf(ErrInvalidHistogram, "%d labels for %d counts", len(labels), len(counts))
	}
	return &Report{Labels: labels, Counts: counts}, nil
}

// LossPoint is one row of a loss log.
type LossPoint struct {
	N     int
	Epoch int
	Step  int
	Loss  float64
	Acc   float64
}

var lossHeader = []string{"n", "epoch", "step", "loss", "acc"}

// ReadLoss reads a loss log with the header n,epoch,step,loss,acc.
func ReadLoss(r io.Reader) ([]LossPoint, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHistogram, "missing loss header")
	}
	header = trimCells(header)
	if len(header) != len(lossHeader) {
		return nil, errors.Wrapf(ErrInvalidHistogram, "loss header %v", header)
	}
	for i := range header {
		if header[i] != lossHeader[i] {
			return nil, errors.Wrapf(ErrInvalidHistogram, "loss header %v", header)
		}
	}

	var points []LossPoint
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return points, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading loss log")
		}
		values, err := parseFloats(row)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if len(values) != len(lossHeader) {
			return nil, errors.Errorf("line %d: expected %d values, got %d", line, len(lossHeader), len(values))
		}
		points = append(points, LossPoint{
			N:     int(values[0]),
			Epoch: int(values[1]),
			Step:  int(values[2]),
			Loss:  values[3],
			Acc:   values[4],
		})
	}
}
