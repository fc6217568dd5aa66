// Package build instantiates an architecture, validates it with a forward pass
// and writes it as a .born file carrying meta.json and arch.json.
package build

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/eisnet/internal/arch"
	"github.com/born-ml/eisnet/internal/meta"
	"github.com/born-ml/eisnet/internal/nn"
	"github.com/born-ml/eisnet/internal/tensor"
)

// ValidationBatch is the batch size of the shape validation pass.
const ValidationBatch = 16

// Options control a build.
type Options struct {
	OutDir string    // defaults to the working directory
	Out    io.Writer // receives the summary; io.Discard when nil
	Logger *slog.Logger
	Seed   uint64 // weight initialization seed; 0 draws a random one
}

// Result describes a written network.
type Result struct {
	Path        string
	Config      arch.Config
	Meta        meta.Meta
	Seed        uint64
	OutputShape tensor.Shape
	Parameters  int
}

// Run builds the network described by cfg and saves it.
func Run[B tensor.Backend](cfg arch.Config, backend B, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	seed := opts.Seed
	if seed == 0 {
		seed = nn.RandomSeed()
	}
	nn.SeedInit(seed)
	log.Debug("initializing weights", "network", cfg.Name(), "seed", seed)

	net, err := arch.Build(cfg, backend)
	if err != nil {
		return nil, err
	}
	// The validation pass updates BatchNorm running stats, so its input follows the seed too.
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	x := tensor.Sample(tensor.Shape{ValidationBatch, cfg.ProbeLength()}, normal, backend)
	y, err := nn.TryForward[B](net, x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name(), err)
	}
	log.Info("validated network", "network", cfg.Name(), "input", x.Shape(), "output", y.Shape())

	res := &Result{
		Config:      cfg,
		Meta:        meta.New(cfg.Name(), cfg.InputSize, cfg.OutputSize),
		Seed:        seed,
		OutputShape: y.Shape(),
		Parameters:  nn.CountParameters[B](net),
	}
	fmt.Fprintf(out, "\n%s:\n%s\n", cfg.Name(), net)
	fmt.Fprintf(out, "Parameter Count: %d\n", res.Parameters)

	if err := res.Meta.Validate(); err != nil {
		return nil, err
	}
	metaJSON, err := res.Meta.Marshal()
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(out, string(metaJSON))
	archJSON, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	res.Path = filepath.Join(outDir, cfg.FileName()+".born")
	metadata := map[string]string{
		meta.FileName:       string(metaJSON),
		arch.ConfigFileName: archJSON,
	}
	if err := nn.SaveModule[B](res.Path, net, cfg.Type, metadata); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Saved model as %s\n", res.Path)
	log.Info("saved network", "path", res.Path, "parameters", res.Parameters, "seed", seed)
	return res, nil
}
