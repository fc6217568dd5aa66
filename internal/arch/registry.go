package arch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Architecture types accepted by Build.
const (
	TypeSimple      = "simple"
	TypeConv        = "conv"
	TypeResNet      = "resnet"
	TypeUpsampleNet = "upsamplenet"
)

// ValidTypes lists the architecture types in the order they are documented.
var ValidTypes = []string{TypeSimple, TypeConv, TypeResNet, TypeUpsampleNet}

// ErrUnknownArchitecture is returned for architecture types Build does not know.
var ErrUnknownArchitecture = errors.New("unknown architecture")

// ConfigFileName is the metadata entry holding the marshaled Config.
const ConfigFileName = "arch.json"

// ValidationLength is the spectrum length used to check and export networks that
// accept any input length.
const ValidationLength = 100

// Config describes a network completely enough to rebuild it; it is stored as
// arch.json next to the state dict.
type Config struct {
	Type            string        `json:"type"`
	InputSize       int           `json:"inputSize,omitempty"` // 0: any length
	OutputSize      int           `json:"outputSize"`
	DownsampleSteps int           `json:"downsampleSteps,omitempty"`
	ExtraSteps      int           `json:"extraSteps,omitempty"`
	ResNet          *ResNetConfig `json:"resnet,omitempty"`
}

// DefaultConfig returns the configuration the build command uses for archType.
// inputSize is ignored for resnet, which accepts any length.
func DefaultConfig(archType string, inputSize, outputSize int) (Config, error) {
	cfg := Config{Type: archType, InputSize: inputSize, OutputSize: outputSize, DownsampleSteps: 4, ExtraSteps: 3}
	switch archType {
	case TypeSimple, TypeConv, TypeUpsampleNet:
	case TypeResNet:
		rc := DefaultResNetConfig(outputSize)
		cfg = Config{Type: archType, OutputSize: outputSize, ResNet: &rc}
	default:
		return Config{}, unknown(archType)
	}
	return cfg, cfg.Validate()
}

// Validate checks sizes and the architecture type.
func (c Config) Validate() error {
	if c.OutputSize <= 0 {
		return fmt.Errorf("output size must be positive, got %d", c.OutputSize)
	}
	switch c.Type {
	case TypeResNet:
		if c.InputSize < 0 {
			return fmt.Errorf("input size must not be negative, got %d", c.InputSize)
		}
		return nil
	case TypeSimple, TypeConv, TypeUpsampleNet:
		if c.InputSize <= 0 {
			return fmt.Errorf("%s: input size must be positive, got %d", c.Type, c.InputSize)
		}
		if c.DownsampleSteps <= 0 || c.ExtraSteps < 0 {
			return fmt.Errorf("%s: invalid steps downsample=%d extra=%d", c.Type, c.DownsampleSteps, c.ExtraSteps)
		}
		return nil
	default:
		return unknown(c.Type)
	}
}

// Name returns the network name used for file names and meta.json.
func (c Config) Name() string {
	switch c.Type {
	case TypeSimple:
		return "simplenet"
	case TypeConv:
		return "convnet"
	default:
		return c.Type
	}
}

// ProbeLength returns the input length used to validate and export the network.
func (c Config) ProbeLength() int {
	if c.InputSize > 0 {
		return c.InputSize
	}
	return ValidationLength
}

// FileName returns "<name><inputSize|ANY>-<outputSize>" without extension.
func (c Config) FileName() string {
	in := "ANY"
	if c.InputSize > 0 {
		in = fmt.Sprint(c.InputSize)
	}
	return fmt.Sprintf("%s%s-%d", c.Name(), in, c.OutputSize)
}

// Marshal encodes the config as arch.json.
func (c Config) Marshal() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode architecture: %w", err)
	}
	return string(data), nil
}

// ParseConfig decodes arch.json.
func ParseConfig(data string) (Config, error) {
	var c Config
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Config{}, fmt.Errorf("failed to decode architecture: %w", err)
	}
	return c, c.Validate()
}

// Build instantiates the network described by cfg in training mode.
func Build[B tensor.Backend](cfg Config, backend B) (Net[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeSimple:
		return NewSimpleNet(cfg, backend)
	case TypeConv:
		return NewConvNet(cfg, backend)
	case TypeResNet:
		return NewResNet1D(cfg, backend)
	case TypeUpsampleNet:
		return NewUpsampleNet(cfg, backend)
	default:
		return nil, unknown(cfg.Type)
	}
}

func unknown(archType string) error {
	return fmt.Errorf("%w: %q is not a valid network type, valid types are: %s",
		ErrUnknownArchitecture, archType, strings.Join(ValidTypes, ", "))
}
