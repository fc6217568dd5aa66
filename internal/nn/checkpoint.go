package nn

import (
	"fmt"
	"sort"

	"github.com/born-ml/eisnet/internal/serialization"
	"github.com/born-ml/eisnet/internal/tensor"
)

// SaveModule writes the module's state dict to a .born file.
//
// Example:
//
//	err := nn.SaveModule("simplenet100-10.born", model, "simple", map[string]string{
//	    "meta.json": metaJSON,
//	})
func SaveModule[B tensor.Backend](path string, m Module[B], modelType string, metadata map[string]string) error {
	if err := serialization.WriteFile(path, m.StateDict(), modelType, metadata); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// LoadModule reads a .born file into m, which must have the architecture the file
// was saved from. The file header is returned so callers can read its metadata.
func LoadModule[B tensor.Backend](path string, m Module[B]) (serialization.Header, error) {
	reader, err := serialization.Open(path)
	if err != nil {
		return serialization.Header{}, fmt.Errorf("failed to open model: %w", err)
	}

	stateDict, err := reader.StateDict()
	if err != nil {
		return serialization.Header{}, err
	}
	if err := LoadStrict(m, stateDict); err != nil {
		return serialization.Header{}, err
	}
	return reader.Header(), nil
}

// LoadStrict loads stateDict into m and fails when keys are missing or unexpected.
func LoadStrict[B tensor.Backend](m Module[B], stateDict map[string]*tensor.RawTensor) error {
	expected := m.StateDict()
	var unexpected []string
	for key := range stateDict {
		if _, ok := expected[key]; !ok {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return fmt.Errorf("unexpected keys in state dict: %v", unexpected)
	}
	if err := m.LoadStateDict(stateDict); err != nil {
		return fmt.Errorf("failed to load state dict: %w", err)
	}
	return nil
}
