// Package meta defines the metadata record stored as meta.json next to every
// network: its name, input and output sizes, output labels and the hints
// inference consumers read from the exported ONNX model.
package meta

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Defaults written at build time and assumed by export when a field is absent.
const (
	DefaultPurpose    = "Unkown"
	DefaultInputLabel = "EIS"
)

// FileName is the metadata entry name inside a .born file and a training archive.
const FileName = "meta.json"

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://github.com/born-ml/eisnet/meta.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Meta is the metadata record. Field order follows the keys build writes.
type Meta struct {
	InputSize         *int      `json:"inputSize"`
	OutputSize        int       `json:"outputSize"`
	Name              string    `json:"name"`
	OutputLabels      []string  `json:"outputLabels,omitempty"`
	Purpose           string    `json:"purpose,omitempty"`
	InputLabel        string    `json:"inputLabel,omitempty"`
	OutputBiases      []float64 `json:"outputBiases,omitempty"`
	OutputScalars     []float64 `json:"outputScalars,omitempty"`
	ExtraInputs       []string  `json:"extraInputs,omitempty"`
	ExtraInputLengths []int     `json:"extraInputLengths,omitempty"`
	Softmax           *bool     `json:"softmax,omitempty"`

	// Extra holds keys written by other tools. They are kept verbatim and
	// appended after the known keys when the record is encoded.
	Extra map[string]json.RawMessage `json:"-"`
}

// record is Meta without its JSON methods.
type record Meta

var knownKeys = []string{
	"inputSize", "outputSize", "name", "outputLabels", "purpose", "inputLabel",
	"outputBiases", "outputScalars", "extraInputs", "extraInputLengths", "softmax",
}

func isKnownKey(key string) bool {
	return slices.ContainsFunc(knownKeys, func(k string) bool { return strings.EqualFold(k, key) })
}

// UnmarshalJSON decodes the known fields and keeps every other key in Extra.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	maps.DeleteFunc(all, func(k string, _ json.RawMessage) bool { return isKnownKey(k) })
	if len(all) == 0 {
		all = nil
	}
	*m = Meta(r)
	m.Extra = all
	return nil
}

// MarshalJSON encodes the known fields followed by Extra in key order.
func (m Meta) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(record(m))
	if err != nil || len(m.Extra) == 0 {
		return data, err
	}
	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, k := range slices.Sorted(maps.Keys(m.Extra)) {
		if isKnownKey(k) {
			continue
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(m.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// New returns the record build writes: default labels, purpose and input label.
// An inputSize of 0 means the network accepts any length and is stored as null.
func New(name string, inputSize, outputSize int) Meta {
	m := Meta{
		OutputSize:   outputSize,
		Name:         name,
		OutputLabels: DefaultLabels(outputSize),
		Purpose:      DefaultPurpose,
		InputLabel:   DefaultInputLabel,
	}
	if inputSize > 0 {
		m.InputSize = &inputSize
	}
	return m
}

// DefaultLabels returns class_0 … class_{n-1}.
func DefaultLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = "class_" + strconv.Itoa(i)
	}
	return labels
}

// Parse decodes and validates meta.json.
func Parse(data []byte) (Meta, error) {
	if err := validateJSON(data); err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("meta: failed to decode: %w", err)
	}
	return m, nil
}

// Validate checks the record against the metadata schema.
func (m Meta) Validate() error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("meta: failed to encode: %w", err)
	}
	return validateJSON(data)
}

func validateJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("meta: failed to compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("meta: invalid JSON: %w", err)
	}
	if err := s.Validate(raw); err != nil {
		return fmt.Errorf("meta: validation failed: %w", err)
	}
	return nil
}

// Marshal encodes the record compactly, as stored in .born files.
func (m Meta) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// MarshalIndent encodes the record tab indented, as stored in training archives.
func (m Meta) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(m, "", "\t")
}

// InputName returns the input label or DefaultInputLabel.
func (m Meta) InputName() string {
	if m.InputLabel != "" {
		return m.InputLabel
	}
	return DefaultInputLabel
}

// OutputName returns the purpose or DefaultPurpose.
func (m Meta) OutputName() string {
	if m.Purpose != "" {
		return m.Purpose
	}
	return DefaultPurpose
}

// SoftmaxValue returns the softmax hint, true unless the record says otherwise.
func (m Meta) SoftmaxValue() bool {
	return m.Softmax == nil || *m.Softmax
}

// InputLength returns the declared input length, or 0 for any length.
func (m Meta) InputLength() int {
	if m.InputSize == nil {
		return 0
	}
	return *m.InputSize
}

// JoinFloats formats values the way they appear in ONNX metadata: shortest
// representation, comma separated.
func JoinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// JoinInts formats values comma separated.
func JoinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
