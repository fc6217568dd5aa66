package onnx

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/eisnet/internal/onnx/operators"
	"github.com/born-ml/eisnet/internal/tensor"
)

// LoadOptions adjusts how a model is prepared.
type LoadOptions struct {
	// Kernels adds or overrides operator implementations by op type.
	Kernels map[string]operators.Kernel
}

// step is one node resolved against the registry.
type step struct {
	node    operators.Node
	kernel  operators.Kernel
	inputs  []string
	outputs []string
}

// Model executes an ONNX graph on a tensor.Backend. Nodes are ordered and
// resolved once at load time; a Model is safe for concurrent Forward calls.
type Model struct {
	proto   *ModelProto
	backend tensor.Backend
	weights map[string]*tensor.RawTensor
	inputs  []string
	outputs []string
	plan    []step
	opset   int64
}

// Load parses an ONNX file and prepares it for inference.
//
//	model, err := onnx.Load("simplenet100-10.onnx", cpu.New())
//	if err != nil {
//	    return err
//	}
//	probs, err := model.Forward(spectrum)
func Load(path string, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	m, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return LoadFromProto(m, backend, opts...)
}

// LoadFromBytes prepares serialized ONNX data for inference.
func LoadFromBytes(data []byte, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return LoadFromProto(m, backend, opts...)
}

// LoadFromProto prepares an in-memory model, for example one fresh from a
// GraphBuilder.
func LoadFromProto(m *ModelProto, backend tensor.Backend, opts ...LoadOptions) (*Model, error) {
	if m.Graph == nil {
		return nil, errors.New("onnx: model has no graph")
	}
	registry := operators.NewRegistry()
	for _, o := range opts {
		for op, k := range o.Kernels {
			registry.Register(op, k)
		}
	}

	g := m.Graph
	model := &Model{
		proto:   m,
		backend: backend,
		weights: make(map[string]*tensor.RawTensor, len(g.Initializers)),
		inputs:  graphInputs(g),
		opset:   defaultOpset(m),
	}
	for i := range g.Initializers {
		t, err := TensorFromProto(&g.Initializers[i])
		if err != nil {
			return nil, fmt.Errorf("onnx: initializer: %w", err)
		}
		model.weights[g.Initializers[i].Name] = t
	}
	for i := range g.Outputs {
		model.outputs = append(model.outputs, g.Outputs[i].Name)
	}

	order, err := executionOrder(g.Nodes)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	model.plan = make([]step, len(order))
	for i, idx := range order {
		n := &g.Nodes[idx]
		k, ok := registry.Lookup(n.OpType)
		if !ok {
			return nil, fmt.Errorf("onnx: node %s: unsupported operator %s", n.Name, n.OpType)
		}
		model.plan[i] = step{
			node:    operators.Node{Name: n.Name, OpType: n.OpType, Attrs: decodeAttrs(n.Attributes)},
			kernel:  k,
			inputs:  n.Inputs,
			outputs: n.Outputs,
		}
	}
	return model, nil
}

func decodeAttrs(attrs []AttributeProto) operators.Attrs {
	out := make(operators.Attrs, len(attrs))
	for _, a := range attrs {
		out[a.Name] = operators.Attribute{F: a.F, I: a.I, S: string(a.S), Floats: a.Floats, Ints: a.Ints}
	}
	return out
}

// executionOrder sorts node indices so every node runs after the producers
// of its inputs. Nodes that are already in order keep their position.
func executionOrder(nodes []NodeProto) ([]int, error) {
	producer := make(map[string]int, len(nodes))
	for i := range nodes {
		for _, out := range nodes[i].Outputs {
			if out != "" {
				producer[out] = i
			}
		}
	}

	pending := make([]int, len(nodes))
	consumers := make([][]int, len(nodes))
	for i := range nodes {
		for _, in := range nodes[i].Inputs {
			if p, ok := producer[in]; ok && in != "" {
				pending[i]++
				consumers[p] = append(consumers[p], i)
			}
		}
	}

	var ready []int
	for i, n := range pending {
		if n == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, len(nodes))
	for len(ready) > 0 {
		i := slices.Min(ready)
		ready = slices.DeleteFunc(ready, func(j int) bool { return j == i })
		order = append(order, i)
		for _, c := range consumers[i] {
			if pending[c]--; pending[c] == 0 {
				ready = append(ready, c)
			}
		}
	}
	if len(order) != len(nodes) {
		for i, n := range pending {
			if n > 0 {
				return nil, fmt.Errorf("graph has a cycle through node %s", nodes[i].Name)
			}
		}
	}
	return order, nil
}

// Proto returns the parsed model.
func (m *Model) Proto() *ModelProto { return m.proto }

// InputNames returns the inputs Forward expects, initializers excluded.
func (m *Model) InputNames() []string { return m.inputs }

// OutputNames returns the graph outputs.
func (m *Model) OutputNames() []string { return m.outputs }

// OpsetVersion returns the default-domain opset.
func (m *Model) OpsetVersion() int64 { return m.opset }

// Metadata returns metadata_props as a map. The exporter never writes a key
// twice; for foreign files the first entry wins.
func (m *Model) Metadata() map[string]string {
	meta := make(map[string]string, len(m.proto.MetadataProps))
	for _, e := range m.proto.MetadataProps {
		if _, ok := meta[e.Key]; !ok {
			meta[e.Key] = e.Value
		}
	}
	return meta
}

// Forward runs a model with exactly one input and one output.
func (m *Model) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(m.inputs) != 1 || len(m.outputs) != 1 {
		return nil, fmt.Errorf("onnx: Forward needs one input and one output, model has %d and %d",
			len(m.inputs), len(m.outputs))
	}
	out, err := m.ForwardNamed(map[string]*tensor.RawTensor{m.inputs[0]: input})
	if err != nil {
		return nil, err
	}
	return out[m.outputs[0]], nil
}

// ForwardNamed runs the graph on named inputs and returns every graph output.
// Every input must be given and unknown names are rejected.
func (m *Model) ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	for name := range inputs {
		if !slices.Contains(m.inputs, name) {
			return nil, fmt.Errorf("onnx: unknown input %q", name)
		}
	}
	values := make(map[string]*tensor.RawTensor, len(m.weights)+len(m.plan)+len(inputs))
	for name, w := range m.weights {
		values[name] = w
	}
	for _, name := range m.inputs {
		x, ok := inputs[name]
		if !ok || x == nil {
			return nil, fmt.Errorf("onnx: missing input %q", name)
		}
		values[name] = x
	}

	for i := range m.plan {
		s := &m.plan[i]
		args := make([]*tensor.RawTensor, len(s.inputs))
		for j, name := range s.inputs {
			if name == "" {
				continue
			}
			v, ok := values[name]
			if !ok {
				return nil, fmt.Errorf("onnx: node %s: input %q is undefined", s.node.Name, name)
			}
			args[j] = v
		}
		outs, err := runStep(m.backend, s, args)
		if err != nil {
			return nil, fmt.Errorf("onnx: node %s: %w", s.node.Name, err)
		}
		for j, name := range s.outputs {
			if name != "" && j < len(outs) {
				values[name] = outs[j]
			}
		}
	}

	result := make(map[string]*tensor.RawTensor, len(m.outputs))
	for _, name := range m.outputs {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("onnx: output %q was not produced", name)
		}
		result[name] = v
	}
	return result, nil
}

// runStep calls the kernel, turning backend panics into errors.
func runStep(be tensor.Backend, s *step, args []*tensor.RawTensor) (out []*tensor.RawTensor, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%s: %v", s.node.OpType, p)
		}
	}()
	return s.kernel(be, &s.node, args)
}
