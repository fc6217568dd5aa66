package onnx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/eisnet/internal/tensor"
)

// Value is a named tensor flowing through a graph under construction.
// Shapes are static: the exporter fixes the batch size, so every intermediate
// shape is known while lowering.
type Value struct {
	Name  string
	Shape tensor.Shape
}

// None marks an omitted optional node input.
var None = Value{}

// GraphBuilder assembles a GraphProto while modules lower themselves into it.
//
// Initializers are named after the module path (Push/Pop), so "3.1.weight" in the
// graph is the same tensor as "3.1.weight" in the state dict. Node names follow the
// "/3/1/Gemm" convention with "_output_0" suffixed outputs.
type GraphBuilder struct {
	graph    GraphProto
	training bool
	scope    []string
	used     map[string]bool
}

// NewGraphBuilder creates an empty graph. training selects how modules with
// train/eval behavior (batch norm, dropout) lower themselves.
func NewGraphBuilder(name string, training bool) *GraphBuilder {
	return &GraphBuilder{
		graph:    GraphProto{Name: name},
		training: training,
		used:     make(map[string]bool),
	}
}

// Training reports whether the graph is built for training.
func (g *GraphBuilder) Training() bool {
	return g.training
}

// Push enters a module scope.
func (g *GraphBuilder) Push(scope string) {
	g.scope = append(g.scope, scope)
}

// Pop leaves the innermost module scope.
func (g *GraphBuilder) Pop() {
	if len(g.scope) > 0 {
		g.scope = g.scope[:len(g.scope)-1]
	}
}

// PushIndex enters the scope of the i-th child of a container.
func (g *GraphBuilder) PushIndex(i int) {
	g.Push(strconv.Itoa(i))
}

// Input declares a float32 graph input.
func (g *GraphBuilder) Input(name string, shape tensor.Shape) (Value, error) {
	if err := g.claim(name); err != nil {
		return None, err
	}
	g.graph.Inputs = append(g.graph.Inputs, valueInfo(name, shape))
	return Value{Name: name, Shape: shape.Clone()}, nil
}

// Output declares v as a graph output called name, inserting an Identity node
// when the value carries a different name.
func (g *GraphBuilder) Output(v Value, name string) (Value, error) {
	if v.Name != name {
		if err := g.claim(name); err != nil {
			return None, err
		}
		g.graph.Nodes = append(g.graph.Nodes, NodeProto{
			Name:    g.unique(g.nodePath("Identity")),
			OpType:  "Identity",
			Inputs:  []string{v.Name},
			Outputs: []string{name},
		})
		v = Value{Name: name, Shape: v.Shape}
	}
	g.graph.Outputs = append(g.graph.Outputs, valueInfo(v.Name, v.Shape))
	return v, nil
}

// Initializer stores raw as a graph initializer named after the current scope.
func (g *GraphBuilder) Initializer(name string, raw *tensor.RawTensor) Value {
	full := g.unique(g.paramPath(name))
	g.graph.Initializers = append(g.graph.Initializers, TensorToProto(full, raw))
	return Value{Name: full, Shape: raw.Shape().Clone()}
}

// Int64s stores a 1-D int64 constant, used for shapes, axes and pads.
func (g *GraphBuilder) Int64s(name string, values ...int64) Value {
	raw := tensor.MustRaw(tensor.Shape{len(values)}, tensor.Int64, tensor.CPU)
	copy(raw.AsInt64(), values)
	return g.Initializer(name, raw)
}

// Scalar stores a 0-D constant of the given type.
func (g *GraphBuilder) Scalar(name string, value float32, dtype tensor.DataType) Value {
	raw := tensor.MustRaw(tensor.Shape{}, dtype, tensor.CPU)
	switch dtype {
	case tensor.Bool:
		raw.AsBool()[0] = value != 0
	case tensor.Int64:
		raw.AsInt64()[0] = int64(value)
	case tensor.Float64:
		raw.AsFloat64()[0] = float64(value)
	default:
		raw.AsFloat32()[0] = value
	}
	return g.Initializer(name, raw)
}

// Node appends a single-output node and returns its output value.
func (g *GraphBuilder) Node(op string, inputs []Value, out tensor.Shape, attrs ...AttributeProto) Value {
	return g.NodeN(op, inputs, []tensor.Shape{out}, attrs...)[0]
}

// NodeN appends a node with one output per shape in outs.
func (g *GraphBuilder) NodeN(op string, inputs []Value, outs []tensor.Shape, attrs ...AttributeProto) []Value {
	name := g.unique(g.nodePath(op))
	node := NodeProto{
		Name:       name,
		OpType:     op,
		Inputs:     make([]string, len(inputs)),
		Attributes: attrs,
	}
	for i, in := range inputs {
		node.Inputs[i] = in.Name
	}

	values := make([]Value, len(outs))
	for i, shape := range outs {
		out := g.unique(name + "_output_" + strconv.Itoa(i))
		node.Outputs = append(node.Outputs, out)
		values[i] = Value{Name: out, Shape: shape.Clone()}
	}
	g.graph.Nodes = append(g.graph.Nodes, node)
	return values
}

// Graph returns the graph built so far.
func (g *GraphBuilder) Graph() *GraphProto {
	return &g.graph
}

// Model wraps the graph in a ModelProto with the exporter's IR and opset versions.
func (g *GraphBuilder) Model() *ModelProto {
	return &ModelProto{
		IRVersion:       IRVersion,
		OpsetImport:     []OperatorSetID{{Domain: "", Version: OpsetVersion}},
		ProducerName:    Producer,
		ProducerVersion: "1",
		Graph:           &g.graph,
	}
}

func (g *GraphBuilder) claim(name string) error {
	if name == "" {
		return fmt.Errorf("empty value name")
	}
	if g.used[name] {
		return fmt.Errorf("value name %q already used in graph", name)
	}
	g.used[name] = true
	return nil
}

// unique returns name, or name with the lowest free numeric suffix.
func (g *GraphBuilder) unique(name string) string {
	candidate := name
	for i := 1; g.used[candidate]; i++ {
		candidate = name + "_" + strconv.Itoa(i)
	}
	g.used[candidate] = true
	return candidate
}

func (g *GraphBuilder) paramPath(name string) string {
	if len(g.scope) == 0 {
		return name
	}
	return strings.Join(g.scope, ".") + "." + name
}

func (g *GraphBuilder) nodePath(op string) string {
	if len(g.scope) == 0 {
		return "/" + op
	}
	return "/" + strings.Join(g.scope, "/") + "/" + op
}

func valueInfo(name string, shape tensor.Shape) ValueInfoProto {
	dims := make([]DimensionProto, len(shape))
	for i, d := range shape {
		dims[i] = DimensionProto{DimValue: int64(d)}
	}
	return ValueInfoProto{
		Name: name,
		Type: &TypeProto{TensorType: &TensorTypeProto{
			ElemType: TensorProtoFloat,
			Shape:    &TensorShapeProto{Dims: dims},
		}},
	}
}

// AttrInt creates an INT attribute.
func AttrInt(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

// AttrInts creates an INTS attribute.
func AttrInts(name string, vs ...int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInts, Ints: vs}
}

// AttrFloat creates a FLOAT attribute.
func AttrFloat(name string, v float32) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoFloat, F: v}
}

// AttrString creates a STRING attribute.
func AttrString(name, v string) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoString, S: []byte(v)}
}
