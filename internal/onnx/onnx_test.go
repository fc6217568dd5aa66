package onnx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/eisnet/internal/backend/cpu"
	"github.com/born-ml/eisnet/internal/onnx/operators"
	"github.com/born-ml/eisnet/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.FromFloat32(values, shape)
	require.NoError(t, err)
	return r
}

// linearModel builds x[1,2] -> Gemm(W[3,2], b) -> Relu -> "out".
func linearModel(t *testing.T) *ModelProto {
	t.Helper()
	g := NewGraphBuilder("linear", false)
	x, err := g.Input("EIS", tensor.Shape{1, 2})
	require.NoError(t, err)

	g.Push("0")
	w := g.Initializer("weight", raw(t, tensor.Shape{3, 2}, 1, 0, 0, 1, -1, -1))
	b := g.Initializer("bias", raw(t, tensor.Shape{3}, 0.5, 0, 0))
	y := g.Node("Gemm", []Value{x, w, b}, tensor.Shape{1, 3}, AttrInt("transB", 1))
	g.Pop()

	y = g.Node("Relu", []Value{y}, y.Shape)
	_, err = g.Output(y, "out")
	require.NoError(t, err)
	return g.Model()
}

func TestGraphBuilderNaming(t *testing.T) {
	m := linearModel(t)
	graph := m.Graph

	assert.Equal(t, "linear", graph.Name)
	assert.Equal(t, "0.weight", graph.Initializers[0].Name)
	assert.Equal(t, "0.bias", graph.Initializers[1].Name)
	assert.Equal(t, "/0/Gemm", graph.Nodes[0].Name)
	assert.Equal(t, []string{"/0/Gemm_output_0"}, graph.Nodes[0].Outputs)
	assert.Equal(t, "Identity", graph.Nodes[2].OpType)
	assert.Equal(t, "out", graph.Outputs[0].Name)
	assert.Equal(t, int64(IRVersion), m.IRVersion)
	assert.Equal(t, []OperatorSetID{{Version: OpsetVersion}}, m.OpsetImport)

	g := NewGraphBuilder("dup", false)
	_, err := g.Input("x", tensor.Shape{1})
	require.NoError(t, err)
	_, err = g.Input("x", tensor.Shape{1})
	assert.Error(t, err)

	a := g.Initializer("w", raw(t, tensor.Shape{1}, 1))
	b := g.Initializer("w", raw(t, tensor.Shape{1}, 1))
	assert.NotEqual(t, a.Name, b.Name)
}

func TestMarshalParseRoundTrip(t *testing.T) {
	m := linearModel(t)
	m.DocString = "round trip"
	AddMetadata(m, "outputLabels", "a,b,c")
	m.Graph.Nodes[0].Attributes = append(m.Graph.Nodes[0].Attributes,
		AttrFloat("alpha", 1), AttrInts("axes", -1, 2), AttrString("mode", "constant"), AttrInt("zero", 0))

	parsed, err := Parse(Marshal(m))
	require.NoError(t, err)

	assert.Equal(t, m.IRVersion, parsed.IRVersion)
	assert.Equal(t, m.ProducerName, parsed.ProducerName)
	assert.Equal(t, m.DocString, parsed.DocString)
	assert.Equal(t, m.OpsetImport, parsed.OpsetImport)
	assert.Equal(t, m.MetadataProps, parsed.MetadataProps)
	assert.Equal(t, m.Graph.Name, parsed.Graph.Name)
	assert.Equal(t, m.Graph.Inputs, parsed.Graph.Inputs)
	assert.Equal(t, m.Graph.Outputs, parsed.Graph.Outputs)
	assert.Equal(t, m.Graph.Initializers, parsed.Graph.Initializers)

	require.Len(t, parsed.Graph.Nodes, len(m.Graph.Nodes))
	for i := range m.Graph.Nodes {
		want, got := m.Graph.Nodes[i], parsed.Graph.Nodes[i]
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.OpType, got.OpType)
		assert.Equal(t, want.Inputs, got.Inputs)
		assert.Equal(t, want.Outputs, got.Outputs)
		assert.Len(t, got.Attributes, len(want.Attributes))
	}

	attrs := parsed.Graph.Nodes[0].Attributes
	assert.Equal(t, int64(1), attrs[0].I)
	assert.Equal(t, float32(1), attrs[1].F)
	assert.Equal(t, []int64{-1, 2}, attrs[2].Ints)
	assert.Equal(t, []byte("constant"), attrs[3].S)
	assert.Equal(t, int32(AttributeProtoInt), attrs[4].Type)
}

func TestParsePackedFields(t *testing.T) {
	var dims []byte
	dims = protowire.AppendVarint(dims, 2)
	dims = protowire.AppendVarint(dims, 3)

	var tensorMsg []byte
	tensorMsg = protowire.AppendTag(tensorMsg, 1, protowire.BytesType)
	tensorMsg = protowire.AppendBytes(tensorMsg, dims)
	tensorMsg = appendString(tensorMsg, 8, "packed")

	var graph []byte
	graph = appendMessage(graph, 5, tensorMsg)

	var model []byte
	model = appendInt64(model, 1, 7)
	model = appendMessage(model, 7, graph)
	// Unknown fields are skipped.
	model = protowire.AppendTag(model, 99, protowire.VarintType)
	model = protowire.AppendVarint(model, 1)

	parsed, err := Parse(model)
	require.NoError(t, err)
	require.Len(t, parsed.Graph.Initializers, 1)
	assert.Equal(t, []int64{2, 3}, parsed.Graph.Initializers[0].Dims)
	assert.Equal(t, "packed", parsed.Graph.Initializers[0].Name)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte{0x0a, 0x05, 'a'})
	assert.Error(t, err)

	// ir_version sent as a string.
	var bad []byte
	bad = appendString(bad, 1, "seven")
	_, err = Parse(bad)
	assert.ErrorIs(t, err, ErrWireType)
}

func TestCheck(t *testing.T) {
	m := linearModel(t)
	require.NoError(t, Check(m))

	m.IRVersion = 0
	m.Graph.Name = ""
	m.Graph.Nodes = append(m.Graph.Nodes, NodeProto{Name: "bad", OpType: "Transpose", Inputs: []string{"missing"}})
	m.MetadataProps = []StringStringEntry{{Key: "a"}, {Key: "a"}}
	m.Graph.Outputs = append(m.Graph.Outputs, ValueInfoProto{Name: "ghost"})

	err := Check(m)
	var checkErr *CheckError
	require.ErrorAs(t, err, &checkErr)
	assert.Len(t, checkErr.Problems, 6)
	assert.Contains(t, err.Error(), "unsupported operator Transpose")
	assert.Contains(t, err.Error(), `input "missing" is not defined before use`)
	assert.Contains(t, err.Error(), `graph output "ghost" is never produced`)
}

func TestCheckDuplicateOutput(t *testing.T) {
	m := linearModel(t)
	m.Graph.Nodes = append(m.Graph.Nodes, NodeProto{Name: "again", OpType: "Identity",
		Inputs: []string{"EIS"}, Outputs: []string{"out"}})
	assert.Error(t, Check(m))
}

func TestRuntimeForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linear.onnx")
	require.NoError(t, SaveFile(linearModel(t), path))

	model, err := Load(path, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"EIS"}, model.InputNames())
	assert.Equal(t, []string{"out"}, model.OutputNames())
	assert.Equal(t, int64(OpsetVersion), model.OpsetVersion())
	assert.Empty(t, model.Metadata())

	out, err := model.Forward(raw(t, tensor.Shape{1, 2}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3}, out.Shape())
	assert.Equal(t, []float32{1.5, 2, 0}, out.AsFloat32())

	_, err = model.ForwardNamed(map[string]*tensor.RawTensor{})
	assert.ErrorContains(t, err, `missing input "EIS"`)
	_, err = model.ForwardNamed(map[string]*tensor.RawTensor{"EIS": raw(t, tensor.Shape{1, 2}, 1, 2), "extra": nil})
	assert.ErrorContains(t, err, `unknown input "extra"`)
	_, err = model.Forward(raw(t, tensor.Shape{1, 5}, 1, 2, 3, 4, 5))
	assert.ErrorContains(t, err, "Gemm")

	info, err := GetModelInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 3, info.NodeCount)
	assert.Equal(t, 2, info.WeightCount)
	assert.Equal(t, []string{"EIS"}, info.InputNames)
}

func TestExecutionOrder(t *testing.T) {
	// A -> B -> C
	//      B -> D
	nodes := []NodeProto{
		{Name: "C", Inputs: []string{"b_out"}, Outputs: []string{"c_out"}},
		{Name: "A", Inputs: []string{"input"}, Outputs: []string{"a_out"}},
		{Name: "D", Inputs: []string{"b_out", "b_out"}, Outputs: []string{"d_out"}},
		{Name: "B", Inputs: []string{"a_out", ""}, Outputs: []string{"b_out"}},
	}
	order, err := executionOrder(nodes)
	require.NoError(t, err)
	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = nodes[idx].Name
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)

	order, err = executionOrder(linearModel(t).Graph.Nodes)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)

	_, err = executionOrder([]NodeProto{
		{Name: "X", Inputs: []string{"y"}, Outputs: []string{"x"}},
		{Name: "Y", Inputs: []string{"x"}, Outputs: []string{"y"}},
	})
	assert.ErrorContains(t, err, "cycle")
}

func TestLoadRejectsUnsupportedOperator(t *testing.T) {
	m := linearModel(t)
	m.Graph.Nodes[1].OpType = "Transpose"
	_, err := LoadFromProto(m, cpu.New())
	assert.ErrorContains(t, err, "unsupported operator Transpose")

	_, err = LoadFromProto(&ModelProto{}, cpu.New())
	assert.Error(t, err)
}

func TestLoadCustomKernel(t *testing.T) {
	m := linearModel(t)
	negate := func(be tensor.Backend, _ *operators.Node, in []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
		minus := raw(t, tensor.Shape{1}, -1)
		return []*tensor.RawTensor{be.Mul(in[0], minus)}, nil
	}
	model, err := LoadFromProto(m, cpu.New(), LoadOptions{Kernels: map[string]operators.Kernel{"Relu": negate}})
	require.NoError(t, err)
	out, err := model.Forward(raw(t, tensor.Shape{1, 2}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []float32{-1.5, -2, 3}, out.AsFloat32())
}

func TestTensorProtoConversion(t *testing.T) {
	ints := tensor.MustRaw(tensor.Shape{2}, tensor.Int64, tensor.CPU)
	copy(ints.AsInt64(), []int64{-1, 7})

	proto := TensorToProto("axes", ints)
	assert.Equal(t, int32(TensorProtoInt64), proto.DataType)

	back, err := TensorFromProto(&proto)
	require.NoError(t, err)
	assert.Equal(t, []int64{-1, 7}, back.AsInt64())

	legacy := &TensorProto{DataType: TensorProtoFloat, Dims: []int64{2}, FloatData: []float32{1, 2}}
	back, err = TensorFromProto(legacy)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, back.AsFloat32())

	_, err = TensorFromProto(&TensorProto{DataType: TensorProtoFloat16, Dims: []int64{1}})
	assert.Error(t, err)
	_, err = TensorFromProto(&TensorProto{DataType: TensorProtoFloat, Dims: []int64{2}, RawData: []byte{1}})
	assert.Error(t, err)

	flags := &TensorProto{Name: "mask", DataType: TensorProtoBool, Dims: []int64{3}, Int32Data: []int32{1, 0, 2}}
	back, err = TensorFromProto(flags)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, back.AsBool())

	for name, p := range map[string]*TensorProto{
		"bool too long":   {Name: "mask", DataType: TensorProtoBool, Dims: []int64{2}, Int32Data: []int32{1, 0, 1, 1}},
		"float too short": {Name: "w", DataType: TensorProtoFloat, Dims: []int64{3}, FloatData: []float32{1}},
		"int64 too long":  {Name: "axes", DataType: TensorProtoInt64, Dims: []int64{1}, Int64Data: []int64{1, 2}},
	} {
		_, err := TensorFromProto(p)
		assert.ErrorContains(t, err, "shape", name)
	}
}

func TestMetadata(t *testing.T) {
	m := &ModelProto{}
	assert.True(t, AddMetadata(m, "softmax", "true"))
	assert.False(t, AddMetadata(m, "softmax", "false"))

	v, ok := MetadataValue(m, "softmax")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	_, ok = MetadataValue(m, "version")
	assert.False(t, ok)
}
