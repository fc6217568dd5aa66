package onnx

// The message types below mirror onnx.proto3 field for field, restricted to
// what the exporter writes and the runtime reads. Field numbers live in
// encode.go and decode.go.

// Versions written by the exporter.
const (
	IRVersion    = 7
	OpsetVersion = 14
	Producer     = "eisnet"
)

// TensorProto.DataType values.
const (
	TensorProtoFloat   = 1
	TensorProtoInt64   = 7
	TensorProtoBool    = 9
	TensorProtoFloat16 = 10
	TensorProtoDouble  = 11
)

// AttributeProto.Type values.
const (
	AttributeProtoFloat   = 1
	AttributeProtoInt     = 2
	AttributeProtoString  = 3
	AttributeProtoTensor  = 4
	AttributeProtoFloats  = 6
	AttributeProtoInts    = 7
	AttributeProtoStrings = 8
)

// ModelProto is the top-level message of an .onnx file. Exported networks
// carry their labels and purpose in MetadataProps.
type ModelProto struct {
	IRVersion       int64
	OpsetImport     []OperatorSetID
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           *GraphProto
	MetadataProps   []StringStringEntry
}

// OperatorSetID names an imported opset. An empty domain is the default
// ai.onnx domain.
type OperatorSetID struct {
	Domain  string
	Version int64
}

// StringStringEntry is one metadata_props pair.
type StringStringEntry struct {
	Key   string
	Value string
}

// GraphProto holds the nodes in the order they were added, which for the
// exporter is already a valid execution order.
type GraphProto struct {
	Name         string
	Nodes        []NodeProto
	Inputs       []ValueInfoProto
	Outputs      []ValueInfoProto
	Initializers []TensorProto
	ValueInfo    []ValueInfoProto
	DocString    string
}

// NodeProto applies OpType to named inputs. An empty input name is an
// omitted optional input.
type NodeProto struct {
	Name       string
	OpType     string
	Domain     string
	Inputs     []string
	Outputs    []string
	Attributes []AttributeProto
	DocString  string
}

// AttributeProto is a node attribute; Type selects the populated field.
type AttributeProto struct {
	Name      string
	Type      int32
	F         float32
	I         int64
	S         []byte
	T         *TensorProto
	Floats    []float32
	Ints      []int64
	Strings   [][]byte
	DocString string
}

// TensorProto is an initializer. The exporter always fills RawData; the
// typed fields are read for files written by other tools.
type TensorProto struct {
	Name      string
	DataType  int32
	Dims      []int64
	RawData   []byte
	FloatData []float32
	Int32Data []int32
	Int64Data []int64
	DocString string
}

// ValueInfoProto declares a graph input, output or intermediate value.
type ValueInfoProto struct {
	Name      string
	Type      *TypeProto
	DocString string
}

// TypeProto only supports tensor types.
type TypeProto struct {
	TensorType *TensorTypeProto
}

type TensorTypeProto struct {
	ElemType int32
	Shape    *TensorShapeProto
}

type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto is either a fixed size or a symbolic name.
type DimensionProto struct {
	DimValue int64
	DimParam string
}
