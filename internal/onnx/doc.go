// Package onnx reads, writes, checks and runs ONNX models.
//
// The protobuf messages are plain Go structs encoded and decoded with
// google.golang.org/protobuf/encoding/protowire; no generated code is involved.
//
// Key components:
//   - ModelProto, GraphProto, NodeProto, TensorProto: the subset of the ONNX schema eisnet emits
//   - Encode/Decode: protobuf wire format conversion
//   - GraphBuilder: assembles a graph while layers lower themselves into it
//   - Check: structural validation of a model before it is written
//   - Model: a runtime that executes a graph on a tensor.Backend
//
// Example usage:
//
//	g := onnx.NewGraphBuilder("simplenet", false)
//	x := g.Input("EIS", tensor.Shape{1, 100})
//	y, err := net.Lower(g, x)
//	...
//	g.Output(y, "Unkown")
//	model := g.Model()
//	if err := onnx.Check(model); err != nil {
//	    log.Fatal(err)
//	}
//	err = onnx.SaveFile(model, "simplenet100-10.onnx")
package onnx
