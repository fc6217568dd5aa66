package onnx

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWireType reports a field encoded with an unexpected protobuf wire type.
var ErrWireType = errors.New("unexpected wire type")

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes. Unknown fields are skipped.
func Parse(data []byte) (*ModelProto, error) {
	model := &ModelProto{}
	if err := decodeModel(data, model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// fieldFunc consumes the value of one field and returns the number of bytes read.
// Fields it does not know must be skipped with protowire.ConsumeFieldValue.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk iterates over the fields of a message.
func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	return protowire.ConsumeFieldValue(num, typ, b), nil
}

func decodeModel(b []byte, m *ModelProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // ir_version
			return consumeInt64(typ, b, &m.IRVersion)
		case 2: // producer_name
			return consumeString(typ, b, &m.ProducerName)
		case 3: // producer_version
			return consumeString(typ, b, &m.ProducerVersion)
		case 4: // domain
			return consumeString(typ, b, &m.Domain)
		case 5: // model_version
			return consumeInt64(typ, b, &m.ModelVersion)
		case 6: // doc_string
			return consumeString(typ, b, &m.DocString)
		case 7: // graph
			m.Graph = &GraphProto{}
			return consumeMessage(typ, b, func(sub []byte) error { return decodeGraph(sub, m.Graph) })
		case 8: // opset_import
			return consumeMessage(typ, b, func(sub []byte) error {
				var opset OperatorSetID
				err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &opset.Domain)
					case 2:
						return consumeInt64(typ, b, &opset.Version)
					}
					return skip(num, typ, b)
				})
				m.OpsetImport = append(m.OpsetImport, opset)
				return err
			})
		case 14: // metadata_props
			return consumeMessage(typ, b, func(sub []byte) error {
				var entry StringStringEntry
				err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &entry.Key)
					case 2:
						return consumeString(typ, b, &entry.Value)
					}
					return skip(num, typ, b)
				})
				m.MetadataProps = append(m.MetadataProps, entry)
				return err
			})
		}
		return skip(num, typ, b)
	})
}

func decodeGraph(b []byte, g *GraphProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // node
			return consumeMessage(typ, b, func(sub []byte) error {
				var node NodeProto
				err := decodeNode(sub, &node)
				g.Nodes = append(g.Nodes, node)
				return err
			})
		case 2: // name
			return consumeString(typ, b, &g.Name)
		case 5: // initializer
			return consumeMessage(typ, b, func(sub []byte) error {
				var t TensorProto
				err := decodeTensor(sub, &t)
				g.Initializers = append(g.Initializers, t)
				return err
			})
		case 10: // doc_string
			return consumeString(typ, b, &g.DocString)
		case 11, 12, 13: // input, output, value_info
			return consumeMessage(typ, b, func(sub []byte) error {
				var vi ValueInfoProto
				err := decodeValueInfo(sub, &vi)
				switch num {
				case 11:
					g.Inputs = append(g.Inputs, vi)
				case 12:
					g.Outputs = append(g.Outputs, vi)
				default:
					g.ValueInfo = append(g.ValueInfo, vi)
				}
				return err
			})
		}
		return skip(num, typ, b)
	})
}

func decodeNode(b []byte, n *NodeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1: // input
			var s string
			read, err := consumeString(typ, b, &s)
			n.Inputs = append(n.Inputs, s)
			return read, err
		case 2: // output
			var s string
			read, err := consumeString(typ, b, &s)
			n.Outputs = append(n.Outputs, s)
			return read, err
		case 3:
			return consumeString(typ, b, &n.Name)
		case 4:
			return consumeString(typ, b, &n.OpType)
		case 5: // attribute
			return consumeMessage(typ, b, func(sub []byte) error {
				var attr AttributeProto
				err := decodeAttribute(sub, &attr)
				n.Attributes = append(n.Attributes, attr)
				return err
			})
		case 6:
			return consumeString(typ, b, &n.DocString)
		case 7:
			return consumeString(typ, b, &n.Domain)
		}
		return skip(num, typ, b)
	})
}

func decodeAttribute(b []byte, a *AttributeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &a.Name)
		case 2: // f
			var fs []float32
			read, err := consumeFloat32s(typ, b, &fs)
			if len(fs) > 0 {
				a.F = fs[0]
			}
			return read, err
		case 3: // i
			return consumeInt64(typ, b, &a.I)
		case 4: // s
			return consumeBytes(typ, b, &a.S)
		case 5: // t
			a.T = &TensorProto{}
			return consumeMessage(typ, b, func(sub []byte) error { return decodeTensor(sub, a.T) })
		case 7:
			return consumeFloat32s(typ, b, &a.Floats)
		case 8:
			return consumeInt64s(typ, b, &a.Ints)
		case 9:
			var s []byte
			read, err := consumeBytes(typ, b, &s)
			a.Strings = append(a.Strings, s)
			return read, err
		case 13:
			return consumeString(typ, b, &a.DocString)
		case 20: // type
			return consumeInt32(typ, b, &a.Type)
		}
		return skip(num, typ, b)
	})
}

func decodeTensor(b []byte, t *TensorProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt64s(typ, b, &t.Dims)
		case 2:
			return consumeInt32(typ, b, &t.DataType)
		case 4:
			return consumeFloat32s(typ, b, &t.FloatData)
		case 5:
			var vs []int64
			read, err := consumeInt64s(typ, b, &vs)
			for _, v := range vs {
				t.Int32Data = append(t.Int32Data, int32(v)) //nolint:gosec // G115: int32_data holds int32 values.
			}
			return read, err
		case 7:
			return consumeInt64s(typ, b, &t.Int64Data)
		case 8:
			return consumeString(typ, b, &t.Name)
		case 9:
			return consumeBytes(typ, b, &t.RawData)
		case 12:
			return consumeString(typ, b, &t.DocString)
		}
		return skip(num, typ, b)
	})
}

func decodeValueInfo(b []byte, v *ValueInfoProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &v.Name)
		case 2:
			v.Type = &TypeProto{}
			return consumeMessage(typ, b, func(sub []byte) error { return decodeType(sub, v.Type) })
		case 3:
			return consumeString(typ, b, &v.DocString)
		}
		return skip(num, typ, b)
	})
}

func decodeType(b []byte, t *TypeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skip(num, typ, b)
		}
		tt := &TensorTypeProto{}
		t.TensorType = tt
		return consumeMessage(typ, b, func(sub []byte) error {
			return walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeInt32(typ, b, &tt.ElemType)
				case 2:
					tt.Shape = &TensorShapeProto{}
					return consumeMessage(typ, b, func(sub []byte) error { return decodeShape(sub, tt.Shape) })
				}
				return skip(num, typ, b)
			})
		})
	})
}

func decodeShape(b []byte, s *TensorShapeProto) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return skip(num, typ, b)
		}
		return consumeMessage(typ, b, func(sub []byte) error {
			var dim DimensionProto
			err := walk(sub, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				switch num {
				case 1:
					return consumeInt64(typ, b, &dim.DimValue)
				case 2:
					return consumeString(typ, b, &dim.DimParam)
				}
				return skip(num, typ, b)
			})
			s.Dims = append(s.Dims, dim)
			return err
		})
	})
}

func wantType(got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: got %d, want %d", ErrWireType, got, want)
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if err := wantType(typ, protowire.BytesType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeString(b)
	*dst = v
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if err := wantType(typ, protowire.BytesType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	*dst = append([]byte(nil), v...)
	return n, nil
}

func consumeInt64(typ protowire.Type, b []byte, dst *int64) (int, error) {
	if err := wantType(typ, protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(b)
	*dst = int64(v) //nolint:gosec // G115: two's complement int64 on the wire.
	return n, nil
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	var v int64
	n, err := consumeInt64(typ, b, &v)
	*dst = int32(v) //nolint:gosec // G115: int32 fields are sign-extended on the wire.
	return n, err
}

func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error) (int, error) {
	if err := wantType(typ, protowire.BytesType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, decode(v)
}

// consumeInt64s reads a repeated varint field in packed or unpacked form.
func consumeInt64s(typ protowire.Type, b []byte, dst *[]int64) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		*dst = append(*dst, int64(v)) //nolint:gosec // G115: two's complement int64 on the wire.
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return m, nil
			}
			*dst = append(*dst, int64(v)) //nolint:gosec // G115: two's complement int64 on the wire.
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %d for repeated varint", ErrWireType, typ)
}

// consumeFloat32s reads a repeated float field in packed or unpacked form.
func consumeFloat32s(typ protowire.Type, b []byte, dst *[]float32) (int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		*dst = append(*dst, math.Float32frombits(v))
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}
		if len(packed)%4 != 0 {
			return 0, fmt.Errorf("packed floats: %d bytes is not a multiple of 4", len(packed))
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			*dst = append(*dst, math.Float32frombits(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %d for repeated float", ErrWireType, typ)
}
