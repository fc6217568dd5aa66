package onnx

import (
	"fmt"

	"github.com/born-ml/eisnet/internal/tensor"
)

var protoDTypes = map[int32]tensor.DataType{
	TensorProtoFloat:  tensor.Float32,
	TensorProtoDouble: tensor.Float64,
	TensorProtoInt64:  tensor.Int64,
	TensorProtoBool:   tensor.Bool,
}

func protoDType(dtype tensor.DataType) int32 {
	for code, dt := range protoDTypes {
		if dt == dtype {
			return code
		}
	}
	return TensorProtoFloat
}

// TensorToProto stores raw as little-endian raw_data.
func TensorToProto(name string, raw *tensor.RawTensor) TensorProto {
	shape := raw.Shape()
	dims := make([]int64, len(shape))
	for i := range shape {
		dims[i] = int64(shape[i])
	}
	return TensorProto{
		Name:     name,
		DataType: protoDType(raw.DType()),
		Dims:     dims,
		RawData:  append([]byte(nil), raw.Data()...),
	}
}

// TensorFromProto decodes an initializer. raw_data and the typed repeated
// fields must both match the shape exactly.
func TensorFromProto(p *TensorProto) (*tensor.RawTensor, error) {
	dtype, ok := protoDTypes[p.DataType]
	if !ok {
		return nil, fmt.Errorf("tensor %q: unsupported data type %d", p.Name, p.DataType)
	}
	shape := make(tensor.Shape, len(p.Dims))
	for i, d := range p.Dims {
		shape[i] = int(d)
	}
	t, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", p.Name, err)
	}

	switch {
	case len(p.RawData) > 0:
		if len(p.RawData) != t.ByteSize() {
			return nil, fmt.Errorf("tensor %q: raw data has %d bytes, shape %v needs %d",
				p.Name, len(p.RawData), shape, t.ByteSize())
		}
		copy(t.Data(), p.RawData)
	case dtype == tensor.Float32 && len(p.FloatData) > 0:
		if err := checkCount(p, len(p.FloatData), t); err != nil {
			return nil, err
		}
		copy(t.AsFloat32(), p.FloatData)
	case dtype == tensor.Int64 && len(p.Int64Data) > 0:
		if err := checkCount(p, len(p.Int64Data), t); err != nil {
			return nil, err
		}
		copy(t.AsInt64(), p.Int64Data)
	case dtype == tensor.Bool && len(p.Int32Data) > 0:
		if err := checkCount(p, len(p.Int32Data), t); err != nil {
			return nil, err
		}
		b := t.AsBool()
		for i, v := range p.Int32Data {
			b[i] = v != 0
		}
	}
	return t, nil
}

func checkCount(p *TensorProto, n int, t *tensor.RawTensor) error {
	if n != t.NumElements() {
		return fmt.Errorf("tensor %q: %d values, shape %v needs %d", p.Name, n, t.Shape(), t.NumElements())
	}
	return nil
}
