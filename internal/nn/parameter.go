package nn

import "github.com/born-ml/eisnet/internal/tensor"

// Parameter is a float32 tensor the external trainer updates. Its name is
// the state dict key inside the owning layer.
type Parameter[B tensor.Backend] struct {
	name  string
	value *tensor.Tensor[float32, B]
}

func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, value: t}
}

func (p *Parameter[B]) Name() string                       { return p.name }
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.value }
func (p *Parameter[B]) Raw() *tensor.RawTensor             { return p.value.Raw() }
func (p *Parameter[B]) NumElements() int                   { return p.value.NumElements() }

// paramState keys the parameters by name.
func paramState[B tensor.Backend](params ...*Parameter[B]) map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		sd[p.name] = p.Raw()
	}
	return sd
}

// loadParams copies each parameter's entry out of sd.
func loadParams[B tensor.Backend](sd map[string]*tensor.RawTensor, params ...*Parameter[B]) error {
	for _, p := range params {
		if err := loadFloat32(p.value, sd, p.name); err != nil {
			return err
		}
	}
	return nil
}
