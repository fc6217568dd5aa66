package operators

// Attribute is the decoded value of one node attribute. Only the field
// matching the attribute type is set.
type Attribute struct {
	F      float32
	I      int64
	S      string
	Floats []float32
	Ints   []int64
}

// Attrs maps attribute names to values.
type Attrs map[string]Attribute

// Int returns the named integer attribute, or def when it is absent.
func (a Attrs) Int(name string, def int64) int64 {
	if v, ok := a[name]; ok {
		return v.I
	}
	return def
}

// Ints returns the named integer list, nil when absent.
func (a Attrs) Ints(name string) []int64 {
	return a[name].Ints
}

// Float returns the named float attribute, or def when it is absent.
func (a Attrs) Float(name string, def float32) float32 {
	if v, ok := a[name]; ok {
		return v.F
	}
	return def
}

// Str returns the named string attribute, or def when it is absent.
func (a Attrs) Str(name, def string) string {
	if v, ok := a[name]; ok {
		return v.S
	}
	return def
}

// Node is one graph node as the kernels see it. Wiring between tensors
// stays with the runtime.
type Node struct {
	Name   string
	OpType string
	Attrs  Attrs
}
