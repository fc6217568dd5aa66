package onnx

import "github.com/born-ml/eisnet/internal/onnx/operators"

// ModelInfo is what inspect prints about a model file.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int
	Metadata        []StringStringEntry
}

// GetModelInfo parses path and summarizes it without compiling the graph.
func GetModelInfo(path string) (*ModelInfo, error) {
	m, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	info := &ModelInfo{
		IRVersion:       m.IRVersion,
		OpsetVersion:    defaultOpset(m),
		ProducerName:    m.ProducerName,
		ProducerVersion: m.ProducerVersion,
		Metadata:        m.MetadataProps,
	}
	if g := m.Graph; g != nil {
		info.InputNames = graphInputs(g)
		for i := range g.Outputs {
			info.OutputNames = append(info.OutputNames, g.Outputs[i].Name)
		}
		info.NodeCount = len(g.Nodes)
		info.WeightCount = len(g.Initializers)
	}
	return info, nil
}

// ListSupportedOps returns the op types the runtime can execute.
func ListSupportedOps() []string {
	return operators.NewRegistry().Ops()
}

// defaultOpset returns the version imported for the ai.onnx domain, 0 if none.
func defaultOpset(m *ModelProto) int64 {
	for _, o := range m.OpsetImport {
		if o.Domain == "" || o.Domain == "ai.onnx" {
			return o.Version
		}
	}
	return 0
}

// graphInputs lists the inputs callers feed. Older exporters list
// initializers among the graph inputs, so those are skipped.
func graphInputs(g *GraphProto) []string {
	weights := make(map[string]bool, len(g.Initializers))
	for i := range g.Initializers {
		weights[g.Initializers[i].Name] = true
	}
	var names []string
	for i := range g.Inputs {
		if name := g.Inputs[i].Name; !weights[name] {
			names = append(names, name)
		}
	}
	return names
}
