package onnx

import (
	"fmt"
	"strings"

	"github.com/born-ml/eisnet/internal/onnx/operators"
)

// CheckError lists every problem Check found in a model.
type CheckError struct {
	Problems []string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("invalid ONNX model: %s", strings.Join(e.Problems, "; "))
}

func (e *CheckError) addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Check validates the structure of a model:
//   - IR version and a default-domain opset are set
//   - the graph has a name, at least one input and one output
//   - initializer and node output names are unique
//   - every node input is defined before the node that reads it
//   - every graph output is produced
//   - every operator is supported by the runtime
//   - metadata keys are unique
//
// It returns a *CheckError or nil.
func Check(m *ModelProto) error {
	problems := &CheckError{}

	if m.IRVersion < 3 {
		problems.addf("ir_version %d is not supported", m.IRVersion)
	}
	if defaultOpset(m) == 0 {
		problems.addf("no opset imported for the default domain")
	}

	keys := make(map[string]bool, len(m.MetadataProps))
	for _, entry := range m.MetadataProps {
		if keys[entry.Key] {
			problems.addf("duplicate metadata key %q", entry.Key)
		}
		keys[entry.Key] = true
	}

	if m.Graph == nil {
		problems.addf("model has no graph")
		return problems
	}
	checkGraph(m.Graph, problems)

	if len(problems.Problems) > 0 {
		return problems
	}
	return nil
}

func checkGraph(g *GraphProto, problems *CheckError) {
	if g.Name == "" {
		problems.addf("graph has no name")
	}
	if len(g.Inputs) == 0 {
		problems.addf("graph has no inputs")
	}
	if len(g.Outputs) == 0 {
		problems.addf("graph has no outputs")
	}

	defined := make(map[string]bool)
	for i := range g.Inputs {
		defined[g.Inputs[i].Name] = true
	}
	for i := range g.Initializers {
		name := g.Initializers[i].Name
		if name == "" {
			problems.addf("initializer %d has no name", i)
			continue
		}
		if defined[name] && !isInput(g, name) {
			problems.addf("duplicate initializer %q", name)
		}
		defined[name] = true
	}

	registry := operators.NewRegistry()
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.OpType == "" {
			problems.addf("node %d has no op_type", i)
		} else if _, ok := registry.Lookup(node.OpType); !ok || (node.Domain != "" && node.Domain != "ai.onnx") {
			problems.addf("node %s: unsupported operator %s", node.Name, node.OpType)
		}
		for _, in := range node.Inputs {
			if in != "" && !defined[in] {
				problems.addf("node %s: input %q is not defined before use", node.Name, in)
			}
		}
		for _, out := range node.Outputs {
			if out == "" {
				continue
			}
			if defined[out] {
				problems.addf("node %s: output %q is already defined", node.Name, out)
			}
			defined[out] = true
		}
	}

	for i := range g.Outputs {
		if !defined[g.Outputs[i].Name] {
			problems.addf("graph output %q is never produced", g.Outputs[i].Name)
		}
	}
}

func isInput(g *GraphProto, name string) bool {
	for i := range g.Inputs {
		if g.Inputs[i].Name == name {
			return true
		}
	}
	return false
}
