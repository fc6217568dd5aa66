package arch

import "fmt"

// LayerWidth returns the input and output width of layer in a ladder of layers that
// narrows (or widens) linearly from input to output:
//
//	in  = trunc(input*(layers-layer)/layers   + output*layer/layers)
//	out = trunc(input*(layers-layer-1)/layers + output*(layer+1)/layers)
//
// The first layer starts at input, the last ends at output, and each layer's out
// equals the next layer's in.
func LayerWidth(layer, layers, input, output int) (in, out int, err error) {
	if layers <= 0 {
		return 0, 0, fmt.Errorf("layer width: layer count must be positive, got %d", layers)
	}
	return width(layer, layers, input, output), width(layer+1, layers, input, output), nil
}

func width(step, layers, input, output int) int {
	n := float64(layers)
	return int(float64(input)*float64(layers-step)/n + float64(output)*float64(step)/n)
}
