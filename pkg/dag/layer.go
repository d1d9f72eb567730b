package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLayer is returned by [ParseLayer] when the tag is not one of the
// four fixed layers.
var ErrInvalidLayer = errors.New("invalid layer")

// Layer tags one of the four abstraction levels of a project model.
type Layer string

const (
	// LayerFunction holds business goals and functional requirements (what).
	LayerFunction Layer = "function"
	// LayerLogic holds the technical architecture that realises the functions (how).
	LayerLogic Layer = "logic"
	// LayerCode holds concrete implementation units (files, modules).
	LayerCode Layer = "code"
	// LayerOrder holds the execution order of the work.
	LayerOrder Layer = "order"
)

var layers = [...]Layer{LayerFunction, LayerLogic, LayerCode, LayerOrder}

// Layers returns the four layers in canonical order: function, logic, code, order.
func Layers() []Layer {
	out := make([]Layer, len(layers))
	copy(out, layers[:])
	return out
}

// Valid reports whether l is one of the four fixed layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerFunction, LayerLogic, LayerCode, LayerOrder:
		return true
	}
	return false
}

// Title returns the human-readable layer name, e.g. "Function Layer".
func (l Layer) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:]) + " Layer"
}

func (l Layer) String() string { return string(l) }

// ParseLayer converts s to a Layer. Surrounding whitespace and case are
// ignored. Anything outside the fixed set yields ErrInvalidLayer.
func ParseLayer(s string) (Layer, error) {
	l := Layer(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLayer, s)
	}
	return l, nil
}
