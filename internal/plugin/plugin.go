// Package plugin provides the controlled side of the host: discovery of
// installed plugin bundles, instantiation of processing instances and the
// editor surfaces remote clients interact with.
//
// A plugin bundle is a .nova file holding a small JSON manifest. The
// processors themselves are built in; the manifest's kind selects one.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Descriptor identifies one installable plugin.
type Descriptor struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
	Path     string `json:"path"`
}

// Parameter is one controllable value of an instance. Values are normalized
// to [0, 1].
type Parameter struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	DisplayName string  `json:"display_name"`
}

// Instance is one live plugin session. Implementations must be safe for
// concurrent use: parameters are mutated from the dispatch path while the
// push scheduler paints the editor.
type Instance interface {
	// Name returns the loaded plugin's display name.
	Name() string
	// Process runs one block of audio through the plugin. The returned
	// slice has the same shape as the input.
	Process(channels [][]float64) [][]float64
	// Parameters returns a snapshot of the parameter list.
	Parameters() []Parameter
	// SetParameter sets the named parameter, reporting whether it exists.
	SetParameter(name string, value float64) bool
	// Editor returns the instance's UI surface, or nil when it has none.
	Editor() *EditorSurface
	// Close releases the instance. Calling any other method afterwards is
	// undefined.
	Close()
}

// manifest is the content of a .nova bundle file.
type manifest struct {
	Name     string `json:"name"`
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
}

var (
	// ErrUnknownKind is returned when a bundle names a processor the host
	// does not provide.
	ErrUnknownKind = errors.New("unknown plugin kind")
)

// readManifest parses the bundle file at path.
func readManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, fmt.Errorf("failed to read plugin bundle %s: %w", path, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("failed to parse plugin bundle %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = "Unnamed"
	}
	return m, nil
}

// LoadInstance reads the bundle at path and constructs a prepared instance
// at the given sample rate.
func LoadInstance(path string, sampleRate float64) (Instance, error) {
	m, err := readManifest(path)
	if err != nil {
		return nil, err
	}

	switch m.Kind {
	case "gain":
		return newGain(m.Name), nil
	case "delay":
		return newDelay(m.Name, sampleRate), nil
	case "filter":
		return newFilter(m.Name, sampleRate), nil
	default:
		return nil, fmt.Errorf("%w: %q in %s", ErrUnknownKind, m.Kind, path)
	}
}
