package plugin

import (
	"math"
	"sync"
)

// baseInstance carries the parameter model shared by the built-in
// processors.
type baseInstance struct {
	name string

	mu     sync.Mutex
	params []Parameter
	editor *EditorSurface
}

func newBase(name string, params []Parameter) *baseInstance {
	return &baseInstance{name: name, params: params}
}

func (b *baseInstance) Name() string {
	return b.name
}

func (b *baseInstance) Parameters() []Parameter {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Parameter, len(b.params))
	copy(out, b.params)
	return out
}

// SetParameter finds the parameter by name with a linear scan and clamps
// the value to [0, 1].
func (b *baseInstance) SetParameter(name string, value float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.params {
		if b.params[i].Name == name {
			b.params[i].Value = clamp01(value)
			return true
		}
	}
	return false
}

func (b *baseInstance) param(name string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.params {
		if b.params[i].Name == name {
			return b.params[i].Value
		}
	}
	return 0
}

func (b *baseInstance) Editor() *EditorSurface {
	return b.editor
}

func (b *baseInstance) Close() {}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// gainInstance scales and pans the signal.
type gainInstance struct {
	*baseInstance
}

func newGain(name string) *gainInstance {
	base := newBase(name, []Parameter{
		{Name: "Gain", Value: 0.5, DisplayName: "Gain"},
		{Name: "Pan", Value: 0.5, DisplayName: "Pan"},
	})
	base.editor = newEditorSurface(base, name)
	return &gainInstance{baseInstance: base}
}

func (g *gainInstance) Process(channels [][]float64) [][]float64 {
	// Gain 0.5 is unity; Pan 0.5 is center.
	gain := g.param("Gain") * 2
	pan := g.param("Pan")*2 - 1

	out := make([][]float64, len(channels))
	for ch := range channels {
		chGain := gain
		if len(channels) == 2 {
			if ch == 0 && pan > 0 {
				chGain *= 1 - pan
			}
			if ch == 1 && pan < 0 {
				chGain *= 1 + pan
			}
		}

		out[ch] = make([]float64, len(channels[ch]))
		for i, s := range channels[ch] {
			out[ch][i] = s * chGain
		}
	}
	return out
}

// delayInstance is a feedback delay with up to one second of delay time.
type delayInstance struct {
	*baseInstance

	maxDelay int
	lines    [][]float64
	writePos int
}

func newDelay(name string, sampleRate float64) *delayInstance {
	base := newBase(name, []Parameter{
		{Name: "Time", Value: 0.25, DisplayName: "Time"},
		{Name: "Feedback", Value: 0.3, DisplayName: "Feedback"},
		{Name: "Mix", Value: 0.5, DisplayName: "Mix"},
	})
	base.editor = newEditorSurface(base, name)

	maxDelay := int(sampleRate)
	if maxDelay < 1 {
		maxDelay = 44100
	}
	return &delayInstance{baseInstance: base, maxDelay: maxDelay}
}

func (d *delayInstance) Process(channels [][]float64) [][]float64 {
	delaySamples := int(d.param("Time") * float64(d.maxDelay-1))
	if delaySamples < 1 {
		delaySamples = 1
	}
	feedback := d.param("Feedback")
	mix := d.param("Mix")

	if len(d.lines) != len(channels) {
		d.lines = make([][]float64, len(channels))
		for ch := range d.lines {
			d.lines[ch] = make([]float64, d.maxDelay)
		}
		d.writePos = 0
	}

	out := make([][]float64, len(channels))
	for ch := range channels {
		out[ch] = make([]float64, len(channels[ch]))
	}

	pos := 0
	for ch := range channels {
		pos = d.writePos
		line := d.lines[ch]
		for i, s := range channels[ch] {
			readPos := (pos - delaySamples + d.maxDelay) % d.maxDelay
			delayed := line[readPos]
			line[pos] = s + delayed*feedback
			out[ch][i] = s*(1-mix) + delayed*mix
			pos = (pos + 1) % d.maxDelay
		}
	}
	d.writePos = pos

	return out
}

// filterInstance is a one-pole low-pass. It has no editor surface, which
// exercises the UI-less streaming path.
type filterInstance struct {
	*baseInstance

	sampleRate float64
	state      []float64
}

func newFilter(name string, sampleRate float64) *filterInstance {
	base := newBase(name, []Parameter{
		{Name: "Cutoff", Value: 0.7, DisplayName: "Cutoff"},
	})
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &filterInstance{baseInstance: base, sampleRate: sampleRate}
}

func (f *filterInstance) Process(channels [][]float64) [][]float64 {
	// cutoff sweeps 20 Hz to 20 kHz exponentially
	fc := 20 * math.Pow(1000, f.param("Cutoff"))
	alpha := 1 - math.Exp(-2*math.Pi*fc/f.sampleRate)

	if len(f.state) != len(channels) {
		f.state = make([]float64, len(channels))
	}

	out := make([][]float64, len(channels))
	for ch := range channels {
		out[ch] = make([]float64, len(channels[ch]))
		y := f.state[ch]
		for i, s := range channels[ch] {
			y += alpha * (s - y)
			out[ch][i] = y
		}
		f.state[ch] = y
	}
	return out
}
