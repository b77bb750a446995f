package plugin

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
)

const (
	defaultEditorWidth  = 400
	defaultEditorHeight = 300
	minEditorWidth      = 120
	minEditorHeight     = 80

	titleBarHeight = 28
	rowHeight      = 36
	rowPadding     = 8
)

// paramAccess is the slice of an instance the editor interacts with.
type paramAccess interface {
	Parameters() []Parameter
	SetParameter(name string, value float64) bool
}

// EditorSurface is the off-screen UI of an instance: a title bar and one
// horizontal slider per parameter. Pointer, wheel and key events translate
// into parameter changes; Paint renders the current state for streaming.
type EditorSurface struct {
	params paramAccess
	title  string

	mu     sync.Mutex
	width  int
	height int
	focus  int
}

func newEditorSurface(params paramAccess, title string) *EditorSurface {
	return &EditorSurface{
		params: params,
		title:  title,
		width:  defaultEditorWidth,
		height: defaultEditorHeight,
	}
}

// Size returns the current surface dimensions.
func (e *EditorSurface) Size() (width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// SetBounds resizes the surface. The x/y position is ignored: surfaces are
// rendered off screen.
func (e *EditorSurface) SetBounds(x, y, width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if width < minEditorWidth {
		width = minEditorWidth
	}
	if height < minEditorHeight {
		height = minEditorHeight
	}
	e.width = width
	e.height = height
}

// rowAt maps a y coordinate to a parameter index, or -1.
func (e *EditorSurface) rowAt(y int) int {
	if y < titleBarHeight {
		return -1
	}
	row := (y - titleBarHeight) / rowHeight
	if row >= len(e.params.Parameters()) {
		return -1
	}
	return row
}

// Click sets the parameter under the pointer to the position along the
// slider.
func (e *EditorSurface) Click(x, y int) {
	e.mu.Lock()
	width := e.width
	e.mu.Unlock()

	row := e.rowAt(y)
	if row < 0 {
		return
	}

	params := e.params.Parameters()
	value := clamp01(float64(x) / float64(width))
	e.params.SetParameter(params[row].Name, value)

	e.mu.Lock()
	e.focus = row
	e.mu.Unlock()
}

// Drag is a pressed move: the slider follows the release point.
func (e *EditorSurface) Drag(x1, y1, x2, y2 int) {
	// the grab row decides which parameter moves
	row := e.rowAt(y1)
	if row < 0 {
		return
	}

	e.mu.Lock()
	width := e.width
	e.focus = row
	e.mu.Unlock()

	params := e.params.Parameters()
	value := clamp01(float64(x2) / float64(width))
	e.params.SetParameter(params[row].Name, value)
}

// Scroll nudges the parameter under the pointer by the wheel delta.
func (e *EditorSurface) Scroll(x, y, delta int) {
	row := e.rowAt(y)
	if row < 0 {
		return
	}

	params := e.params.Parameters()
	value := clamp01(params[row].Value + float64(delta)*0.05)
	e.params.SetParameter(params[row].Name, value)

	e.mu.Lock()
	e.focus = row
	e.mu.Unlock()
}

// Key adjusts the focused parameter. Arrow up/down step by 0.01, or 0.1
// with a shift modifier.
func (e *EditorSurface) Key(key string, modifiers []string) {
	step := 0.01
	for _, m := range modifiers {
		if m == "shift" {
			step = 0.1
		}
	}

	var delta float64
	switch key {
	case "ArrowUp", "up", "+":
		delta = step
	case "ArrowDown", "down", "-":
		delta = -step
	default:
		return
	}

	e.mu.Lock()
	focus := e.focus
	e.mu.Unlock()

	params := e.params.Parameters()
	if focus < 0 || focus >= len(params) {
		return
	}
	e.params.SetParameter(params[focus].Name, clamp01(params[focus].Value+delta))
}

var (
	colorBackground = color.RGBA{R: 0x1a, G: 0x1a, B: 0x2e, A: 0xff}
	colorTitleBar   = color.RGBA{R: 0x2a, G: 0x2a, B: 0x45, A: 0xff}
	colorTrack      = color.RGBA{R: 0x11, G: 0x11, B: 0x1f, A: 0xff}
	colorFill       = color.RGBA{R: 0x4f, G: 0x8f, B: 0xef, A: 0xff}
)

// Paint renders the surface. The output is deterministic for a given
// parameter state, which lets the push path skip unchanged frames.
func (e *EditorSurface) Paint() *image.RGBA {
	e.mu.Lock()
	width, height := e.width, e.height
	e.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: colorBackground}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, width, titleBarHeight), &image.Uniform{C: colorTitleBar}, image.Point{}, draw.Src)

	for i, p := range e.params.Parameters() {
		top := titleBarHeight + i*rowHeight + rowPadding
		bottom := titleBarHeight + (i+1)*rowHeight - rowPadding
		if bottom > height {
			break
		}

		track := image.Rect(rowPadding, top, width-rowPadding, bottom)
		draw.Draw(img, track, &image.Uniform{C: colorTrack}, image.Point{}, draw.Src)

		fillWidth := int(p.Value * float64(track.Dx()))
		fill := image.Rect(track.Min.X, top, track.Min.X+fillWidth, bottom)
		draw.Draw(img, fill, &image.Uniform{C: colorFill}, image.Point{}, draw.Src)
	}

	return img
}
