package render

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novadaw/novahost/internal/plugin"
)

func loadTestInstance(t *testing.T, kind string) plugin.Instance {
	t.Helper()
	path := filepath.Join(t.TempDir(), kind+".nova")
	manifest := `{"name":"Render ` + kind + `","vendor":"Nova","category":"FX","kind":"` + kind + `"}`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0644))

	inst, err := plugin.LoadInstance(path, 48000)
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst
}

func TestCaptureProducesDecodableJPEG(t *testing.T) {
	inst := loadTestInstance(t, "gain")
	r := New(75)

	image, hash, ok := r.Capture(inst, 0)
	require.True(t, ok)
	require.NotEmpty(t, image)
	assert.NotZero(t, hash)

	raw, err := base64.StdEncoding.DecodeString(image)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	ed := inst.Editor()
	require.NotNil(t, ed)
	w, h := ed.Size()
	assert.Equal(t, w, decoded.Bounds().Dx())
	assert.Equal(t, h, decoded.Bounds().Dy())
}

func TestCaptureSkipsUnchangedSurface(t *testing.T) {
	inst := loadTestInstance(t, "gain")
	r := New(75)

	first, hash, ok := r.Capture(inst, 0)
	require.True(t, ok)
	require.NotEmpty(t, first)

	// same pixels: empty image, same hash
	second, hash2, ok := r.Capture(inst, hash)
	require.True(t, ok)
	assert.Empty(t, second)
	assert.Equal(t, hash, hash2)

	// a parameter change repaints differently
	require.True(t, inst.SetParameter("Gain", 1.0))
	third, hash3, ok := r.Capture(inst, hash)
	require.True(t, ok)
	assert.NotEmpty(t, third)
	assert.NotEqual(t, hash, hash3)
}

func TestCaptureWithoutEditorSurface(t *testing.T) {
	inst := loadTestInstance(t, "filter")
	r := New(75)

	image, _, ok := r.Capture(inst, 0)
	assert.False(t, ok)
	assert.Empty(t, image)
}

func TestNewClampsQuality(t *testing.T) {
	assert.Equal(t, 75, New(0).quality)
	assert.Equal(t, 75, New(150).quality)
	assert.Equal(t, 30, New(30).quality)
}
