// Package render turns plugin editor surfaces into transport-safe frames:
// JPEG compressed and base64 encoded, with a content hash so unchanged
// surfaces can be skipped without re-encoding.
package render

import (
	"bytes"
	"encoding/base64"
	"image/jpeg"

	"github.com/cespare/xxhash/v2"

	"github.com/novadaw/novahost/internal/plugin"
)

// Renderer encodes editor surfaces at a fixed JPEG quality.
type Renderer struct {
	quality int
}

// New creates a Renderer. Quality outside (0, 100] falls back to 75.
func New(quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	return &Renderer{quality: quality}
}

// Capture paints the instance's editor surface and encodes it. It returns
// ok=false when the instance has no surface or encoding fails. When the
// painted pixels hash equal to prevHash the image is returned empty: the
// surface has not changed and the caller should skip the send.
func (r *Renderer) Capture(inst plugin.Instance, prevHash uint64) (image string, hash uint64, ok bool) {
	editor := inst.Editor()
	if editor == nil {
		return "", 0, false
	}

	img := editor.Paint()
	hash = xxhash.Sum64(img.Pix)
	if hash == prevHash {
		return "", hash, true
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return "", 0, false
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), hash, true
}
