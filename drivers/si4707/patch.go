package si4707

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
)

// patchWindow is the largest write the chip accepts during patching: one
// command byte plus seven argument bytes.
const patchWindow = 8

// patchLoader streams a firmware patch after POWER_UP and checks the patch
// ID reported by GET_REV.
type patchLoader struct {
	image   []byte
	id      uint16
	checkID bool
}

// DecompressPatch accepts either base64 text of a zlib stream or the raw
// zlib stream and returns the flat patch image.
func DecompressPatch(blob []byte) ([]byte, error) {
	raw := blob
	trimmed := bytes.TrimSpace(blob)
	if dec, err := base64.StdEncoding.DecodeString(string(trimmed)); err == nil {
		raw = dec
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &ValidationError{Op: "PATCH", Field: "image", Value: fmt.Sprintf("%dB", len(blob)), Reason: err.Error()}
	}
	defer zr.Close()
	img, err := io.ReadAll(zr)
	if err != nil {
		return nil, &ValidationError{Op: "PATCH", Field: "image", Value: fmt.Sprintf("%dB", len(blob)), Reason: err.Error()}
	}
	if len(img) == 0 {
		return nil, &ValidationError{Op: "PATCH", Field: "image", Value: "0B", Reason: "empty"}
	}
	return img, nil
}

// NewPatchedPowerUp builds a POWER_UP that loads blob (see DecompressPatch)
// before the receiver is used. When checkID is set, the patch ID read back
// afterwards must equal id.
func NewPatchedPowerUp(cfg PowerUpConfig, blob []byte, id uint16, checkID bool) (*PowerUp, error) {
	if cfg.Function != FuncWBReceive {
		return nil, &ValidationError{Op: "POWER_UP", Field: "function", Value: cfg.Function, Reason: "patching needs function 3"}
	}
	c, err := NewPowerUp(cfg)
	if err != nil {
		return nil, err
	}
	img, err := DecompressPatch(blob)
	if err != nil {
		return nil, err
	}
	c.patch = &patchLoader{image: img, id: id, checkID: checkID}
	return c, nil
}

func (p *patchLoader) load(r *Radio) (*Revision, error) {
	for off := 0; off < len(p.image); off += patchWindow {
		end := min(off+patchWindow, len(p.image))
		w := p.image[off:end]
		if _, err := r.command("PATCH", w[0], w[1:]); err != nil {
			return nil, fmt.Errorf("patch offset %d: %w", off, err)
		}
	}
	rev, err := readRevision(r)
	if err != nil {
		return nil, err
	}
	if p.checkID && rev.PatchID != p.id {
		return rev, &ProtocolViolationError{
			Op:   "PATCH",
			Msg:  "patch id mismatch",
			Want: fmt.Sprintf("0x%04X", p.id),
			Got:  fmt.Sprintf("0x%04X", rev.PatchID),
		}
	}
	return rev, nil
}
