// Package qrimage renders QR payloads as PNG images.
package qrimage

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 300
	MinSize     = 128
	MaxSize     = 1024
)

// Renderer implements payment.Renderer with medium error recovery.
type Renderer struct {
	Level qrcode.RecoveryLevel
}

// New returns a renderer using medium recovery.
func New() *Renderer {
	return &Renderer{Level: qrcode.Medium}
}

// Render encodes payload as a square PNG of the given pixel size.
func (r *Renderer) Render(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("qrimage: empty payload")
	}
	png, err := qrcode.Encode(payload, r.Level, ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("qrimage: encode: %w", err)
	}
	return png, nil
}

// ClampSize maps a requested size into the supported range; zero or
// negative selects DefaultSize.
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	}
	return size
}
