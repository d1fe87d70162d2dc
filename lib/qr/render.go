package qr

import (
	"errors"
	"fmt"
	"os"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels of rendered codes.
const DefaultSize = 512

var ErrRenderFailed = errors.New("qr render failed")

// levels are tried in order until one fits the content. Medium survives
// smudged prints better; Low holds more data.
var levels = []qrcode.RecoveryLevel{qrcode.Medium, qrcode.Low}

// Render encodes content as a PNG image.
func Render(content string, size int) ([]byte, error) {
	var lastErr error
	for _, level := range levels {
		png, err := qrcode.Encode(content, level, size)
		if err == nil {
			return png, nil
		}
		lastErr = err
		log.Debugw("render", "status", "retry", "level", level, "error", err)
	}

	return nil, fmt.Errorf("%w: %v", ErrRenderFailed, lastErr)
}

// WriteFile renders content into a PNG file at path.
func WriteFile(path, content string, size int) error {
	png, err := Render(content, size)
	if err != nil {
		return err
	}

	return os.WriteFile(path, png, 0o644)
}
