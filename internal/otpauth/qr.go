package otpauth

import (
	"fmt"
	"image/png"
	"io"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// DefaultQRSize is the edge length in pixels of rendered codes.
const DefaultQRSize = 256

// WriteQR renders content as a square PNG QR code with medium error
// correction.
func WriteQR(w io.Writer, content string, size int) error {
	if size <= 0 {
		size = DefaultQRSize
	}
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return fmt.Errorf("otpauth: qr encode: %w", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return fmt.Errorf("otpauth: qr scale: %w", err)
	}
	if err := png.Encode(w, scaled); err != nil {
		return fmt.Errorf("otpauth: png encode: %w", err)
	}
	return nil
}
