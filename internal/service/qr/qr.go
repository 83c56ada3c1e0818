package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generate returns a PNG QR code encoding data.
func Generate(data string) ([]byte, error) {
	png, err := qrcode.Encode(data, qrcode.Low, defaultSize)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}

// GenerateDataURI returns the QR code as a data URI suitable for
// embedding in JSON responses.
func GenerateDataURI(data string) (string, error) {
	png, err := Generate(data)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
