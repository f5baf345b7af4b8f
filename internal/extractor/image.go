package extractor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"golang.org/x/image/draw"

	"github.com/kozaktomas/visagium/internal/constants"
)

// Dimensions returns the pixel size of an encoded image without decoding it fully.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// ResizeImage resizes an image to fit within maxSize while keeping aspect ratio.
// Images already within bounds are returned unchanged; others come back as JPEG.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	width, height, err := Dimensions(data)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	newWidth, newHeight := fitWithin(width, height, maxSize)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: constants.ResizeJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG re-encodes any supported image as JPEG. JPEG input is returned as is.
func EncodeJPEG(data []byte) ([]byte, error) {
	if detectMIMEType(data) == "image/jpeg" {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: constants.ResizeJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(width, height, maxSize int) (int, int) {
	if width > height {
		return maxSize, max(1, height*maxSize/width)
	}
	return max(1, width*maxSize/height), maxSize
}
