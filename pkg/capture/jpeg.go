package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // decode PNG library picks
)

// QualityPercent converts a 0..1 hint to a JPEG quality percentage.
func QualityPercent(quality float64) int {
	q := int(quality*100 + 0.5)
	if q < 1 {
		q = 1
	}
	if q > 100 {
		q = 100
	}
	return q
}

// ValidQuality reports whether quality is a usable hint.
func ValidQuality(quality float64) bool {
	return quality > 0 && quality <= 1
}

// Reencode decodes an image and encodes it as JPEG at quality. A quality of 1
// or more returns JPEG input unchanged.
func Reencode(data []byte, quality float64) ([]byte, error) {
	if !ValidQuality(quality) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuality, quality)
	}
	if quality >= 1 && sniff(data) == "image/jpeg" {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: QualityPercent(quality)}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
