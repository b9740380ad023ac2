package classify

import (
	"encoding/base64"
	"net/http"
)

// EncodeBase64 encodes raw image bytes to standard base64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// SniffMIME returns the image MIME type of data, defaulting to JPEG.
func SniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return mime
	default:
		return MultipartImageType
	}
}

