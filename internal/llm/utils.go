package llm

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// DataURL wraps a base64 image as a data: URL, sniffing the MIME type from
// the decoded header bytes.
func DataURL(b64 string) string {
	return "data:" + ImageMIME(b64) + ";base64," + b64
}

// ImageMIME sniffs a base64 image; unknown content falls back to image/png.
func ImageMIME(b64 string) string {
	head := b64
	if len(head) > 64 {
		head = head[:64]
	}
	raw, err := base64.StdEncoding.DecodeString(head[:len(head)/4*4])
	if err != nil || len(raw) == 0 {
		return "image/png"
	}
	mt := http.DetectContentType(raw)
	if !strings.HasPrefix(mt, "image/") {
		return "image/png"
	}
	return mt
}
