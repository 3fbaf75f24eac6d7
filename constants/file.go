package constants

import "strings"

// FileType is the coarse classification produced by type detection.
type FileType string

const (
	PDF         FileType = "pdf"
	IMAGE       FileType = "image"
	UnknownFile FileType = "unknown"
)

// MaxUploadBytes is the per-upload size ceiling (10 MiB).
const MaxUploadBytes = 10 * 1024 * 1024

var pdfExtensions = map[string]struct{}{
	"pdf": {},
}

var imageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"bmp":  {},
	"webp": {},
}

// AllowedContentTypes holds the content types accepted on upload.
var AllowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/png":       {},
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/gif":       {},
	"image/webp":      {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns PDF, IMAGE or UnknownFile for an extension (with or without dot).
func MapExtToFormat(ext string) FileType {
	e := NormalizeExt(ext)
	if _, ok := pdfExtensions[e]; ok {
		return PDF
	}
	if _, ok := imageExtensions[e]; ok {
		return IMAGE
	}
	return UnknownFile
}

// IsAllowedExt reports whether files with this extension are picked up by ingestion.
func IsAllowedExt(ext string) bool {
	return MapExtToFormat(ext) != UnknownFile
}

// IsAllowedContentType reports whether a declared upload content type is accepted.
func IsAllowedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	_, ok := AllowedContentTypes[ct]
	return ok
}
