// Package detect classifies raw document bytes as pdf, image or unknown.
package detect

import (
	"bytes"
	"path/filepath"

	"github.com/joseph-ayodele/docextract/constants"
)

var (
	magicPDF  = []byte("%PDF")
	magicPNG  = []byte("\x89PNG")
	magicJPEG = []byte("\xFF\xD8\xFF")
	magicGIF  = []byte("GIF8")
	magicBMP  = []byte("BM")
	magicRIFF = []byte("RIFF")
	magicWEBP = []byte("WEBP")
)

// Detect checks the filename extension first and falls back to magic bytes.
func Detect(data []byte, filename string) constants.FileType {
	if ft := constants.MapExtToFormat(filepath.Ext(filename)); ft != constants.UnknownFile {
		return ft
	}
	return Sniff(data)
}

// Sniff classifies by leading bytes only.
func Sniff(data []byte) constants.FileType {
	switch {
	case bytes.HasPrefix(data, magicPDF):
		return constants.PDF
	case bytes.HasPrefix(data, magicPNG),
		bytes.HasPrefix(data, magicJPEG),
		bytes.HasPrefix(data, magicGIF),
		isWebP(data),
		isBMP(data):
		return constants.IMAGE
	}
	return constants.UnknownFile
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && bytes.HasPrefix(data, magicRIFF) && bytes.Equal(data[8:12], magicWEBP)
}

// "BM" alone is too weak; require a plausible header length too.
func isBMP(data []byte) bool {
	return len(data) >= 26 && bytes.HasPrefix(data, magicBMP)
}
