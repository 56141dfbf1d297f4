package constants

import (
	"bytes"
	"strings"
)

// PDFMagic is the header every PDF byte stream starts with.
var PDFMagic = []byte("%PDF")

// AllowedExtensions holds the file extensions accepted for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// MaxUploadBytes caps a single uploaded document.
const MaxUploadBytes = 50 << 20

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) can be ingested.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// HasPDFHeader reports whether b starts with the PDF magic, ignoring leading whitespace.
func HasPDFHeader(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(b, " \t\r\n"), PDFMagic)
}
