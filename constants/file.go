package constants

import (
	"mime"
	"strings"
)

// Media types accepted by the text extractor.
const (
	MediaTypeText   = "text/plain"
	MediaTypeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeDoc    = "application/msword"
	MediaTypePDF    = "application/pdf"
	MediaTypeBinary = "application/octet-stream"
)

// AllowedExtensions holds the upload extensions (lowercase, without '.') and their media type.
var AllowedExtensions = map[string]string{
	"txt":  MediaTypeText,
	"doc":  MediaTypeDoc,
	"docx": MediaTypeDocx,
	"pdf":  MediaTypePDF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MediaTypeForExt returns the media type for a supported extension, or "".
func MediaTypeForExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// NormalizeMediaType strips parameters (e.g. "; charset=utf-8") and lowercases.
func NormalizeMediaType(mt string) string {
	mt = strings.TrimSpace(mt)
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// ResolveMediaType picks the declared media type unless it is missing or generic,
// in which case the file extension decides.
func ResolveMediaType(declared, ext string) string {
	mt := NormalizeMediaType(declared)
	if mt == "" || mt == MediaTypeBinary {
		if byExt := MediaTypeForExt(ext); byExt != "" {
			return byExt
		}
	}
	return mt
}
