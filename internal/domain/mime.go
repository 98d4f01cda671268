package domain

import (
	"path"
	"strings"
)

// DefaultAttachmentMIME is assumed when nothing else identifies a file.
const DefaultAttachmentMIME = "application/pdf"

var extensionMIME = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// AllowedUploadMIME lists the media types accepted for answer uploads.
var AllowedUploadMIME = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

// ResolveMIME picks the media type for an attachment: the declared type
// unless it is empty or generic, then the file extension, then PDF.
func ResolveMIME(declared, name string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	clean := name
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if m, ok := extensionMIME[strings.ToLower(path.Ext(clean))]; ok {
		return m
	}
	return DefaultAttachmentMIME
}
