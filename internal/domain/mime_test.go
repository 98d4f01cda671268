package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMIME(t *testing.T) {
	cases := []struct {
		declared, name, want string
	}{
		{"image/png", "scan.pdf", "image/png"},
		{"IMAGE/JPEG; charset=binary", "x", "image/jpeg"},
		{"", "page1.JPG", "image/jpeg"},
		{"application/octet-stream", "answer.webp", "image/webp"},
		{"", "https://cdn.example.com/a/b.gif?token=1", "image/gif"},
		{"", "noext", "application/pdf"},
		{"application/octet-stream", "file.docx", "application/pdf"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ResolveMIME(c.declared, c.name), "%q %q", c.declared, c.name)
	}
}
