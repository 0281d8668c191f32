package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	tests := []struct {
		extension string
		expected  string
	}{
		{".jpg", "image/jpeg"},
		{".JPG", "image/jpeg"},
		{".jpeg", "image/jpeg"},
		{".png", "image/png"},
		{".gif", "image/gif"},
		{".webp", "image/webp"},
		{".mp4", "video/mp4"},
		{".tiff", "application/octet-stream"}, // not explicitly mapped
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.extension, func(t *testing.T) {
			assert.Equal(t, tt.expected, contentType(tt.extension))
		})
	}
}

func TestExtractKeyFromURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "cdn url",
			url:      "https://cdn.example.com/images/2024/12/user123/file.jpg",
			expected: "images/2024/12/user123/file.jpg",
		},
		{
			name:     "s3 url",
			url:      "https://bucket.s3.us-east-1.amazonaws.com/images/2024/01/u/a.png",
			expected: "images/2024/01/u/a.png",
		},
		{
			name:     "url with query string",
			url:      "https://cdn.example.com/images/a.jpg?w=200",
			expected: "images/a.jpg",
		},
		{
			name:     "empty path",
			url:      "https://cdn.example.com",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractKeyFromURL(tt.url))
		})
	}
}
