package formats

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path     string
		expected Kind
	}{
		{"photo.jpg", KindStandard},
		{"photo.JPEG", KindStandard},
		{"dir/photo.png", KindStandard},
		{"photo.tif", KindStandard},
		{"photo.webp", KindStandard},
		{"photo.heic", KindHighEfficiency},
		{"photo.HEIF", KindHighEfficiency},
		{"photo.cr3", KindRaw},
		{"photo.CR2", KindRaw},
		{"photo.nef", KindRaw},
		{"photo.arw", KindRaw},
		{"photo.dng", KindRaw},
		{"photo.rwl", KindRaw},
		{"photo.txt", KindUnsupported},
		{"photo.mp4", KindUnsupported},
		{"photo", KindUnsupported},
		{"", KindUnsupported},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if got := Classify(tc.path); got != tc.expected {
				t.Errorf("Classify(%q) = %v; want %v", tc.path, got, tc.expected)
			}
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()

	seen := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			t.Errorf("extension %q is not dot-prefixed", ext)
		}
		if ext != strings.ToLower(ext) {
			t.Errorf("extension %q is not lower case", ext)
		}
		if seen[ext] {
			t.Errorf("extension %q appears twice", ext)
		}
		seen[ext] = true
	}

	if !seen[".heic"] {
		t.Error("supported extensions should include .heic")
	}
	if seen[".txt"] {
		t.Error("supported extensions should exclude .txt")
	}
}

func TestExtensionKind(t *testing.T) {
	tests := []struct {
		ext      string
		expected Kind
	}{
		{".cr3", KindRaw},
		{".NEF", KindRaw},
		{".heic", KindHighEfficiency},
		{".jpg", KindStandard},
		{".txt", KindUnsupported},
		{"", KindUnsupported},
	}
	for _, tc := range tests {
		if got := ExtensionKind(tc.ext); got != tc.expected {
			t.Errorf("ExtensionKind(%q) = %v; want %v", tc.ext, got, tc.expected)
		}
	}
}

func TestRawFormatName(t *testing.T) {
	if got := RawFormatName("a/b/photo.cr3"); got != "CR3" {
		t.Errorf("RawFormatName = %q; want CR3", got)
	}
	if got := RawFormatName("photo.jpg"); got != "" {
		t.Errorf("RawFormatName for non-RAW = %q; want empty", got)
	}
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"p.nef", "image/x-nef"},
		{"p.heic", "image/heic"},
		{"p.heif", "image/heic"},
		{"p.jpg", "image/jpeg"},
		{"p.tiff", "image/tiff"},
		{"p.txt", ""},
	}
	for _, tc := range tests {
		if got := MimeType(tc.path); got != tc.expected {
			t.Errorf("MimeType(%q) = %q; want %q", tc.path, got, tc.expected)
		}
	}
}
