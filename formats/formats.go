package formats

import (
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the processing category assigned to an input file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindStandard
	KindHighEfficiency
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindHighEfficiency:
		return "high-efficiency"
	case KindRaw:
		return "raw"
	default:
		return "unsupported"
	}
}

// The three extension sets are disjoint; classification is by lowercase
// extension only, no file content is inspected.
var (
	rawExtensions = map[string]bool{
		".cr2": true, ".cr3": true, ".nef": true, ".arw": true,
		".dng": true, ".raf": true, ".orf": true, ".rw2": true,
		".pef": true, ".srw": true, ".x3f": true, ".3fr": true,
		".iiq": true, ".rwl": true,
	}

	highEfficiencyExtensions = map[string]bool{
		".heic": true, ".heif": true,
	}

	standardExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
		".webp": true, ".bmp": true, ".tiff": true, ".tif": true,
	}
)

// Classify maps a file path to its processing category.
func Classify(path string) Kind {
	return ExtensionKind(filepath.Ext(path))
}

// ExtensionKind maps a dot-prefixed extension to its processing category.
func ExtensionKind(ext string) Kind {
	ext = strings.ToLower(ext)
	switch {
	case rawExtensions[ext]:
		return KindRaw
	case highEfficiencyExtensions[ext]:
		return KindHighEfficiency
	case standardExtensions[ext]:
		return KindStandard
	default:
		return KindUnsupported
	}
}

// IsSupported reports whether the file has a recognized image extension.
func IsSupported(path string) bool {
	return Classify(path) != KindUnsupported
}

// IsRaw reports whether the file has a sensor-native (RAW) extension.
func IsRaw(path string) bool {
	return Classify(path) == KindRaw
}

// RawFormatName returns the upper-cased RAW format name for a path
// ("CR3", "NEF", ...), or "" when the file is not a RAW format.
func RawFormatName(path string) string {
	if !IsRaw(path) {
		return ""
	}
	return strings.ToUpper(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// SupportedExtensions returns the union of all recognized extensions,
// dot-prefixed and lower case, in stable sorted order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(rawExtensions)+len(highEfficiencyExtensions)+len(standardExtensions))
	for ext := range rawExtensions {
		out = append(out, ext)
	}
	for ext := range highEfficiencyExtensions {
		out = append(out, ext)
	}
	for ext := range standardExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// MimeType returns a MIME-like type tag for the file. RAW formats get
// image/x-<format>, everything else maps by extension.
func MimeType(path string) string {
	switch Classify(path) {
	case KindRaw:
		return "image/x-" + strings.ToLower(RawFormatName(path))
	case KindHighEfficiency:
		return "image/heic"
	case KindStandard:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg":
			return "image/jpeg"
		case ".png":
			return "image/png"
		case ".gif":
			return "image/gif"
		case ".webp":
			return "image/webp"
		case ".bmp":
			return "image/bmp"
		case ".tif", ".tiff":
			return "image/tiff"
		}
	}
	return ""
}
