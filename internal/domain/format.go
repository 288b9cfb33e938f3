package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// OutputFormat names an export encoding offered by the service.
type OutputFormat string

// Output formats offered by the export encoder. PNG is the default.
const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWEBP OutputFormat = "webp"
)

var uploadExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".heic": true,
	".heif": true,
}

// UploadExt validates filename's extension against the accepted upload types
// and returns it lowercased (with the leading dot).
func UploadExt(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !uploadExts[ext] {
		return "", fmt.Errorf("unsupported upload type: %q", ext)
	}
	return ext, nil
}

// IsHEIC reports whether ext names a HEIF-container upload.
func IsHEIC(ext string) bool {
	return ext == ".heic" || ext == ".heif"
}

// ParseOutputFormat normalizes a requested export format. An empty request
// selects PNG.
func ParseOutputFormat(format string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		return FormatPNG, nil
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWEBP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", format)
	}
}

// ContentType returns the MIME type for a normalized output format.
func ContentType(format OutputFormat) string {
	return "image/" + string(format)
}

// DownloadFilename returns the fixed download name for a normalized format.
func DownloadFilename(format OutputFormat) string {
	return "processed_image." + string(format)
}
