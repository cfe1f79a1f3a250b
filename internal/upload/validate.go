package upload

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxFileSize is the largest accepted photo, in bytes.
const MaxFileSize int64 = 10 * 1024 * 1024

// allowedExtensions is matched against the lower-cased extension.
var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"heic": true,
}

type Reason string

const (
	ReasonUnsupportedExtension Reason = "unsupported_extension"
	ReasonTooLarge             Reason = "too_large"
)

// ValidationError rejects a file before any network activity.
type ValidationError struct {
	Reason    Reason
	Extension string
	Size      int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonUnsupportedExtension:
		if e.Extension == "" {
			return "file has no extension (only JPG, PNG and HEIC are accepted)"
		}
		return fmt.Sprintf("unsupported file extension .%s (only JPG, PNG and HEIC are accepted)", e.Extension)
	case ReasonTooLarge:
		return fmt.Sprintf("file is %s, the limit is %s", humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(MaxFileSize)))
	default:
		return "invalid file"
	}
}

// Extension returns the lower-cased text after the last dot of name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Validate checks the extension, then the size. It returns nil or a
// *ValidationError.
func Validate(name string, size int64) error {
	ext := Extension(name)
	if !allowedExtensions[ext] {
		return &ValidationError{Reason: ReasonUnsupportedExtension, Extension: ext, Size: size}
	}
	if size > MaxFileSize {
		return &ValidationError{Reason: ReasonTooLarge, Extension: ext, Size: size}
	}
	return nil
}

// ContentType picks the stored content type: the declared one when it names
// an image, otherwise one derived from the extension.
func ContentType(declared, ext string) string {
	if declared = strings.TrimSpace(declared); strings.HasPrefix(declared, "image/") {
		return declared
	}
	if ext == "jpg" {
		return "image/jpeg"
	}
	return "image/" + ext
}
