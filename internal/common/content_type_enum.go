package common

import "strings"

// MediaFileType is the kind of file stored in the media bucket.
type MediaFileType string

const (
	MediaFileTypeImage MediaFileType = "image"
)

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// String returns the string representation
func (mft MediaFileType) String() string {
	return string(mft)
}

// IsValid checks if the media file type is valid
func (mft MediaFileType) IsValid() bool {
	return mft == MediaFileTypeImage
}

// DetectFileType reports the media type for an uploaded MIME type. Only
// images can be attached to messages, anything else is rejected.
func DetectFileType(mimeType string) (MediaFileType, bool) {
	lowerMimeType := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(lowerMimeType, ";"); i >= 0 {
		lowerMimeType = strings.TrimSpace(lowerMimeType[:i])
	}
	if imageMimeTypes[lowerMimeType] {
		return MediaFileTypeImage, true
	}
	return "", false
}
