// Package mimetypes names the media types a clipboard image may carry.
package mimetypes

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageBMP  MIME = "image/bmp"
	ImageWebP MIME = "image/webp"
	ImageTIFF MIME = "image/tiff"
)

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// DetectImage sniffs data and reports its media type, without parameters,
// when it is an image.
func DetectImage(data []byte) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(mimetype.Detect(data).String())
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return Unknown, false
	}
	return MIME(mt), true
}
