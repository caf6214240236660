// Package media holds the encoded still image passed between capture, the
// orchestrator and the transformation providers, plus the few pixel
// operations the capture path needs.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"regexp"
	"strings"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	"golang.org/x/image/draw"

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// MIME type constants.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeGIF  = "image/gif"
	MIMETypeWebP = "image/webp"
)

// CaptureQuality matches the JPEG quality a browser canvas snapshot uses.
const CaptureQuality = 85

var dataURIPrefix = regexp.MustCompile(`^data:(image/[\w.+-]+);base64,`)

// Image is an encoded still image held in memory.
type Image struct {
	MIMEType string
	Data     []byte
}

// FromBytes wraps raw bytes, sniffing the MIME type from the content.
func FromBytes(data []byte) Image {
	return Image{MIMEType: SniffMIME(data), Data: data}
}

// SniffMIME returns the detected image MIME type, defaulting to JPEG when the
// content is not recognisably an image.
func SniffMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return MIMETypeJPEG
}

// IsEmpty reports whether the image carries no payload.
func (i Image) IsEmpty() bool {
	return len(i.Data) == 0
}

// Base64 returns the standard base64 encoding of the payload.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURI renders the image as a data URI suitable for a browser <img>.
func (i Image) DataURI() string {
	mime := i.MIMEType
	if mime == "" {
		mime = MIMETypePNG
	}
	return "data:" + mime + ";base64," + i.Base64()
}

// Extension returns a file extension (with dot) matching the MIME type.
func (i Image) Extension() string {
	switch i.MIMEType {
	case MIMETypePNG:
		return ".png"
	case MIMETypeGIF:
		return ".gif"
	case MIMETypeWebP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// ParseDataURI decodes a data URI or a bare base64 string into an Image.
func ParseDataURI(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Image{}, fmt.Errorf("empty image payload")
	}

	mime := ""
	if m := dataURIPrefix.FindStringSubmatch(s); m != nil {
		mime = m[1]
		s = s[len(m[0]):]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if mime == "" {
		mime = SniffMIME(data)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

// Normalize converts an image whose payload is itself a data URI (as a browser
// FileReader produces) into raw bytes. Other images are returned unchanged.
func Normalize(img Image) (Image, error) {
	if !bytes.HasPrefix(img.Data, []byte("data:image/")) {
		return img, nil
	}
	return ParseDataURI(string(img.Data))
}

// Decode decodes the payload into pixels.
func Decode(img Image) (image.Image, string, error) {
	if img.IsEmpty() {
		return nil, "", fmt.Errorf("empty image data")
	}
	decoded, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return decoded, format, nil
}

// Dimensions reads width and height without decoding the full image.
func Dimensions(img Image) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// SquareCrop returns the largest square centered in src.
func SquareCrop(src image.Image) image.Image {
	b := src.Bounds()
	size := min(b.Dx(), b.Dy())
	startX := b.Min.X + (b.Dx()-size)/2
	startY := b.Min.Y + (b.Dy()-size)/2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), src, image.Pt(startX, startY), draw.Src)
	return dst
}

// EncodeJPEG encodes pixels as a JPEG still.
func EncodeJPEG(src image.Image, quality int) (Image, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return Image{}, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return Image{MIMEType: MIMETypeJPEG, Data: buf.Bytes()}, nil
}
