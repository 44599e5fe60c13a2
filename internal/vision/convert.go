package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when the upload cannot be decoded.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Prepare converts PDFs (first page) and non-PNG images to PNG so every
// provider receives the same bytes. PNG input is returned as is.
func Prepare(data []byte, mediaType string) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if mt == "" {
		mt = "image/jpeg"
	}

	switch {
	case mt == "application/pdf":
		out, err := pdfToPNG(data)
		if err != nil {
			return Image{}, fmt.Errorf("converting PDF to image: %w", err)
		}
		return Image{Data: out, MediaType: "image/png"}, nil
	case mt == "image/png" && !isHEIC(data):
		return Image{Data: data, MediaType: "image/png"}, nil
	default:
		out, err := imageToPNG(data, mt)
		if err != nil {
			return Image{}, err
		}
		return Image{Data: out, MediaType: "image/png"}, nil
	}
}

func pdfToPNG(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrUnsupportedImage)
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

func imageToPNG(data []byte, mediaType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)

	if isHEIC(data) || strings.Contains(mediaType, "heic") || strings.Contains(mediaType, "heif") {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding HEIC/HEIF: %w", ErrUnsupportedImage, err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: supported formats are JPEG, PNG, GIF, WEBP, HEIC, HEIF and PDF: %w", ErrUnsupportedImage, err)
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC looks for an ftyp box with a HEIF family brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
