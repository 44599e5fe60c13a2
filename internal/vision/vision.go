// Package vision talks to the external models that read invoice images.
package vision

import (
	"context"
	"path/filepath"
	"strings"
)

// Image is an image ready to send to a model.
type Image struct {
	Data      []byte
	MediaType string
}

// Model answers a prompt about an image with free text.
type Model interface {
	Complete(ctx context.Context, prompt string, img Image) (string, error)
	Close() error
}

// SystemPrompt frames every request as invoice analysis.
const SystemPrompt = "Eres un asistente especializado en analizar facturas y extraer información específica."

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".heic": "image/heic",
	".heif": "image/heif",
}

// MediaTypeForFilename guesses the media type from the file extension,
// defaulting to image/jpeg.
func MediaTypeForFilename(name string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return "image/jpeg"
}
