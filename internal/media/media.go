// Package media generates images from chat prompts. Results come back
// as self-contained data URLs so the caller can persist them as ordinary
// messages; multi-megabyte payloads are the message store's problem, not
// ours.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// Image is one generated image plus any text the model produced with it.
type Image struct {
	// DataURL is the full inline payload ("data:image/png;base64,...").
	DataURL string
	// ContentType is the image MIME type, e.g. "image/png".
	ContentType string
	// Caption is the model's accompanying text, often empty.
	Caption string
}

// Generator produces images with a multimodal generation model.
type Generator struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger
}

// NewGenerator creates a Generator backed by the named image model.
func NewGenerator(g *genkit.Genkit, modelName string, logger log.Logger) (*Generator, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{g: g, modelName: modelName, logger: logger}, nil
}

// Generate asks the model for an image matching prompt. The model must
// return inline data; an external reference would not survive as a
// durable message payload.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Image, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is empty")
	}

	resp, err := genkit.Generate(ctx, g.g,
		ai.WithModelName(g.modelName),
		ai.WithConfig(&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		}),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	img, err := firstImage(resp)
	if err != nil {
		return nil, err
	}
	g.logger.Info("image generated",
		"model", g.modelName,
		"content_type", img.ContentType,
		"payload_bytes", len(img.DataURL))
	return img, nil
}

// firstImage extracts the first media part of resp as an Image. Text
// parts become the caption, which also surfaces refusals: a model that
// declines to draw usually says so in text and returns no media at all.
func firstImage(resp *ai.ModelResponse) (*Image, error) {
	if resp == nil || resp.Message == nil {
		return nil, errors.New("model returned no message")
	}

	caption := strings.TrimSpace(resp.Text())
	for _, part := range resp.Message.Content {
		if part == nil || part.Kind != ai.PartMedia {
			continue
		}
		if !strings.HasPrefix(part.Text, "data:") {
			return nil, errors.New("model returned an external image reference, want inline data")
		}
		return &Image{
			DataURL:     part.Text,
			ContentType: imageContentType(part),
			Caption:     caption,
		}, nil
	}

	if caption != "" {
		return nil, fmt.Errorf("model returned no image: %s", snippet(caption))
	}
	return nil, errors.New("model returned no image")
}

// imageContentType prefers the part's declared MIME type and falls back
// to the one embedded in the data URL itself.
func imageContentType(part *ai.Part) string {
	if part.ContentType != "" {
		return part.ContentType
	}
	rest := strings.TrimPrefix(part.Text, "data:")
	mediaType, _, _ := strings.Cut(rest, ";")
	return mediaType
}

// snippet shortens s to something fit for an error message.
func snippet(s string) string {
	const max = 120
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
