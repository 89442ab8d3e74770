package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/pokhrel-dev/simplechat-sub001/internal/log"
)

// describePrompt asks for a retrieval-friendly description: visible text
// matters more than artistic qualities when the output is embedded and
// searched.
const describePrompt = "Describe this image for a search index. " +
	"Transcribe any visible text exactly, then describe the subject, " +
	"setting, and notable details. Respond with the description only."

// Describer turns images into indexable text with a vision model.
type Describer struct {
	g         *genkit.Genkit
	modelName string
	logger    log.Logger
}

var _ ImageDescriber = (*Describer)(nil)

// NewDescriber creates a Describer backed by the named multimodal model.
func NewDescriber(g *genkit.Genkit, modelName string, logger log.Logger) (*Describer, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if modelName == "" {
		return nil, errors.New("model name is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Describer{g: g, modelName: modelName, logger: logger}, nil
}

// Describe returns a text description of the image for indexing. The
// image travels inline as a data URL, so no fetchable location is needed.
func (d *Describer) Describe(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("image data is empty")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported image content type %q", contentType)
	}

	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	resp, err := genkit.Generate(ctx, d.g,
		ai.WithModelName(d.modelName),
		ai.WithMessages(ai.NewUserMessage(
			ai.NewMediaPart(contentType, dataURL),
			ai.NewTextPart(describePrompt),
		)),
	)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty description")
	}
	d.logger.Debug("image described", "content_type", contentType, "image_bytes", len(data), "description_runes", len([]rune(text)))
	return text, nil
}
