package generation

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/phrazzld/imagegen-api/internal/domain"
)

// ImageGenerator produces a single image for a resolved prompt.
type ImageGenerator interface {
	// GenerateImage sends prompt to the model named by the selector and returns
	// the produced image. Implementations must honour ctx cancellation and
	// return errors classified by the sentinels in this package.
	GenerateImage(ctx context.Context, prompt string, model domain.ModelSelector) (*Image, error)
}

// Image is the raw output of a generation call.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURL encodes the image as a data: URL, the result reference stored on
// completed tasks.
func (i *Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(i.Data))
}

// GeneratorFunc adapts a function to the ImageGenerator interface.
type GeneratorFunc func(ctx context.Context, prompt string, model domain.ModelSelector) (*Image, error)

// GenerateImage calls f.
func (f GeneratorFunc) GenerateImage(ctx context.Context, prompt string, model domain.ModelSelector) (*Image, error) {
	return f(ctx, prompt, model)
}
