package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/medimage2report/constants"
)

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionEngine runs DOCUMENT_TEXT_DETECTION on Google Cloud Vision.
type VisionEngine struct {
	annotate annotateFunc
	close    func() error
	logger   *slog.Logger
}

// VisionConfig selects Cloud Vision credentials. With neither field set the
// ambient default credentials are used.
type VisionConfig struct {
	Project         string // billed as the quota project when set
	CredentialsJSON string
	CredentialsFile string
}

func (c VisionConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	if c.Project != "" {
		opts = append(opts, option.WithQuotaProject(c.Project))
	}
	return opts
}

func NewVisionEngine(ctx context.Context, cfg VisionConfig, logger *slog.Logger) (*VisionEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := cfg.clientOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionEngine{
		annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return client.BatchAnnotateImages(ctx, req)
		},
		close:  client.Close,
		logger: logger,
	}, nil
}

func (v *VisionEngine) Name() string { return constants.EngineVision }

func (v *VisionEngine) Close() error {
	if v.close == nil {
		return nil
	}
	return v.close()
}

func (v *VisionEngine) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: content},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{
				LanguageHints: VisionLanguageHints(lang),
			},
		}},
	}
	resp, err := v.annotate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.GetResponses()) == 0 {
		return "", errors.New("vision: empty response")
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return "", fmt.Errorf("vision: %s", r.GetError().GetMessage())
	}
	return r.GetFullTextAnnotation().GetText(), nil
}

var iso6392to1 = map[string]string{
	"eng": "en", "deu": "de", "ger": "de", "fra": "fr", "fre": "fr", "spa": "es",
	"ita": "it", "nld": "nl", "dut": "nl", "por": "pt", "pol": "pl", "tur": "tr",
	"rus": "ru", "swe": "sv", "dan": "da", "nor": "no", "fin": "fi", "ces": "cs",
}

// VisionLanguageHints maps tesseract codes such as "eng+deu" to Vision hints.
// Unknown codes are dropped so Vision falls back to auto-detection.
func VisionLanguageHints(lang string) []string {
	var hints []string
	for _, code := range strings.Split(lang, "+") {
		if h, ok := iso6392to1[strings.ToLower(strings.TrimSpace(code))]; ok {
			hints = append(hints, h)
		}
	}
	return hints
}
