package caption

import (
	"context"
	"strings"

	"photopipe/internal/domain"
)

const defaultDescription = "Hermoso paisaje natural"

var staticDescriptions = map[string]string{
	"montañas": "Majestuosas montañas que se alzan hacia el cielo",
	"río":      "Río serpenteante que fluye entre la vegetación",
	"lago":     "Tranquilo lago que refleja el paisaje circundante",
	"bosque":   "Denso bosque lleno de vida y vegetación exuberante",
	"océano":   "Vasto océano con olas que rompen contra la costa",
	"pradera":  "Extensa pradera verde salpicada de flores silvestres",
}

// StaticGenerator captions from a fixed table keyed by the first label.
type StaticGenerator struct{}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

func (g *StaticGenerator) Generate(ctx context.Context, labels []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(labels) == 0 {
		return defaultDescription, nil
	}
	if d, ok := staticDescriptions[strings.ToLower(strings.TrimSpace(labels[0]))]; ok {
		return d, nil
	}
	return defaultDescription, nil
}

var _ domain.CaptionGenerator = (*StaticGenerator)(nil)
