package vision

import (
	"context"
	"hash/fnv"

	"photopipe/internal/domain"
)

// landscapeLabelSets are the canned label sets served by StaticDetector.
var landscapeLabelSets = [][]string{
	{"montañas", "nieve", "cielo", "naturaleza"},
	{"río", "agua", "bosque", "vegetación", "rocas"},
	{"lago", "atardecer", "nubes", "reflejo"},
	{"pradera", "flores", "verde", "cielo"},
	{"océano", "acantilados", "olas", "costa"},
	{"bosque", "árboles", "sendero", "otoño"},
}

const staticCategory = "Nature and Outdoors"

// StaticDetector returns canned landscape labels for local runs. The label set
// is chosen from the object key so the same key always yields the same labels.
type StaticDetector struct{}

func NewStaticDetector() *StaticDetector {
	return &StaticDetector{}
}

func (d *StaticDetector) DetectLabels(ctx context.Context, bucket, key string, opts domain.DetectOptions) ([]domain.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(bucket + "/" + key))
	set := landscapeLabelSets[int(h.Sum32()%uint32(len(landscapeLabelSets)))]

	labels := make([]domain.Label, 0, len(set))
	for i, name := range set {
		confidence := 99.5 - float64(i)*4.25
		if opts.MinConfidence > 0 && confidence < opts.MinConfidence {
			continue
		}
		labels = append(labels, domain.Label{
			Name:       name,
			Confidence: confidence,
			Categories: []string{staticCategory},
		})
		if opts.MaxLabels > 0 && len(labels) == opts.MaxLabels {
			break
		}
	}
	return labels, nil
}

var _ domain.LabelDetector = (*StaticDetector)(nil)
