package vision

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"photopipe/internal/domain"
)

type fakeRekognition struct {
	input *rekognition.DetectLabelsInput
	out   *rekognition.DetectLabelsOutput
	err   error
}

func (f *fakeRekognition) DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestRekognitionDetectorMapsLabels(t *testing.T) {
	fake := &fakeRekognition{out: &rekognition.DetectLabelsOutput{
		Labels: []types.Label{
			{
				Name:       aws.String("Mountain"),
				Confidence: aws.Float32(98.76543),
				Categories: []types.LabelCategory{{Name: aws.String("Nature and Outdoors")}},
			},
			{Name: aws.String("Sky"), Confidence: aws.Float32(80.004)},
		},
	}}
	detector := &RekognitionDetector{client: fake}

	labels, err := detector.DetectLabels(context.Background(), "pictures", "lake.jpg", domain.DetectOptions{MaxLabels: 10, MinConfidence: 75})
	if err != nil {
		t.Fatalf("DetectLabels returned error: %v", err)
	}
	if *fake.input.Image.S3Object.Bucket != "pictures" || *fake.input.Image.S3Object.Name != "lake.jpg" {
		t.Fatalf("unexpected S3 object: %+v", fake.input.Image.S3Object)
	}
	if *fake.input.MaxLabels != 10 || *fake.input.MinConfidence != 75 {
		t.Fatalf("unexpected limits: %d %v", *fake.input.MaxLabels, *fake.input.MinConfidence)
	}
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d", len(labels))
	}
	if labels[0].Name != "Mountain" || labels[0].Confidence != 98.77 {
		t.Fatalf("first label = %+v", labels[0])
	}
	if len(labels[0].Categories) != 1 || labels[0].Categories[0] != "Nature and Outdoors" {
		t.Fatalf("categories = %#v", labels[0].Categories)
	}
	if labels[1].Confidence != 80 || labels[1].Categories == nil {
		t.Fatalf("second label = %+v", labels[1])
	}
}

func TestRekognitionDetectorWrapsErrors(t *testing.T) {
	for _, e := range []error{
		&smithy.GenericAPIError{Code: "InvalidS3ObjectException", Message: "unable to get object"},
		errors.New("timeout"),
	} {
		detector := &RekognitionDetector{client: &fakeRekognition{err: e}}
		_, err := detector.DetectLabels(context.Background(), "b", "k", domain.DetectOptions{})
		if !errors.Is(err, domain.ErrProviderFailure) {
			t.Fatalf("error = %v, want ErrProviderFailure", err)
		}
	}
}

func TestStaticDetectorDeterministic(t *testing.T) {
	d := NewStaticDetector()
	opts := domain.DetectOptions{MaxLabels: 10, MinConfidence: 75}
	first, err := d.DetectLabels(context.Background(), "pictures", "lake.jpg", opts)
	if err != nil {
		t.Fatalf("DetectLabels returned error: %v", err)
	}
	second, _ := d.DetectLabels(context.Background(), "pictures", "lake.jpg", opts)
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("unexpected label counts %d %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("label %d differs: %q vs %q", i, first[i].Name, second[i].Name)
		}
		if first[i].Confidence < 75 {
			t.Fatalf("label %d below min confidence: %v", i, first[i].Confidence)
		}
	}
}

func TestStaticDetectorHonoursLimits(t *testing.T) {
	d := NewStaticDetector()
	labels, err := d.DetectLabels(context.Background(), "pictures", "lake.jpg", domain.DetectOptions{MaxLabels: 2})
	if err != nil {
		t.Fatalf("DetectLabels returned error: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d, want 2", len(labels))
	}
	labels, _ = d.DetectLabels(context.Background(), "pictures", "lake.jpg", domain.DetectOptions{MinConfidence: 99})
	if len(labels) != 1 {
		t.Fatalf("len(labels) = %d, want 1", len(labels))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.DetectLabels(ctx, "pictures", "lake.jpg", domain.DetectOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
