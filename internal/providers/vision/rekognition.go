package vision

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"photopipe/internal/domain"
)

type rekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionDetector detects labels with Amazon Rekognition on an object
// already uploaded to S3.
type RekognitionDetector struct {
	client rekognitionAPI
}

func NewRekognitionDetector(client *rekognition.Client) *RekognitionDetector {
	return &RekognitionDetector{client: client}
}

func (d *RekognitionDetector) DetectLabels(ctx context.Context, bucket, key string, opts domain.DetectOptions) ([]domain.Label, error) {
	input := &rekognition.DetectLabelsInput{
		Image: &types.Image{
			S3Object: &types.S3Object{Bucket: aws.String(bucket), Name: aws.String(key)},
		},
	}
	if opts.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(int32(opts.MaxLabels))
	}
	if opts.MinConfidence > 0 {
		input.MinConfidence = aws.Float32(float32(opts.MinConfidence))
	}
	out, err := d.client.DetectLabels(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("rekognition %s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), domain.ErrProviderFailure)
		}
		return nil, fmt.Errorf("rekognition: %w: %v", domain.ErrProviderFailure, err)
	}

	labels := make([]domain.Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		label := domain.Label{
			Name:       aws.ToString(l.Name),
			Confidence: roundConfidence(aws.ToFloat32(l.Confidence)),
			Categories: []string{},
		}
		for _, c := range l.Categories {
			label.Categories = append(label.Categories, aws.ToString(c.Name))
		}
		labels = append(labels, label)
	}
	return labels, nil
}

func roundConfidence(v float32) float64 {
	return math.Round(float64(v)*100) / 100
}

var _ domain.LabelDetector = (*RekognitionDetector)(nil)
