package infra

import (
	"context"
	"fmt"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// NewAWSConfig loads the shared AWS configuration with the connect/read
// timeouts and retry budget from cfg. Credentials come from the default chain.
func NewAWSConfig(ctx context.Context, cfg *Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, fmt.Errorf("config is required")
	}
	httpClient := awshttp.NewBuildableClient().
		WithTimeout(cfg.AWSReadTimeout).
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = cfg.AWSConnectTimeout
		})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithRetryMaxAttempts(cfg.AWSMaxAttempts),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}
