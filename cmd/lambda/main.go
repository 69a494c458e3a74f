// Command lambda serves the pipeline as an AWS Lambda function. It accepts a
// direct invocation event or an API Gateway proxy request.
package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"

	"photopipe/internal/bootstrap"
	"photopipe/internal/infra"
)

func main() {
	logger := infra.NewLogger(infra.AppEnv())

	h, closeFn, err := setup(context.Background(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("lambda: startup failed")
	}
	defer closeFn()

	lambda.Start(h.rawHandler)
}

// setup loads configuration and wires the backends once per container.
func setup(ctx context.Context, logger infra.Logger) (*handler, func(), error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire pipeline: %w", err)
	}
	return newHandler(app.Service, app.Handler(), logger), app.Close, nil
}
