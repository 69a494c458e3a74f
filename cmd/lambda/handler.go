package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"photopipe/internal/http/handlers"
	"photopipe/internal/infra"
	"photopipe/internal/middleware"
	"photopipe/internal/pipeline"
)

// directEvent is the payload of a direct invocation.
type directEvent struct {
	Image    string `json:"image"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// directResponse mirrors the proxy response shape for direct invocations.
type directResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type handler struct {
	processor handlers.ImageProcessor
	proxy     *httpadapter.HandlerAdapter
	logger    infra.Logger
	warm      bool
}

func newHandler(processor handlers.ImageProcessor, router http.Handler, logger infra.Logger) *handler {
	return &handler{
		processor: processor,
		proxy:     httpadapter.New(router),
		logger:    logger,
	}
}

// rawHandler routes on the shape of the event: API Gateway proxy requests
// carry httpMethod, everything else is treated as a direct invocation.
func (h *handler) rawHandler(ctx context.Context, raw json.RawMessage) (any, error) {
	if !h.warm {
		h.warm = true
		h.logger.Info().Msg("lambda: cold start")
	}

	var peek struct {
		HTTPMethod string `json:"httpMethod"`
	}
	_ = json.Unmarshal(raw, &peek)

	if peek.HTTPMethod != "" {
		var req events.APIGatewayProxyRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("unmarshal proxy request: %w", err)
		}
		// Non UTF-8 bodies such as signed static images come back base64
		// encoded with IsBase64Encoded set.
		return h.proxy.ProxyWithContext(ctx, req)
	}

	var event directEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return h.directError(http.StatusBadRequest, "invalid event"), nil
	}
	return h.handleDirect(ctx, event), nil
}

func (h *handler) handleDirect(ctx context.Context, event directEvent) directResponse {
	res, err := h.processor.Process(ctx, pipeline.Request{
		Image:    event.Image,
		FileName: event.FileName,
		FileType: event.FileType,
	})
	if err != nil {
		code, _ := handlers.StatusFor(err)
		h.logger.Error().Err(err).Str("file_name", event.FileName).Msg("lambda: processing failed")
		return h.directError(code, err.Error())
	}
	body, err := json.Marshal(handlers.NewProcessResponse(res))
	if err != nil {
		return h.directError(http.StatusInternalServerError, err.Error())
	}
	return directResponse{StatusCode: http.StatusOK, Headers: middleware.CORSHeaders(), Body: string(body)}
}

func (h *handler) directError(code int, message string) directResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return directResponse{StatusCode: code, Headers: middleware.CORSHeaders(), Body: string(body)}
}
