package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"wellness-backend/internal/bootstrap"
	"wellness-backend/internal/shared/config"
	"wellness-backend/internal/shared/server/respond"
	"wellness-backend/internal/shared/telemetry"
)

type proxyFunc func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// lazyProxy builds the router on first use so a cold start pays for it once.
type lazyProxy struct {
	once  sync.Once
	build func() (*gin.Engine, error)
	proxy proxyFunc
	err   error
}

func (l *lazyProxy) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	l.once.Do(func() {
		router, err := l.build()
		if err != nil {
			l.err = err
			return
		}
		l.proxy = ginadapter.NewV2(router).ProxyWithContext
	})
	if l.err != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": l.err})
		return errorResponse(http.StatusInternalServerError, "bootstrap_failed", "service unavailable"), l.err
	}
	return l.proxy(ctx, req)
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	proxy := &lazyProxy{build: func() (*gin.Engine, error) {
		app, err := bootstrap.Build(config.Load())
		if err != nil {
			return nil, err
		}
		return app.Router, nil
	}}
	lambda.Start(proxy.handle)
}
