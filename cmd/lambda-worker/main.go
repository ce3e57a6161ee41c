package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"wellness-backend/internal/bootstrap"
	"wellness-backend/internal/shared/config"
	"wellness-backend/internal/shared/metrics"
	"wellness-backend/internal/shared/telemetry"
	"wellness-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	gen      workerproc.Generator
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	gen = built.ProtocolsService
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, gen, event), nil
}

// processBatch reports only retryable failures; malformed records are dropped
// so they do not cycle until the redrive limit.
func processBatch(ctx context.Context, gen workerproc.Generator, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncJobsReceived()
		fields := map[string]any{"sqs_message_id": record.MessageId}
		res, err := workerproc.HandleMessage(ctx, gen, record.Body)
		if err != nil {
			fields["error"] = err.Error()
			if workerproc.Unrecoverable(err) {
				telemetry.Error("worker.protocol.dropped", fields)
				metrics.IncJobsDeletedUnrecoverable()
				continue
			}
			telemetry.Error("worker.protocol.failed", fields)
			metrics.IncJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		fields["protocol_id"] = res.Protocol.ID
		fields["created"] = res.Created
		telemetry.Info("worker.protocol.completed", fields)
		metrics.IncJobsCompleted()
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
