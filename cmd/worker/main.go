package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"wellness-backend/internal/bootstrap"
	"wellness-backend/internal/shared/config"
	"wellness-backend/internal/shared/metrics"
	"wellness-backend/internal/shared/telemetry"
	"wellness-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 60
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
	defaultCancelGrace        = 5 * time.Second
)

func main() {
	cfg := config.Load()
	queueURL := strings.TrimSpace(cfg.QueueURL)
	if queueURL == "" {
		log.Fatal("PROTOCOL_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	concurrency := max(1, envInt("WORKER_CONCURRENCY", defaultWorkerConcurrency))
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	telemetry.Info("worker.started", map[string]any{
		"queue":       queueURL,
		"concurrency": concurrency,
		"visibility":  visibilitySeconds,
	})

	w := &worker{
		client:      sqs.NewFromConfig(awsCfg),
		queueURL:    queueURL,
		gen:         app.ProtocolsService,
		concurrency: concurrency,
		visibility:  int32(visibilitySeconds),
		cancelGrace: defaultCancelGrace,
	}
	if !w.run(ctx, shutdownTimeout) {
		telemetry.Error("worker.jobs_abandoned", map[string]any{"grace": w.cancelGrace.String()})
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type worker struct {
	client      sqsAPI
	queueURL    string
	gen         workerproc.Generator
	concurrency int
	visibility  int32
	cancelGrace time.Duration
}

// run long-polls until ctx is cancelled. In-flight jobs keep running on a
// context detached from ctx and get up to shutdownTimeout to finish; jobs
// still running after that are cancelled and given cancelGrace to return.
// It reports whether every job had returned.
func (w *worker) run(ctx context.Context, shutdownTimeout time.Duration) bool {
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	var g errgroup.Group
	g.SetLimit(w.concurrency)

pollLoop:
	for ctx.Err() == nil {
		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   w.visibility,
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			continue
		}

		for _, msg := range resp.Messages {
			metrics.IncJobsReceived()
			m := msg
			// Go blocks while the pool is full
			g.Go(func() error {
				handleMessage(jobCtx, w.client, w.queueURL, w.gen, m)
				return nil
			})
		}
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": shutdownTimeout.String()})
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(shutdownTimeout):
	}

	telemetry.Warn("worker.shutdown_timeout", map[string]any{"action": "cancelling in-flight jobs"})
	cancelJobs()
	select {
	case <-done:
		return true
	case <-time.After(w.cancelGrace):
		return false
	}
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, gen workerproc.Generator, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.UserID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.protocol.invalid_message", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.UserID, decoded.RequestID) {
			metrics.IncJobsDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.protocol.received", baseFields(msg, decoded.UserID, decoded.RequestID))

	res, err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), gen, body)
	if err != nil {
		fields := baseFields(msg, decoded.UserID, decoded.RequestID)
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.protocol.dropped", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded.UserID, decoded.RequestID) {
				metrics.IncJobsDeletedUnrecoverable()
			}
			return
		}
		telemetry.Error("worker.protocol.failed", fields)
		metrics.IncJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.UserID, decoded.RequestID) {
		fields := baseFields(msg, decoded.UserID, decoded.RequestID)
		fields["protocol_id"] = res.Protocol.ID
		fields["created"] = res.Created
		telemetry.Info("worker.protocol.completed", fields)
		metrics.IncJobsCompleted()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, userID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, userID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.protocol.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, userID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.protocol.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, userID, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(userID) != "" {
		fields["user_id"] = userID
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
