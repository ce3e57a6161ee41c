package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"

	"wellness-backend/internal/protocols"
)

type stubGenerator struct {
	errFor map[string]error
}

func (s stubGenerator) GenerateDaily(ctx context.Context, userID string, in protocols.GenerateInput) (protocols.GenerateResult, error) {
	if err := s.errFor[userID]; err != nil {
		return protocols.GenerateResult{}, err
	}
	return protocols.GenerateResult{Protocol: protocols.Protocol{ID: "p-" + userID}, Created: true}, nil
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	gen := stubGenerator{errFor: map[string]error{"busy": protocols.ErrInProgress}}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok", Body: `{"userId":"u1","signal":{"stress":10}}`},
		{MessageId: "bad-json", Body: `{nope`},
		{MessageId: "no-stress", Body: `{"userId":"u2","signal":{}}`},
		{MessageId: "retry", Body: `{"userId":"busy","signal":{"stress":10}}`},
	}}

	resp := processBatch(context.Background(), gen, event)

	assert.Equal(t, []events.SQSBatchItemFailure{{ItemIdentifier: "retry"}}, resp.BatchItemFailures)
}

func TestProcessBatchDropsInvalidInput(t *testing.T) {
	gen := stubGenerator{errFor: map[string]error{"u1": errors.Join(protocols.ErrInvalidInput, errors.New("bad day"))}}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: `{"userId":"u1","day":"nope","signal":{"stress":10}}`},
	}}

	resp := processBatch(context.Background(), gen, event)
	assert.Empty(t, resp.BatchItemFailures)
}
