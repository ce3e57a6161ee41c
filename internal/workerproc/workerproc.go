package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"wellness-backend/internal/protocols"
	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/queue"
)

// Generator produces a user's daily protocol.
type Generator interface {
	GenerateDaily(ctx context.Context, userID string, in protocols.GenerateInput) (protocols.GenerateResult, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingUserID indicates a message without a user id.
type ErrMissingUserID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingUserID) Error() string { return "missing user id" }

// ErrMissingStress indicates a message without the required stress signal.
type ErrMissingStress struct {
	Meta      MessageMeta
	UserID    string
	RequestID string
}

func (e ErrMissingStress) Error() string { return "missing stress signal" }

// ErrProcess indicates generation failed after successful parsing.
type ErrProcess struct {
	UserID    string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "generate protocol"
	}
	return "generate protocol: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message cannot succeed.
func Unrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingUserID, ErrMissingStress:
		return true
	}
	return errors.Is(err, protocols.ErrInvalidInput)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.UserID) == "" {
		return msg, meta, ErrMissingUserID{Meta: meta, RequestID: msg.RequestID}
	}
	if msg.Signal.Stress == nil {
		return msg, meta, ErrMissingStress{Meta: meta, UserID: msg.UserID, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Input converts a validated message into a generation request.
func Input(msg queue.Message) protocols.GenerateInput {
	in := protocols.GenerateInput{
		CyclePhase: msg.CyclePhase,
		Day:        msg.Day,
	}
	if msg.Signal.Stress != nil {
		in.Signal = engine.DailySignal{
			Stress:  *msg.Signal.Stress,
			Overall: msg.Signal.Overall,
			LIS:     msg.Signal.LIS,
		}
	}
	if msg.UserMetadata != nil {
		in.Metadata = *msg.UserMetadata
	}
	return in
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates and processes a message payload. A protocol
// that already exists for the day counts as success.
func HandleMessage(ctx context.Context, gen Generator, body string) (protocols.GenerateResult, error) {
	if gen == nil {
		return protocols.GenerateResult{}, errors.New("protocol service not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return protocols.GenerateResult{}, err
		}
	}

	res, err := gen.GenerateDaily(ctx, msg.UserID, Input(msg))
	if err != nil {
		return protocols.GenerateResult{}, ErrProcess{UserID: msg.UserID, RequestID: msg.RequestID, Err: err}
	}
	return res, nil
}
