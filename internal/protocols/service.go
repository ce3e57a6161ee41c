package protocols

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/shared/lock"
	"wellness-backend/internal/shared/metrics"
	"wellness-backend/internal/shared/telemetry"
	"wellness-backend/internal/users"
)

const (
	historyWindow   = 28 * 24 * time.Hour
	historyLimit    = 200
	defaultLockTTL  = 15 * time.Second
	defaultPageSize = 20
	maxPageSize     = 100
)

// MetadataSource supplies the stored wellness metadata of a user.
type MetadataSource interface {
	MetadataFor(ctx context.Context, userID string) (users.Metadata, error)
}

// GenerateInput is one request for a user's daily protocol.
type GenerateInput struct {
	Signal     engine.DailySignal
	CyclePhase string
	// Metadata is merged over the stored user metadata.
	Metadata engine.UserMetadata
	// Day defaults to the current UTC day.
	Day   string
	Force bool
}

// GenerateResult is the protocol for the day and whether this call created it.
type GenerateResult struct {
	Protocol Protocol
	Created  bool
	Decision *engine.Decision
}

// Service coordinates the engine with persistence, locking and user metadata.
type Service struct {
	Repo    Repo
	Engine  *engine.Engine
	Users   MetadataSource
	Locker  lock.Locker
	LockTTL time.Duration
	Now     func() time.Time
}

// GenerateDaily returns the user's protocol for the day, generating and storing
// it when none exists or when Force is set.
func (s *Service) GenerateDaily(ctx context.Context, userID string, in GenerateInput) (GenerateResult, error) {
	start := time.Now()
	res, err := s.generateDaily(ctx, userID, in)
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) && !errors.Is(err, ErrInProgress) {
			metrics.IncProtocolFailed()
			telemetry.Error("protocol.generate_failed", map[string]any{
				"user_id": userID,
				"day":     in.Day,
				"error":   err,
			})
		}
		return GenerateResult{}, err
	}
	if !res.Created {
		metrics.IncProtocolReused()
		return res, nil
	}

	metrics.IncProtocolGenerated(string(res.Protocol.Rule))
	if res.Protocol.VarietyFallback {
		metrics.IncVarietyFallback()
	}
	elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0
	metrics.ObserveGenerateDurationMs(elapsedMs)
	telemetry.Info("protocol.generated", map[string]any{
		"user_id":          userID,
		"protocol_id":      res.Protocol.ID,
		"day":              res.Protocol.Day,
		"title":            res.Protocol.Title,
		"rule":             string(res.Protocol.Rule),
		"target_category":  string(res.Decision.TargetCategory),
		"category":         string(res.Protocol.Category),
		"variety_fallback": res.Protocol.VarietyFallback,
		"catalog_version":  res.Protocol.CatalogVersion,
		"forced":           in.Force,
		"duration_ms":      elapsedMs,
	})
	return res, nil
}

func (s *Service) generateDaily(ctx context.Context, userID string, in GenerateInput) (GenerateResult, error) {
	if err := s.ready(); err != nil {
		return GenerateResult{}, err
	}
	now := s.now()
	day, err := validateInput(userID, in, now)
	if err != nil {
		return GenerateResult{}, err
	}

	if s.Locker != nil {
		release, err := s.Locker.Acquire(ctx, lock.DayKey(userID, day), s.lockTTL())
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return GenerateResult{}, ErrInProgress
			}
			return GenerateResult{}, fmt.Errorf("acquire day lock: %w", err)
		}
		defer release()
	}

	existing, err := s.Repo.GetForDay(ctx, userID, day)
	switch {
	case err == nil && !in.Force:
		return GenerateResult{Protocol: existing, Created: false}, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return GenerateResult{}, fmt.Errorf("load protocol for day: %w", err)
	}
	replace := err == nil

	p, decision, err := s.plan(ctx, userID, day, in, now)
	if err != nil {
		return GenerateResult{}, err
	}

	if replace {
		err = s.Repo.Replace(ctx, p)
	} else {
		err = s.Repo.Create(ctx, p)
	}
	if errors.Is(err, ErrAlreadyExists) {
		// lost a race with another process that does not share the lock
		existing, getErr := s.Repo.GetForDay(ctx, userID, day)
		if getErr != nil {
			return GenerateResult{}, fmt.Errorf("load concurrent protocol: %w", getErr)
		}
		return GenerateResult{Protocol: existing, Created: false}, nil
	}
	if err != nil {
		return GenerateResult{}, fmt.Errorf("store protocol: %w", err)
	}
	return GenerateResult{Protocol: p, Created: true, Decision: &decision}, nil
}

// Preview runs the engine against the user's stored history without persisting.
func (s *Service) Preview(ctx context.Context, userID string, in GenerateInput) (Protocol, engine.Decision, error) {
	if err := s.ready(); err != nil {
		return Protocol{}, engine.Decision{}, err
	}
	now := s.now()
	day, err := validateInput(userID, in, now)
	if err != nil {
		return Protocol{}, engine.Decision{}, err
	}
	p, decision, err := s.plan(ctx, userID, day, in, now)
	if err != nil {
		return Protocol{}, engine.Decision{}, err
	}
	p.ID = ""
	return p, decision, nil
}

// Today returns the user's protocol for the current UTC day.
func (s *Service) Today(ctx context.Context, userID string) (Protocol, error) {
	if s == nil || s.Repo == nil {
		return Protocol{}, errors.New("protocols service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return Protocol{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.Repo.GetForDay(ctx, userID, DayOf(s.now()))
}

// History pages through the user's protocols, newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Protocol, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("protocols service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// plan builds the protocol the engine picks for day without storing it.
func (s *Service) plan(ctx context.Context, userID, day string, in GenerateInput, now time.Time) (Protocol, engine.Decision, error) {
	ref := referenceTime(day, now)
	recent, err := s.Repo.ListByUserSince(ctx, userID, ref.Add(-historyWindow), historyLimit)
	if err != nil {
		return Protocol{}, engine.Decision{}, fmt.Errorf("load history: %w", err)
	}
	history := make([]engine.HistoryEntry, 0, len(recent))
	for _, p := range recent {
		// the day being planned and later days never count as history
		if p.Day >= day {
			continue
		}
		history = append(history, p.HistoryEntry())
	}

	meta, err := s.mergedMetadata(ctx, userID, in.Metadata)
	if err != nil {
		return Protocol{}, engine.Decision{}, err
	}

	rec, decision := s.Engine.Decide(in.Signal, in.CyclePhase, meta, engine.Options{History: history, Now: ref})
	return Protocol{
		ID:              uuid.NewString(),
		UserID:          userID,
		Day:             day,
		Recommendation:  rec,
		Category:        decision.Category,
		Rule:            decision.Rule,
		VarietyFallback: decision.VarietyFallback,
		CatalogVersion:  s.Engine.Catalog().Version(),
		CreatedAt:       now.UTC(),
	}, decision, nil
}

// mergedMetadata overlays request metadata on the stored profile: request tags
// are appended and a request IsGLP1 wins when set.
func (s *Service) mergedMetadata(ctx context.Context, userID string, req engine.UserMetadata) (engine.UserMetadata, error) {
	var merged engine.UserMetadata
	if s.Users != nil {
		stored, err := s.Users.MetadataFor(ctx, userID)
		if err != nil {
			return engine.UserMetadata{}, fmt.Errorf("load user metadata: %w", err)
		}
		if stored.IsGLP1 {
			flag := true
			merged.IsGLP1 = &flag
		}
		merged.Tags = append(merged.Tags, stored.Tags...)
	}
	if req.IsGLP1 != nil {
		flag := *req.IsGLP1
		merged.IsGLP1 = &flag
	}
	merged.Tags = append(merged.Tags, req.Tags...)
	return merged, nil
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil || s.Engine == nil {
		return errors.New("protocols service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return defaultLockTTL
}

func validateInput(userID string, in GenerateInput, now time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if math.IsNaN(in.Signal.Stress) || math.IsInf(in.Signal.Stress, 0) {
		return "", fmt.Errorf("%w: stress must be a finite number", ErrInvalidInput)
	}
	day := strings.TrimSpace(in.Day)
	if day == "" {
		return DayOf(now), nil
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return "", fmt.Errorf("%w: day must be YYYY-MM-DD", ErrInvalidInput)
	}
	return day, nil
}

// referenceTime is the instant the engine evaluates history against: now for
// the current day, the last instant of day otherwise.
func referenceTime(day string, now time.Time) time.Time {
	if day == DayOf(now) {
		return now
	}
	start, err := time.Parse(DayLayout, day)
	if err != nil {
		return now
	}
	return endOfDay(start)
}
