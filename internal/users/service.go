package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	maxTags      = 32
	maxTagLength = 64
)

// ErrInvalidMetadata is returned when submitted metadata fails validation.
var ErrInvalidMetadata = errors.New("invalid metadata")

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// UpsertFromAuth records the identity carried by a verified token.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if strings.TrimSpace(user.ID) == "" {
		return errors.New("user id is required")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// MetadataFor returns the stored metadata, or the zero value for unknown users.
func (s *Service) MetadataFor(ctx context.Context, userID string) (Metadata, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Metadata{}, nil
		}
		return Metadata{}, err
	}
	return user.Metadata, nil
}

// UpdateMetadata validates and stores the user's metadata. Tags are trimmed and
// de-duplicated case-insensitively, keeping the first spelling.
func (s *Service) UpdateMetadata(ctx context.Context, userID string, meta Metadata) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	tags, err := cleanTags(meta.Tags)
	if err != nil {
		return User{}, err
	}
	return s.Repo.UpdateMetadata(ctx, userID, Metadata{IsGLP1: meta.IsGLP1, Tags: tags})
}

func cleanTags(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > maxTagLength {
			return nil, fmt.Errorf("%w: tag %q exceeds %d characters", ErrInvalidMetadata, trimmed, maxTagLength)
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	if len(out) > maxTags {
		return nil, fmt.Errorf("%w: at most %d tags", ErrInvalidMetadata, maxTags)
	}
	return out, nil
}
