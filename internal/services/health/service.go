package health

import (
	"context"
	"sort"
	"time"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

// Service aggregates dependency checks into a health report.
type Service struct {
	checks         map[string]Check
	catalogVersion string
}

// NewService constructs a health service reporting the given catalog version.
func NewService(catalogVersion string) *Service {
	return &Service{checks: make(map[string]Check), catalogVersion: catalogVersion}
}

// Register adds a named check. A nil check is ignored.
func (s *Service) Register(name string, check Check) {
	if check == nil {
		return
	}
	s.checks[name] = check
}

// Report is the health payload.
type Report struct {
	OK             bool              `json:"ok"`
	CatalogVersion string            `json:"catalogVersion,omitempty"`
	Checks         map[string]string `json:"checks,omitempty"`
}

// Status runs every check and reports "ok" or the error per dependency.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true, CatalogVersion: s.catalogVersion}
	if len(s.checks) == 0 {
		return report
	}
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report.Checks = make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := s.checks[name](checkCtx)
		cancel()
		if err != nil {
			report.OK = false
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
