// Package billing resolves per-plan usage limits.
package billing

import (
	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/models"
)

// Limits describes what a plan allows per file.
type Limits struct {
	MaxFileSize         int64 // bytes
	MaxExpirationHours  int
	MaxDownloadsPerFile int
}

// Service resolves plan limits from configuration.
type Service struct {
	plans map[string]Limits
}

// NewService builds the plan table from configuration. The free plan uses the
// configured defaults; the pro plan scales them up.
func NewService(cfg *config.Config) *Service {
	return &Service{
		plans: map[string]Limits{
			models.PlanFree: {
				MaxFileSize:         cfg.MaxFileSize,
				MaxExpirationHours:  cfg.MaxExpirationHours,
				MaxDownloadsPerFile: cfg.DefaultMaxDownloads,
			},
			models.PlanPro: {
				MaxFileSize:         cfg.MaxFileSize * 10,
				MaxExpirationHours:  cfg.MaxExpirationHours * 4,
				MaxDownloadsPerFile: cfg.DefaultMaxDownloads * 20,
			},
		},
	}
}

// LimitsFor returns the limits for a plan, falling back to the free plan for
// unknown plan names.
func (s *Service) LimitsFor(plan string) Limits {
	if limits, ok := s.plans[plan]; ok {
		return limits
	}
	return s.plans[models.PlanFree]
}
