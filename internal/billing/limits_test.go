package billing

import (
	"testing"

	"github.com/securepass/securepass/internal/config"
	"github.com/securepass/securepass/internal/models"
)

func TestLimitsFor(t *testing.T) {
	cfg := &config.Config{
		MaxFileSize:         1024 * 1024 * 1024,
		MaxExpirationHours:  168,
		DefaultMaxDownloads: 5,
	}
	svc := NewService(cfg)

	free := svc.LimitsFor(models.PlanFree)
	if free.MaxFileSize != cfg.MaxFileSize {
		t.Errorf("free MaxFileSize = %d, want %d", free.MaxFileSize, cfg.MaxFileSize)
	}
	if free.MaxExpirationHours != 168 {
		t.Errorf("free MaxExpirationHours = %d, want 168", free.MaxExpirationHours)
	}
	if free.MaxDownloadsPerFile != 5 {
		t.Errorf("free MaxDownloadsPerFile = %d, want 5", free.MaxDownloadsPerFile)
	}

	pro := svc.LimitsFor(models.PlanPro)
	if pro.MaxFileSize <= free.MaxFileSize {
		t.Error("pro MaxFileSize should exceed free limit")
	}
	if pro.MaxExpirationHours <= free.MaxExpirationHours {
		t.Error("pro MaxExpirationHours should exceed free limit")
	}

	unknown := svc.LimitsFor("enterprise-trial")
	if unknown != free {
		t.Errorf("unknown plan limits = %+v, want free plan limits %+v", unknown, free)
	}
}
