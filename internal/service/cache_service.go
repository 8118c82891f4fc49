package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finlink/reports-api/internal/models"
	"github.com/finlink/reports-api/internal/repository"
	apperrors "github.com/finlink/reports-api/pkg/errors"
)

// CacheService is a cache-aside layer for generated reports. Misses and Redis
// failures degrade to recomputation, never to request failure.
type CacheService struct {
	repo    *repository.CacheRepository
	enabled bool
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCacheService constructs the service. A nil repository disables caching.
func NewCacheService(repo *repository.CacheRepository, enabled bool, ttl time.Duration, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if repo == nil {
		enabled = false
	}
	return &CacheService{repo: repo, enabled: enabled, ttl: ttl, logger: logger}
}

// ReportKey derives a deterministic cache key from the full report config.
func ReportKey(config models.ReportConfig) string {
	data, err := json.Marshal(config)
	if err != nil {
		return "reports:unkeyed"
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("reports:%s", hex.EncodeToString(sum[:16]))
}

// GetReport loads a cached report result. The boolean reports a hit.
func (s *CacheService) GetReport(ctx context.Context, key string, dest interface{}) bool {
	if !s.enabled {
		return false
	}
	err := s.repo.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, apperrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("report cache read failed", "key", key, "error", err)
	}
	return false
}

// SetReport stores a report result under the key.
func (s *CacheService) SetReport(ctx context.Context, key string, value interface{}) {
	if !s.enabled {
		return
	}
	if err := s.repo.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Sugar().Warnw("report cache write failed", "key", key, "error", err)
	}
}
