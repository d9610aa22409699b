package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// The analytics cache is purely an optimization: when Redis is not
// configured or unavailable, every request falls through to the database.

const analyticsCacheTTL = 30 * time.Second

func analyticsCacheKey(from, to time.Time) string {
	raw, _ := json.Marshal([2]time.Time{from, to})
	hash := sha256.Sum256(raw)
	return fmt.Sprintf("analytics:%s", hex.EncodeToString(hash[:])[:12])
}

func (s *Server) getCachedAnalytics(ctx context.Context, from, to time.Time) *Analytics {
	if s.cache == nil {
		return nil
	}

	cachedRaw, err := s.cache.Get(ctx, analyticsCacheKey(from, to)).Result()
	if err != nil {
		slog.Debug("analytics cache miss", "error", err)
		return nil
	}

	var cached Analytics
	if err := json.Unmarshal([]byte(cachedRaw), &cached); err != nil {
		slog.Debug("failed to unmarshal cached analytics", "error", err)
		return nil
	}
	return &cached
}

func (s *Server) cacheAnalytics(ctx context.Context, from, to time.Time, analytics *Analytics) {
	if s.cache == nil {
		return
	}

	val, err := json.Marshal(analytics)
	if err != nil {
		slog.Debug("failed to marshal analytics for caching", "error", err)
		return
	}

	if err := s.cache.Set(ctx, analyticsCacheKey(from, to), val, analyticsCacheTTL).Err(); err != nil {
		slog.Debug("failed to cache analytics", "error", err)
	}
}
