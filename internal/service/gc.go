package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PurgeExpiredTokens deletes refresh token rows that are both revoked and expired.
func (s *service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	const op = "service.PurgeExpiredTokens"

	deleted, err := s.storage.PurgeExpiredRevoked(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.TokensPurged(deleted)
	s.log.Info("expired refresh tokens purged", slog.String("op", op), slog.Int64("deleted", deleted))

	return deleted, nil
}

// RunTokenGC purges on every tick until ctx is done. A failed sweep is
// logged and retried on the next tick.
func (s *service) RunTokenGC(ctx context.Context, interval time.Duration) error {
	const op = "service.RunTokenGC"

	log := s.log.With(slog.String("op", op))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("token collector started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("token collector stopped")

			return nil
		case <-ticker.C:
			if _, err := s.PurgeExpiredTokens(ctx); err != nil {
				log.Error("failed to purge refresh tokens", slog.Any("error", err))
			}
		}
	}
}
