package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MNhat168/careerhub/internal/config"
)

const keyPublicEndpoint = "rl:public:%s:%s"

// Defaults sized for unauthenticated traffic on the public surface.
const (
	publicRate  = 5.0
	publicBurst = 20
)

// Limiter throttles public endpoints per client IP. Without a redis
// address it stays disabled and admits everything, matching the rest of
// the optional infrastructure.
type Limiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewLimiter(cfg config.Config, log *zap.Logger) *Limiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Named("ratelimit").Info("redis not configured, rate limiting disabled")
		return &Limiter{}
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &Limiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    publicRate,
		burst:   publicBurst,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow is fail-open: a redis outage must not take the public surface
// down with it.
func (l *Limiter) Allow(ctx context.Context, endpoint, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPublicEndpoint, endpoint, strings.TrimSpace(clientIP))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		return &Result{Allowed: true}, err
	}
	return res, nil
}
