package auth

import (
	"context"
	"errors"
	"time"

	"github.com/2beens/fitsense/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
)

type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
	}
}

// SessionUser returns the id of the user owning the session token.
func (lc *LoginChecker) SessionUser(ctx context.Context, token string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "auth.sessionUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if token == "" {
		return 0, ErrNoSession
	}

	cmd := lc.redisClient.Get(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNoSession
		}
		return 0, err
	}

	session, err := parseSession(cmd.Val())
	if err != nil {
		return 0, err
	}
	if session.expired(lc.ttl) {
		return 0, ErrSessionExpired
	}

	return session.UserID, nil
}
