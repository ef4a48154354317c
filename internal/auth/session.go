package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSession = errors.New("invalid session")

// Session is stored in redis as "<userID>:<createdAtUnix>".
type Session struct {
	UserID    int
	CreatedAt time.Time
}

func (s Session) encode() string {
	return fmt.Sprintf("%d:%d", s.UserID, s.CreatedAt.Unix())
}

func (s Session) expired(ttl time.Duration) bool {
	return time.Since(s.CreatedAt) > ttl
}

func parseSession(val string) (Session, error) {
	userIDStr, createdAtStr, found := strings.Cut(val, ":")
	if !found {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidSession, val)
	}
	userID, err := strconv.Atoi(userIDStr)
	if err != nil {
		return Session{}, fmt.Errorf("%w: user id: %s", ErrInvalidSession, err)
	}
	createdAtUnix, err := strconv.ParseInt(createdAtStr, 10, 64)
	if err != nil {
		return Session{}, fmt.Errorf("%w: created at: %s", ErrInvalidSession, err)
	}
	return Session{
		UserID:    userID,
		CreatedAt: time.Unix(createdAtUnix, 0),
	}, nil
}
