// Package visitor issues the opaque visitor id that keys a browser's
// server-held cart mirrors and favourites.
package visitor

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const CookieName = "visitor_id"

var ErrInvalidVisitor = errors.New("invalid visitor id")

type Service struct {
	ttl time.Duration
}

func New() *Service {
	return &Service{ttl: 365 * 24 * time.Hour}
}

// Issue returns a fresh random visitor id.
func (s *Service) Issue() string {
	return uuid.NewString()
}

// Validate checks raw is a visitor id this service could have issued and
// returns it in canonical form.
func (s *Service) Validate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidVisitor
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.Version() != 4 {
		return "", ErrInvalidVisitor
	}
	return id.String(), nil
}

// Resolve validates raw and falls back to a new id. issued reports whether
// the caller must set the cookie.
func (s *Service) Resolve(raw string) (id string, issued bool) {
	if id, err := s.Validate(raw); err == nil {
		return id, false
	}
	return s.Issue(), true
}

func (s *Service) CookieMaxAgeSeconds() int {
	return int(s.ttl.Seconds())
}
