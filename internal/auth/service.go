package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loangraph/marketsync/internal/market"
)

var ErrIdentityUnknown = errors.New("identity_unknown")

// Identity is the market user behind the backend session cookie.
type Identity interface {
	Me() (market.User, bool)
}

type Service struct {
	identity     Identity
	jwt          *JWTManager
	passcodeHash string
	ttl          time.Duration
}

type Session struct {
	Token     string
	SessionID string
	User      market.User
}

func NewService(identity Identity, jwt *JWTManager, passcodeHash string, ttl time.Duration) *Service {
	return &Service{identity: identity, jwt: jwt, passcodeHash: passcodeHash, ttl: ttl}
}

func (s *Service) TTL() time.Duration { return s.ttl }

// Login checks the console passcode and mints a session for the user the
// backend cookie belongs to. It fails until the directory knows who that is.
func (s *Service) Login(_ context.Context, passcode string) (*Session, error) {
	if err := VerifyPasscode(s.passcodeHash, passcode); err != nil {
		return nil, err
	}
	me, ok := s.identity.Me()
	if !ok {
		return nil, ErrIdentityUnknown
	}
	sessionID := uuid.NewString()
	token, err := s.jwt.Mint(me, sessionID, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, SessionID: sessionID, User: me}, nil
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
