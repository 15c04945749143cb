package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loangraph/marketsync/internal/market"
)

type fixedIdentity struct {
	user market.User
	ok   bool
}

func (f fixedIdentity) Me() (market.User, bool) { return f.user, f.ok }

func TestJWTMintAndParse(t *testing.T) {
	m := NewJWTManager("issuer", "aud", "secret")
	tok, err := m.Mint(market.User{ID: "u1", Role: market.RoleInvestor}, "s1", 5*time.Minute)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	claims, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != market.RoleInvestor || claims.SessionID != "s1" || claims.Type != TokenTypeSession {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTRejectsForeignAudience(t *testing.T) {
	tok, err := NewJWTManager("issuer", "other", "secret").Mint(market.User{ID: "u1"}, "s1", time.Minute)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	if _, err := NewJWTManager("issuer", "aud", "secret").Parse(tok); err == nil {
		t.Fatalf("expected audience mismatch")
	}
}

func TestSetAndClearSessionCookie(t *testing.T) {
	r := httptest.NewRecorder()
	cfg := CookieConfig{Secure: false}

	SetSessionCookie(r, cfg, "token", 15*time.Minute)
	cookies := r.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].Value != "token" {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}

	r2 := httptest.NewRecorder()
	ClearSessionCookie(r2, cfg)
	if c := r2.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("expected clearing cookie, got %+v", c)
	}
}

func TestPasscode(t *testing.T) {
	hash, err := HashPasscode("open sesame")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPasscode(hash, "open sesame"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPasscode(hash, "wrong"); !errors.Is(err, ErrBadPasscode) {
		t.Fatalf("expected ErrBadPasscode, got %v", err)
	}
	if err := VerifyPasscode("", "anything"); err != nil {
		t.Fatalf("expected open console without hash, got %v", err)
	}
	if _, err := HashPasscode("  "); err == nil {
		t.Fatalf("expected empty passcode to be refused")
	}
}

func TestServiceLogin(t *testing.T) {
	jwt := NewJWTManager("issuer", "aud", "secret")
	hash, _ := HashPasscode("pw")

	pending := NewService(fixedIdentity{}, jwt, hash, time.Hour)
	if _, err := pending.Login(context.Background(), "pw"); !errors.Is(err, ErrIdentityUnknown) {
		t.Fatalf("expected ErrIdentityUnknown, got %v", err)
	}

	svc := NewService(fixedIdentity{user: market.User{ID: "bank-1", Role: market.RoleFinancialInstitution}, ok: true}, jwt, hash, time.Hour)
	if _, err := svc.Login(context.Background(), "nope"); !errors.Is(err, ErrBadPasscode) {
		t.Fatalf("expected ErrBadPasscode, got %v", err)
	}
	sess, err := svc.Login(context.Background(), "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := jwt.Parse(sess.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "bank-1" || claims.Role != market.RoleFinancialInstitution || claims.SessionID != sess.SessionID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
