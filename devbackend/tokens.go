package devbackend

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// RevokedTokens tracks token ids that must no longer be accepted
type RevokedTokens interface {
	Add(jti string, exp time.Time)
	IsRevoked(jti string) bool
	Cleanup()
}

type inMemoryRevokedTokens struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func newInMemoryRevokedTokens() *inMemoryRevokedTokens {
	return &inMemoryRevokedTokens{revoked: make(map[string]time.Time)}
}

func (c *inMemoryRevokedTokens) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *inMemoryRevokedTokens) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup drops entries whose token would have expired anyway
func (c *inMemoryRevokedTokens) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := NowTimeFunc()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

// Issuer signs and verifies HS256 admin tokens
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	revoked RevokedTokens

	mu     sync.Mutex
	issued map[string]time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("[NewIssuer] secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("[NewIssuer] ttl must be positive")
	}
	return &Issuer{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: newInMemoryRevokedTokens(),
		issued:  make(map[string]time.Time),
	}, nil
}

// Issue creates a signed token for admin
func (i *Issuer) Issue(admin *Admin) (string, error) {
	now := NowTimeFunc()
	exp := now.Add(i.ttl)
	jti := uuid.New().String()
	claims := jwtlib.MapClaims{
		"sub":  strconv.FormatInt(admin.ID, 10),
		"name": admin.Name,
		"role": admin.Role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
		"jti":  jti,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}

	i.mu.Lock()
	i.issued[jti] = exp
	i.mu.Unlock()
	return signed, nil
}

// Verify checks the signature, expiry and revocation state of raw and returns its subject
func (i *Issuer) Verify(raw string) (string, error) {
	token, err := jwtlib.Parse(raw, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwtlib.WithTimeFunc(NowTimeFunc), jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return "", errors.Wrapf(errors.ErrTokenExpired, "verify")
		}
		return "", errors.Wrapf(errors.ErrInvalidToken, "verify: %v", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return "", errors.Wrapf(errors.ErrInvalidToken, "verify")
	}
	jti, _ := claims["jti"].(string)
	if jti == "" || i.revoked.IsRevoked(jti) {
		return "", errors.Wrapf(errors.ErrInvalidToken, "token revoked")
	}
	sub, _ := claims.GetSubject()
	return sub, nil
}

// Revoke invalidates one token
func (i *Issuer) Revoke(raw string) {
	token, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return
	}
	claims, _ := token.Claims.(jwtlib.MapClaims)
	jti, _ := claims["jti"].(string)
	exp, _ := claims.GetExpirationTime()
	if jti == "" || exp == nil {
		return
	}
	i.revoked.Add(jti, exp.Time)
}

// RevokeAll invalidates every token issued so far
func (i *Issuer) RevokeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for jti, exp := range i.issued {
		i.revoked.Add(jti, exp)
	}
	i.issued = make(map[string]time.Time)
	i.revoked.Cleanup()
}
