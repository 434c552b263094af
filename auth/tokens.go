package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/htol/techlib/book"
)

const (
	tokenIssuer   = "techlib-server"
	tokenAudience = "techlib-client"

	keyBytesSize = 32
)

// ErrInvalidToken wraps every failure to decrypt or validate a token.
var ErrInvalidToken = errors.New("invalid token")

// Claims are carried encrypted inside a v4.local token. TokenID is the session id.
type Claims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Role   book.Role `json:"role"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// TokenService issues and verifies PASETO v4.local tokens bound to sessions.
type TokenService struct {
	key paseto.V4SymmetricKey
	now func() time.Time
}

// NewTokenService creates a token service from a 32-byte symmetric key.
func NewTokenService(key []byte) (*TokenService, error) {
	if len(key) != keyBytesSize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyBytesSize, len(key))
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &TokenService{key: k, now: time.Now}, nil
}

// Issue encrypts a token for u that is valid until the session expires.
func (s *TokenService) Issue(u *book.User, sess *book.Session) string {
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(u.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(sess.ExpiresAt)
	token.SetJti(sess.ID)

	// Set only fails for values that do not marshal to JSON.
	_ = token.Set("user_id", u.ID)
	_ = token.Set("email", u.Email)
	_ = token.Set("role", string(u.Role))

	return token.V4Encrypt(s.key, nil)
}

// Verify decrypts tokenString and checks issuer, audience and validity window.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims Claims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %v", ErrInvalidToken, err)
	}
	if claims.TokenID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing session", ErrInvalidToken)
	}
	return &claims, nil
}
