// ABOUTME: JWT-based identity provider reading HS256 session cookies
// ABOUTME: Verifies the provider-issued session token and extracts profile claims

package identity

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// JWTProvider verifies HS256 session tokens issued by the external identity
// provider and carried in a cookie on every request.
type JWTProvider struct {
	secret     []byte
	cookieName string
}

// NewJWTProvider creates a provider reading the named cookie.
func NewJWTProvider(secret []byte, cookieName string) *JWTProvider {
	return &JWTProvider{secret: secret, cookieName: cookieName}
}

// CurrentCaller extracts and verifies the session cookie. A missing cookie
// yields ErrNoIdentity; a present but unverifiable token yields
// ErrInvalidSession so callers can tell the two apart.
func (p *JWTProvider) CurrentCaller(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(p.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoIdentity
	}
	return p.verify(cookie.Value)
}

func (p *JWTProvider) verify(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidSession)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidSession)
	}

	id := &Identity{Key: sub}
	id.Username, _ = claims["username"].(string)
	id.Email, _ = claims["email"].(string)
	id.FirstName, _ = claims["first_name"].(string)
	id.LastName, _ = claims["last_name"].(string)
	id.PhotoURL, _ = claims["image_url"].(string)
	id.EmailVerified, _ = claims["email_verified"].(bool)

	return id, nil
}
