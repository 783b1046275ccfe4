// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/models"
)

// ErrUnauthenticated wraps every reason a token is refused.
var ErrUnauthenticated = errors.New("actor unauthenticated")

// Issuer signs and verifies session tokens with an ed25519 key pair.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expiry     time.Duration // 0 => no exp claim
	now        func() time.Time
}

// NewIssuer generates a fresh key pair at runtime. Tokens do not survive a restart.
func NewIssuer(expiry time.Duration) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, expiry: expiry, now: time.Now}, nil
}

// NewIssuerFromPath reads raw ed25519 private/public keys from file.
func NewIssuerFromPath(privatePath, publicPath string, expiry time.Duration) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("key files have the wrong size")
	}
	return &Issuer{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		expiry:     expiry,
		now:        time.Now,
	}, nil
}

// CreateJWT creates a signed token with "sub" = the player's id and "name" = display name.
func (i *Issuer) CreateJWT(id models.Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.ID.String(),
		"name": id.Name,
		"iat":  i.now().Unix(),
	}
	if i.expiry > 0 {
		claims["exp"] = i.now().Add(i.expiry).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// AuthenticateJWT verifies a token and returns the identity it was issued for.
func (i *Issuer) AuthenticateJWT(tokenString string) (models.Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: jwt parse error: %v", ErrUnauthenticated, err)
	}
	if !t.Valid {
		return models.Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: invalid jwt claims", ErrUnauthenticated)
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return models.Identity{}, fmt.Errorf("%w: missing sub in jwt", ErrUnauthenticated)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: malformed sub: %v", ErrUnauthenticated, err)
	}
	name, _ := claims["name"].(string)
	return models.Identity{ID: userID, Name: name}, nil
}
