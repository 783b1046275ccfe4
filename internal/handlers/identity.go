// internal/handlers/identity.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trickroom/internal/auth"
	"github.com/jason-s-yu/trickroom/internal/models"
)

const authCookie = "auth_token"

// EnsureIdentity returns the caller's identity from the auth_token cookie. A
// caller without a valid token is issued a fresh guest identity and cookie.
func EnsureIdentity(iss *auth.Issuer, w http.ResponseWriter, r *http.Request) (models.Identity, error) {
	if id, err := CookieIdentity(iss, r); err == nil {
		return id, nil
	}

	guest := models.Identity{ID: uuid.New()}
	guest.Name = guest.DisplayName()
	token, err := iss.CreateJWT(guest)
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return guest, nil
}

// CookieIdentity authenticates the auth_token cookie without issuing a new one.
func CookieIdentity(iss *auth.Issuer, r *http.Request) (models.Identity, error) {
	c, err := r.Cookie(authCookie)
	if err != nil || c.Value == "" {
		return models.Identity{}, fmt.Errorf("%w: missing %s cookie", auth.ErrUnauthenticated, authCookie)
	}
	return iss.AuthenticateJWT(c.Value)
}
