// internal/models/identity.go
package models

import "github.com/google/uuid"

// Identity is an already-authenticated player handed to the core by the
// transport layer. The core never validates credentials itself.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DisplayName returns Name, falling back to a short form of the ID for guests.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return "Guest_" + i.ID.String()[:4]
}
