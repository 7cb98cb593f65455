// Package identity is the workflow's view of the durable user store. The
// wider platform owns registration and profile editing; the negotiation and
// moderation services only need to look up users and patch the public
// social-link map.
package identity

import (
	"time"

	"parley/pkg/domain"
)

// UserRecord is the key-value record tracked per user.
type UserRecord struct {
	ID          domain.UserID
	Handle      string
	DisplayName string
	// SocialLinks is the public, moderation-verified link map. Only the
	// moderation processor writes entries here.
	SocialLinks map[domain.SocialPlatform]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Patch is a partial update applied by Put. Nil fields are left untouched;
// SocialLinks entries are merged into the existing map.
type Patch struct {
	DisplayName *string
	SocialLinks map[domain.SocialPlatform]string
}
