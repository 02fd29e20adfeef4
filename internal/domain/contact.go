package domain

import "time"

// Contact is one entry of a user's contact list; display fields are joined
// from the contact's profile at read time.
type Contact struct {
	OwnerID     string
	ContactID   string
	Email       string
	DisplayName *string
	AvatarURL   *string
	CreatedAt   time.Time
}
