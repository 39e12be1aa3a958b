package models

import "time"

// User represents a platform account, mapped from identity-provider claims.
// Site ownership references users by Sub.
type User struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Sub         string    `bson:"sub" json:"sub"` // OIDC subject
	Email       string    `bson:"email" json:"email"`
	DisplayName string    `bson:"displayName" json:"displayName"`
	Picture     string    `bson:"picture,omitempty" json:"picture,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}
