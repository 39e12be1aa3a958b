package sessions

import "time"

// Session is a refresh session for a signed-in site owner. The refresh
// token is opaque and only ever exchanged for a fresh access token by
// the console.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	Sub          string    `bson:"sub" json:"sub"`
	UserAgent    string    `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
