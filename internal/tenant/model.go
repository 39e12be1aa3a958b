package tenant

import "time"

// Site is one registered tenant. The slug doubles as the index name and is
// immutable; the secret authorizes writes and can be rotated.
type Site struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Slug      string    `bson:"slug" json:"slug"`
	Secret    string    `bson:"secret" json:"-"`
	OwnerSub  string    `bson:"ownerSub" json:"ownerSub"`
	Public    bool      `bson:"public" json:"public"`
	Domains   []Domain  `bson:"domains,omitempty" json:"domains,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Domain is one hostname attached to a site. The first domain added becomes
// the primary one.
type Domain struct {
	URL      string `bson:"url" json:"url"`
	Primary  bool   `bson:"primary" json:"primary"`
	Verified bool   `bson:"verified" json:"verified"`
}

// PrimaryDomain returns the site's primary domain URL, or "" when none is set.
func (s *Site) PrimaryDomain() string {
	for _, d := range s.Domains {
		if d.Primary {
			return d.URL
		}
	}
	return ""
}
