package domain

import "time"

// Credential holds the OAuth token pair for one athlete. ExpiresAt is always the value
// the provider returned; it is never computed locally.
type Credential struct {
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// Expired reports whether the access token can no longer be used at now.
func (c Credential) Expired(now time.Time) bool {
	return now.Unix() >= c.ExpiresAt
}

// Athlete is the profile captured when an athlete authorizes the application.
type Athlete struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Firstname     string    `json:"firstname"`
	Lastname      string    `json:"lastname"`
	Bio           string    `json:"bio"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Country       string    `json:"country"`
	Sex           string    `json:"sex"`
	ProfileMedium string    `json:"profile_medium"`
	Weight        float64   `json:"weight"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
