package models

import "time"

// User carries the Google OAuth credential pair the executor needs to call
// the Forms API on the user's behalf. Issuing these tokens is the HTTP
// layer's concern, not the pipeline's.
type User struct {
	ID                 string     `json:"id"`
	GoogleID           string     `json:"google_id" validate:"required"`
	Email              string     `json:"email"     validate:"required,email"`
	Name               string     `json:"name,omitempty"`
	GoogleAccessToken  string     `json:"-"`
	GoogleRefreshToken string     `json:"-"`
	TokenExpiry        *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasGoogleCredentials reports whether both halves of the refreshable
// credential pair are present.
func (u *User) HasGoogleCredentials() bool {
	return u.GoogleAccessToken != "" && u.GoogleRefreshToken != ""
}
