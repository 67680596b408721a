package domain

import "time"

// Identity is a rater or commenter keyed by lowercase wallet address.
type Identity struct {
	Address   string    `json:"address"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
