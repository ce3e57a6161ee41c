package users

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata is the wellness context stored per user and fed to protocol generation.
type Metadata struct {
	IsGLP1 bool     `json:"isGLP1"`
	Tags   []string `json:"tags"`
}
