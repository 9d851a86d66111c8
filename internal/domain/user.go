package domain

import "time"

// User represents an authenticated account. Identity resolution happens
// upstream; this record only tracks what generation features the account may
// use.
type User struct {
	ID              string
	Email           string
	IsPro           bool
	FreeGenerations int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanPreview reports whether the user may run another free preview.
func (u User) CanPreview() bool {
	return u.IsPro || u.FreeGenerations < 1
}
