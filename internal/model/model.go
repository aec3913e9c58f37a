package model

import "time"

type User struct {
	ID        string
	Email     string
	Role      Role
	FirstName *string
	LastName  *string
	LastLogin *time.Time
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
