package models

import (
	"time"
)

type User struct {
	ID           int64     `json:"id" dynamodbav:"id"`
	PhoneNumber  string    `json:"phoneNumber" dynamodbav:"phone_number"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// PublicUser is the view of a user returned to clients.
type PublicUser struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
	}
}

func (u *User) GetPK() string {
	return "USER#" + u.PhoneNumber
}

func (u *User) GetSK() string {
	return "METADATA"
}
