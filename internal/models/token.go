package models

import "time"

// AuthSession is the outcome of a successful login or registration.
type AuthSession struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      PublicUser `json:"user"`
}
