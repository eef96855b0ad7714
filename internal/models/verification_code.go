package models

import "time"

type VerificationCode struct {
	ID          int64     `json:"id" dynamodbav:"-"`
	PhoneNumber string    `json:"phoneNumber" dynamodbav:"phone_number"`
	Code        string    `json:"-" dynamodbav:"code"`
	ExpiresAt   time.Time `json:"expiresAt" dynamodbav:"expires_at"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// IsExpired reports whether the code is past its expiry at now.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *VerificationCode) GetPK() string {
	return "CODE#" + c.PhoneNumber
}

func (c *VerificationCode) GetSK() string {
	return "METADATA"
}
