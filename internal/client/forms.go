package client

import (
	"errors"
	"regexp"
	"strings"

	"github.com/taobei/auth/internal/validate"
)

var (
	ErrPhoneRequired    = errors.New("please enter a phone number")
	ErrInvalidPhone     = errors.New("please enter a valid phone number")
	ErrCodeRequired     = errors.New("please enter the verification code")
	ErrPasswordRequired = errors.New("please enter a password")
	ErrWeakPassword     = errors.New("password must be at least 8 characters and contain letters and digits")
	ErrTermsRequired    = errors.New("please accept the user agreement")
)

// formPassword is the form's character set; validate.Password adds the
// letter and digit requirement.
var formPassword = regexp.MustCompile(`^[A-Za-z0-9]{8,}$`)

type SendCodeForm struct {
	PhoneNumber string
}

func (f *SendCodeForm) Validate() error {
	return checkPhone(f.PhoneNumber)
}

type LoginForm struct {
	PhoneNumber      string
	VerificationCode string
}

func (f *LoginForm) Validate() error {
	if err := checkPhone(f.PhoneNumber); err != nil {
		return err
	}
	if strings.TrimSpace(f.VerificationCode) == "" {
		return ErrCodeRequired
	}
	return nil
}

// RegisterForm is stricter than the API: the form always asks for a
// password made of letters and digits only, and the agreement checkbox.
type RegisterForm struct {
	PhoneNumber      string
	VerificationCode string
	Password         string
	AgreeToTerms     bool
}

func (f *RegisterForm) Validate() error {
	if err := checkPhone(f.PhoneNumber); err != nil {
		return err
	}
	if strings.TrimSpace(f.VerificationCode) == "" {
		return ErrCodeRequired
	}
	if f.Password == "" {
		return ErrPasswordRequired
	}
	if !formPassword.MatchString(f.Password) || !validate.Password(f.Password) {
		return ErrWeakPassword
	}
	if !f.AgreeToTerms {
		return ErrTermsRequired
	}
	return nil
}

func checkPhone(phone string) error {
	if phone == "" {
		return ErrPhoneRequired
	}
	if !validate.PhoneNumber(phone) {
		return ErrInvalidPhone
	}
	return nil
}
