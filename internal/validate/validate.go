// Package validate holds the input predicates used before any storage access.
package validate

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/taobei/auth/internal/apperror"
)

var (
	ErrInvalidPhone = apperror.New(apperror.KindInvalidInput, "invalid phone number format")
	ErrInvalidCode  = apperror.New(apperror.KindInvalidInput, "invalid verification code format")
	ErrWeakPassword = apperror.New(apperror.KindWeakPassword, "password must be at least 8 characters and contain letters and digits")
)

var (
	phoneRegex = regexp.MustCompile(`^1[3-9]\d{9}$`)
	codeRegex  = regexp.MustCompile(`^\d{6}$`)
)

// PhoneNumber reports whether s is an 11-digit mainland China mobile number.
func PhoneNumber(s string) bool {
	return phoneRegex.MatchString(s)
}

// Code reports whether s is a six-digit verification code.
func Code(s string) bool {
	return codeRegex.MatchString(s)
}

// Password requires at least 8 characters (runes, not bytes) with at least one letter and one
// digit. Other characters are allowed.
func Password(s string) bool {
	if utf8.RuneCountInString(s) < 8 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// GenerateCode returns a random code in [100000, 999999].
func GenerateCode() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}
