package repository

import "github.com/taobei/auth/internal/apperror"

var (
	ErrCodeNotFound = apperror.New(apperror.KindNotFound, "verification code not found or expired")
	ErrCodeExpired  = apperror.New(apperror.KindInvalidCredential, "verification code expired")
	ErrWrongCode    = apperror.New(apperror.KindInvalidCredential, "verification code is incorrect")
	ErrUserExists   = apperror.New(apperror.KindConflict, "phone number already registered")
)

func internalErr(message string, err error) error {
	return apperror.Wrap(apperror.KindInternal, message, err)
}
