package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/apperror"
	"github.com/taobei/auth/internal/models"
	"github.com/taobei/auth/internal/ratelimit"
	"github.com/taobei/auth/internal/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	LoginTypeCode     = "code"
	LoginTypePassword = "password"
)

var (
	ErrRateLimited       = apperror.New(apperror.KindRateLimited, "please wait before requesting another code")
	ErrUserNotFound      = apperror.New(apperror.KindNotFound, "user not found")
	ErrAlreadyRegistered = apperror.New(apperror.KindConflict, "phone number already registered")
	ErrInvalidCode       = apperror.New(apperror.KindInvalidCredential, "verification code is incorrect or expired")
	ErrNoPasswordSet     = apperror.New(apperror.KindInvalidCredential, "no password set for this account, log in with a verification code")
	ErrWrongPassword     = apperror.New(apperror.KindInvalidCredential, "incorrect password")
	ErrUnsupportedLogin  = apperror.New(apperror.KindUnsupportedMethod, "unsupported login type")
	ErrTermsNotAccepted  = apperror.New(apperror.KindInvalidInput, "user agreement must be accepted")
)

// UserStore persists registered accounts.
type UserStore interface {
	FindByPhone(ctx context.Context, phoneNumber string) (*models.User, error)
	Create(ctx context.Context, phoneNumber, passwordHash string) (*models.User, error)
}

// CodeStore persists one-time verification codes.
type CodeStore interface {
	Save(ctx context.Context, phoneNumber, code string, expiresAt time.Time) (time.Time, error)
	Verify(ctx context.Context, phoneNumber, code string) error
}

type LoginInput struct {
	PhoneNumber      string
	LoginType        string
	VerificationCode string
	Password         string
}

type RegisterInput struct {
	PhoneNumber      string
	VerificationCode string
	Password         string
	// AgreeToTerms is nil when the client did not send it.
	AgreeToTerms *bool
}

type AuthService struct {
	users      UserStore
	codes      CodeStore
	limiter    ratelimit.Limiter
	sender     CodeSender
	tokens     *TokenService
	bcryptCost int
	logger     *logrus.Logger
}

func NewAuthService(
	users UserStore,
	codes CodeStore,
	limiter ratelimit.Limiter,
	sender CodeSender,
	tokens *TokenService,
	bcryptCost int,
	logger *logrus.Logger,
) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		codes:      codes,
		limiter:    limiter,
		sender:     sender,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// SendVerificationCode issues a fresh code for phoneNumber, replacing any
// previous one. Sends to the same phone are limited to one per interval.
func (s *AuthService) SendVerificationCode(ctx context.Context, phoneNumber string) error {
	if !validate.PhoneNumber(phoneNumber) {
		return validate.ErrInvalidPhone
	}

	ok, err := s.limiter.TryAcquire(ctx, phoneNumber)
	if err != nil {
		s.logger.WithError(err).Error("Failed to check send rate limit")
		return apperror.Wrap(apperror.KindInternal, "failed to send verification code", err)
	}
	if !ok {
		return ErrRateLimited
	}

	code := validate.GenerateCode()
	if err := s.deliver(ctx, phoneNumber, code); err != nil {
		if releaseErr := s.limiter.Release(ctx, phoneNumber); releaseErr != nil {
			s.logger.WithError(releaseErr).Warn("Failed to release send rate limit")
		}
		return err
	}

	return nil
}

func (s *AuthService) deliver(ctx context.Context, phoneNumber, code string) error {
	if _, err := s.codes.Save(ctx, phoneNumber, code, time.Time{}); err != nil {
		return err
	}
	if err := s.sender.Send(ctx, phoneNumber, code); err != nil {
		s.logger.WithError(err).WithField("phone", phoneNumber).Error("Failed to deliver verification code")
		return apperror.Wrap(apperror.KindInternal, "failed to send verification code", err)
	}
	return nil
}

// Login authenticates an existing user with a verification code or a
// password. An empty LoginType means code.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.AuthSession, error) {
	user, err := s.users.FindByPhone(ctx, in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	switch in.LoginType {
	case "", LoginTypeCode:
		if err := s.verifyCode(ctx, in.PhoneNumber, in.VerificationCode); err != nil {
			return nil, err
		}
	case LoginTypePassword:
		if !user.HasPassword() {
			return nil, ErrNoPasswordSet
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
			return nil, ErrWrongPassword
		}
	default:
		return nil, ErrUnsupportedLogin
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"login_type": in.LoginType,
	}).Info("User logged in")

	return s.session(user)
}

// Register creates an account for a phone proven by a verification code.
// The password is optional; when present it must be strong.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthSession, error) {
	if in.AgreeToTerms != nil && !*in.AgreeToTerms {
		return nil, ErrTermsNotAccepted
	}

	existing, err := s.users.FindByPhone(ctx, in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyRegistered
	}

	// Reject a weak password before the code is consumed.
	if in.Password != "" && !validate.Password(in.Password) {
		return nil, validate.ErrWeakPassword
	}

	if err := s.verifyCode(ctx, in.PhoneNumber, in.VerificationCode); err != nil {
		return nil, err
	}

	var passwordHash string
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			s.logger.WithError(err).Error("Failed to hash password")
			return nil, apperror.Wrap(apperror.KindInternal, "failed to register user", err)
		}
		passwordHash = string(hash)
	}

	user, err := s.users.Create(ctx, in.PhoneNumber, passwordHash)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindConflict {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User registered")

	return s.session(user)
}

// verifyCode collapses every verification failure into ErrInvalidCode;
// store failures stay internal.
func (s *AuthService) verifyCode(ctx context.Context, phoneNumber, code string) error {
	err := s.codes.Verify(ctx, phoneNumber, code)
	if err == nil {
		return nil
	}
	if apperror.KindOf(err) == apperror.KindInternal {
		return err
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		s.logger.WithField("reason", appErr.Message).Debug("Verification code rejected")
	}
	return ErrInvalidCode
}

func (s *AuthService) session(user *models.User) (*models.AuthSession, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to issue session token", err)
	}

	return &models.AuthSession{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	}, nil
}

// CurrentUser loads the account named by verified session claims.
func (s *AuthService) CurrentUser(ctx context.Context, claims *SessionClaims) (*models.PublicUser, error) {
	user, err := s.users.FindByPhone(ctx, claims.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID != claims.UserID {
		return nil, ErrUserNotFound
	}
	public := user.Public()
	return &public, nil
}
