package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newFakeAPI(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var sends int32

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/send-verification-code", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sends, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"verification code sent"}`))
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["phoneNumber"] != "13800138000" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"user not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"token":"tok","user":{"id":1,"phoneNumber":"13800138000"}}`))
	})
	mux.HandleFunc("/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["agreeToTerms"] != true || body["password"] == "" {
			t.Errorf("unexpected register body %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"token":"tok2","user":{"id":2,"phoneNumber":"13800138002"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &sends
}

func TestSendCodeCountdown(t *testing.T) {
	srv, sends := newFakeAPI(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(srv.URL, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := c.SendCode(ctx, SendCodeForm{PhoneNumber: "13800138000"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := c.ResendIn("13800138000"); got != DefaultResendInterval {
		t.Fatalf("ResendIn = %v", got)
	}

	now = now.Add(30 * time.Second)
	if err := c.SendCode(ctx, SendCodeForm{PhoneNumber: "13800138000"}); !errors.Is(err, ErrResendCooldown) {
		t.Fatalf("err = %v, want cooldown", err)
	}
	if err := c.SendCode(ctx, SendCodeForm{PhoneNumber: "13800138001"}); err != nil {
		t.Fatalf("other phone: %v", err)
	}

	now = now.Add(30 * time.Second)
	if err := c.SendCode(ctx, SendCodeForm{PhoneNumber: "13800138000"}); err != nil {
		t.Fatalf("resend after countdown: %v", err)
	}
	if got := atomic.LoadInt32(sends); got != 3 {
		t.Fatalf("server saw %d sends, want 3", got)
	}
}

func TestSendCodeValidatesBeforeRequest(t *testing.T) {
	srv, sends := newFakeAPI(t)
	c := New(srv.URL)

	if err := c.SendCode(context.Background(), SendCodeForm{PhoneNumber: "123"}); !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("err = %v", err)
	}
	if atomic.LoadInt32(sends) != 0 {
		t.Fatal("invalid form reached the server")
	}
}

func TestLogin(t *testing.T) {
	srv, _ := newFakeAPI(t)
	c := New(srv.URL)

	session, err := c.Login(context.Background(), LoginForm{PhoneNumber: "13800138000", VerificationCode: "123456"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token != "tok" || session.User.PhoneNumber != "13800138000" {
		t.Fatalf("session = %+v", session)
	}

	_, err = c.Login(context.Background(), LoginForm{PhoneNumber: "13800138999", VerificationCode: "123456"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Message != "user not found" {
		t.Fatalf("err = %v", err)
	}
}

func TestRegister(t *testing.T) {
	srv, _ := newFakeAPI(t)
	c := New(srv.URL + "/")

	session, err := c.Register(context.Background(), RegisterForm{
		PhoneNumber:      "13800138002",
		VerificationCode: "123456",
		Password:         "abc12345",
		AgreeToTerms:     true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.Token != "tok2" || session.User.ID != 2 {
		t.Fatalf("session = %+v", session)
	}
}

func TestFormValidation(t *testing.T) {
	tests := []struct {
		name string
		form interface{ Validate() error }
		want error
	}{
		{"send empty phone", &SendCodeForm{}, ErrPhoneRequired},
		{"login bad phone", &LoginForm{PhoneNumber: "23800138000", VerificationCode: "123456"}, ErrInvalidPhone},
		{"login missing code", &LoginForm{PhoneNumber: "13800138000", VerificationCode: " "}, ErrCodeRequired},
		{"login ok", &LoginForm{PhoneNumber: "13800138000", VerificationCode: "123456"}, nil},
		{"register missing password", &RegisterForm{PhoneNumber: "13800138000", VerificationCode: "123456", AgreeToTerms: true}, ErrPasswordRequired},
		{"register weak password", &RegisterForm{PhoneNumber: "13800138000", VerificationCode: "123456", Password: "12345678", AgreeToTerms: true}, ErrWeakPassword},
		{"register symbol in password", &RegisterForm{PhoneNumber: "13800138000", VerificationCode: "123456", Password: "abc12345!", AgreeToTerms: true}, ErrWeakPassword},
		{"register multibyte password", &RegisterForm{PhoneNumber: "13800138000", VerificationCode: "123456", Password: "ab12中文密码", AgreeToTerms: true}, ErrWeakPassword},
		{"register terms", &RegisterForm{PhoneNumber: "13800138000", VerificationCode: "123456", Password: "abc12345"}, ErrTermsRequired},
		{"register ok", &RegisterForm{PhoneNumber: "13800138000", VerificationCode: "123456", Password: "abc12345", AgreeToTerms: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.form.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
