package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestVerificationCodeIsExpired(t *testing.T) {
	expiresAt := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	c := &VerificationCode{PhoneNumber: "13800138000", Code: "123456", ExpiresAt: expiresAt}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", expiresAt.Add(-time.Second), false},
		{"at expiry", expiresAt, false},
		{"after", expiresAt.Add(time.Millisecond), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsExpired(tt.now); got != tt.want {
				t.Fatalf("IsExpired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestUserJSONHidesSecrets(t *testing.T) {
	u := &User{ID: 1, PhoneNumber: "13800138000", PasswordHash: "$2a$10$hash", CreatedAt: time.Now()}

	for _, v := range []interface{}{u, u.Public()} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if strings.Contains(string(b), "hash") {
			t.Fatalf("password hash serialized: %s", b)
		}
	}

	if !u.HasPassword() {
		t.Fatal("HasPassword = false")
	}
	if (&User{}).HasPassword() {
		t.Fatal("empty user reports a password")
	}
	if u.GetPK() != "USER#13800138000" {
		t.Fatalf("pk = %q", u.GetPK())
	}
}

func TestVerificationCodeJSONHidesCode(t *testing.T) {
	b, err := json.Marshal(&VerificationCode{PhoneNumber: "13800138000", Code: "654321"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "654321") {
		t.Fatalf("code serialized: %s", b)
	}
}
