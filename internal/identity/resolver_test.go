package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
)

type fakeDirectory struct {
	members map[string]int
	err     error
}

func (d *fakeDirectory) MemberIDByEmail(_ context.Context, email string) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	id, ok := d.members[email]
	if !ok {
		return 0, errors.New("member not found")
	}
	return id, nil
}

func newTestChain(t *testing.T, dir Directory) Chain {
	t.Helper()
	return NewChain(dir, zerolog.Nop())
}

func TestChainResolve(t *testing.T) {
	dir := &fakeDirectory{members: map[string]int{"anna@club.example": 77}}

	tests := []struct {
		name   string
		dir    Directory
		creds  Credentials
		want   int
		wantOK bool
	}{
		{
			name:   "claim as string wins",
			dir:    dir,
			creds:  Credentials{Claims: jwt.MapClaims{"memberId": "42"}, SessionEmail: "anna@club.example"},
			want:   42,
			wantOK: true,
		},
		{
			name:   "claim as number wins",
			dir:    dir,
			creds:  Credentials{Claims: jwt.MapClaims{"memberId": float64(42)}, SessionEmail: "anna@club.example"},
			want:   42,
			wantOK: true,
		},
		{
			name:   "unparsable claim falls back to session",
			dir:    dir,
			creds:  Credentials{Claims: jwt.MapClaims{"memberId": "not-a-number"}, SessionEmail: "anna@club.example"},
			want:   77,
			wantOK: true,
		},
		{
			name:   "missing claim falls back to session",
			dir:    dir,
			creds:  Credentials{Claims: jwt.MapClaims{"role": "member"}, SessionEmail: "anna@club.example"},
			want:   77,
			wantOK: true,
		},
		{
			name:   "non-integer numeric claim falls back",
			dir:    dir,
			creds:  Credentials{Claims: jwt.MapClaims{"memberId": 41.5}, SessionEmail: "anna@club.example"},
			want:   77,
			wantOK: true,
		},
		{
			name:   "directory failure collapses to anonymous",
			dir:    &fakeDirectory{err: errors.New("membership store down")},
			creds:  Credentials{SessionEmail: "anna@club.example"},
			want:   Anonymous,
			wantOK: false,
		},
		{
			name:   "unknown email collapses to anonymous",
			dir:    dir,
			creds:  Credentials{SessionEmail: "ghost@club.example"},
			want:   Anonymous,
			wantOK: false,
		},
		{
			name:   "no session mechanism collapses to anonymous",
			dir:    nil,
			creds:  Credentials{SessionEmail: "anna@club.example"},
			want:   Anonymous,
			wantOK: false,
		},
		{
			name:   "empty credentials",
			dir:    dir,
			creds:  Credentials{},
			want:   Anonymous,
			wantOK: false,
		},
		{
			name:   "zero claim is not an identity",
			dir:    nil,
			creds:  Credentials{Claims: jwt.MapClaims{"memberId": "0"}},
			want:   Anonymous,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := newTestChain(t, tt.dir).Resolve(context.Background(), tt.creds)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Resolve = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseBearerClaims(t *testing.T) {
	secret := []byte("test-secret")

	sign := func(t *testing.T, claims jwt.MapClaims, key []byte) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return s
	}

	token := sign(t, jwt.MapClaims{"memberId": "42"}, secret)
	claims, err := ParseBearerClaims(token, secret)
	if err != nil {
		t.Fatalf("ParseBearerClaims: %v", err)
	}
	if claims["memberId"] != "42" {
		t.Errorf("memberId claim = %v, want %q", claims["memberId"], "42")
	}

	if _, err := ParseBearerClaims(token, []byte("other-secret")); err == nil {
		t.Error("wrong secret: want error, got nil")
	}
	if _, err := ParseBearerClaims("not.a.token", secret); err == nil {
		t.Error("garbage token: want error, got nil")
	}
}
