package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		p    Profile
		want string
	}{
		{"plain", Profile{UserID: "u1", Username: "Ann"}, "Ann"},
		{"empty falls back to user id prefix", Profile{UserID: "abcdef123", Username: ""}, "User-abcde"},
		{"short user id", Profile{UserID: "ab", Username: ""}, "User-ab"},
		{"too long is truncated", Profile{UserID: "u1", Username: strings.Repeat("x", 50)}, strings.Repeat("x", MaxUsernameLen)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.p.DisplayName())
		})
	}
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "unjoined", StateUnjoined.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "closed", StateClosed.String())
}
