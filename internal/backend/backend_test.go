package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAppName(t *testing.T) {
	assert.Equal(t, "spotify", NormalizeAppName("Spotify"))
	assert.Equal(t, "spotify", NormalizeAppName("Spotify.exe"))
	assert.Equal(t, "firefox", NormalizeAppName("  Firefox  "))
	assert.Equal(t, "", NormalizeAppName(""))
}

func TestMatchesApp(t *testing.T) {
	tests := []struct {
		session string
		app     string
		want    bool
	}{
		{"spotify", "spotify", true},
		{"Spotify", "spotify", true},
		{"spotify.exe", "spotify", true},
		{"firefox", "spotify", false},
		{"Firefox Developer Edition", "firefox", true},
		{"fire", "firefox", true}, // substring in either direction
		{"", "spotify", false},
		{"spotify", "", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesApp(tt.session, tt.app),
			"MatchesApp(%q, %q)", tt.session, tt.app)
	}
}

func TestMatchesAny(t *testing.T) {
	apps := []string{"firefox", "discord"}

	assert.True(t, MatchesAny("Firefox", apps))
	assert.True(t, MatchesAny("Discord.exe", apps))
	assert.False(t, MatchesAny("spotify", apps))
	assert.False(t, MatchesAny("spotify", nil))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.5))
	assert.Equal(t, 0.5, Clamp(0.5))
	assert.Equal(t, 1.0, Clamp(1.5))
}
