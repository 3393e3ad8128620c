package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudible struct {
	audible bool
	err     error
}

func (f fakeAudible) AnyAudible([]string) (bool, error) { return f.audible, f.err }

type fakeMedia struct {
	active bool
	err    error
}

func (f fakeMedia) AnyActiveOrPausedMedia([]string) (bool, error) { return f.active, f.err }

func TestProbeAnyAudible(t *testing.T) {
	p := NewProbe(fakeAudible{audible: true}, nil, nil)
	audible, err := p.AnyAudible([]string{"firefox"})
	require.NoError(t, err)
	assert.True(t, audible)
}

func TestProbeAnyAudibleWithoutSource(t *testing.T) {
	p := NewProbe(nil, nil, nil)
	_, err := p.AnyAudible([]string{"firefox"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProbeAnyActiveOrPausedMedia(t *testing.T) {
	tests := []struct {
		name    string
		audible bool
		media   bool
		want    bool
	}{
		{"audible short-circuits", true, false, true},
		{"paused session counts", false, true, true},
		{"nothing live", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProbe(fakeAudible{audible: tt.audible}, fakeMedia{active: tt.media}, nil)
			got, err := p.AnyActiveOrPausedMedia([]string{"firefox"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeMediaFallbackWhenAudibleFails(t *testing.T) {
	// A broken audible source should not mask a working media source
	p := NewProbe(fakeAudible{err: ErrUnavailable}, fakeMedia{active: true}, nil)
	got, err := p.AnyActiveOrPausedMedia([]string{"firefox"})
	require.NoError(t, err)
	assert.True(t, got)
}
