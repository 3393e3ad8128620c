// Package pulse implements per-application volume control and audio
// activity detection on top of PulseAudio/PipeWire via pactl.
package pulse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/jmylchreest/audioduck/internal/backend"
)

// volumeNorm is PA_VOLUME_NORM, the raw channel value for 100%.
const volumeNorm = 65536.0

// commandTimeout bounds every pactl invocation so a wedged sound server
// cannot stall the poll loop.
const commandTimeout = 2 * time.Second

// runner executes a pactl command and returns its stdout. Injectable for
// tests.
type runner func(ctx context.Context, args ...string) ([]byte, error)

// SinkInput is one playback stream as reported by pactl.
type SinkInput struct {
	Index      uint32                  `json:"index"`
	Corked     bool                    `json:"corked"`
	Mute       bool                    `json:"mute"`
	Volume     map[string]channelLevel `json:"volume"`
	Properties map[string]string       `json:"properties"`
}

type channelLevel struct {
	Value uint32 `json:"value"`
}

// AppName returns the best available application name for the stream.
func (s *SinkInput) AppName() string {
	if name := s.Properties["application.process.binary"]; name != "" {
		return name
	}
	return s.Properties["application.name"]
}

// Level returns the stream's mean channel volume normalized to [0,1].
func (s *SinkInput) Level() float64 {
	if len(s.Volume) == 0 {
		return 0
	}
	var sum float64
	for _, ch := range s.Volume {
		sum += float64(ch.Value) / volumeNorm
	}
	return sum / float64(len(s.Volume))
}

// Audible reports whether the stream is actually producing sound: not
// corked, not muted, and above the noise floor.
func (s *SinkInput) Audible() bool {
	return !s.Corked && !s.Mute && s.Level() > backend.NoiseFloor
}

// Client talks to the local sound server through pactl.
type Client struct {
	logger *slog.Logger
	run    runner
}

// NewClient creates a pulse client.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger: logger,
		run:    runPactl,
	}
}

// Available reports whether pactl is installed.
func Available() bool {
	_, err := exec.LookPath("pactl")
	return err == nil
}

func runPactl(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "pactl", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("pactl %v: %w", args, err)
	}
	return out, nil
}

// SinkInputs lists all current playback streams.
func (c *Client) SinkInputs() ([]SinkInput, error) {
	out, err := c.run(context.Background(), "--format=json", "list", "sink-inputs")
	if err != nil {
		return nil, err
	}
	return ParseSinkInputs(out)
}

// ParseSinkInputs decodes pactl's JSON sink-input listing.
func ParseSinkInputs(data []byte) ([]SinkInput, error) {
	var inputs []SinkInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse sink-input list: %w", err)
	}
	return inputs, nil
}

// findSinkInput returns the first stream matching the application name.
func (c *Client) findSinkInput(app string) (*SinkInput, error) {
	inputs, err := c.SinkInputs()
	if err != nil {
		return nil, err
	}
	for i := range inputs {
		if backend.MatchesApp(inputs[i].AppName(), app) {
			return &inputs[i], nil
		}
	}
	return nil, backend.ErrNoSession
}

// GetVolume returns the application's current volume in [0,1].
func (c *Client) GetVolume(app string) (float64, error) {
	input, err := c.findSinkInput(app)
	if err != nil {
		return 0, err
	}
	return input.Level(), nil
}

// SetVolume sets the application's volume, clamping to [0,1].
func (c *Client) SetVolume(app string, level float64) error {
	level = backend.Clamp(level)

	input, err := c.findSinkInput(app)
	if err != nil {
		return err
	}

	percent := strconv.Itoa(int(level*100+0.5)) + "%"
	if _, err := c.run(context.Background(),
		"set-sink-input-volume", strconv.FormatUint(uint64(input.Index), 10), percent); err != nil {
		return fmt.Errorf("failed to set volume for %s: %w", app, err)
	}

	c.logger.Debug("set volume", "app", app, "level", level)
	return nil
}

// IsRunning reports whether the application has a playback stream.
func (c *Client) IsRunning(app string) bool {
	_, err := c.findSinkInput(app)
	return err == nil
}

// AnyAudible reports whether any of the named applications is currently
// emitting audible sound.
func (c *Client) AnyAudible(apps []string) (bool, error) {
	inputs, err := c.SinkInputs()
	if err != nil {
		return false, err
	}
	for i := range inputs {
		if !inputs[i].Audible() {
			continue
		}
		if backend.MatchesAny(inputs[i].AppName(), apps) {
			c.logger.Debug("audible stream", "app", inputs[i].AppName(), "level", inputs[i].Level())
			return true, nil
		}
	}
	return false, nil
}
