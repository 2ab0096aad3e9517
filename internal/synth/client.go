// Package synth is the client for the upstream speech synthesis server.
// The server produces audio plus phoneme-level timing intervals; this
// module consumes the timings opaquely and never inspects the audio.
package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/visemesync/internal/timeline"
	"github.com/normanking/visemesync/internal/viseme"
)

// Common errors
var (
	ErrServerUnavailable = errors.New("synth: server unavailable")
	ErrEmptyText         = errors.New("synth: empty text")
	ErrTextTooLong       = errors.New("synth: text exceeds maximum length")
)

// maxTextLength matches the synthesis server's request limit.
const maxTextLength = 1000

// Client talks to the TTS backend over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	speed   float64
}

// NewClient creates a synthesis client. A zero timeout uses 30s.
func NewClient(baseURL string, speed float64, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "synth").Logger(),
		speed:   speed,
	}
}

// Result is one completed synthesis: opaque audio bytes plus the raw
// timing intervals for timeline construction.
type Result struct {
	Audio      []byte
	SampleRate int
	DurationMs float64
	Timings    []timeline.RawEvent
}

// synthesizeRequest mirrors the server's /synthesize payload.
type synthesizeRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed"`
}

// synthesizeResponse mirrors the server's /synthesize reply.
type synthesizeResponse struct {
	AudioData      string              `json:"audio_data"`
	PhonemeTimings []timeline.RawEvent `json:"phoneme_timings"`
	Duration       float64             `json:"duration"` // seconds
	SampleRate     int                 `json:"sample_rate"`
	Error          string              `json:"error,omitempty"`
}

// Synthesize converts text to speech and returns audio plus phoneme
// timings.
func (c *Client) Synthesize(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextLength {
		return nil, ErrTextTooLong
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Speed: c.speed})
	if err != nil {
		return nil, fmt.Errorf("synth: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("synth: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("synth: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if sr.Error != "" {
			return nil, fmt.Errorf("synth: server error: %s", sr.Error)
		}
		return nil, fmt.Errorf("synth: unexpected status %d", resp.StatusCode)
	}

	audio, err := base64.StdEncoding.DecodeString(sr.AudioData)
	if err != nil {
		return nil, fmt.Errorf("synth: decode audio: %w", err)
	}

	c.logger.Info().
		Int("chars", len(text)).
		Int("phonemes", len(sr.PhonemeTimings)).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesis complete")

	return &Result{
		Audio:      audio,
		SampleRate: sr.SampleRate,
		DurationMs: sr.Duration * 1000,
		Timings:    sr.PhonemeTimings,
	}, nil
}

// FetchPhonemeMap downloads the server's phoneme-to-category table.
func (c *Client) FetchPhonemeMap(ctx context.Context) (*viseme.Map, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/phoneme-map", nil)
	if err != nil {
		return nil, fmt.Errorf("synth: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synth: phoneme map fetch failed: %d", resp.StatusCode)
	}

	var flat map[string]viseme.ID
	if err := json.NewDecoder(resp.Body).Decode(&flat); err != nil {
		return nil, fmt.Errorf("synth: decode phoneme map: %w", err)
	}

	m := viseme.DefaultMap()
	m.Symbols = flat
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Health checks whether the synthesis server is up and its model loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("synth: health check failed: %d", resp.StatusCode)
	}

	var health struct {
		Status   string `json:"status"`
		TTSReady bool   `json:"tts_ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("synth: decode health: %w", err)
	}
	if !health.TTSReady {
		return fmt.Errorf("synth: server up but model not loaded")
	}
	return nil
}
