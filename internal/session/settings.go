package session

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/go-playground/validator/v10"

	"github.com/example/wordwindow/internal/spaced_repetition"
	"github.com/example/wordwindow/internal/window"
)

var validate = validator.New()

// Settings are the study parameters a session is built with. Windows as
// small as one word are allowed for short assignment lists.
type Settings struct {
	WindowSize     int                         `json:"window_size" validate:"gte=1,lte=50"`
	SRSCapacity    int                         `json:"srs_capacity" validate:"gte=1,lte=15"`
	KnownThreshold int                         `json:"known_threshold" validate:"gte=1,lte=20"`
	KnownDelta     int                         `json:"known_delta" validate:"gte=0,lte=10"`
	Direction      spaced_repetition.Direction `json:"direction" validate:"oneof=foreign_to_english english_to_foreign"`
}

// DefaultSettings returns the stock study parameters
func DefaultSettings() Settings {
	return Settings{
		WindowSize:     30,
		SRSCapacity:    5,
		KnownThreshold: 5,
		KnownDelta:     3,
		Direction:      spaced_repetition.ForeignToEnglish,
	}
}

// Overrides replaces individual settings for one session
type Overrides struct {
	WindowSize     *int    `json:"window_size,omitempty"`
	SRSCapacity    *int    `json:"srs_capacity,omitempty"`
	KnownThreshold *int    `json:"known_threshold,omitempty"`
	KnownDelta     *int    `json:"known_delta,omitempty"`
	Direction      *string `json:"direction,omitempty"`
}

// With applies overrides on top of the settings
func (s Settings) With(o Overrides) Settings {
	if o.WindowSize != nil {
		s.WindowSize = *o.WindowSize
	}
	if o.SRSCapacity != nil {
		s.SRSCapacity = *o.SRSCapacity
	}
	if o.KnownThreshold != nil {
		s.KnownThreshold = *o.KnownThreshold
	}
	if o.KnownDelta != nil {
		s.KnownDelta = *o.KnownDelta
	}
	if o.Direction != nil {
		s.Direction = spaced_repetition.Direction(*o.Direction)
	}
	return s
}

// Validate checks the settings against their allowed ranges
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Policy builds the mastery policy for these settings
func (s Settings) Policy() *spaced_repetition.Policy {
	return &spaced_repetition.Policy{
		KnownThreshold: s.KnownThreshold,
		KnownDelta:     s.KnownDelta,
		Direction:      s.Direction,
	}
}

// WindowConfig builds the window limits for these settings
func (s Settings) WindowConfig(assignment bool, rng *rand.Rand, logger *slog.Logger) window.Config {
	return window.Config{
		Size:        s.WindowSize,
		SRSCapacity: s.SRSCapacity,
		Assignment:  assignment,
		Rand:        rng,
		Logger:      logger,
	}
}
