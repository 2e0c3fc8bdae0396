package delivery

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Telegram's message ceiling and the split length that leaves room for the
// continuation marker.
const (
	DefaultHardLimit          = 4096
	DefaultSplitLength        = 3800
	DefaultContinuationMarker = "\n\n_Continued in the next message..._"
	DefaultOverflowNotice     = "\n\n_The message was cut short because of Telegram limits._"
)

// Limits bounds the size of delivered messages. Lengths are in runes.
type Limits struct {
	// HardLimit is the transport's maximum message length.
	HardLimit int `yaml:"hard_limit" validate:"gt=0"`

	// SplitLength is the window size used by Chunk. Must leave room for
	// ContinuationMarker below HardLimit.
	SplitLength int `yaml:"split_length" validate:"gt=0,ltfield=HardLimit"`

	// ContinuationMarker is appended to every segment but the last.
	ContinuationMarker string `yaml:"continuation_marker"`

	// OverflowNotice is appended to a message truncated after the transport
	// rejected it as too long.
	OverflowNotice string `yaml:"overflow_notice"`
}

// DefaultLimits returns the limits used for Telegram.
func DefaultLimits() Limits {
	return Limits{
		HardLimit:          DefaultHardLimit,
		SplitLength:        DefaultSplitLength,
		ContinuationMarker: DefaultContinuationMarker,
		OverflowNotice:     DefaultOverflowNotice,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.HardLimit == 0 {
		l.HardLimit = d.HardLimit
	}
	if l.SplitLength == 0 {
		l.SplitLength = d.SplitLength
	}
	if l.ContinuationMarker == "" {
		l.ContinuationMarker = d.ContinuationMarker
	}
	if l.OverflowNotice == "" {
		l.OverflowNotice = d.OverflowNotice
	}
	return l
}

// Validate checks that every segment Chunk produces, marker included, fits
// under HardLimit, and that a truncated message can still carry the notice.
func (l Limits) Validate() error {
	var errs []error
	if l.HardLimit <= 0 {
		errs = append(errs, fmt.Errorf("hard_limit must be positive, got %d", l.HardLimit))
	}
	if l.SplitLength <= 0 {
		errs = append(errs, fmt.Errorf("split_length must be positive, got %d", l.SplitLength))
	}
	if n := l.SplitLength + utf8.RuneCountInString(l.ContinuationMarker); l.HardLimit > 0 && n > l.HardLimit {
		errs = append(errs, fmt.Errorf("split_length plus continuation marker (%d) exceeds hard_limit (%d)", n, l.HardLimit))
	}
	if n := utf8.RuneCountInString(l.OverflowNotice); l.HardLimit > 0 && n >= l.HardLimit {
		errs = append(errs, fmt.Errorf("overflow notice (%d) must be shorter than hard_limit (%d)", n, l.HardLimit))
	}
	return errors.Join(errs...)
}

// truncate strips markup and cuts text so that the result, overflow notice
// included, is at most HardLimit runes.
func (l Limits) truncate(text string) string {
	plain := Strip(text)
	room := l.HardLimit - utf8.RuneCountInString(l.OverflowNotice)
	if room < 0 {
		room = 0
	}
	return plain[:runeOffset(plain, room)] + l.OverflowNotice
}
