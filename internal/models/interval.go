package models

import (
	"errors"
	"time"
)

// Interval is one reconstructed tool window usage span.
//
// CloseTS and DurationMS are nil exactly when the interval is censored, i.e. the
// window was still open at the end of the observation window.
type Interval struct {
	UserID        string   `json:"user_id"`
	OpenTS        int64    `json:"open_ts"`
	CloseTS       *int64   `json:"close_ts"`
	OpenType      OpenType `json:"open_type"`
	Censored      bool     `json:"censored"`
	ImplicitClose bool     `json:"implicit_close"` // closed by a later open rather than a close event
	DurationMS    *int64   `json:"duration_ms"`
}

// NewClosedInterval creates a completed interval spanning [openTS, closeTS]
func NewClosedInterval(userID string, openTS, closeTS int64, ot OpenType, implicit bool) Interval {
	closeAt := closeTS
	duration := closeTS - openTS
	return Interval{
		UserID:        userID,
		OpenTS:        openTS,
		CloseTS:       &closeAt,
		OpenType:      ot,
		ImplicitClose: implicit,
		DurationMS:    &duration,
	}
}

// NewCensoredInterval creates an interval that was never closed
func NewCensoredInterval(userID string, openTS int64, ot OpenType) Interval {
	return Interval{
		UserID:   userID,
		OpenTS:   openTS,
		OpenType: ot,
		Censored: true,
	}
}

// Duration returns the interval length, or zero for censored intervals
func (iv Interval) Duration() time.Duration {
	if iv.DurationMS == nil {
		return 0
	}
	return time.Duration(*iv.DurationMS) * time.Millisecond
}

// Completed reports whether the interval has a known close time
func (iv Interval) Completed() bool {
	return !iv.Censored && iv.DurationMS != nil
}

// Validate checks the interval invariants
func (iv Interval) Validate() error {
	if iv.UserID == "" {
		return errors.New("interval user id is required")
	}
	if !iv.OpenType.Valid() {
		return errors.New("interval open type must be manual or auto")
	}
	if iv.Censored {
		if iv.CloseTS != nil || iv.DurationMS != nil {
			return errors.New("censored interval cannot have a close time or duration")
		}
		if iv.ImplicitClose {
			return errors.New("censored interval cannot be implicitly closed")
		}
		return nil
	}
	if iv.CloseTS == nil || iv.DurationMS == nil {
		return errors.New("completed interval requires close time and duration")
	}
	if *iv.DurationMS != *iv.CloseTS-iv.OpenTS {
		return errors.New("interval duration does not match close minus open")
	}
	if *iv.DurationMS <= 0 {
		return errors.New("interval duration must be positive")
	}
	return nil
}
