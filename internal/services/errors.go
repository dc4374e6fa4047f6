package services

import "errors"

// Error taxonomy for the contest lifecycle. Handlers map these to HTTP
// statuses and stable string codes; anything not in this list is an
// internal error.
var (
	ErrRecordNotFound      = errors.New("contest record not found")
	ErrNotStaked           = errors.New("stake required before playing")
	ErrNoAttemptsRemaining = errors.New("no attempts remaining for today")
	ErrGenerationFailed    = errors.New("image generation failed")
	ErrScoringUnavailable  = errors.New("similarity scoring unavailable")
	ErrNotEligibleToSubmit = errors.New("not eligible to submit score")
	ErrAlreadySubmitted    = errors.New("score already submitted for today")
	ErrStoreUnavailable    = errors.New("contest store unavailable")
)
