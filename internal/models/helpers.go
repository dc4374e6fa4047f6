package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress checks the wallet address shape. Addresses are stored
// case-sensitive exactly as the wallet signature flow supplied them.
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("invalid wallet address: %s", address)
	}
	return nil
}

func (r *AttemptRequest) Validate() error {
	if strings.TrimSpace(r.PromptText) == "" {
		return fmt.Errorf("prompt text must not be empty")
	}
	if len(r.PromptText) > 1000 {
		return fmt.Errorf("prompt text too long (max 1000 characters)")
	}
	return nil
}

func ValidateTier(tier string) (ContestTier, error) {
	switch ContestTier(tier) {
	case TierBeginner, TierAdvanced, TierPro:
		return ContestTier(tier), nil
	default:
		return "", fmt.Errorf("invalid contest tier: %s (must be one of: beginner, advanced, pro)", tier)
	}
}

// NewContestIDs rotates a fresh set of contest identifiers for the given day.
func NewContestIDs(dayKey string) *ContestIDs {
	return &ContestIDs{
		Beginner:  uuid.NewString(),
		Advanced:  uuid.NewString(),
		Pro:       uuid.NewString(),
		DayKey:    dayKey,
		UpdatedAt: time.Now().Unix(),
	}
}

// NewContestRecord creates the day's record as written on first stake.
func NewContestRecord(address, dayKey string, budget int, stakeTxHash string, now time.Time) *ContestRecord {
	return &ContestRecord{
		Address:          address,
		DayKey:           dayKey,
		Staked:           true,
		StakeTxHash:      stakeTxHash,
		PromptsRemaining: budget,
		Prompts:          []Attempt{},
		ScoreSubmitted:   false,
		CreatedAt:        now.Unix(),
		UpdatedAt:        now.Unix(),
	}
}

// BestAttempt returns the highest-scoring attempt and its index, first
// occurrence winning ties. Index is -1 when there are no attempts. This is
// the reference selection rule; the finalize Lua script applies the same one.
func (r *ContestRecord) BestAttempt() (Attempt, int) {
	best := -1
	bestIdx := -1
	for i, p := range r.Prompts {
		if p.ClosenessScore > best {
			best = p.ClosenessScore
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return Attempt{}, -1
	}
	return r.Prompts[bestIdx], bestIdx
}

// State derives the user's required action from the record. Decision order
// matters: stake first, then budget, then submission.
func (r *ContestRecord) State() ContestState {
	switch {
	case !r.Staked:
		return StateNeedsStake
	case r.PromptsRemaining > 0:
		return StateCanPlay
	case !r.ScoreSubmitted:
		return StateNeedsScoreSubmit
	default:
		return StateDone
	}
}

// Status expands the record into the frontend-facing status payload.
func (r *ContestRecord) Status() *ContestStatus {
	state := r.State()
	return &ContestStatus{
		State:            state,
		CanPlay:          state == StateCanPlay,
		PromptsRemaining: r.PromptsRemaining,
		HasStaked:        r.Staked,
		NeedsToStake:     state == StateNeedsStake,
		ScoreSubmitted:   r.ScoreSubmitted,
		DayKey:           r.DayKey,
	}
}
