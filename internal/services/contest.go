package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"promptday-backend/internal/models"
)

// ContestStore is the slice of the record store the engine needs. All
// mutations are atomic per (address, day key) record; see the Lua scripts in
// RedisService.
type ContestStore interface {
	GetContestRecord(ctx context.Context, address, dayKey string) (*models.ContestRecord, error)
	CreateStakedRecord(ctx context.Context, record *models.ContestRecord) (bool, error)
	AppendAttempt(ctx context.Context, address, dayKey string, attempt *models.Attempt) (int, error)
	FinalizeScore(ctx context.Context, address, dayKey, txHash string) (int, int, error)
	GetDailyImage(ctx context.Context, dayKey string) (string, error)
}

// ContestEngine implements the daily contest lifecycle: stake, attempt
// issuing against the per-day budget, status resolution and score
// finalization.
type ContestEngine struct {
	store       ContestStore
	generator   ImageGenerator
	scorer      SimilarityScorer
	broadcaster Broadcaster
	budget      int
	callTimeout time.Duration
}

func NewContestEngine(store ContestStore, generator ImageGenerator, scorer SimilarityScorer, budget int, callTimeout time.Duration) *ContestEngine {
	return &ContestEngine{
		store:       store,
		generator:   generator,
		scorer:      scorer,
		broadcaster: NopBroadcaster{},
		budget:      budget,
		callTimeout: callTimeout,
	}
}

// SetBroadcaster wires the websocket hub after construction; main builds the
// hub and the engine in either order.
func (e *ContestEngine) SetBroadcaster(b Broadcaster) {
	if b != nil {
		e.broadcaster = b
	}
}

// Status resolves the user's required action for the day. A missing record
// yields synthesized defaults without persisting anything.
func (e *ContestEngine) Status(ctx context.Context, address string, now time.Time) (*models.ContestStatus, error) {
	record, err := e.recordOrDefault(ctx, address, now)
	if err != nil {
		return nil, err
	}
	return record.Status(), nil
}

// RecordStake marks the day as staked, creating the record with a full
// budget. The client-supplied contest id must be today's day key; staking
// into yesterday's contest after midnight is rejected. An already-staked day
// is a no-op success.
func (e *ContestEngine) RecordStake(ctx context.Context, address, contestID, txHash string, now time.Time) (*models.ContestStatus, error) {
	dayKey := models.DayKey(now)
	if contestID != dayKey {
		return nil, fmt.Errorf("contest id %q does not match today's contest %q", contestID, dayKey)
	}

	record := models.NewContestRecord(address, dayKey, e.budget, txHash, now)

	created, err := e.store.CreateStakedRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !created {
		existing, err := e.store.GetContestRecord(ctx, address, dayKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return existing.Status(), nil
	}

	return record.Status(), nil
}

// SubmitPrompt issues one attempt: generate, score, then append-and-decrement
// in a single conditional store update. Budget is only consumed by that final
// update; generation failures cost nothing.
func (e *ContestEngine) SubmitPrompt(ctx context.Context, address, promptText string, now time.Time) (*models.Attempt, int, error) {
	dayKey := models.DayKey(now)

	// Fast-fail before spending money on external calls. The authoritative
	// check happens again inside the store update.
	record, err := e.store.GetContestRecord(ctx, address, dayKey)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, 0, ErrNotStaked
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !record.Staked {
		return nil, 0, ErrNotStaked
	}
	if record.PromptsRemaining <= 0 {
		return nil, 0, ErrNoAttemptsRemaining
	}

	genCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	imageURL, err := e.generator.GenerateImage(genCtx, promptText)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	attempt := &models.Attempt{
		PromptText: promptText,
		ImageURL:   imageURL,
		CreatedAt:  now.Unix(),
	}

	targetURL, err := e.store.GetDailyImage(ctx, dayKey)
	if err != nil {
		targetURL = ""
	}

	if targetURL == "" {
		attempt.ScoreIndeterminate = true
	} else {
		scoreCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()

		score, err := e.scorer.ScoreCloseness(scoreCtx, targetURL, imageURL)
		if err != nil {
			// Scorer outage still surfaces the attempt to the user; the
			// score is recorded as 0 and explicitly marked indeterminate
			// rather than fabricated.
			log.Printf("%v for %s (%s): %v", ErrScoringUnavailable, address, dayKey, err)
			attempt.ScoreIndeterminate = true
		} else {
			attempt.ClosenessScore = score
		}
	}

	remaining, err := e.store.AppendAttempt(ctx, address, dayKey, attempt)
	if err != nil {
		// The image was generated but never charged against the budget.
		// Log it for cost accounting.
		log.Printf("orphaned generation for %s (%s): %s: %v", address, dayKey, imageURL, err)

		if errors.Is(err, ErrNoAttemptsRemaining) || errors.Is(err, ErrNotStaked) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return attempt, remaining, nil
}

// Finalize locks in the best attempt as the day's official submission.
// Calling it again after success fails with ErrAlreadySubmitted; the stored
// prompts and winning score are untouched by the rejected call.
func (e *ContestEngine) Finalize(ctx context.Context, address, txHash string, now time.Time) (int, int, error) {
	dayKey := models.DayKey(now)

	score, index, err := e.store.FinalizeScore(ctx, address, dayKey, txHash)
	if err != nil {
		return 0, 0, err
	}

	e.broadcaster.BroadcastScoreSubmitted(address, dayKey, score)
	return score, index, nil
}

// ContestData returns the day's attempts and remaining budget, the payload
// behind the contest-data endpoint.
func (e *ContestEngine) ContestData(ctx context.Context, address string, now time.Time) (*models.ContestRecord, error) {
	record, err := e.store.GetContestRecord(ctx, address, models.DayKey(now))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

func (e *ContestEngine) recordOrDefault(ctx context.Context, address string, now time.Time) (*models.ContestRecord, error) {
	dayKey := models.DayKey(now)

	record, err := e.store.GetContestRecord(ctx, address, dayKey)
	if err == nil {
		return record, nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		return &models.ContestRecord{
			Address:          address,
			DayKey:           dayKey,
			Staked:           false,
			PromptsRemaining: e.budget,
			Prompts:          []models.Attempt{},
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
