package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptday-backend/internal/models"
	"promptday-backend/internal/services"
)

// fakeStore mirrors the Lua-script semantics of RedisService in memory: every
// mutation checks and writes under one lock, so the engine sees the same
// atomicity guarantees the real store provides.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*models.ContestRecord
	image   string

	failGet      error
	failAppend   error
	failFinalize error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*models.ContestRecord),
		image:   "https://example.com/target.png",
	}
}

func storeKey(address, dayKey string) string {
	return address + "|" + dayKey
}

func (s *fakeStore) GetContestRecord(ctx context.Context, address, dayKey string) (*models.ContestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failGet != nil {
		return nil, s.failGet
	}

	record, ok := s.records[storeKey(address, dayKey)]
	if !ok {
		return nil, services.ErrRecordNotFound
	}

	copied := *record
	copied.Prompts = append([]models.Attempt(nil), record.Prompts...)
	return &copied, nil
}

func (s *fakeStore) CreateStakedRecord(ctx context.Context, record *models.ContestRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(record.Address, record.DayKey)
	if _, ok := s.records[key]; ok {
		return false, nil
	}

	copied := *record
	copied.Prompts = append([]models.Attempt(nil), record.Prompts...)
	s.records[key] = &copied
	return true, nil
}

func (s *fakeStore) AppendAttempt(ctx context.Context, address, dayKey string, attempt *models.Attempt) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend != nil {
		return 0, s.failAppend
	}

	record, ok := s.records[storeKey(address, dayKey)]
	if !ok || !record.Staked {
		return 0, services.ErrNotStaked
	}
	if record.PromptsRemaining <= 0 {
		return 0, services.ErrNoAttemptsRemaining
	}

	record.Prompts = append(record.Prompts, *attempt)
	record.PromptsRemaining--
	return record.PromptsRemaining, nil
}

func (s *fakeStore) FinalizeScore(ctx context.Context, address, dayKey, txHash string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failFinalize != nil {
		return 0, 0, s.failFinalize
	}

	record, ok := s.records[storeKey(address, dayKey)]
	if !ok {
		return 0, 0, services.ErrNotEligibleToSubmit
	}
	if record.ScoreSubmitted {
		return 0, 0, services.ErrAlreadySubmitted
	}
	if record.PromptsRemaining > 0 || len(record.Prompts) == 0 {
		return 0, 0, services.ErrNotEligibleToSubmit
	}

	best, idx := record.BestAttempt()
	record.ScoreSubmitted = true
	record.SubmittedScore = best.ClosenessScore
	record.SubmitTxHash = txHash
	return best.ClosenessScore, idx, nil
}

func (s *fakeStore) GetDailyImage(ctx context.Context, dayKey string) (string, error) {
	return s.image, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (g *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("https://example.com/generated-%d.png", g.calls), nil
}

type fakeScorer struct {
	mu     sync.Mutex
	scores []int
	err    error
	calls  int
}

func (s *fakeScorer) ScoreCloseness(ctx context.Context, targetURL, generatedURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.scores) == 0 {
		return 50, nil
	}
	return s.scores[(s.calls-1)%len(s.scores)], nil
}

const testAddress = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore, gen *fakeGenerator, scorer *fakeScorer) *services.ContestEngine {
	return services.NewContestEngine(store, gen, scorer, 3, time.Second)
}

func stakeToday(t *testing.T, engine *services.ContestEngine) {
	t.Helper()
	_, err := engine.RecordStake(context.Background(), testAddress, models.DayKey(testNow), "0xstake", testNow)
	require.NoError(t, err)
}

func TestStatusResolution(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{})
	ctx := context.Background()

	// No record yet: defaults are synthesized, nothing persisted.
	status, err := engine.Status(ctx, testAddress, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StateNeedsStake, status.State)
	assert.Equal(t, 3, status.PromptsRemaining)
	assert.True(t, status.NeedsToStake)
	assert.Empty(t, store.records)

	stakeToday(t, engine)

	status, err = engine.Status(ctx, testAddress, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StateCanPlay, status.State)
	assert.True(t, status.CanPlay)

	for i := 0; i < 3; i++ {
		_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
		require.NoError(t, err)
	}

	status, err = engine.Status(ctx, testAddress, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StateNeedsScoreSubmit, status.State)

	_, _, err = engine.Finalize(ctx, testAddress, "", testNow)
	require.NoError(t, err)

	status, err = engine.Status(ctx, testAddress, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StateDone, status.State)
}

func TestSubmitPromptBudgetInvariant(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{scores: []int{42}})
	ctx := context.Background()

	stakeToday(t, engine)

	for i := 0; i < 3; i++ {
		attempt, remaining, err := engine.SubmitPrompt(ctx, testAddress, "a fox in snow", testNow)
		require.NoError(t, err)
		assert.Equal(t, 2-i, remaining)
		assert.Equal(t, 42, attempt.ClosenessScore)

		record, err := store.GetContestRecord(ctx, testAddress, models.DayKey(testNow))
		require.NoError(t, err)
		assert.Equal(t, 3, len(record.Prompts)+record.PromptsRemaining,
			"budget invariant must hold after every attempt")
	}

	_, _, err := engine.SubmitPrompt(ctx, testAddress, "one too many", testNow)
	assert.ErrorIs(t, err, services.ErrNoAttemptsRemaining)
}

func TestSubmitPromptRequiresStake(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{}
	engine := newTestEngine(store, gen, &fakeScorer{})

	_, _, err := engine.SubmitPrompt(context.Background(), testAddress, "a fox", testNow)
	assert.ErrorIs(t, err, services.ErrNotStaked)
	assert.Zero(t, gen.calls, "generator must not be called before preconditions pass")
}

func TestSubmitPromptGenerationFailure(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{err: fmt.Errorf("dall-e unavailable")}
	engine := newTestEngine(store, gen, &fakeScorer{})
	ctx := context.Background()

	stakeToday(t, engine)

	_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
	assert.ErrorIs(t, err, services.ErrGenerationFailed)

	// No budget consumed, no attempt recorded.
	record, err := store.GetContestRecord(ctx, testAddress, models.DayKey(testNow))
	require.NoError(t, err)
	assert.Equal(t, 3, record.PromptsRemaining)
	assert.Empty(t, record.Prompts)
}

func TestSubmitPromptScorerFailure(t *testing.T) {
	store := newFakeStore()
	scorer := &fakeScorer{err: fmt.Errorf("vision model unavailable")}
	engine := newTestEngine(store, &fakeGenerator{}, scorer)
	ctx := context.Background()

	stakeToday(t, engine)

	attempt, remaining, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
	require.NoError(t, err, "scorer outage must not fail the attempt")
	assert.True(t, attempt.ScoreIndeterminate)
	assert.Equal(t, 0, attempt.ClosenessScore)
	assert.Equal(t, 2, remaining, "budget is still consumed")
}

func TestConcurrentLastAttempt(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{})
	ctx := context.Background()

	stakeToday(t, engine)
	for i := 0; i < 2; i++ {
		_, _, err := engine.SubmitPrompt(ctx, testAddress, "warmup", testNow)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := engine.SubmitPrompt(ctx, testAddress, "last one", testNow)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, services.ErrNoAttemptsRemaining)
			rejections++
		}
	}

	assert.Equal(t, 1, successes, "exactly one concurrent attempt may win the last slot")
	assert.Equal(t, 1, rejections)

	record, err := store.GetContestRecord(ctx, testAddress, models.DayKey(testNow))
	require.NoError(t, err)
	assert.Equal(t, 0, record.PromptsRemaining, "counter never goes negative")
	assert.Len(t, record.Prompts, 3)
}

func TestFinalizeSelectsBest(t *testing.T) {
	store := newFakeStore()
	scorer := &fakeScorer{scores: []int{40, 95, 95}}
	engine := newTestEngine(store, &fakeGenerator{}, scorer)
	ctx := context.Background()

	stakeToday(t, engine)
	for i := 0; i < 3; i++ {
		_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
		require.NoError(t, err)
	}

	score, index, err := engine.Finalize(ctx, testAddress, "0xsubmit", testNow)
	require.NoError(t, err)
	assert.Equal(t, 95, score)
	assert.Equal(t, 1, index, "earliest of tied max scores wins")
}

func TestFinalizeTwiceRejected(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{scores: []int{70}})
	ctx := context.Background()

	stakeToday(t, engine)
	for i := 0; i < 3; i++ {
		_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
		require.NoError(t, err)
	}

	_, _, err := engine.Finalize(ctx, testAddress, "", testNow)
	require.NoError(t, err)

	before, err := store.GetContestRecord(ctx, testAddress, models.DayKey(testNow))
	require.NoError(t, err)

	_, _, err = engine.Finalize(ctx, testAddress, "", testNow)
	assert.ErrorIs(t, err, services.ErrAlreadySubmitted)

	after, err := store.GetContestRecord(ctx, testAddress, models.DayKey(testNow))
	require.NoError(t, err)
	assert.Equal(t, before.Prompts, after.Prompts, "rejected call must not mutate prompts")
	assert.Equal(t, before.SubmittedScore, after.SubmittedScore)
}

func TestFinalizeNotEligible(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{})
	ctx := context.Background()

	stakeToday(t, engine)
	_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
	require.NoError(t, err)

	_, _, err = engine.Finalize(ctx, testAddress, "", testNow)
	assert.ErrorIs(t, err, services.ErrNotEligibleToSubmit,
		"finalize with attempts remaining must be rejected")
}

func TestStakeIdempotentWithinDay(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{})
	ctx := context.Background()

	stakeToday(t, engine)
	_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
	require.NoError(t, err)

	// Second stake for the same day is a no-op; progress is kept.
	status, err := engine.RecordStake(ctx, testAddress, models.DayKey(testNow), "0xagain", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, status.PromptsRemaining)

	record, err := store.GetContestRecord(ctx, testAddress, models.DayKey(testNow))
	require.NoError(t, err)
	assert.Equal(t, "0xstake", record.StakeTxHash)
	assert.Len(t, record.Prompts, 1)
}

func TestStakeRejectsStaleContestID(t *testing.T) {
	engine := newTestEngine(newFakeStore(), &fakeGenerator{}, &fakeScorer{})

	yesterday := models.DayKey(testNow.AddDate(0, 0, -1))
	_, err := engine.RecordStake(context.Background(), testAddress, yesterday, "", testNow)
	assert.Error(t, err, "staking into yesterday's contest must be rejected")
}

func TestDayRolloverResetsEligibility(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{})
	ctx := context.Background()

	stakeToday(t, engine)
	for i := 0; i < 3; i++ {
		_, _, err := engine.SubmitPrompt(ctx, testAddress, "a fox", testNow)
		require.NoError(t, err)
	}

	tomorrow := testNow.AddDate(0, 0, 1)
	status, err := engine.Status(ctx, testAddress, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, models.StateNeedsStake, status.State)
	assert.Equal(t, 3, status.PromptsRemaining, "fresh budget after UTC midnight")
}

func TestStatusStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.failGet = fmt.Errorf("connection refused")
	engine := newTestEngine(store, &fakeGenerator{}, &fakeScorer{})

	_, err := engine.Status(context.Background(), testAddress, testNow)
	assert.ErrorIs(t, err, services.ErrStoreUnavailable)
}
