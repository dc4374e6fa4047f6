package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"promptday-backend/internal/config"
	"promptday-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client           *redis.Client
	fallbackImageURL string
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client:           client,
		fallbackImageURL: cfg.DailyImageFallback,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) EnsureUser(ctx context.Context, address string) (bool, error) {
	key := fmt.Sprintf(KeyUserInfo, address)

	now := time.Now().Unix()
	user := &models.User{
		Address:   address,
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(user)
	if err != nil {
		return false, err
	}

	created, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to ensure user: %v", err)
	}

	return created, nil
}

func (s *RedisService) GetUser(ctx context.Context, address string) (*models.User, error) {
	key := fmt.Sprintf(KeyUserInfo, address)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %v", err)
	}

	var user models.User
	err = json.Unmarshal([]byte(data), &user)
	return &user, err
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession) error {
	key := fmt.Sprintf(KeyUserSession, session.Address, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, TTLUserSession).Err()
}

func (s *RedisService) GetUserSession(ctx context.Context, address, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, address, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}

	session.LastAccessed = time.Now().Unix()
	updatedData, _ := json.Marshal(session)
	s.client.Set(ctx, key, updatedData, TTLUserSession)

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, address, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, address, sessionID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) GetContestRecord(ctx context.Context, address, dayKey string) (*models.ContestRecord, error) {
	key := fmt.Sprintf(KeyContestRecord, address, dayKey)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contest record: %v", err)
	}

	var record models.ContestRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contest record: %v", err)
	}

	return &record, nil
}

// stakeScript creates the day's record only when none exists. Re-staking an
// already-staked day key is a no-op; the existing budget and prompts are
// kept untouched.
var stakeScript = redis.NewScript(`
	local key = KEYS[1]

	if redis.call("EXISTS", key) == 1 then
		return "EXISTS"
	end

	redis.call("SET", key, ARGV[1])
	return "OK"
`)

// CreateStakedRecord writes the freshly staked record for (address, day key).
// Returns false when the record already existed.
func (s *RedisService) CreateStakedRecord(ctx context.Context, record *models.ContestRecord) (bool, error) {
	key := fmt.Sprintf(KeyContestRecord, record.Address, record.DayKey)

	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal contest record: %v", err)
	}

	res, err := stakeScript.Run(ctx, s.client, []string{key}, string(data)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create contest record: %v", err)
	}

	return res == "OK", nil
}

// appendAttemptScript is the check-and-decrement at the heart of the attempt
// budget: the remaining-count check and the append happen in one script so
// two concurrent requests racing for the last attempt can never both win.
var appendAttemptScript = redis.NewScript(`
	local key = KEYS[1]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("record not found")
	end

	local rec = cjson.decode(data)

	if not rec.staked then
		return redis.error_reply("not staked")
	end

	if rec.promptsRemaining <= 0 then
		return redis.error_reply("no attempts remaining")
	end

	local attempt = cjson.decode(ARGV[1])
	if rec.prompts == nil then
		rec.prompts = {}
	end
	table.insert(rec.prompts, attempt)
	rec.promptsRemaining = rec.promptsRemaining - 1
	rec.updatedAt = tonumber(ARGV[2])

	redis.call("SET", key, cjson.encode(rec))
	return rec.promptsRemaining
`)

// AppendAttempt atomically appends the attempt and decrements the budget,
// conditioned on attempts remaining at script time. Returns the updated
// remaining count.
func (s *RedisService) AppendAttempt(ctx context.Context, address, dayKey string, attempt *models.Attempt) (int, error) {
	key := fmt.Sprintf(KeyContestRecord, address, dayKey)

	data, err := json.Marshal(attempt)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal attempt: %v", err)
	}

	res, err := appendAttemptScript.Run(ctx, s.client, []string{key}, string(data), time.Now().Unix()).Result()
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "no attempts remaining"):
			return 0, ErrNoAttemptsRemaining
		case strings.Contains(err.Error(), "not staked"):
			return 0, ErrNotStaked
		case strings.Contains(err.Error(), "record not found"):
			return 0, ErrNotStaked
		}
		return 0, fmt.Errorf("failed to append attempt: %v", err)
	}

	remaining, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result: %v", res)
	}

	return int(remaining), nil
}

// finalizeScoreScript locks in the best attempt. Selection matches
// ContestRecord.BestAttempt: strict greater-than keeps the earliest of
// tied scores. The leaderboard ZADD rides in the same script so the flag
// flip and the ranking entry cannot diverge.
var finalizeScoreScript = redis.NewScript(`
	local key = KEYS[1]
	local board = KEYS[2]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("record not found")
	end

	local rec = cjson.decode(data)

	if rec.scoreSubmitted then
		return redis.error_reply("already submitted")
	end

	if rec.promptsRemaining > 0 then
		return redis.error_reply("not eligible")
	end

	if rec.prompts == nil or #rec.prompts == 0 then
		return redis.error_reply("not eligible")
	end

	local best = -1
	local bestIdx = 0
	for i, p in ipairs(rec.prompts) do
		local score = tonumber(p.closenessScore) or 0
		if score > best then
			best = score
			bestIdx = i
		end
	end

	rec.scoreSubmitted = true
	rec.submittedScore = best
	if ARGV[1] ~= "" then
		rec.submitTxHash = ARGV[1]
	end
	rec.updatedAt = tonumber(ARGV[2])

	redis.call("SET", key, cjson.encode(rec))
	redis.call("ZADD", board, best, ARGV[3])

	return {best, bestIdx - 1}
`)

// FinalizeScore flips scoreSubmitted and records the winning score in one
// atomic update. Returns the winning score and the zero-based index of the
// winning attempt.
func (s *RedisService) FinalizeScore(ctx context.Context, address, dayKey, txHash string) (int, int, error) {
	key := fmt.Sprintf(KeyContestRecord, address, dayKey)
	board := fmt.Sprintf(KeyLeaderboard, dayKey)

	res, err := finalizeScoreScript.Run(ctx, s.client, []string{key, board}, txHash, time.Now().Unix(), address).Result()
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already submitted"):
			return 0, 0, ErrAlreadySubmitted
		case strings.Contains(err.Error(), "not eligible"):
			return 0, 0, ErrNotEligibleToSubmit
		case strings.Contains(err.Error(), "record not found"):
			return 0, 0, ErrNotEligibleToSubmit
		}
		return 0, 0, fmt.Errorf("failed to finalize score: %v", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected script result: %v", res)
	}

	score, _ := values[0].(int64)
	index, _ := values[1].(int64)
	return int(score), int(index), nil
}

func (s *RedisService) GetLeaderboard(ctx context.Context, dayKey string, limit int64) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	board := fmt.Sprintf(KeyLeaderboard, dayKey)

	results, err := s.client.ZRevRangeWithScores(ctx, board, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %v", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(results))
	for i, z := range results {
		address, _ := z.Member.(string)
		entries = append(entries, models.LeaderboardEntry{
			Rank:    i + 1,
			Address: address,
			Score:   int(z.Score),
		})
	}

	return entries, nil
}

// GetDailyImage returns the target image for the day, falling back to the
// configured default when none was set.
func (s *RedisService) GetDailyImage(ctx context.Context, dayKey string) (string, error) {
	key := fmt.Sprintf(KeyDailyImage, dayKey)

	url, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return s.fallbackImageURL, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get daily image: %v", err)
	}

	return url, nil
}

func (s *RedisService) SetDailyImage(ctx context.Context, dayKey, url string) error {
	key := fmt.Sprintf(KeyDailyImage, dayKey)
	return s.client.Set(ctx, key, url, 0).Err()
}

func (s *RedisService) GetContestIDs(ctx context.Context) (*models.ContestIDs, error) {
	data, err := s.client.Get(ctx, KeyContestIDs).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contest ids: %v", err)
	}

	var ids models.ContestIDs
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contest ids: %v", err)
	}

	return &ids, nil
}

func (s *RedisService) SetContestIDs(ctx context.Context, ids *models.ContestIDs) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal contest ids: %v", err)
	}

	return s.client.Set(ctx, KeyContestIDs, data, 0).Err()
}

// EnsureContestIDs rotates the tier contest ids when the stored set belongs
// to an earlier day key.
func (s *RedisService) EnsureContestIDs(ctx context.Context, dayKey string) (*models.ContestIDs, error) {
	ids, err := s.GetContestIDs(ctx)
	if err != nil {
		return nil, err
	}

	if ids != nil && ids.DayKey == dayKey {
		return ids, nil
	}

	ids = models.NewContestIDs(dayKey)
	if err := s.SetContestIDs(ctx, ids); err != nil {
		return nil, err
	}

	return ids, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, address, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, address, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) DeleteContestRecord(ctx context.Context, address, dayKey string) error {
	key := fmt.Sprintf(KeyContestRecord, address, dayKey)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) DeleteUser(ctx context.Context, address string) error {
	key := fmt.Sprintf(KeyUserInfo, address)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) ClearLeaderboard(ctx context.Context, dayKey string) error {
	board := fmt.Sprintf(KeyLeaderboard, dayKey)
	return s.client.Del(ctx, board).Err()
}

func (s *RedisService) ClearRateLimit(ctx context.Context, address, action string) error {
	key := fmt.Sprintf(KeyRateLimit, address, action)
	return s.client.Del(ctx, key).Err()
}
