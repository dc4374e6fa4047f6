package services

import "time"

const (
	KeyUserInfo      = "user:%s:info"
	KeyUserSession   = "user:%s:session:%s"
	KeyContestRecord = "contest:%s:%s" // address, day key
	KeyLeaderboard   = "leaderboard:%s"
	KeyDailyImage    = "daily_image:%s"
	KeyContestIDs    = "contest_ids"
	KeyRateLimit     = "ratelimit:%s:%s"

	TTLUserSession = 24 * time.Hour

	// Contest records, leaderboards and daily images are never expired;
	// history feeds the leaderboard and audits.

	DefaultRateLimitAttempts = 10 // max 10 attempts per minute
)
