package models

type ContestState string

const (
	StateNeedsStake       ContestState = "needs_stake"
	StateCanPlay          ContestState = "can_play"
	StateNeedsScoreSubmit ContestState = "needs_score_submit"
	StateDone             ContestState = "done"
)

type ContestTier string

const (
	TierBeginner ContestTier = "beginner"
	TierAdvanced ContestTier = "advanced"
	TierPro      ContestTier = "pro"
)

// Attempt is one prompt submission with its generated image and closeness
// score. Immutable once appended to a ContestRecord.
type Attempt struct {
	PromptText     string `json:"promptText"`
	ImageURL       string `json:"imageUrl"`
	ClosenessScore int    `json:"closenessScore"`

	// ScoreIndeterminate marks attempts whose scorer call failed. The
	// recorded score is 0 and the client should show it as unavailable.
	ScoreIndeterminate bool `json:"scoreIndeterminate,omitempty"`

	CreatedAt int64 `json:"createdAt"`
}

// ContestRecord is the per-user, per-day contest document. Field names are
// part of the stored JSON shape and are shared with the Lua scripts in the
// services package.
type ContestRecord struct {
	Address          string    `json:"address"`
	DayKey           string    `json:"dayKey"`
	Staked           bool      `json:"staked"`
	StakeTxHash      string    `json:"stakeTxHash,omitempty"`
	PromptsRemaining int       `json:"promptsRemaining"`
	Prompts          []Attempt `json:"prompts"`
	ScoreSubmitted   bool      `json:"scoreSubmitted"`
	SubmittedScore   int       `json:"submittedScore"`
	SubmitTxHash     string    `json:"submitTxHash,omitempty"`
	CreatedAt        int64     `json:"createdAt"`
	UpdatedAt        int64     `json:"updatedAt"`
}

// ContestStatus is the Status endpoint payload: the derived state plus the
// raw values the frontend renders.
type ContestStatus struct {
	State            ContestState `json:"state"`
	CanPlay          bool         `json:"canPlay"`
	PromptsRemaining int          `json:"promptsRemaining"`
	HasStaked        bool         `json:"hasStaked"`
	NeedsToStake     bool         `json:"needsToStake"`
	ScoreSubmitted   bool         `json:"scoreSubmitted"`
	DayKey           string       `json:"dayKey"`
}

type ContestIDs struct {
	Beginner  string `json:"beginner"`
	Advanced  string `json:"advanced"`
	Pro       string `json:"pro"`
	DayKey    string `json:"dayKey"`
	UpdatedAt int64  `json:"updatedAt"`
}

type LeaderboardEntry struct {
	Rank    int    `json:"rank"`
	Address string `json:"address"`
	Score   int    `json:"score"`
}

type AuthRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type StakeRequest struct {
	ContestID string `json:"contestId" binding:"required"`
	TxHash    string `json:"txHash"`
}

type AttemptRequest struct {
	PromptText string `json:"promptText" binding:"required"`
}

type SubmitScoreRequest struct {
	TxHash string `json:"txHash"`
}
