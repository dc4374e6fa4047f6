package models

type User struct {
	Address   string `json:"address"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

type UserSession struct {
	Address      string `json:"address"`
	SessionID    string `json:"sessionId"`
	CreatedAt    int64  `json:"createdAt"`
	LastAccessed int64  `json:"lastAccessed"`
}
