package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DisplayInfo describes the last display update in a transport-friendly format.
type DisplayInfo struct {
	SongTitle   string  `json:"songTitle,omitempty"`
	LineIndex   int     `json:"lineIndex"`
	LyricText   string  `json:"lyricText,omitempty"`
	Description string  `json:"description,omitempty"`
	ImagePath   string  `json:"imagePath,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Fallback    bool    `json:"fallback,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

// PipelineStatus summarizes orchestrator execution state.
type PipelineStatus struct {
	Running       bool        `json:"running"`
	State         string      `json:"state"`
	SongTitle     string      `json:"songTitle,omitempty"`
	SessionID     string      `json:"sessionId,omitempty"`
	LineIndex     int         `json:"lineIndex"`
	LineText      string      `json:"lineText,omitempty"`
	CacheTotal    int         `json:"cacheTotal"`
	CacheResolved int         `json:"cacheResolved"`
	Display       DisplayInfo `json:"display"`
	LastError     string      `json:"lastError,omitempty"`
}

// SongView is the "what's playing now" payload for the song command.
type SongView struct {
	State     string      `json:"state"`
	SongTitle string      `json:"songTitle,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	LineIndex int         `json:"lineIndex"`
	LineText  string      `json:"lineText,omitempty"`
	Display   DisplayInfo `json:"display"`
}

// CheckResult mirrors readiness reporting for startup checks.
type CheckResult struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// IndexSummary describes the opened image index.
type IndexSummary struct {
	Backend    string `json:"backend"`
	Location   string `json:"location,omitempty"`
	Count      int    `json:"count"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model,omitempty"`
}
