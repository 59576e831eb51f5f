package types

import "time"

type Status string

const (
	StatusProcessing   Status = "processing"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces the one-directional job lifecycle:
// processing -> transcribing -> analyzing -> completed, with failed
// reachable from any non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] == statusRank[s]+1
}

var statusRank = map[Status]int{
	StatusProcessing:   0,
	StatusTranscribing: 1,
	StatusAnalyzing:    2,
	StatusCompleted:    3,
}

type Meeting struct {
	ID           int64        `json:"id"`
	Filename     string       `json:"filename"`
	Status       Status       `json:"status"`
	Transcript   string       `json:"transcript,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	ActionItems  []ActionItem `json:"action_items"`
	Decisions    []string     `json:"decisions"`
	Keywords     []Keyword    `json:"keywords"`
	Participants []string     `json:"participants"`
	Sentiment    Sentiment    `json:"sentiment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// MeetingStatus is the polling view; it never carries error text.
type MeetingStatus struct {
	ID       int64  `json:"id"`
	Status   Status `json:"status"`
	Filename string `json:"filename"`
}

func (m Meeting) StatusView() MeetingStatus {
	return MeetingStatus{ID: m.ID, Status: m.Status, Filename: m.Filename}
}

// ApplyInsights copies extracted insights onto the meeting record.
func (m *Meeting) ApplyInsights(in InsightResult) {
	m.Summary = in.Summary
	m.ActionItems = in.ActionItems
	m.Decisions = in.Decisions
	m.Keywords = in.Keywords
	m.Participants = in.Participants
	m.Sentiment = in.Sentiment
}

// Job is the queue message handed from the upload handler to a pipeline worker.
type Job struct {
	MeetingID  int64     `json:"meeting_id"`
	FilePath   string    `json:"file_path"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
