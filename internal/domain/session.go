package domain

import "time"

// Session tracks one ongoing conversation, identified by an opaque key
// supplied by the caller (bearer token or X-Session-ID header).
type Session struct {
	ID         string    `json:"id"`
	Messages   []Message `json:"messages,omitempty"`
	Consent    Consent   `json:"consent"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// UserTurns counts user messages in the transcript.
func (s *Session) UserTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// AssistantTurns counts assistant messages in the transcript.
func (s *Session) AssistantTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleAssistant {
			n++
		}
	}
	return n
}
