package oracle

import (
	"context"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
)

// MockClient is a test double for Client. Decisions are served from the
// Script queue in order; DecideFunc overrides everything when set.
type MockClient struct {
	ModelName  string
	Script     []*Decision
	DecideFunc func(ctx context.Context, transcript []domain.Message, tools []ToolSchema) (*Decision, error)

	// Transcripts records the transcript passed to each Decide call.
	Transcripts [][]domain.Message
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

func (m *MockClient) Decide(ctx context.Context, transcript []domain.Message, tools []ToolSchema) (*Decision, error) {
	m.Transcripts = append(m.Transcripts, append([]domain.Message(nil), transcript...))
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, transcript, tools)
	}
	if len(m.Script) == 0 {
		return &Decision{Text: "mock answer"}, nil
	}
	d := m.Script[0]
	m.Script = m.Script[1:]
	return d, nil
}
