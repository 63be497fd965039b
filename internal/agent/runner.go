// Package agent contains the orchestration loop: the stateful controller
// that turns one user utterance into a bounded sequence of reasoning and
// tool-call rounds, guards payment tools behind the consent gate, and
// produces the answer either whole or as a timed chunk stream.
package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
	"github.com/deepakmehta1/travel-mcp-prod/internal/mcpgw"
	"github.com/deepakmehta1/travel-mcp-prod/internal/oracle"
)

// ToolGateway is the slice of the tool gateway the loop needs.
type ToolGateway interface {
	Schemas() []oracle.ToolSchema
	Lookup(name string) (mcpgw.RemoteTool, bool)
	Invoke(ctx context.Context, call domain.ToolCall) domain.ToolResult
}

// Options configures a Runner.
type Options struct {
	Store   SessionStore
	Gateway ToolGateway
	Oracle  oracle.Client
	Logger  *logging.Logger

	// MaxIterations bounds reasoning rounds per utterance, default 20.
	MaxIterations int
	// ChunkSize is the rune count per streamed chunk, default 1.
	ChunkSize int
	// ChunkDelay is the pause between streamed chunks, default 20ms.
	ChunkDelay time.Duration
}

// Runner drives the reasoning loop for one process.
type Runner struct {
	store   SessionStore
	gw      ToolGateway
	oracle  oracle.Client
	log     *logging.Logger
	maxIter int
	chunk   int
	delay   time.Duration
}

// New builds a Runner.
func New(opts Options) *Runner {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1
	}
	if opts.ChunkDelay <= 0 {
		opts.ChunkDelay = 20 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{
		store:   opts.Store,
		gw:      opts.Gateway,
		oracle:  opts.Oracle,
		log:     log.Sub("agent"),
		maxIter: opts.MaxIterations,
		chunk:   opts.ChunkSize,
		delay:   opts.ChunkDelay,
	}
}

// Model reports the reasoning model identifier, for the health surface.
func (r *Runner) Model() string { return r.oracle.Model() }

// Process runs the full loop for one utterance and returns the complete
// answer. Requests for the same session are serialized; an error return
// means the request failed outright, while every recoverable condition
// comes back as answer text.
func (r *Runner) Process(ctx context.Context, sessionID, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", domain.ErrEmptyQuery
	}

	release := r.store.Acquire(sessionID)
	defer release()

	sess, err := r.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return "", err
	}

	consented := sess.Consent.Granted()
	if granted, scope := DetectConsent(query); granted && !consented {
		if err := r.store.GrantConsent(ctx, sessionID, scope); err != nil {
			return "", err
		}
		consented = true
		r.log.Info().Str("session", sessionID).Str("scope", scope).Msg("payment consent granted")
	}

	transcript := sess.Messages
	userMsg := domain.Message{Role: domain.RoleUser, Content: query, Timestamp: time.Now()}
	if err := r.store.Append(ctx, sessionID, userMsg); err != nil {
		return "", err
	}
	transcript = append(transcript, userMsg)

	r.log.Info().Str("session", sessionID).Int("turn", len(transcript)).Msg("processing query")

	for iter := 1; iter <= r.maxIter; iter++ {
		// cancellation is honored at round boundaries only; started tool
		// calls always run to completion and their results are recorded
		if err := ctx.Err(); err != nil {
			r.log.Warn().Str("session", sessionID).Int("iteration", iter).Msg("caller gone, stopping loop")
			return "", err
		}

		r.log.Debug().Str("session", sessionID).Int("iteration", iter).Msg("reasoning round")

		decision, err := r.oracle.Decide(ctx, transcript, r.gw.Schemas())
		if errors.Is(err, domain.ErrOracleUnavailable) {
			r.log.Error().Str("session", sessionID).Err(err).Msg("reasoning service down")
			return r.finish(ctx, sessionID, OracleDownAnswer)
		}
		if err != nil {
			return "", err
		}

		if decision.Final() {
			text := decision.Text
			if text == "" {
				text = EmptyAnswer
			}
			r.log.Info().Str("session", sessionID).Int("iterations", iter).Msg("reasoning complete")
			return r.finish(ctx, sessionID, text)
		}

		// once the model has committed to tool calls the whole round runs
		// detached: a disconnect must never abandon a started call or lose
		// the record of what it did
		toolCtx := context.WithoutCancel(ctx)

		asstMsg := domain.Message{
			Role:      domain.RoleAssistant,
			Content:   decision.Text,
			ToolCalls: decision.Calls,
			Timestamp: time.Now(),
		}
		if err := r.store.Append(toolCtx, sessionID, asstMsg); err != nil {
			return "", err
		}
		transcript = append(transcript, asstMsg)

		for _, call := range decision.Calls {
			result := r.dispatch(toolCtx, call, consented)
			toolMsg := domain.Message{
				Role:      domain.RoleTool,
				CallID:    call.ID,
				ToolName:  call.Name,
				Content:   result.Content(),
				Timestamp: time.Now(),
			}
			if err := r.store.Append(toolCtx, sessionID, toolMsg); err != nil {
				return "", err
			}
			transcript = append(transcript, toolMsg)
		}
	}

	r.log.Warn().Str("session", sessionID).Int("max", r.maxIter).Msg("round budget exhausted")
	return r.finish(ctx, sessionID, FallbackAnswer)
}

// dispatch routes one tool call, enforcing the consent gate for
// payment-class tools.
func (r *Runner) dispatch(ctx context.Context, call domain.ToolCall, consented bool) domain.ToolResult {
	tool, known := r.gw.Lookup(call.Name)
	if known && tool.Class == mcpgw.ClassPayment && !consented {
		r.log.Info().Str("tool", call.Name).Msg("payment blocked, no consent")
		return domain.ToolResult{CallID: call.ID, ToolName: call.Name, Error: ConsentDeniedError}
	}
	return r.gw.Invoke(ctx, call)
}

// finish records the terminal assistant message and returns its text.
func (r *Runner) finish(ctx context.Context, sessionID, text string) (string, error) {
	msg := domain.Message{Role: domain.RoleAssistant, Content: text, Timestamp: time.Now()}
	if err := r.store.Append(ctx, sessionID, msg); err != nil {
		return "", err
	}
	return text, nil
}

// Stream runs Process and delivers the answer as timed rune chunks. The
// channel closes after the final chunk. A failed request degrades to a
// single apology chunk rather than an error mid-stream.
func (r *Runner) Stream(ctx context.Context, sessionID, query string) (<-chan string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		answer, err := r.Process(ctx, sessionID, query)
		if err != nil {
			r.log.Error().Str("session", sessionID).Err(err).Msg("streaming failed")
			answer = StreamFailedAnswer
		}
		for _, piece := range chunkRunes(answer, r.chunk) {
			select {
			case ch <- piece:
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Reset returns the session to its seed transcript and drops consent.
func (r *Runner) Reset(ctx context.Context, sessionID string) error {
	release := r.store.Acquire(sessionID)
	defer release()
	return r.store.Reset(ctx, sessionID)
}

// ConversationInfo summarizes a session transcript.
type ConversationInfo struct {
	UserTurns      int  `json:"user_turns"`
	AssistantTurns int  `json:"assistant_turns"`
	TotalMessages  int  `json:"total_messages"`
	Active         bool `json:"conversation_active"`
}

// Info reports transcript counters for the session.
func (r *Runner) Info(ctx context.Context, sessionID string) (ConversationInfo, error) {
	sess, err := r.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return ConversationInfo{}, err
	}
	return ConversationInfo{
		UserTurns:      sess.UserTurns(),
		AssistantTurns: sess.AssistantTurns(),
		TotalMessages:  len(sess.Messages),
		Active:         true,
	}, nil
}

// chunkRunes splits s into pieces of at most n runes.
func chunkRunes(s string, n int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	out := make([]string, 0, (len(runes)+n-1)/n)
	for i := 0; i < len(runes); i += n {
		end := i + n
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
