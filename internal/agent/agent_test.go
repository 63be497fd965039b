package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
	"github.com/deepakmehta1/travel-mcp-prod/internal/mcpgw"
	"github.com/deepakmehta1/travel-mcp-prod/internal/oracle"
)

func TestDetectConsent(t *testing.T) {
	cases := []struct {
		utterance string
		granted   bool
		scope     string
	}{
		{"I consent to pay by card", true, "card"},
		{"yes, charge my credit card", true, "card"},
		{"I agree to pay via UPI", true, "upi"},
		{"go ahead with the payment", true, ""},
		{"You have my consent", true, ""},
		{"how much does the payment cost?", false, ""},
		{"tell me about card benefits", false, ""},
		{"book the Goa tour", false, ""},
	}
	for _, tc := range cases {
		granted, scope := DetectConsent(tc.utterance)
		assert.Equalf(t, tc.granted, granted, "utterance %q", tc.utterance)
		assert.Equalf(t, tc.scope, scope, "utterance %q", tc.utterance)
	}
}

func seedMsg() domain.Message {
	return domain.Message{Role: domain.RoleSystem, Content: SystemPrompt}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	s := NewMemoryStore(seedMsg())
	ctx := context.Background()

	sess, err := s.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, domain.RoleSystem, sess.Messages[0].Role)
	assert.False(t, sess.Consent.Granted())

	require.NoError(t, s.Append(ctx, "a", domain.Message{Role: domain.RoleUser, Content: "hi"}))
	require.NoError(t, s.GrantConsent(ctx, "a", "card"))

	sess, err = s.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2)
	assert.True(t, sess.Consent.Granted())
	assert.Equal(t, "card", sess.Consent.Scope)

	// different id is independent
	other, err := s.GetOrCreate(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, other.Messages, 1)
	assert.False(t, other.Consent.Granted())

	require.NoError(t, s.Reset(ctx, "a"))
	sess, err = s.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 1)
	assert.False(t, sess.Consent.Granted())
}

func TestMemoryStoreGrantKeepsFirstScope(t *testing.T) {
	s := NewMemoryStore(seedMsg())
	ctx := context.Background()
	require.NoError(t, s.GrantConsent(ctx, "a", "card"))
	require.NoError(t, s.GrantConsent(ctx, "a", "upi"))
	sess, err := s.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "card", sess.Consent.Scope)
}

func TestMemoryStoreEvictIdle(t *testing.T) {
	s := NewMemoryStore(seedMsg())
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }
	_, err := s.GetOrCreate(ctx, "stale")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(45 * time.Minute) }
	_, err = s.GetOrCreate(ctx, "fresh")
	require.NoError(t, err)

	n, err := s.EvictIdle(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// evicted session comes back empty on next access
	sess, err := s.GetOrCreate(ctx, "stale")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 1)
}

func TestMemoryStoreEvictIdlePrunesLocks(t *testing.T) {
	s := NewMemoryStore(seedMsg())
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }
	_, err := s.GetOrCreate(ctx, "stale")
	require.NoError(t, err)
	s.Acquire("stale")()

	_, err = s.GetOrCreate(ctx, "held")
	require.NoError(t, err)
	release := s.Acquire("held")

	s.now = func() time.Time { return base.Add(45 * time.Minute) }
	n, err := s.EvictIdle(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s.mu.Lock()
	_, staleKept := s.locks["stale"]
	_, heldKept := s.locks["held"]
	s.mu.Unlock()
	assert.False(t, staleKept, "idle session's mutex must go with the session")
	assert.True(t, heldKept, "a mutex held by an in-flight request stays")
	release()
}

func TestMemoryStoreAcquireSerializes(t *testing.T) {
	s := NewMemoryStore()

	release := s.Acquire("a")
	acquired := make(chan struct{})
	go func() {
		r := s.Acquire("a")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while first held")
	case <-time.After(20 * time.Millisecond):
	}

	// a different session is not blocked
	done := make(chan struct{})
	go func() {
		r := s.Acquire("b")
		r()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different session blocked")
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded")
	}
}

type stubGateway struct {
	mu      sync.Mutex
	tools   []mcpgw.RemoteTool
	results map[string]domain.ToolResult
	invoked []string
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		tools: []mcpgw.RemoteTool{
			{Name: "booking__searchTours", Remote: "searchTours", Server: "booking", Class: mcpgw.ClassGeneral,
				Parameters: map[string]any{"type": "object", "properties": map[string]any{}}},
			{Name: "booking__bookTour", Remote: "bookTour", Server: "booking", Class: mcpgw.ClassGeneral,
				Parameters: map[string]any{"type": "object", "properties": map[string]any{}}},
			{Name: "payment__processPayment", Remote: "processPayment", Server: "payment", Class: mcpgw.ClassPayment,
				Parameters: map[string]any{"type": "object", "properties": map[string]any{}}},
		},
		results: map[string]domain.ToolResult{},
	}
}

func (g *stubGateway) Schemas() []oracle.ToolSchema {
	out := make([]oracle.ToolSchema, 0, len(g.tools))
	for _, t := range g.tools {
		out = append(out, oracle.ToolSchema{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

func (g *stubGateway) Lookup(name string) (mcpgw.RemoteTool, bool) {
	for _, t := range g.tools {
		if t.Name == name {
			return t, true
		}
	}
	return mcpgw.RemoteTool{}, false
}

func (g *stubGateway) Invoke(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	g.mu.Lock()
	g.invoked = append(g.invoked, call.Name)
	g.mu.Unlock()
	if res, ok := g.results[call.Name]; ok {
		res.CallID = call.ID
		res.ToolName = call.Name
		return res
	}
	return domain.ToolResult{CallID: call.ID, ToolName: call.Name, OK: true, Payload: `{"ok": true}`}
}

func (g *stubGateway) invocations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.invoked...)
}

func newRunner(gw ToolGateway, mock *oracle.MockClient) (*Runner, *MemoryStore) {
	store := NewMemoryStore(seedMsg())
	r := New(Options{
		Store:      store,
		Gateway:    gw,
		Oracle:     mock,
		ChunkSize:  8,
		ChunkDelay: time.Millisecond,
	})
	return r, store
}

func TestProcessDirectAnswer(t *testing.T) {
	gw := newStubGateway()
	mock := &oracle.MockClient{Script: []*oracle.Decision{{Text: "Namaste! Where would you like to travel?"}}}
	r, store := newRunner(gw, mock)

	answer, err := r.Process(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Namaste! Where would you like to travel?", answer)
	assert.Empty(t, gw.invocations())

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 3) // system, user, assistant
	assert.Equal(t, domain.RoleAssistant, sess.Messages[2].Role)
}

func TestProcessEmptyQuery(t *testing.T) {
	r, _ := newRunner(newStubGateway(), &oracle.MockClient{})
	_, err := r.Process(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestProcessToolRound(t *testing.T) {
	gw := newStubGateway()
	gw.results["booking__searchTours"] = domain.ToolResult{OK: true, Payload: `[{"tour_code": "GOA-5D4N-OPT1"}]`}
	mock := &oracle.MockClient{Script: []*oracle.Decision{
		{Calls: []domain.ToolCall{{ID: "c1", Name: "booking__searchTours", Arguments: map[string]any{"destination": "Goa"}}}},
		{Text: "I found one tour to Goa."},
	}}
	r, store := newRunner(gw, mock)

	answer, err := r.Process(context.Background(), "s1", "tours to goa")
	require.NoError(t, err)
	assert.Equal(t, "I found one tour to Goa.", answer)
	assert.Equal(t, []string{"booking__searchTours"}, gw.invocations())

	// the second round saw the tool result in the transcript
	require.Len(t, mock.Transcripts, 2)
	second := mock.Transcripts[1]
	last := second[len(second)-1]
	assert.Equal(t, domain.RoleTool, last.Role)
	assert.Equal(t, "c1", last.CallID)
	assert.Contains(t, last.Content, "GOA-5D4N-OPT1")

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	// system, user, assistant(tool_calls), tool, assistant
	require.Len(t, sess.Messages, 5)
}

func TestProcessFailedToolFedBack(t *testing.T) {
	gw := newStubGateway()
	gw.results["booking__bookTour"] = domain.ToolResult{Error: "tool invocation failed: connection reset"}
	mock := &oracle.MockClient{Script: []*oracle.Decision{
		{Calls: []domain.ToolCall{{ID: "c1", Name: "booking__bookTour"}}},
		{Text: "Booking failed, shall I retry?"},
	}}
	r, _ := newRunner(gw, mock)

	answer, err := r.Process(context.Background(), "s1", "book it")
	require.NoError(t, err)
	assert.Equal(t, "Booking failed, shall I retry?", answer)

	second := mock.Transcripts[1]
	last := second[len(second)-1]
	assert.Contains(t, last.Content, "tool invocation failed")
}

func TestPaymentBlockedWithoutConsent(t *testing.T) {
	gw := newStubGateway()
	mock := &oracle.MockClient{Script: []*oracle.Decision{
		{Calls: []domain.ToolCall{{ID: "p1", Name: "payment__processPayment", Arguments: map[string]any{"amount": 38500}}}},
		{Text: "I need your explicit consent before charging you."},
	}}
	r, _ := newRunner(gw, mock)

	answer, err := r.Process(context.Background(), "s1", "pay for my booking")
	require.NoError(t, err)
	assert.Equal(t, "I need your explicit consent before charging you.", answer)
	assert.Empty(t, gw.invocations(), "payment tool must not reach the gateway")

	second := mock.Transcripts[1]
	last := second[len(second)-1]
	assert.Equal(t, domain.RoleTool, last.Role)
	assert.Contains(t, last.Content, ConsentDeniedError)
}

func TestPaymentAllowedAfterConsent(t *testing.T) {
	gw := newStubGateway()
	gw.results["payment__processPayment"] = domain.ToolResult{OK: true, Payload: `{"success": true, "receipt": {"status": "PAID"}}`}
	mock := &oracle.MockClient{Script: []*oracle.Decision{
		// turn 1: payment attempt without consent
		{Calls: []domain.ToolCall{{ID: "p1", Name: "payment__processPayment"}}},
		{Text: "Please confirm you consent to the payment."},
		// turn 2: consent given, retry goes through
		{Calls: []domain.ToolCall{{ID: "p2", Name: "payment__processPayment"}}},
		{Text: "Payment complete!"},
	}}
	r, store := newRunner(gw, mock)
	ctx := context.Background()

	_, err := r.Process(ctx, "s1", "pay for my booking")
	require.NoError(t, err)
	assert.Empty(t, gw.invocations())

	answer, err := r.Process(ctx, "s1", "I consent to pay by card")
	require.NoError(t, err)
	assert.Equal(t, "Payment complete!", answer)
	assert.Equal(t, []string{"payment__processPayment"}, gw.invocations())

	sess, err := store.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sess.Consent.Granted())
	assert.Equal(t, "card", sess.Consent.Scope)
}

func TestConsentStickyUntilReset(t *testing.T) {
	gw := newStubGateway()
	mock := &oracle.MockClient{Script: []*oracle.Decision{
		{Text: "Noted."},
		// after reset, a payment attempt is blocked again
		{Calls: []domain.ToolCall{{ID: "p1", Name: "payment__processPayment"}}},
		{Text: "I need consent first."},
	}}
	r, store := newRunner(gw, mock)
	ctx := context.Background()

	_, err := r.Process(ctx, "s1", "I consent to pay by card")
	require.NoError(t, err)
	sess, _ := store.GetOrCreate(ctx, "s1")
	assert.True(t, sess.Consent.Granted())

	require.NoError(t, r.Reset(ctx, "s1"))
	sess, _ = store.GetOrCreate(ctx, "s1")
	assert.False(t, sess.Consent.Granted())
	assert.Len(t, sess.Messages, 1)

	_, err = r.Process(ctx, "s1", "pay now")
	require.NoError(t, err)
	assert.Empty(t, gw.invocations())
}

// ctxCheckGateway records whether each invocation arrived with a live
// context.
type ctxCheckGateway struct {
	*stubGateway
	mu      sync.Mutex
	ctxErrs []error
}

func (g *ctxCheckGateway) Invoke(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	g.mu.Lock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.mu.Unlock()
	return g.stubGateway.Invoke(ctx, call)
}

func TestDisconnectDoesNotAbandonToolCalls(t *testing.T) {
	gw := &ctxCheckGateway{stubGateway: newStubGateway()}
	ctx, cancel := context.WithCancel(context.Background())

	// the caller drops while the model is mid-decision; the booking call
	// it returns must still run and its result must be recorded
	mock := &oracle.MockClient{DecideFunc: func(dctx context.Context, transcript []domain.Message, tools []oracle.ToolSchema) (*oracle.Decision, error) {
		cancel()
		return &oracle.Decision{Calls: []domain.ToolCall{{ID: "c1", Name: "booking__bookTour"}}}, nil
	}}
	r, store := newRunner(gw, mock)

	_, err := r.Process(ctx, "s1", "book the goa tour")
	assert.ErrorIs(t, err, context.Canceled, "loop stops at the next round boundary")

	assert.Equal(t, []string{"booking__bookTour"}, gw.invocations())
	require.Len(t, gw.ctxErrs, 1)
	assert.NoError(t, gw.ctxErrs[0], "started call must not see the cancellation")

	sess, err := store.GetOrCreate(context.Background(), "s1")
	require.NoError(t, err)
	// system, user, assistant(tool_calls), tool
	require.Len(t, sess.Messages, 4)
	last := sess.Messages[len(sess.Messages)-1]
	assert.Equal(t, domain.RoleTool, last.Role)
	assert.Equal(t, "booking__bookTour", last.ToolName)
}

func TestLoopExhaustion(t *testing.T) {
	gw := newStubGateway()
	mock := &oracle.MockClient{DecideFunc: func(ctx context.Context, transcript []domain.Message, tools []oracle.ToolSchema) (*oracle.Decision, error) {
		return &oracle.Decision{Calls: []domain.ToolCall{{ID: "x", Name: "booking__searchTours"}}}, nil
	}}
	store := NewMemoryStore(seedMsg())
	r := New(Options{Store: store, Gateway: gw, Oracle: mock, MaxIterations: 3, ChunkSize: 8, ChunkDelay: time.Millisecond})

	answer, err := r.Process(context.Background(), "s1", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, answer)
	assert.Len(t, gw.invocations(), 3)
}

func TestOracleDownDegrades(t *testing.T) {
	gw := newStubGateway()
	mock := &oracle.MockClient{DecideFunc: func(ctx context.Context, transcript []domain.Message, tools []oracle.ToolSchema) (*oracle.Decision, error) {
		return nil, fmt.Errorf("%w: 503", domain.ErrOracleUnavailable)
	}}
	r, store := newRunner(gw, mock)

	answer, err := r.Process(context.Background(), "s1", "hello")
	require.NoError(t, err, "oracle outage is not a request error")
	assert.Equal(t, OracleDownAnswer, answer)

	sess, _ := store.GetOrCreate(context.Background(), "s1")
	last := sess.Messages[len(sess.Messages)-1]
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.Equal(t, OracleDownAnswer, last.Content)
}

func TestEmptyFinalAnswer(t *testing.T) {
	r, _ := newRunner(newStubGateway(), &oracle.MockClient{Script: []*oracle.Decision{{Text: ""}}})
	answer, err := r.Process(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, EmptyAnswer, answer)
}

func TestStreamMatchesProcess(t *testing.T) {
	gw := newStubGateway()
	mock := &oracle.MockClient{Script: []*oracle.Decision{{Text: "A booking summary:\nGoa, 5 days, ₹38,500."}}}
	r, _ := newRunner(gw, mock)

	ch, err := r.Stream(context.Background(), "s1", "summarize")
	require.NoError(t, err)

	var b strings.Builder
	for chunk := range ch {
		b.WriteString(chunk)
	}
	assert.Equal(t, "A booking summary:\nGoa, 5 days, ₹38,500.", b.String())
}

func TestStreamEmptyQuery(t *testing.T) {
	r, _ := newRunner(newStubGateway(), &oracle.MockClient{})
	_, err := r.Stream(context.Background(), "s1", "")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestInfo(t *testing.T) {
	r, _ := newRunner(newStubGateway(), &oracle.MockClient{Script: []*oracle.Decision{{Text: "hi there"}}})
	ctx := context.Background()

	_, err := r.Process(ctx, "s1", "hello")
	require.NoError(t, err)

	info, err := r.Info(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, info.UserTurns)
	assert.Equal(t, 1, info.AssistantTurns)
	assert.Equal(t, 3, info.TotalMessages)
	assert.True(t, info.Active)
}

func TestChunkRunes(t *testing.T) {
	assert.Nil(t, chunkRunes("", 1))
	assert.Equal(t, []string{"a", "b", "c"}, chunkRunes("abc", 1))
	assert.Equal(t, []string{"ab", "c"}, chunkRunes("abc", 2))
	assert.Equal(t, []string{"₹38", ",50", "0"}, chunkRunes("₹38,500", 3))
}
