package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/deepakmehta1/travel-mcp-prod/internal/domain"
	"github.com/deepakmehta1/travel-mcp-prod/internal/logging"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client openai.Client
	model  string
	log    *logging.Logger

	// retries is the number of attempts after the first failure.
	retries int
	backoff time.Duration
}

// OpenAIOptions configures NewOpenAIClient.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // empty means the provider default
	Model   string
	Retries int           // attempts after the first failure, default 1
	Backoff time.Duration // pause before a retry, default 1s
	Logger  *logging.Logger
}

// NewOpenAIClient builds a provider from options.
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 1
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &OpenAIClient{
		client:  openai.NewClient(reqOpts...),
		model:   opts.Model,
		log:     log.Sub("oracle"),
		retries: retries,
		backoff: backoff,
	}
}

func (c *OpenAIClient) Model() string { return c.model }

// Decide runs one completion. Transient provider failures are retried a
// bounded number of times before surfacing as ErrOracleUnavailable.
func (c *OpenAIClient) Decide(ctx context.Context, transcript []domain.Message, tools []ToolSchema) (*Decision, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: buildMessages(transcript),
		Tools:    buildTools(tools),
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Warn().Int("attempt", attempt).Err(lastErr).Msg("retrying completion")
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("completion returned no choices")
			continue
		}
		return c.decodeChoice(resp.Choices[0].Message), nil
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, lastErr)
}

func buildMessages(transcript []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript))
	for _, m := range transcript {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, assistantMessage(m))
		case domain.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.CallID))
		}
	}
	return out
}

func assistantMessage(m domain.Message) openai.ChatCompletionMessageParamUnion {
	asst := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" {
		asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(m.Content),
		}
	}
	for _, call := range m.ToolCalls {
		args, _ := json.Marshal(call.Arguments)
		asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Name,
					Arguments: string(args),
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
}

func buildTools(tools []ToolSchema) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  openai.FunctionParameters(t.Parameters),
		}))
	}
	return out
}

// decodeChoice converts a completion message into a Decision. Malformed
// tool-call arguments are not fatal: the call goes through with empty
// arguments and the tool server's rejection comes back to the model as a
// failed result it can correct.
func (c *OpenAIClient) decodeChoice(msg openai.ChatCompletionMessage) *Decision {
	if len(msg.ToolCalls) == 0 {
		return &Decision{Text: msg.Content}
	}
	d := &Decision{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if raw := tc.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				c.log.Warn().Str("tool", tc.Function.Name).Err(err).Msg("malformed tool arguments")
				args = map[string]any{}
			}
		}
		d.Calls = append(d.Calls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return d
}
