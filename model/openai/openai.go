// Package openai provides a FragmentSource backed by the OpenAI Chat
// Completions streaming API (including function/tool calling). It adapts
// the SDK's chunked deltas into core.Fragment values.
package openai

import (
	"context"
	"fmt"
	"sort"

	"github.com/openai/openai-go"
	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/model"
)

// aggCall tracks partial tool call deltas for one streamed call slot so a
// begin fragment is emitted exactly once per call. Internal helper.
type aggCall struct {
	id, name string
	began    bool
}

// Options configure the OpenAI source adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Source wraps the OpenAI Chat Completions API behind model.FragmentSource.
type Source struct {
	client *openai.Client
	opts   Options
}

// NewSource creates a new OpenAI source using the official client.
func NewSource(optFns ...func(o *Options)) *Source {
	client := openai.NewClient()
	return NewSourceFromClient(&client, optFns...)
}

// NewSourceFromClient creates a new OpenAI source from an existing client.
func NewSourceFromClient(client *openai.Client, optFns ...func(o *Options)) *Source {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Source{client: client, opts: opts}
}

// Stream implements model.FragmentSource by translating streamed chunk
// deltas into text and tool call fragments.
func (s *Source) Stream(ctx context.Context, req model.Request) (<-chan core.Fragment, <-chan error) {
	out := make(chan core.Fragment, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := s.buildParams(req, buildMessages(req))
		stream := s.client.Chat.Completions.NewStreaming(ctx, params)
		agg := map[int64]*aggCall{}
		stopped := false

		for stream.Next() {
			ck := stream.Current()
			for _, ch := range ck.Choices {
				if ch.Delta.Content != "" {
					if !send(ctx, out, core.TextFragment(ch.Delta.Content)) {
						return
					}
				}
				for _, tc := range ch.Delta.ToolCalls {
					ac, ok := agg[tc.Index]
					if !ok {
						ac = &aggCall{}
						agg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					if !ac.began && ac.id != "" && ac.name != "" {
						if !send(ctx, out, core.ToolCallBeginFragment(ac.id, ac.name)) {
							return
						}
						ac.began = true
					}
					if tc.Function.Arguments != "" {
						if !send(ctx, out, core.ToolCallDeltaFragment(ac.id, tc.Function.Arguments)) {
							return
						}
					}
				}
				if ch.FinishReason != "" && !stopped {
					for _, idx := range sortedIndexes(agg) {
						ac := agg[idx]
						if !ac.began {
							continue
						}
						if !send(ctx, out, core.ToolCallEndFragment(ac.id)) {
							return
						}
					}
					if !send(ctx, out, core.MessageStopFragment()) {
						return
					}
					stopped = true
				}
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, out, core.ErrorFragment(err.Error()))
			errCh <- fmt.Errorf("openai streaming error: %w", err)
		}
	}()

	return out, errCh
}

func send(ctx context.Context, out chan<- core.Fragment, f core.Fragment) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- f:
		return true
	}
}

func sortedIndexes(agg map[int64]*aggCall) []int64 {
	idxs := make([]int64, 0, len(agg))
	for i := range agg {
		idxs = append(idxs, i)
	}
	sort.Slice(idxs, func(a, b int) bool { return idxs[a] < idxs[b] })
	return idxs
}

// buildMessages converts normalized messages into OpenAI chat messages,
// attaching tool results immediately after the assistant calls they answer.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	results := map[string]string{}
	for _, m := range req.Messages {
		if m.Role != model.RoleTool {
			continue
		}
		for _, r := range m.Results {
			if r.CallID == "" {
				continue
			}
			if _, exists := results[r.CallID]; !exists {
				results[r.CallID] = r.Content
			}
		}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleTool:
			continue
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text))
		case model.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Text))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				}
			}
			messages = append(
				messages,
				openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				}},
			)
			for _, tc := range m.ToolCalls {
				if resp, ok := results[tc.ID]; ok {
					messages = append(messages, openai.ToolMessage(resp, tc.ID))
					delete(results, tc.ID)
				}
			}
		default:
			messages = append(messages, openai.UserMessage(m.Text))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (s *Source) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               s.opts.Model,
		Temperature:         openai.Float(s.opts.Temperature),
		MaxCompletionTokens: openai.Int(s.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, def := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.Parameters),
			},
		}
	}
	params.Tools = tools
	return params
}

// Info returns metadata describing this OpenAI source implementation.
func (s *Source) Info() model.Info {
	return model.Info{
		Name:          s.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
