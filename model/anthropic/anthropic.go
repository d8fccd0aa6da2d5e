// Package anthropic provides a FragmentSource backed by the Anthropic
// Messages API. The API is consumed non-streaming; the complete response
// is replayed as an ordered fragment sequence so downstream consumers see
// the same shape as a true streaming provider.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/model"
	"github.com/zeddq/agentcore/tool"
)

// Options configures the Anthropic source adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Source wraps the Anthropic Messages API behind model.FragmentSource.
type Source struct {
	client *anthropic.Client
	opts   Options
}

// NewSource creates a new Anthropic source using the official client.
func NewSource(optFns ...func(o *Options)) *Source {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Source{client: &client, opts: opts}
}

// NewSourceFromClient creates a new Anthropic source from an existing client.
func NewSourceFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Source {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Source{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Stream implements model.FragmentSource. The full response is fetched,
// then text blocks and tool_use blocks are emitted as fragments in block
// order, ending with a message_stop fragment.
func (s *Source) Stream(ctx context.Context, req model.Request) (<-chan core.Fragment, <-chan error) {
	out := make(chan core.Fragment, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       s.opts.Model,
			Messages:    buildMessages(req),
			MaxTokens:   s.opts.MaxTokens,
			Temperature: anthropic.Float(s.opts.Temperature),
		}
		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}
		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		resp, err := s.client.Messages.New(ctx, params)
		if err != nil {
			send(ctx, out, core.ErrorFragment(err.Error()))
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text == "" {
					continue
				}
				if !send(ctx, out, core.TextFragment(textBlock.Text)) {
					return
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}
				if !send(ctx, out, core.ToolCallBeginFragment(toolBlock.ID, toolBlock.Name)) {
					return
				}
				if args != "" {
					if !send(ctx, out, core.ToolCallDeltaFragment(toolBlock.ID, args)) {
						return
					}
				}
				if !send(ctx, out, core.ToolCallEndFragment(toolBlock.ID)) {
					return
				}
			}
		}
		send(ctx, out, core.MessageStopFragment())
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

// buildMessages converts normalized messages to Anthropic message params.
// Tool results follow the assistant call that produced them, wrapped in a
// user message as the Messages API requires.
func buildMessages(req model.Request) []anthropic.MessageParam {
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

	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem, model.RoleTool:
			continue
		case model.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if m.Text != "" {
				content = append(content, anthropic.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
			var resultBlocks []anthropic.ContentBlockParamUnion
			for _, tc := range m.ToolCalls {
				if resp, ok := results[tc.ID]; ok {
					resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(tc.ID, resp, false))
					delete(results, tc.ID)
				}
			}
			if len(resultBlocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
			}
		default:
			if m.Text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
			}
		}
	}
	return messages
}

// buildTools converts registry tool definitions to Anthropic tool params.
func buildTools(defs []tool.Definition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if def.Parameters != nil {
			if properties, exists := def.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := def.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var names []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							names = append(names, s)
						}
					}
					inputSchema.Required = names
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, def.Name)
	}
	return tools
}

// Info returns metadata describing this Anthropic source implementation.
func (s *Source) Info() model.Info {
	return model.Info{
		Name:          string(s.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
