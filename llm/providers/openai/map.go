package openai

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/nid-27/regnex/llm/providers/shared"
)

// ToOpenAIRequest converts a shared CompletionRequest to OpenAI format
func ToOpenAIRequest(req *shared.CompletionRequest) (*openai.ChatCompletionRequest, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == shared.RoleTool {
			msg.Name = m.Name
		}

		if len(m.ToolCalls) > 0 {
			toolCalls := make([]openai.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				args, err := encodeArguments(tc)
				if err != nil {
					return nil, fmt.Errorf("tool call %s: %w", tc.Name, err)
				}
				toolCalls[i] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: args,
					},
				}
			}
			msg.ToolCalls = toolCalls
		}

		msgs = append(msgs, msg)
	}

	o := req.Options
	openaiReq := openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    msgs,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
		Stop:        o.Stop,
	}

	if len(o.Tools) > 0 {
		tools := make([]openai.Tool, len(o.Tools))
		for i, t := range o.Tools {
			tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.JSONSchema,
				},
			}
		}
		openaiReq.Tools = tools
		openaiReq.ToolChoice = "auto"
	}

	return &openaiReq, nil
}

func encodeArguments(tc shared.ToolCall) (string, error) {
	if tc.Arguments == nil {
		if tc.RawArguments != "" {
			return tc.RawArguments, nil
		}
		return "{}", nil
	}
	data, err := json.Marshal(tc.Arguments)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FromOpenAIResponse converts an OpenAI response to shared format
func FromOpenAIResponse(resp openai.ChatCompletionResponse) (*shared.CompletionResponse, error) {
	out := &shared.CompletionResponse{
		Usage: shared.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	if len(resp.Choices) == 0 {
		return nil, &shared.ProviderError{Code: shared.ErrUnknown, Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = normalizeFinishReason(choice.FinishReason)

	for _, tc := range choice.Message.ToolCalls {
		call := shared.ToolCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
		}
		if tc.Function.Arguments != "" {
			var args map[string]any
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
				call.Arguments = args
			}
		} else {
			call.Arguments = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}

	// Some compatible endpoints report "stop" alongside tool calls.
	if len(out.ToolCalls) > 0 {
		out.StopReason = shared.StopReasonTool
	}

	return out, nil
}

func normalizeFinishReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return shared.StopReasonTool
	case openai.FinishReasonLength:
		return shared.StopReasonLength
	case "":
		return ""
	}
	return shared.StopReasonStop
}
