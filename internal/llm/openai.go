package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/loomwork/durableagent/internal/models"
	"github.com/loomwork/durableagent/internal/tools"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIClient implements LLMClient using OpenAI's Chat Completions API.
//
// Maps to: codex-rs/core/src/client.rs OpenAI implementation
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{client: client}
}

// Call sends a request to OpenAI and returns the complete response. The
// response items match our ConversationItem format.
func (c *OpenAIClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	messages := c.buildMessages(request)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.ModelConfig.Model),
		Messages: messages,
	}

	if request.ModelConfig.Temperature > 0 {
		params.Temperature = param.NewOpt(request.ModelConfig.Temperature)
	}
	if request.ModelConfig.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(request.ModelConfig.MaxTokens))
	}

	if len(request.ToolSpecs) > 0 {
		params.Tools = c.buildToolDefinitions(request.ToolSpecs)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return LLMResponse{}, fmt.Errorf("no choices in response")
	}

	items, finishReason := c.parseResponse(completion)

	return LLMResponse{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:        int(completion.Usage.PromptTokens),
			CompletionTokens:    int(completion.Usage.CompletionTokens),
			TotalTokens:         int(completion.Usage.TotalTokens),
			CachedTokens:        int(completion.Usage.PromptTokensDetails.CachedTokens),
			CacheCreationTokens: 0,
		},
	}, nil
}

// buildMessages assembles the system/developer/history messages in the
// 3-tier instructions order: base and user instructions merge into a single
// system message, developer instructions form their own message, and
// conversation history follows.
func (c *OpenAIClient) buildMessages(request LLMRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0)

	var systemParts []string
	if request.BaseInstructions != "" {
		systemParts = append(systemParts, request.BaseInstructions)
	}
	if request.UserInstructions != "" {
		systemParts = append(systemParts, request.UserInstructions)
	}
	if len(systemParts) > 0 {
		messages = append(messages, openai.SystemMessage(strings.Join(systemParts, "\n\n")))
	}

	if request.DeveloperInstructions != "" {
		messages = append(messages, openai.DeveloperMessage(request.DeveloperInstructions))
	}

	messages = append(messages, c.convertHistoryToMessages(request.History)...)

	return messages
}

// convertHistoryToMessages converts our ConversationItem format to OpenAI's
// message format.
//
// OpenAI requires that tool result messages are preceded by an assistant
// message containing the corresponding tool_calls, so consecutive
// FunctionCall items are batched into a single assistant message.
func (c *OpenAIClient) convertHistoryToMessages(history []models.ConversationItem) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))

	i := 0
	for i < len(history) {
		item := history[i]

		switch item.Type {
		case models.ItemTypeUserMessage:
			messages = append(messages, openai.UserMessage(item.Content))
			i++

		case models.ItemTypeAssistantMessage:
			// Collect any function calls immediately following this message
			// into the same assistant turn.
			j := i + 1
			var toolCalls []openai.ChatCompletionMessageToolCallParam
			for j < len(history) && history[j].Type == models.ItemTypeFunctionCall {
				fc := history[j]
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: fc.CallID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      fc.Name,
						Arguments: fc.Arguments,
					},
				})
				j++
			}

			if len(toolCalls) > 0 || item.Content != "" {
				assistantMsg := &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: toolCalls,
				}
				if item.Content != "" {
					assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
						OfString: param.NewOpt(item.Content),
					}
				}
				messages = append(messages, openai.ChatCompletionMessageParamUnion{
					OfAssistant: assistantMsg,
				})
			}
			i = j

		case models.ItemTypeFunctionCall:
			// Orphaned function call (no preceding assistant text) — batch
			// all consecutive calls into one assistant message.
			j := i
			var toolCalls []openai.ChatCompletionMessageToolCallParam
			for j < len(history) && history[j].Type == models.ItemTypeFunctionCall {
				fc := history[j]
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: fc.CallID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      fc.Name,
						Arguments: fc.Arguments,
					},
				})
				j++
			}
			if len(toolCalls) > 0 {
				messages = append(messages, openai.ChatCompletionMessageParamUnion{
					OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls},
				})
			}
			i = j

		case models.ItemTypeFunctionCallOutput:
			content := ""
			if item.Output != nil {
				content = item.Output.Content
				if item.Output.Success != nil && !*item.Output.Success {
					content = fmt.Sprintf("Error: %s", item.Output.Content)
				}
			}
			messages = append(messages, openai.ToolMessage(content, item.CallID))
			i++

		default:
			// Skip turn markers and other non-message items.
			i++
		}
	}

	return messages
}

// buildToolDefinitions converts ToolSpecs to OpenAI tool definitions.
func (c *OpenAIClient) buildToolDefinitions(specs []tools.ToolSpec) []openai.ChatCompletionToolParam {
	toolDefs := make([]openai.ChatCompletionToolParam, 0, len(specs))

	for _, spec := range specs {
		properties := make(map[string]interface{})
		required := make([]string, 0)

		for _, p := range spec.Parameters {
			prop := map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Items != nil {
				prop["items"] = p.Items
			}
			properties[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}

		funcDef := shared.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: param.NewOpt(spec.Description),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		}

		toolDefs = append(toolDefs, openai.ChatCompletionToolParam{Function: funcDef})
	}

	return toolDefs
}

// parseResponse converts an OpenAI chat completion into our ConversationItem
// format: one assistant-message item for any text content, plus one
// function-call item per tool call.
func (c *OpenAIClient) parseResponse(completion *openai.ChatCompletion) ([]models.ConversationItem, models.FinishReason) {
	choice := completion.Choices[0]
	items := make([]models.ConversationItem, 0)

	if choice.Message.Content != "" {
		items = append(items, models.ConversationItem{
			Type:    models.ItemTypeAssistantMessage,
			Content: choice.Message.Content,
		})
	}

	for _, tc := range choice.Message.ToolCalls {
		items = append(items, models.ConversationItem{
			Type:      models.ItemTypeFunctionCall,
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{Type: models.ItemTypeAssistantMessage})
	}

	finishReason := models.FinishReasonStop
	switch choice.FinishReason {
	case "tool_calls":
		finishReason = models.FinishReasonToolCalls
	case "length":
		finishReason = models.FinishReasonLength
	case "content_filter":
		finishReason = models.FinishReasonContentFilter
	}
	if len(choice.Message.ToolCalls) > 0 {
		finishReason = models.FinishReasonToolCalls
	}

	return items, finishReason
}

// Compact asks the model to summarize conversation history into a shorter
// form suitable as a fresh starting point, mirroring Call's item shape.
func (c *OpenAIClient) Compact(ctx context.Context, request CompactRequest) (CompactResponse, error) {
	messages := c.convertHistoryToMessages(request.Input)
	if request.Instructions != "" {
		messages = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(request.Instructions)}, messages...)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompactResponse{}, classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return CompactResponse{}, fmt.Errorf("no choices in compact response")
	}

	summary := completion.Choices[0].Message.Content
	return CompactResponse{
		Items: []models.ConversationItem{{
			Type:    models.ItemTypeUserMessage,
			Content: summary,
		}},
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

// classifyError categorizes an OpenAI API error using the HTTP status code
// when available, falling back to message-based heuristics.
func classifyError(err error) error {
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "context_length") || strings.Contains(errMsg, "maximum context length") {
		return models.NewContextOverflowError(err.Error())
	}

	if apiErr, ok := err.(*openai.Error); ok {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	if strings.Contains(errMsg, "rate_limit") || strings.Contains(errMsg, "rate limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("OpenAI API error: %v", err))
}
