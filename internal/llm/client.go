// Package llm talks to OpenAI-compatible embedding and chat endpoints and
// converts their responses into the small typed results the rest of aka uses.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/akademi4eg/aka-assistant/internal/errors"
)

// Role is a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting reported for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the validated result of a chat completion.
type ChatResult struct {
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`
}

// EmbeddingResult is the validated result of an embedding call.
type EmbeddingResult struct {
	Embedding []float64 `json:"embedding"`
	Usage     Usage     `json:"usage"`
}

// Config configures a Client. It is built once at startup and injected.
type Config struct {
	// APIKey takes precedence over APIKeyEnv.
	APIKey    string
	APIKeyEnv string
	// BaseURL overrides the default https://api.openai.com/v1/.
	BaseURL string
	// Timeout bounds each request; 0 leaves it to the caller's context.
	Timeout time.Duration
	// MaxRetries is passed to the SDK. Defaults to 0: failures surface to the caller.
	MaxRetries int
}

// Client calls the embedding and chat endpoints.
type Client struct {
	client openai.Client
}

// NewClient creates a client from cfg. A missing API key is an INVALID_REQUEST error.
func NewClient(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" && cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(strings.TrimPrefix(cfg.APIKeyEnv, "$"))
	}
	if apiKey == "" {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("missing API key (set %s)", cfg.APIKeyEnv))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{client: openai.NewClient(opts...)}, nil
}

// CreateEmbedding requests the embedding of text under model.
func (c *Client) CreateEmbedding(ctx context.Context, model, text string) (*EmbeddingResult, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          openai.EmbeddingModel(model),
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, errors.NewCollaboratorFailure("embedding", err)
	}
	if resp == nil {
		return nil, errors.NewParse("embedding", "empty response")
	}
	if len(resp.Data) == 0 {
		return nil, errors.NewParse("embedding", "no data")
	}
	vec := resp.Data[0].Embedding
	if len(vec) == 0 {
		return nil, errors.NewParse("embedding", "empty embedding")
	}

	return &EmbeddingResult{
		Embedding: vec,
		Usage: Usage{
			PromptTokens: int(resp.Usage.PromptTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// Embed returns only the vector of CreateEmbedding.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float64, error) {
	res, err := c.CreateEmbedding(ctx, model, text)
	if err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

// Chat sends messages to model and returns the first choice with its usage.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (*ChatResult, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(msg.Content))
		case RoleUser:
			params = append(params, openai.UserMessage(msg.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unsupported role %q", msg.Role))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: params,
	})
	if err != nil {
		return nil, errors.NewCollaboratorFailure("chat", err)
	}
	if resp == nil {
		return nil, errors.NewParse("chat", "empty response")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.NewParse("chat", "no choices")
	}
	if !resp.JSON.Usage.Valid() {
		return nil, errors.NewParse("chat", "missing usage")
	}

	choice := resp.Choices[0]
	role := Role(choice.Message.Role)
	if role == "" {
		role = RoleAssistant
	}
	return &ChatResult{
		Message: Message{Role: role, Content: choice.Message.Content},
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}
