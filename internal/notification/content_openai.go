package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/vexokart/internal/directory"
	"github.com/example/vexokart/internal/domain/order"
	"github.com/sashabaranov/go-openai"
)

const contentSystemPrompt = `You write short, friendly order status notifications for the VexoKart store.
Reply with a JSON object with the keys "subject", "email_html" and "sms".
"email_html" is a complete, simple HTML email body. "sms" is plain text under 140 characters.
Never invent tracking numbers or dates that are not given.`

// ChatCompleter is the part of the OpenAI client the generator needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIGenerator asks a chat model for message content.
type OpenAIGenerator struct {
	client ChatCompleter
	model  string
}

// NewOpenAIGenerator builds a generator against the OpenAI API or any
// compatible endpoint when baseURL is set.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIGeneratorWithClient(openai.NewClientWithConfig(cfg), model)
}

func NewOpenAIGeneratorWithClient(client ChatCompleter, model string) *OpenAIGenerator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{client: client, model: model}
}

type promptOrder struct {
	OrderID     string   `json:"order_id"`
	Customer    string   `json:"customer"`
	Status      string   `json:"status"`
	Total       string   `json:"total"`
	Items       []string `json:"items"`
	CourierName string   `json:"courier_name,omitempty"`
	TrackingID  string   `json:"tracking_id,omitempty"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, o *order.Order, user *directory.User) (Content, error) {
	items := make([]string, len(o.Items))
	for i, item := range o.Items {
		items[i] = fmt.Sprintf("%d x %s", item.Quantity, item.Name)
	}
	facts, err := json.Marshal(promptOrder{
		OrderID:     o.ID,
		Customer:    user.Name,
		Status:      string(o.Status),
		Total:       o.Total.StringFixed(2),
		Items:       items,
		CourierName: o.CourierName,
		TrackingID:  o.TrackingID,
	})
	if err != nil {
		return Content{}, err
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: contentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(facts)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return Content{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Content{}, errors.New("chat completion returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")

	var c Content
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Content{}, fmt.Errorf("decode generated content: %w", err)
	}
	return c, nil
}
