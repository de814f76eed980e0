package gpt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fitness-bot/internal/models"
	"fitness-bot/pkg/logger"

	"github.com/sashabaranov/go-openai"
)

var ErrEmptyResponse = errors.New("empty response from generation service")

// ImageAnalyzer answers a prompt about an image; used as the vision fallback.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL, prompt string) (string, error)
}

type Client struct {
	client      *openai.Client
	model       string
	visionModel string
	maxTokens   int
	temperature float32
	fallback    ImageAnalyzer
	log         *logger.Logger
}

func NewClient(apiKey string) *Client {
	return &Client{
		client:      openai.NewClient(apiKey),
		model:       openai.GPT4oMini,
		visionModel: openai.GPT4o,
		maxTokens:   1200,
		temperature: 0.7,
		log:         logger.NewNop(),
	}
}

func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

func (c *Client) WithVisionModel(model string) *Client {
	c.visionModel = model
	return c
}

func (c *Client) WithLimits(maxTokens int, temperature float32) *Client {
	c.maxTokens = maxTokens
	c.temperature = temperature
	return c
}

func (c *Client) WithFallback(fallback ImageAnalyzer) *Client {
	c.fallback = fallback
	return c
}

func (c *Client) WithLogger(log *logger.Logger) *Client {
	c.log = log.Named("gpt")
	return c
}

// PlanRequest describes one workout plan generation.
type PlanRequest struct {
	Profile       models.Profile
	Kind          models.WorkoutType
	ExerciseCount int
	Exclude       []string
	History       []models.PlanExchange
}

// GenerateText answers a free-form user message. An empty systemContext selects
// the intent classifier instruction.
func (c *Client) GenerateText(ctx context.Context, systemContext, userMessage string) (string, error) {
	if systemContext == "" {
		systemContext = classifierPrompt
	}

	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemContext},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.4,
	})
}

// GenerateWorkoutPlan produces a numbered plan with exactly req.ExerciseCount entries.
// Rejected proposals are replayed as prior turns so the new plan differs from them.
func (c *Client) GenerateWorkoutPlan(ctx context.Context, req PlanRequest) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: trainerPrompt},
	}
	for _, exchange := range req.History {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: exchange.Proposal},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: exchange.Feedback},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: planPrompt(req),
	})

	return c.complete(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
}

// AnalyzePhoto asks the vision model to describe a meal photo and estimate its nutrition.
func (c *Client) AnalyzePhoto(ctx context.Context, photoURL string) (string, error) {
	text, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: photoPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: photoPrompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: photoURL}},
				},
			},
		},
		MaxTokens: 500,
	})
	if err == nil || c.fallback == nil {
		return text, err
	}

	c.log.Warnw("OpenAI vision failed, trying fallback", "error", err)
	text, fbErr := c.fallback.AnalyzeImage(ctx, photoURL, photoPrompt)
	if fbErr != nil {
		return "", fmt.Errorf("vision fallback failed: %w (primary: %v)", fbErr, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
