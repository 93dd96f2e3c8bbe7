package gpt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"tripplanner/config"
	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
	"tripplanner/pkg/logger"
)

type Tier string

const (
	TierStandard Tier = "standard"
	TierPro      Tier = "pro"
)

var errNoChoices = errors.New("no response from chat completions API")

// Client generates itineraries through any OpenAI-compatible chat
// completions endpoint.
type Client struct {
	client      *openai.Client
	model       string
	tier        Tier
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      *logger.Logger
}

func NewClient(apiKey, baseURL string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		model:       "llama-3.1-8b-instant",
		tier:        TierStandard,
		maxTokens:   3000,
		temperature: 0.7,
		timeout:     60 * time.Second,
		logger:      logger.Nop(),
	}
}

// NewFromConfig builds the client for one tier from the LLM settings.
func NewFromConfig(cfg config.LLMConfig, tier Tier, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := NewClient(cfg.APIKey, cfg.BaseURL).
		WithTier(tier).
		WithTemperature(cfg.Temperature).
		WithTimeout(cfg.Timeout).
		WithLogger(log.With("tier", string(tier)))
	if tier == TierPro {
		return c.WithModel(cfg.ProModel).WithMaxTokens(cfg.ProMaxTokens)
	}
	return c.WithModel(cfg.Model).WithMaxTokens(cfg.MaxTokens)
}

func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

func (c *Client) WithTier(tier Tier) *Client {
	c.tier = tier
	return c
}

func (c *Client) WithMaxTokens(n int) *Client {
	if n > 0 {
		c.maxTokens = n
	}
	return c
}

func (c *Client) WithTemperature(t float32) *Client {
	c.temperature = t
	return c
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

func (c *Client) WithLogger(log *logger.Logger) *Client {
	if log != nil {
		c.logger = log
	}
	return c
}

// Name identifies the provider in logs and on stored itineraries.
func (c *Client) Name() string {
	return "llm-" + string(c.tier)
}

// GenerateItinerary asks the model for a trip plan and returns it only if
// it parses and carries every section the tier requires. Any failure is an
// *apperr.ProviderError.
func (c *Client) GenerateItinerary(ctx context.Context, trip models.Trip) (*models.Content, error) {
	system, prompt := standardSystemPrompt, standardPrompt(trip)
	if c.tier == TierPro {
		system, prompt = proSystemPrompt, proPrompt(trip)
	}

	text, err := c.complete(ctx, system, prompt, c.maxTokens)
	if err != nil {
		return nil, c.fail(err)
	}

	c.logger.Debugw("Itinerary response received", "provider", c.Name(), "length", len(text))

	content, err := ParseContent(text)
	if err != nil {
		return nil, c.fail(err)
	}
	if err := c.validate(content); err != nil {
		return nil, c.fail(fmt.Errorf("invalid itinerary structure: %w", err))
	}
	return content, nil
}

// SuggestInterests asks the model for interest categories that suit the
// destinations.
func (c *Client) SuggestInterests(ctx context.Context, destinations []string) ([]string, error) {
	text, err := c.complete(ctx, interestsSystemPrompt, interestsPrompt(destinations), 500)
	if err != nil {
		return nil, c.fail(err)
	}
	interests, err := ParseInterests(text)
	if err != nil {
		return nil, c.fail(err)
	}
	return interests, nil
}

func (c *Client) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		TopP:        1,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) validate(content *models.Content) error {
	var err error
	if c.tier == TierPro {
		err = content.ValidatePro()
	} else {
		err = content.Validate()
	}
	if err != nil {
		return err
	}
	if content.PopularSpots == nil {
		return errors.New("missing popularSpots")
	}
	if content.Summary == "" {
		return errors.New("missing summary")
	}
	return nil
}

func (c *Client) fail(err error) error {
	return &apperr.ProviderError{Provider: c.Name(), Err: err}
}
