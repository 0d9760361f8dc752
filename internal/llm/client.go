package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/engagelens/internal/retry"
)

// Client wraps a Connector with bounded retries tuned for hosted model
// endpoints: fewer attempts, longer jittered delays than the fetch path.
type Client struct {
	connector *Connector
	retryCfg  retry.Config
	log       zerolog.Logger
}

func NewClient(connector *Connector, log zerolog.Logger) *Client {
	return &Client{
		connector: connector,
		retryCfg:  retry.LLMConfig(),
		log:       log,
	}
}

// Generate sends one prompt and returns the raw response text. Transient
// provider failures and empty completions are retried; anything else is
// returned to the caller, who decides whether it is fatal.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	response, result := retry.Do(ctx, c.retryCfg, classifyGeneration, c.log, func(ctx context.Context) (string, error) {
		text, err := c.connector.Call(ctx, prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", errEmptyCompletion
		}
		return text, nil
	})

	if err := result.Err(); err != nil {
		return "", fmt.Errorf("generation failed after %d attempts: %w", result.Attempts, err)
	}
	return response, nil
}

// Model returns the configured model name, for logging.
func (c *Client) Model() string {
	return c.connector.GetModel()
}

var errEmptyCompletion = fmt.Errorf("model returned an empty completion")

// classifyGeneration retries empty completions on top of the usual
// transport-level transient markers.
func classifyGeneration(err error) retry.Class {
	if err == errEmptyCompletion {
		return retry.ClassTransient
	}
	return retry.ClassifyByMessage(err)
}
