// Package llm implements the pipeline's Completer interface on the OpenAI
// chat-completion API, classifying failures as transient or permanent so
// the extractor's bounded retry only fires when a retry can help.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/marian-merour/prodmeeting-followup-email/pipeline"
)

// Client is an OpenAI-backed completion client.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a completion client for the given model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		api:   openai.NewClient(apiKey),
		model: model,
	}
}

// Complete sends one chat completion with the extraction contract as the
// system message. Temperature is pinned low; the output is parsed
// downstream, not displayed.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		if transient(err) {
			return "", fmt.Errorf("%w: %w", pipeline.ErrServiceUnavailable, err)
		}
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion request: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// transient reports whether a completion failure may succeed on retry:
// rate limiting, server-side errors, and network-level failures. Auth and
// request errors are permanent.
func transient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
