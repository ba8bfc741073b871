// Package chat talks to an OpenAI-compatible completion service and keeps
// per-session conversation history.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/httpx"
)

// systemInstruction pins the assistant to the supplied snapshot. The model
// must refuse rather than invent figures that are not in the context.
const systemInstruction = "You are a MarginFi lending data assistant. " +
	"Answer questions using ONLY the bank data provided in the context below. " +
	"Never invent, estimate or extrapolate figures that are not present in the context. " +
	"If the context does not contain the requested data, say that the data is not available. " +
	"Keep answers short and factual."

// Completer produces one assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIClient speaks the /chat/completions wire format.
type OpenAIClient struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	model   string
	log     zerolog.Logger
}

func NewOpenAIClient(httpClient *httpx.Client, baseURL, apiKey, model string, log zerolog.Logger) *OpenAIClient {
	return &OpenAIClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		log:     log.With().Str("component", "openai").Logger(),
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the conversation and returns the assistant text. Any
// transport or service failure surfaces as an upstream error; callers show a
// generic apology, the detail stays in logs.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	req := completionRequest{Model: c.model, Messages: messages}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp completionResponse
	if _, err := c.http.PostJSON(ctx, c.baseURL+"/chat/completions", req, headers, &resp); err != nil {
		c.log.Error().Err(err).Msg("completion request failed")
		return "", apperr.Wrap(apperr.CodeUpstream, "completion service unavailable", err)
	}
	if resp.Error != nil {
		c.log.Error().Str("type", resp.Error.Type).Str("detail", resp.Error.Message).Msg("completion service error")
		return "", apperr.New(apperr.CodeUpstream, "completion service rejected the request")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", apperr.New(apperr.CodeUpstream, "completion service returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// BuildMessages assembles the wire conversation: system instruction with the
// context blob, then prior history, then the new user message.
func BuildMessages(contextBlob string, history []Message, userMessage string) []Message {
	system := systemInstruction
	if contextBlob != "" {
		system = fmt.Sprintf("%s\n\nContext:\n%s", systemInstruction, contextBlob)
	}
	out := make([]Message, 0, len(history)+2)
	out = append(out, Message{Role: RoleSystem, Content: system})
	out = append(out, history...)
	out = append(out, Message{Role: RoleUser, Content: userMessage})
	return out
}
