// Package enrich asks an LLM to summarise and score a lead.
package enrich

import (
	"AgentDesk/entity"
	"AgentDesk/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultPrompt = `You qualify sales leads. Reply with a JSON object only:
{"summary": string (one sentence), "score": integer 0-100, "segment": string, "language": ISO 639-1 code}.`

// Completer is the part of the OpenAI client the enricher needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Enricher struct {
	client Completer
	model  string
	prompt string
	log    *slog.Logger
}

func NewClient(apiKey, baseURL string) *openai.Client {
	conf := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(conf)
}

func NewEnricher(client Completer, model, prompt string, log *slog.Logger) *Enricher {
	if model == "" {
		model = openai.GPT4oMini
	}
	if prompt == "" {
		prompt = defaultPrompt
	}
	return &Enricher{
		client: client,
		model:  model,
		prompt: prompt,
		log:    log.With(sl.Module("enrich")),
	}
}

// Enrich never returns a zero Enrichment on a malformed model reply: the
// raw text becomes the summary and the remaining fields stay empty.
func (e *Enricher) Enrich(ctx context.Context, lead *entity.Lead) (*entity.Enrichment, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.prompt},
			{Role: openai.ChatMessageRoleUser, Content: describe(lead)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var out entity.Enrichment
	if err := json.Unmarshal([]byte(stripFence(content)), &out); err != nil {
		e.log.Warn("malformed enrichment reply",
			slog.String("lead_id", lead.ID),
			sl.Err(err),
		)
		return &entity.Enrichment{Summary: Truncate(content, 500)}, nil
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 100 {
		out.Score = 100
	}
	return &out, nil
}

func describe(lead *entity.Lead) string {
	keys := make([]string, 0, len(lead.Fields))
	for k := range lead.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Lead %s from form %s.\n", lead.ID, lead.FormID)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, lead.Fields[k])
	}
	return b.String()
}

func stripFence(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
