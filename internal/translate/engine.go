package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"curator/internal/config"
	"curator/internal/language"
	"curator/internal/services/llm"
)

// Engine translates a batch of terms in one mode. Terms the engine could not
// handle are simply absent from the returned map.
type Engine interface {
	Name() string
	BatchTranslate(ctx context.Context, terms []string, mode, hint string) (map[string]string, error)
}

// Completer is the subset of the LLM client the engine needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const llmBatchSize = 40

// LLMEngine drives all three modes through a chat model, one prompt per mode.
type LLMEngine struct {
	client Completer
	name   string
	target string
}

// NewLLMEngine builds an engine translating into target.
func NewLLMEngine(client Completer, name, target string) *LLMEngine {
	if strings.TrimSpace(name) == "" {
		name = "llm"
	}
	return &LLMEngine{client: client, name: name, target: target}
}

// NewLLMEngineFromConfig wires the configured OpenRouter model.
func NewLLMEngineFromConfig(cfg *config.Config) *LLMEngine {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewLLMEngine(client, "llm:"+client.Model(), cfg.Translation.TargetLanguage)
}

// Name identifies the engine in cache entries.
func (e *LLMEngine) Name() string {
	return e.name
}

// BatchTranslate sends terms in chunks and merges the returned maps.
func (e *LLMEngine) BatchTranslate(ctx context.Context, terms []string, mode, hint string) (map[string]string, error) {
	system, err := e.systemPrompt(mode)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(terms))
	for start := 0; start < len(terms); start += llmBatchSize {
		end := min(start+llmBatchSize, len(terms))
		user, err := buildUserPrompt(terms[start:end], mode, hint)
		if err != nil {
			return out, err
		}
		content, err := e.client.CompleteJSON(ctx, system, user)
		if err != nil {
			return out, fmt.Errorf("translate %s batch: %w", mode, err)
		}
		var parsed map[string]string
		if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
			return out, fmt.Errorf("translate %s batch: parse payload: %w", mode, err)
		}
		for _, term := range terms[start:end] {
			if value := strings.TrimSpace(parsed[term]); value != "" {
				out[term] = value
			}
		}
	}
	return out, nil
}

func (e *LLMEngine) systemPrompt(mode string) (string, error) {
	lang := language.DisplayName(e.target)
	var task string
	switch mode {
	case config.ModeFast:
		task = fmt.Sprintf("Translate each term into %s as it would appear in film credits.", lang)
	case config.ModeTransliterate:
		task = fmt.Sprintf("Each term is a personal name. Transliterate it phonetically into %s script using the conventional rendering for that name.", lang)
	case config.ModeContextual:
		task = fmt.Sprintf("Translate each term into %s. Terms are actor names or character roles from the work described in the context; use the official localised form when one exists.", lang)
	default:
		return "", fmt.Errorf("translate: unsupported mode %q", mode)
	}
	return task + " Respond with a single JSON object mapping every original term to its translation. Omit terms you cannot translate.", nil
}

func buildUserPrompt(terms []string, mode, hint string) (string, error) {
	payload := struct {
		Context string   `json:"context,omitempty"`
		Terms   []string `json:"terms"`
	}{Terms: terms}
	if mode == config.ModeContextual {
		payload.Context = strings.TrimSpace(hint)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("translate: encode prompt: %w", err)
	}
	return string(data), nil
}
