package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"curator/internal/config"
	"curator/internal/language"
	"curator/internal/logging"
	"curator/internal/services"
)

// Tier pairs a translation mode with the engine that serves it.
type Tier struct {
	Mode   string
	Engine Engine
}

// Translator resolves terms through the cache and the escalating tiers.
type Translator struct {
	cache  *Cache
	tiers  []Tier
	target string
	logger *slog.Logger
}

// NewTranslator assembles a translator. A nil cache disables caching.
func NewTranslator(cache *Cache, target string, tiers []Tier, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translator{
		cache:  cache,
		tiers:  tiers,
		target: target,
		logger: logging.NewComponentLogger(logger, "translate"),
	}
}

// TiersFromConfig maps the configured modes onto engine. Latin-script
// targets transliterate offline instead of asking the model.
func TiersFromConfig(cfg *config.Config, engine Engine) []Tier {
	if !cfg.Translation.Enabled || engine == nil {
		return nil
	}
	tiers := make([]Tier, 0, len(cfg.Translation.Modes))
	for _, mode := range cfg.Translation.Modes {
		tierEngine := engine
		if mode == config.ModeTransliterate && servesTarget(cfg.Translation.TargetLanguage) {
			tierEngine = RomanizeEngine{}
		}
		tiers = append(tiers, Tier{Mode: mode, Engine: tierEngine})
	}
	return tiers
}

// Target returns the target language code.
func (t *Translator) Target() string {
	return t.target
}

// IsLocal reports whether s is already written in the target script.
func (t *Translator) IsLocal(s string) bool {
	return language.InLocalScript(s, t.target)
}

// Translate returns translations for the terms it could resolve. Terms
// already in the target script map to themselves. Engine errors are logged
// and the affected terms fall through to the next tier; only when every tier
// failed with an error is ErrProviderFetch returned alongside the partial
// result.
func (t *Translator) Translate(ctx context.Context, terms []string, hint string) (map[string]string, error) {
	out := make(map[string]string, len(terms))
	var pending []string
	seen := make(map[string]struct{}, len(terms))
	for _, raw := range terms {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		if t.IsLocal(term) {
			out[term] = term
			continue
		}
		if t.cache != nil {
			entry, ok, err := t.cache.Get(term)
			if err != nil {
				logging.WarnWithContext(t.logger, "translation cache read failed", "translate_cache",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check translation cache file permissions"),
					logging.String(logging.FieldImpact, "term sent to engines uncached"),
				)
			} else if ok {
				out[term] = entry.Translation
				continue
			}
		}
		pending = append(pending, term)
	}
	if len(pending) == 0 || len(t.tiers) == 0 {
		return out, nil
	}

	var tierErrs []error
	for _, tier := range t.tiers {
		if len(pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, services.Cancelled(err)
		}
		results, err := tier.Engine.BatchTranslate(ctx, pending, tier.Mode, hint)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, services.Cancelled(ctxErr)
			}
			tierErrs = append(tierErrs, fmt.Errorf("%s: %w", tier.Mode, err))
			logging.WarnWithContext(t.logger, "translation tier failed", "translate_tier",
				logging.String("mode", tier.Mode),
				logging.String("engine", tier.Engine.Name()),
				logging.Int("terms", len(pending)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check llm api key and quota"),
				logging.String(logging.FieldImpact, "terms escalate to the next tier"),
			)
		}
		var failed []string
		for _, term := range pending {
			value := strings.TrimSpace(results[term])
			if value == "" || value == term || !t.IsLocal(value) {
				failed = append(failed, term)
				continue
			}
			out[term] = value
			if t.cache != nil {
				if err := t.cache.Put(Entry{Term: term, Translation: value, Engine: tier.Engine.Name(), Mode: tier.Mode}); err != nil {
					t.logger.Warn("translation cache write failed", logging.Error(err))
				}
			}
		}
		t.logger.Debug("translation tier complete",
			logging.String("mode", tier.Mode),
			logging.Int("translated", len(pending)-len(failed)),
			logging.Int("remaining", len(failed)),
		)
		pending = failed
	}

	if len(tierErrs) == len(t.tiers) {
		return out, services.Wrap(services.ErrProviderFetch, "translate", "batch translate",
			fmt.Sprintf("%d terms untranslated", len(pending)), errors.Join(tierErrs...))
	}
	return out, nil
}

// ReverseLookup maps a localised display name back to the original it was
// cached from.
func (t *Translator) ReverseLookup(display string) (string, bool) {
	if t == nil || t.cache == nil {
		return "", false
	}
	original, ok, err := t.cache.Reverse(display)
	if err != nil {
		t.logger.Warn("translation reverse lookup failed", logging.Error(err))
		return "", false
	}
	return original, ok
}
