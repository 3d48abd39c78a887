package cast

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/textutil"
)

// Engine runs cast reconciliation. The zero value is not usable; build one
// with NewEngine.
type Engine struct {
	actors     ActorStore
	people     PersonDirectory
	secondary  SecondaryDirectory
	translator Translator
	limits     Limits
	logger     *slog.Logger
}

// Option wires an optional collaborator.
type Option func(*Engine)

// WithPeople enables primary-provider person lookups for supplementation and
// image backfill.
func WithPeople(people PersonDirectory) Option {
	return func(e *Engine) { e.people = people }
}

// WithSecondary enables remote external-id lookups for secondary persons.
func WithSecondary(dir SecondaryDirectory) Option {
	return func(e *Engine) { e.secondary = dir }
}

// WithTranslator enables name and role localization plus reverse matching.
func WithTranslator(t Translator) Option {
	return func(e *Engine) { e.translator = t }
}

// NewEngine constructs an engine persisting through actors.
func NewEngine(actors ActorStore, limits Limits, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		actors: actors,
		limits: limits,
		logger: logging.NewComponentLogger(logger, "cast"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile merges the input lists into the authoritative cast and persists
// every member's actor row.
func (e *Engine) Reconcile(ctx context.Context, in Input) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	var res Result

	primary, err := preClean(ctx, in.Primary)
	if err != nil {
		return res, err
	}
	members, err := e.matchHost(ctx, in.Host, primary)
	if err != nil {
		return res, err
	}
	leftovers, err := e.mergeSecondary(ctx, members, in.Secondary)
	if err != nil {
		return res, err
	}
	members, discarded, err := e.supplement(ctx, members, leftovers)
	if err != nil {
		return res, err
	}
	res.Discarded = discarded
	if err := e.backfillImages(ctx, members); err != nil {
		return res, err
	}
	if e.limits.DropWithoutImage {
		before := len(members)
		members = dropImageless(members)
		res.Discarded += before - len(members)
	}
	before := len(members)
	members = truncate(members, e.limits.MaxMembers)
	res.Discarded += before - len(members)

	if err := e.localize(ctx, members, in.Context); err != nil {
		return res, err
	}
	finalize(members)
	res.Members = members

	persisted, rowErrors, err := e.persist(ctx, members)
	res.Persisted, res.RowErrors = persisted, rowErrors
	if err != nil {
		return res, err
	}

	logger.Debug("cast reconciled",
		logging.Int("members", len(members)),
		logging.Int("host_actors", len(in.Host)),
		logging.Int("primary_candidates", len(in.Primary)),
		logging.Int("discarded", res.Discarded),
		logging.Int("row_errors", res.RowErrors),
	)
	return res, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return services.Cancelled(err)
	}
	return nil
}

func cancelled(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return services.Cancelled(ctxErr)
	}
	return services.Cancelled(err)
}

func isCancel(ctx context.Context, err error) bool {
	return errors.Is(err, services.ErrCancelled) || ctx.Err() != nil
}

// preClean collapses primary entries sharing a folded name, keeping the one
// billed highest. First-seen position is preserved.
func preClean(ctx context.Context, primary []Candidate) ([]Candidate, error) {
	out := make([]Candidate, 0, len(primary))
	index := make(map[string]int, len(primary))
	for _, cand := range primary {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		key := textutil.FoldName(cand.Name)
		if key == "" {
			key = textutil.FoldName(cand.OriginalName)
		}
		if key == "" {
			continue
		}
		if pos, ok := index[key]; ok {
			if sortOrder(cand.Order) < sortOrder(out[pos].Order) {
				out[pos] = cand
			}
			continue
		}
		index[key] = len(out)
		out = append(out, cand)
	}
	return out, nil
}

type matchRule func(host HostActor, reversed string, cand Candidate) bool

func matchByExternalID(host HostActor, _ string, cand Candidate) bool {
	for hk, hv := range host.ExternalIDs {
		hv = strings.TrimSpace(hv)
		if hv == "" {
			continue
		}
		for ck, cv := range cand.ExternalIDs {
			if strings.EqualFold(hk, ck) && hv == strings.TrimSpace(cv) {
				return true
			}
		}
	}
	return false
}

func matchByName(host HostActor, _ string, cand Candidate) bool {
	return textutil.EqualNames(host.Name, cand.OriginalName) || textutil.EqualNames(host.Name, cand.Name)
}

func matchByReverseLookup(_ HostActor, reversed string, cand Candidate) bool {
	if reversed == "" {
		return false
	}
	return textutil.EqualNames(reversed, cand.OriginalName) || textutil.EqualNames(reversed, cand.Name)
}

// matchHost binds host actors to primary entries. Rules run in precedence
// order across the whole list, so an external-id match is never stolen by a
// name match. Unbound primary entries become host-less members.
func (e *Engine) matchHost(ctx context.Context, hosts []HostActor, primary []Candidate) ([]Member, error) {
	reversed := make([]string, len(hosts))
	if e.translator != nil {
		for i, h := range hosts {
			if orig, ok := e.translator.ReverseLookup(h.Name); ok {
				reversed[i] = orig
			}
		}
	}

	bound := make([]int, len(primary))
	for i := range bound {
		bound[i] = -1
	}
	used := make([]bool, len(hosts))
	for _, rule := range []matchRule{matchByExternalID, matchByName, matchByReverseLookup} {
		for i, cand := range primary {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
			if bound[i] >= 0 {
				continue
			}
			for j, h := range hosts {
				if used[j] || !rule(h, reversed[j], cand) {
					continue
				}
				bound[i], used[j] = j, true
				break
			}
		}
	}

	members := make([]Member, 0, len(primary))
	for i, cand := range primary {
		m := Member{
			ExternalIDs:  copyIDs(cand.ExternalIDs),
			Name:         strings.TrimSpace(cand.Name),
			OriginalName: firstNonEmpty(cand.OriginalName, cand.Name),
			Character:    strings.TrimSpace(cand.Character),
			Order:        cand.Order,
			ProfilePath:  strings.TrimSpace(cand.ProfilePath),
			Provenance:   ProvenancePrimary,
		}
		if j := bound[i]; j >= 0 {
			h := hosts[j]
			m.HostID = h.HostID
			m.Provenance = ProvenanceHost
			mergeIDs(m.ExternalIDs, h.ExternalIDs)
			if m.Character == "" {
				m.Character = strings.TrimSpace(h.Role)
			}
			if e.isLocal(h.Name) && !e.isLocal(m.Name) {
				m.Name = strings.TrimSpace(h.Name)
			}
		}
		if m.Name == "" {
			m.Name = m.OriginalName
		}
		members = append(members, m)
	}
	return members, nil
}

func (e *Engine) isLocal(s string) bool {
	return e.translator != nil && strings.TrimSpace(s) != "" && e.translator.IsLocal(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
