package cast

import (
	"context"
	"sort"
	"strings"

	"curator/internal/logging"
	"curator/internal/store"
)

// backfillImages fills missing profile paths from the actor cache first and
// then with one primary provider call per member.
func (e *Engine) backfillImages(ctx context.Context, members []Member) error {
	for i := range members {
		if err := checkContext(ctx); err != nil {
			return err
		}
		m := &members[i]
		id := m.TMDBID()
		if m.ProfilePath != "" || id == 0 {
			continue
		}
		actor, err := e.actors.ActorByTMDB(ctx, id)
		if err != nil && isCancel(ctx, err) {
			return cancelled(ctx, err)
		}
		if err == nil && actor != nil && actor.ProfilePath != "" {
			m.ProfilePath = actor.ProfilePath
			continue
		}
		if e.people == nil {
			continue
		}
		person, err := e.people.GetPerson(ctx, id)
		if err != nil {
			if isCancel(ctx, err) {
				return cancelled(ctx, err)
			}
			e.logger.Debug("profile image lookup failed", logging.String("actor", m.Name), logging.Error(err))
			continue
		}
		m.ProfilePath = strings.TrimSpace(person.ProfilePath)
		if imdb := person.IMDb(); imdb != "" && m.ExternalIDs[IDIMDB] == "" {
			m.ExternalIDs[IDIMDB] = imdb
		}
	}
	return nil
}

func dropImageless(members []Member) []Member {
	out := members[:0]
	for _, m := range members {
		if m.ProfilePath != "" {
			out = append(out, m)
		}
	}
	return out
}

// truncate orders members by billing and caps the list. Over the cap, every
// member with an image precedes every member without one.
func truncate(members []Member, max int) []Member {
	byOrder := func(list []Member) {
		sort.SliceStable(list, func(i, j int) bool {
			return sortOrder(list[i].Order) < sortOrder(list[j].Order)
		})
	}
	if max <= 0 || len(members) <= max {
		byOrder(members)
		return members
	}
	withImage := make([]Member, 0, len(members))
	without := make([]Member, 0, len(members))
	for _, m := range members {
		if m.ProfilePath != "" {
			withImage = append(withImage, m)
		} else {
			without = append(without, m)
		}
	}
	byOrder(withImage)
	byOrder(without)
	return append(withImage, without...)[:max]
}

// localize translates every name and role not already in the target script.
// Translation failures keep the untranslated text.
func (e *Engine) localize(ctx context.Context, members []Member, hint string) error {
	if e.translator == nil || len(members) == 0 {
		return nil
	}
	terms := make([]string, 0, len(members)*2)
	for _, m := range members {
		for _, s := range []string{m.Name, m.Character} {
			if s != "" && !e.translator.IsLocal(s) {
				terms = append(terms, s)
			}
		}
	}
	if len(terms) == 0 {
		return nil
	}
	translated, err := e.translator.Translate(ctx, terms, hint)
	if err != nil {
		if isCancel(ctx, err) {
			return cancelled(ctx, err)
		}
		logging.WarnWithContext(e.logger, "cast translation incomplete", "cast_translation_failed",
			logging.Int("terms", len(terms)),
			logging.Int("translated", len(translated)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "some names stay in their original script"),
		)
	}
	for i := range members {
		m := &members[i]
		if t := strings.TrimSpace(translated[m.Name]); t != "" {
			if m.OriginalName == "" {
				m.OriginalName = m.Name
			}
			m.Name = t
		}
		if t := strings.TrimSpace(translated[m.Character]); t != "" {
			m.Character = t
		}
	}
	return nil
}

func finalize(members []Member) {
	for i := range members {
		members[i].Order = i
		if members[i].ExternalIDs == nil {
			members[i].ExternalIDs = map[string]string{}
		}
	}
}

// persist upserts each member in its own transaction. A failing row is
// logged and skipped.
func (e *Engine) persist(ctx context.Context, members []Member) (int, int, error) {
	persisted, rowErrors := 0, 0
	for _, m := range members {
		if err := checkContext(ctx); err != nil {
			return persisted, rowErrors, err
		}
		_, err := e.actors.UpsertActor(ctx, store.Actor{
			TMDBID:       m.TMDBID(),
			IMDBID:       m.ExternalIDs[IDIMDB],
			DoubanID:     m.ExternalIDs[IDDouban],
			HostID:       m.HostID,
			Name:         m.Name,
			OriginalName: m.OriginalName,
			ProfilePath:  m.ProfilePath,
		})
		if err != nil {
			if isCancel(ctx, err) {
				return persisted, rowErrors, cancelled(ctx, err)
			}
			rowErrors++
			logging.WarnWithContext(e.logger, "actor row not persisted", "cast_row_failed",
				logging.String("actor", m.Name),
				logging.Int("order", m.Order),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database health"),
				logging.String(logging.FieldImpact, "the remaining actors are still written"),
			)
			continue
		}
		persisted++
	}
	return persisted, rowErrors, nil
}
