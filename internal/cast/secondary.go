package cast

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"curator/internal/logging"
	"curator/internal/store"
	"curator/internal/textutil"
)

type pending struct {
	source string
	cand   Candidate
}

// mergeSecondary claims at most one member per secondary candidate within
// each list and returns the candidates nobody claimed.
func (e *Engine) mergeSecondary(ctx context.Context, members []Member, lists []SecondaryList) ([]pending, error) {
	var leftovers []pending
	for _, list := range lists {
		source := strings.ToLower(strings.TrimSpace(list.Source))
		if source == "" {
			source = IDDouban
		}
		claimed := make([]bool, len(members))
		for _, cand := range list.Candidates {
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
			idx := -1
			for i := range members {
				if !claimed[i] && sameActor(members[i], cand) {
					idx = i
					break
				}
			}
			if idx < 0 {
				leftovers = append(leftovers, pending{source: source, cand: cand})
				continue
			}
			claimed[idx] = true
			m := &members[idx]
			m.Character = moreComplete(m.Character, cand.Character)
			if id := strings.TrimSpace(cand.SourceID); id != "" {
				m.ExternalIDs[source] = id
			}
			mergeIDs(m.ExternalIDs, cand.ExternalIDs)
			if tmdbID := m.TMDBID(); tmdbID != 0 && cand.SourceID != "" {
				if err := e.actors.SaveXref(ctx, source, cand.SourceID, tmdbID); err != nil {
					if isCancel(ctx, err) {
						return nil, cancelled(ctx, err)
					}
					logging.WarnWithContext(e.logger, "actor cross-reference not saved", "cast_xref_failed",
						logging.String("actor", m.Name),
						logging.String("source", source),
						logging.Error(err),
						logging.String(logging.FieldImpact, "the same actor will be resolved remotely next time"),
					)
				}
			}
		}
	}
	return leftovers, nil
}

func sameActor(m Member, cand Candidate) bool {
	for _, a := range []string{cand.Name, cand.OriginalName} {
		if textutil.EqualNames(a, m.Name) || textutil.EqualNames(a, m.OriginalName) {
			return true
		}
	}
	return false
}

// moreComplete keeps the longer of two role strings, the first on a tie.
func moreComplete(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if utf8.RuneCountInString(b) > utf8.RuneCountInString(a) {
		return b
	}
	return a
}

// supplement adds unmatched secondary candidates until the cap is reached.
func (e *Engine) supplement(ctx context.Context, members []Member, leftovers []pending) ([]Member, int, error) {
	discarded := 0
	for i, p := range leftovers {
		if err := checkContext(ctx); err != nil {
			return nil, 0, err
		}
		if e.limits.MaxMembers > 0 && len(members) >= e.limits.MaxMembers {
			discarded += len(leftovers) - i
			break
		}
		m, ok, err := e.resolveSecondary(ctx, p)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			discarded++
			continue
		}
		if idx := indexByTMDB(members, m.TMDBID()); idx >= 0 {
			mergeIDs(members[idx].ExternalIDs, m.ExternalIDs)
			discarded++
			continue
		}
		members = append(members, m)
	}
	return members, discarded, nil
}

// resolveSecondary walks the identity fallback chain for one candidate:
// cross-reference by secondary id, cross-reference by a fetched IMDb id, then
// a primary provider search by IMDb id. Only the first two steps touch the
// remote secondary provider once at most.
func (e *Engine) resolveSecondary(ctx context.Context, p pending) (Member, bool, error) {
	cand := p.cand
	ids := copyIDs(cand.ExternalIDs)
	sourceID := strings.TrimSpace(cand.SourceID)
	if sourceID != "" {
		ids[p.source] = sourceID
	}

	var tmdbID int64
	if sourceID != "" {
		id, ok, err := e.actors.LookupXref(ctx, p.source, sourceID)
		if err != nil {
			if isCancel(ctx, err) {
				return Member{}, false, cancelled(ctx, err)
			}
			e.warnLookup(cand, "xref", err)
		} else if ok {
			tmdbID = id
		}
	}

	imdb := ids[IDIMDB]
	if tmdbID == 0 && imdb == "" && sourceID != "" && e.secondary != nil {
		fetched, err := e.secondary.PersonExternalID(ctx, sourceID)
		if err != nil {
			if isCancel(ctx, err) {
				return Member{}, false, cancelled(ctx, err)
			}
			e.warnLookup(cand, "secondary_person", err)
		}
		if imdb = strings.TrimSpace(fetched); imdb != "" {
			ids[IDIMDB] = imdb
		}
	}
	if tmdbID == 0 && imdb != "" {
		id, ok, err := e.actors.LookupXref(ctx, store.XrefIMDB, imdb)
		if err != nil {
			if isCancel(ctx, err) {
				return Member{}, false, cancelled(ctx, err)
			}
			e.warnLookup(cand, "imdb_xref", err)
		} else if ok {
			tmdbID = id
		}
	}
	profile := strings.TrimSpace(cand.ProfilePath)
	if tmdbID == 0 && imdb != "" && e.people != nil {
		found, err := e.people.FindByExternalID(ctx, "imdb_id", imdb)
		if err != nil {
			if isCancel(ctx, err) {
				return Member{}, false, cancelled(ctx, err)
			}
			e.warnLookup(cand, "primary_find", err)
		} else if found != nil && len(found.PersonResults) > 0 {
			tmdbID = found.PersonResults[0].ID
			if profile == "" {
				profile = found.PersonResults[0].ProfilePath
			}
		}
	}

	if tmdbID == 0 && imdb == "" {
		return Member{}, false, nil
	}
	if tmdbID != 0 {
		ids[IDTMDB] = strconv.FormatInt(tmdbID, 10)
		e.saveXref(ctx, p.source, sourceID, tmdbID)
		e.saveXref(ctx, store.XrefIMDB, imdb, tmdbID)
	}
	name := firstNonEmpty(cand.Name, cand.OriginalName)
	return Member{
		ExternalIDs:  ids,
		Name:         name,
		OriginalName: firstNonEmpty(cand.OriginalName, name),
		Character:    strings.TrimSpace(cand.Character),
		Order:        NoOrder,
		ProfilePath:  profile,
		Provenance:   ProvenanceSecondary,
	}, true, nil
}

func (e *Engine) saveXref(ctx context.Context, source, sourceID string, tmdbID int64) {
	if sourceID == "" {
		return
	}
	if err := e.actors.SaveXref(ctx, source, sourceID, tmdbID); err != nil {
		e.logger.Debug("xref save failed", logging.String("source", source), logging.Error(err))
	}
}

func (e *Engine) warnLookup(cand Candidate, step string, err error) {
	logging.WarnWithContext(e.logger, "secondary actor lookup failed", "cast_secondary_lookup_failed",
		logging.String("actor", firstNonEmpty(cand.Name, cand.OriginalName)),
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldImpact, "actor may be discarded from the supplemented cast"),
	)
}

func indexByTMDB(members []Member, id int64) int {
	if id == 0 {
		return -1
	}
	for i, m := range members {
		if m.TMDBID() == id {
			return i
		}
	}
	return -1
}
