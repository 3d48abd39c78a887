package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"curator/internal/cast"
	"curator/internal/host"
	"curator/internal/logging"
	"curator/internal/provider/douban"
	"curator/internal/provider/tmdb"
	"curator/internal/services"
	"curator/internal/store"
)

// resolved is the provider view of one unit before the dual write.
type resolved struct {
	details *tmdb.Details
	seasons []tmdb.SeasonDetails
}

// fetch loads primary metadata for the unit's TMDB id.
func (o *Orchestrator) fetch(ctx context.Context, u *unit) (*resolved, error) {
	switch u.itemType {
	case store.ItemMovie:
		details, err := o.primary.GetDetails(ctx, u.tmdbID, tmdb.MediaMovie, o.language)
		if err != nil {
			return nil, providerError(ctx, "details", u, err)
		}
		return &resolved{details: details}, nil
	default:
		agg, err := o.primary.AggregateSeriesData(ctx, u.tmdbID)
		if err != nil {
			return nil, providerError(ctx, "series", u, err)
		}
		return &resolved{details: agg.Details, seasons: agg.Seasons}, nil
	}
}

func providerError(ctx context.Context, op string, u *unit, err error) error {
	if c := services.Cancelled(ctx.Err()); c != nil {
		return c
	}
	if errors.Is(err, services.ErrCancelled) {
		return err
	}
	return services.Wrap(services.ErrProviderFetch, "fetch", op, u.key.String(), err)
}

// fullResolution runs the provider branch: fetch, reconcile cast, dual write.
func (o *Orchestrator) fullResolution(ctx context.Context, u *unit, existing *store.Record) (Payload, cast.Result, error) {
	logger := logging.WithContext(ctx, o.logger)
	res, err := o.fetch(ctx, u)
	if err != nil {
		return Payload{}, cast.Result{}, err
	}
	details := res.details
	u.displayName = displayName(details.DisplayTitle(), details.Year())

	secondary := o.secondaryCandidates(ctx, u, details)
	if err := services.Cancelled(ctx.Err()); err != nil {
		return Payload{}, cast.Result{}, err
	}
	castResult, err := o.cast.Reconcile(ctx, cast.Input{
		Host:      hostActors(u.item),
		Primary:   primaryCandidates(details.Credits.Cast),
		Secondary: secondary,
		Context:   firstNonEmpty(details.Original(), details.DisplayTitle()),
	})
	if err != nil {
		if errors.Is(err, services.ErrCancelled) {
			return Payload{}, castResult, err
		}
		return Payload{}, castResult, services.Wrap(services.ErrProviderFetch, "cast", "reconcile", u.key.String(), err)
	}
	if castResult.RowErrors > 0 {
		logging.WarnWithContext(logger, "some actor rows were not persisted", "cast_row_errors",
			logging.Int("row_errors", castResult.RowErrors),
			logging.Int("persisted", castResult.Persisted),
			logging.String(logging.FieldImpact, "failed actors are retried on the next refresh"),
		)
	}

	rec := &store.Record{
		Key:           u.key,
		Title:         details.DisplayTitle(),
		OriginalTitle: details.Original(),
		Year:          details.Year(),
		Overview:      details.Overview,
		Genres:        details.GenreNames(),
		PosterPath:    details.PosterPath,
		BackdropPath:  details.BackdropPath,
		Cast:          cast.Entries(castResult.Members),
		ExpectedCast:  o.expectedCast(len(details.Credits.Cast)),
		InLibrary:     true,
		HostItemID:    u.item.ID,
		TotalEpisodes: details.NumberOfEpisodes,
	}
	if existing != nil {
		rec.SubscriptionStatus = existing.SubscriptionStatus
	}
	var children []store.Child
	if u.itemType == store.ItemSeries {
		children, err = o.seriesChildren(ctx, u, res.seasons)
		if err != nil {
			return Payload{}, castResult, err
		}
	}
	payload, err := o.writer.Write(ctx, Payload{Record: rec, Children: children})
	if err != nil {
		return payload, castResult, err
	}
	return payload, castResult, nil
}

func (o *Orchestrator) expectedCast(listed int) int {
	if o.castCap > 0 && listed > o.castCap {
		return o.castCap
	}
	return listed
}

// secondaryCandidates collects the secondary provider's cast list. Any
// failure short of cancellation is logged and reconciliation continues
// without it.
func (o *Orchestrator) secondaryCandidates(ctx context.Context, u *unit, details *tmdb.Details) []cast.SecondaryList {
	if o.secondary == nil {
		return nil
	}
	logger := logging.WithContext(ctx, o.logger)
	mediaType := tmdb.MediaMovie
	if u.itemType == store.ItemSeries {
		mediaType = tmdb.MediaTV
	}
	subject, err := o.secondary.MatchIdentity(ctx, firstNonEmpty(details.DisplayTitle(), details.Original()), details.ExternalIDs.IMDbID, mediaType, details.Year())
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Debug("no secondary match", logging.MediaKey(string(u.key.ItemType), u.key.ExternalID))
		} else if ctx.Err() == nil {
			logging.WarnWithContext(logger, "secondary provider lookup failed", "secondary_match_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "cast built from primary provider only"),
			)
		}
		return nil
	}
	credits, err := o.secondary.GetCredits(ctx, subject.ID, mediaType)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "secondary credits unavailable", "secondary_credits_failed",
				logging.String("subject_id", subject.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "cast built from primary provider only"),
			)
		}
		return nil
	}
	return []cast.SecondaryList{{Source: cast.IDDouban, Candidates: secondaryFromCredits(credits)}}
}

func secondaryFromCredits(credits []douban.Credit) []cast.Candidate {
	out := make([]cast.Candidate, 0, len(credits))
	for _, c := range credits {
		out = append(out, cast.Candidate{
			SourceID:     c.ID,
			ExternalIDs:  map[string]string{cast.IDDouban: c.ID},
			Name:         c.Name,
			OriginalName: c.LatinName,
			Character:    c.Character,
			Order:        cast.NoOrder,
		})
	}
	return out
}

func primaryCandidates(members []tmdb.CastMember) []cast.Candidate {
	out := make([]cast.Candidate, 0, len(members))
	for _, m := range members {
		id := strconv.FormatInt(m.ID, 10)
		out = append(out, cast.Candidate{
			SourceID:     id,
			ExternalIDs:  map[string]string{cast.IDTMDB: id},
			Name:         m.Name,
			OriginalName: firstNonEmpty(m.OriginalName, m.Name),
			Character:    m.Character,
			Order:        m.Order,
			ProfilePath:  m.ProfilePath,
		})
	}
	return out
}

func hostActors(item *host.Item) []cast.HostActor {
	people := item.Actors()
	out := make([]cast.HostActor, 0, len(people))
	for _, p := range people {
		out = append(out, cast.HostActor{
			HostID:      p.ID,
			Name:        p.Name,
			Role:        p.Role,
			ExternalIDs: p.ProviderIDs,
		})
	}
	return out
}

type episodeKey struct{ season, episode int }

// seriesChildren projects provider seasons onto child rows. In-library flags
// come from the rows already stored plus the leaf items carried by the unit.
func (o *Orchestrator) seriesChildren(ctx context.Context, u *unit, seasons []tmdb.SeasonDetails) ([]store.Child, error) {
	existing, err := o.store.ListChildren(ctx, u.key.ExternalID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "fetch", "list children", u.key.String(), err)
	}
	owned := make(map[episodeKey]string, len(existing))
	for _, child := range existing {
		if child.InLibrary {
			owned[episodeKey{child.SeasonNumber, child.EpisodeNumber}] = child.HostItemID
		}
	}
	for _, leaf := range o.hostLeaves(ctx, u) {
		switch leaf.Type {
		case host.TypeEpisode:
			owned[episodeKey{leaf.ParentIndexNumber, leaf.IndexNumber}] = leaf.ID
		case host.TypeSeason:
			owned[episodeKey{leaf.IndexNumber, 0}] = leaf.ID
		}
	}

	var children []store.Child
	for _, season := range seasons {
		seasonHostID, seasonOwned := owned[episodeKey{season.SeasonNumber, 0}]
		var episodes []store.Child
		for _, ep := range season.Episodes {
			hostID, ok := owned[episodeKey{ep.SeasonNumber, ep.EpisodeNumber}]
			if ok {
				seasonOwned = true
			}
			episodes = append(episodes, store.Child{
				ParentExternalID: u.key.ExternalID,
				ItemType:         store.ItemEpisode,
				SeasonNumber:     ep.SeasonNumber,
				EpisodeNumber:    ep.EpisodeNumber,
				Title:            ep.Name,
				Overview:         ep.Overview,
				AirDate:          ep.AirDate,
				AssetPath:        ep.StillPath,
				InLibrary:        ok,
				HostItemID:       hostID,
			})
		}
		children = append(children, store.Child{
			ParentExternalID: u.key.ExternalID,
			ItemType:         store.ItemSeason,
			SeasonNumber:     season.SeasonNumber,
			Title:            season.Name,
			Overview:         season.Overview,
			AirDate:          season.AirDate,
			AssetPath:        season.PosterPath,
			EpisodeCount:     len(season.Episodes),
			InLibrary:        seasonOwned,
			HostItemID:       seasonHostID,
		})
		children = append(children, episodes...)
	}
	return children, nil
}

// hostLeaves loads the unit's child items from the host. A failed lookup
// only costs the in-library flags of new episodes.
func (o *Orchestrator) hostLeaves(ctx context.Context, u *unit) []host.Item {
	ids := u.work.ChildIDs()
	if len(ids) == 0 {
		return nil
	}
	items, err := o.host.GetItemsByIDs(ctx, ids, "ProviderIds", "Path")
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logging.WithContext(ctx, o.logger), "episode lookup failed", "host_leaves_failed",
				logging.Int("episodes", len(ids)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "new episodes stay unflagged until the next refresh"),
			)
		}
		return nil
	}
	return items
}

// syncLeaves flags the stored rows of episodes and seasons the unit found on
// the host. It reports whether any row changed.
func (o *Orchestrator) syncLeaves(ctx context.Context, u *unit) (bool, error) {
	if u.itemType != store.ItemSeries {
		return false, nil
	}
	leaves := o.hostLeaves(ctx, u)
	if len(leaves) == 0 {
		return false, nil
	}
	refs := make([]store.ChildRef, 0, 2*len(leaves))
	for _, leaf := range leaves {
		switch leaf.Type {
		case host.TypeEpisode:
			refs = append(refs,
				store.ChildRef{SeasonNumber: leaf.ParentIndexNumber, EpisodeNumber: leaf.IndexNumber, HostItemID: leaf.ID},
				store.ChildRef{SeasonNumber: leaf.ParentIndexNumber})
		case host.TypeSeason:
			refs = append(refs, store.ChildRef{SeasonNumber: leaf.IndexNumber, HostItemID: leaf.ID})
		}
	}
	changed, err := o.store.MarkChildrenInLibrary(ctx, u.key.ExternalID, refs)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "confirm", "flag children", u.key.String(), err)
	}
	return changed > 0, nil
}

func displayName(title string, year int) string {
	title = strings.TrimSpace(title)
	if year > 0 && title != "" {
		return title + " (" + strconv.Itoa(year) + ")"
	}
	return title
}
