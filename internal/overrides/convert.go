package overrides

import "curator/internal/store"

// FromRecord projects a record and its children into an override tree. Every
// season and episode document carries the record's cast list.
func FromRecord(rec *store.Record, children []store.Child) Tree {
	tree := Tree{Key: rec.Key}
	cast := append([]store.CastEntry{}, rec.Cast...)
	tree.Primary = Document{
		ID:               rec.ExternalID,
		Title:            rec.Title,
		OriginalTitle:    rec.OriginalTitle,
		Year:             rec.Year,
		Overview:         rec.Overview,
		PosterPath:       rec.PosterPath,
		BackdropPath:     rec.BackdropPath,
		NumberOfEpisodes: rec.TotalEpisodes,
		EpisodesLocked:   rec.TotalEpisodesLocked,
		ExpectedCast:     rec.ExpectedCast,
		HostItemID:       rec.HostItemID,
		Credits:          Credits{Cast: cast},
	}
	for _, genre := range rec.Genres {
		tree.Primary.Genres = append(tree.Primary.Genres, Genre{Name: genre})
	}
	if rec.ItemType != store.ItemSeries {
		return tree
	}
	for _, child := range children {
		switch child.ItemType {
		case store.ItemSeason:
			tree.Seasons = append(tree.Seasons, SeasonDocument{
				SeasonNumber: child.SeasonNumber,
				Name:         child.Title,
				Overview:     child.Overview,
				AirDate:      child.AirDate,
				PosterPath:   child.AssetPath,
				EpisodeCount: child.EpisodeCount,
				CountLocked:  child.CountLocked,
				InLibrary:    child.InLibrary,
				HostItemID:   child.HostItemID,
				Credits:      Credits{Cast: cast},
			})
		case store.ItemEpisode:
			tree.Episodes = append(tree.Episodes, EpisodeDocument{
				SeasonNumber:  child.SeasonNumber,
				EpisodeNumber: child.EpisodeNumber,
				Name:          child.Title,
				Overview:      child.Overview,
				AirDate:       child.AirDate,
				StillPath:     child.AssetPath,
				InLibrary:     child.InLibrary,
				HostItemID:    child.HostItemID,
				Credits:       Credits{Cast: cast},
			})
		}
	}
	return tree
}

// ToRecord rebuilds a record and its children from an override tree. The
// caller decides the in-library flag and subscription state.
func (t *Tree) ToRecord() (*store.Record, []store.Child) {
	rec := &store.Record{
		Key:                 t.Key,
		Title:               t.Primary.Title,
		OriginalTitle:       t.Primary.OriginalTitle,
		Year:                t.Primary.Year,
		Overview:            t.Primary.Overview,
		PosterPath:          t.Primary.PosterPath,
		BackdropPath:        t.Primary.BackdropPath,
		Cast:                append([]store.CastEntry{}, t.Primary.Credits.Cast...),
		ExpectedCast:        t.Primary.ExpectedCast,
		HostItemID:          t.Primary.HostItemID,
		TotalEpisodes:       t.Primary.NumberOfEpisodes,
		TotalEpisodesLocked: t.Primary.EpisodesLocked,
	}
	for _, genre := range t.Primary.Genres {
		rec.Genres = append(rec.Genres, genre.Name)
	}
	var children []store.Child
	for _, season := range t.Seasons {
		children = append(children, store.Child{
			ParentExternalID: t.Key.ExternalID,
			ItemType:         store.ItemSeason,
			SeasonNumber:     season.SeasonNumber,
			Title:            season.Name,
			Overview:         season.Overview,
			AirDate:          season.AirDate,
			AssetPath:        season.PosterPath,
			EpisodeCount:     season.EpisodeCount,
			CountLocked:      season.CountLocked,
			InLibrary:        season.InLibrary,
			HostItemID:       season.HostItemID,
		})
	}
	for _, episode := range t.Episodes {
		children = append(children, store.Child{
			ParentExternalID: t.Key.ExternalID,
			ItemType:         store.ItemEpisode,
			SeasonNumber:     episode.SeasonNumber,
			EpisodeNumber:    episode.EpisodeNumber,
			Title:            episode.Name,
			Overview:         episode.Overview,
			AirDate:          episode.AirDate,
			AssetPath:        episode.StillPath,
			InLibrary:        episode.InLibrary,
			HostItemID:       episode.HostItemID,
		})
	}
	return rec, children
}
