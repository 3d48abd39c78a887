package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const recordColumns = "external_id, item_type, title, original_title, year, overview, genres_json, poster_path, backdrop_path, cast_json, expected_cast, in_library, subscription_status, host_item_id, total_episodes, total_episodes_locked, last_synced_at, created_at, updated_at"

const childColumns = "parent_external_id, item_type, season_number, episode_number, title, overview, air_date, asset_path, in_library, host_item_id, episode_count, count_locked, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		externalID    string
		itemType      string
		title         sql.NullString
		originalTitle sql.NullString
		year          int
		overview      sql.NullString
		genres        sql.NullString
		poster        sql.NullString
		backdrop      sql.NullString
		castJSON      sql.NullString
		expectedCast  int
		inLibrary     int
		subscription  string
		hostItemID    sql.NullString
		totalEpisodes int
		totalLocked   int
		lastSynced    sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)
	if err := scanner.Scan(
		&externalID, &itemType, &title, &originalTitle, &year, &overview, &genres,
		&poster, &backdrop, &castJSON, &expectedCast, &inLibrary, &subscription,
		&hostItemID, &totalEpisodes, &totalLocked, &lastSynced, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &Record{
		Key:                 Key{ExternalID: externalID, ItemType: ItemType(itemType)},
		Title:               title.String,
		OriginalTitle:       originalTitle.String,
		Year:                year,
		Overview:            overview.String,
		Genres:              decodeStrings(genres),
		PosterPath:          poster.String,
		BackdropPath:        backdrop.String,
		ExpectedCast:        expectedCast,
		InLibrary:           inLibrary != 0,
		SubscriptionStatus:  SubscriptionStatus(subscription),
		HostItemID:          hostItemID.String,
		TotalEpisodes:       totalEpisodes,
		TotalEpisodesLocked: totalLocked != 0,
		CreatedAt:           parseNullTime(createdRaw),
		UpdatedAt:           parseNullTime(updatedRaw),
	}
	if castJSON.Valid && castJSON.String != "" {
		if err := json.Unmarshal([]byte(castJSON.String), &rec.Cast); err != nil {
			return nil, fmt.Errorf("decode cast for %s: %w", rec.Key, err)
		}
	}
	if lastSynced.Valid {
		if t, err := parseTimeString(lastSynced.String); err == nil {
			rec.LastSyncedAt = &t
		}
	}
	return rec, nil
}

func scanChild(scanner interface{ Scan(dest ...any) error }) (Child, error) {
	var (
		child      Child
		itemType   string
		title      sql.NullString
		overview   sql.NullString
		airDate    sql.NullString
		asset      sql.NullString
		inLibrary  int
		hostItemID sql.NullString
		locked     int
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&child.ParentExternalID, &itemType, &child.SeasonNumber, &child.EpisodeNumber,
		&title, &overview, &airDate, &asset, &inLibrary, &hostItemID,
		&child.EpisodeCount, &locked, &updatedRaw,
	); err != nil {
		return Child{}, err
	}
	child.ItemType = ItemType(itemType)
	child.Title = title.String
	child.Overview = overview.String
	child.AirDate = airDate.String
	child.AssetPath = asset.String
	child.InLibrary = inLibrary != 0
	child.HostItemID = hostItemID.String
	child.CountLocked = locked != 0
	child.UpdatedAt = parseNullTime(updatedRaw)
	return child, nil
}

// GetRecord fetches the record for key. A missing record returns nil, nil.
func (s *Store) GetRecord(ctx context.Context, key Key) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM media_records WHERE external_id = ? AND item_type = ?`,
		key.ExternalID, string(key.ItemType))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", key, err)
	}
	return rec, nil
}

// FindByHostItemID returns the record last bound to a host item id.
func (s *Store) FindByHostItemID(ctx context.Context, hostItemID string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM media_records WHERE host_item_id = ? ORDER BY updated_at DESC LIMIT 1`,
		hostItemID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find record by host id: %w", err)
	}
	return rec, nil
}

// ListChildren returns every season and episode row for a parent, ordered by
// season then episode.
func (s *Store) ListChildren(ctx context.Context, parentExternalID string) ([]Child, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+childColumns+` FROM media_children WHERE parent_external_id = ? ORDER BY season_number, episode_number`,
		parentExternalID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []Child
	for rows.Next() {
		child, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

// UpsertHierarchy writes the parent record and its children in one
// transaction. Locked counts are never overwritten, and an existing
// subscription status survives an incoming "none".
func (s *Store) UpsertHierarchy(ctx context.Context, rec *Record, children []Child) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if !rec.Key.Valid() {
		return fmt.Errorf("record key %q is incomplete", rec.Key)
	}
	castJSON, err := EncodeCast(rec.Cast)
	if err != nil {
		return fmt.Errorf("encode cast: %w", err)
	}
	genres, err := encodeStrings(rec.Genres)
	if err != nil {
		return fmt.Errorf("encode genres: %w", err)
	}
	ctx = ensureContext(ctx)
	status := rec.SubscriptionStatus
	if status == "" {
		status = SubscriptionNone
	}
	now := s.timestamp()
	synced := rec.LastSyncedAt
	if synced == nil {
		t := s.now()
		synced = &t
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO media_records (
    external_id, item_type, title, original_title, year, overview, genres_json,
    poster_path, backdrop_path, cast_json, expected_cast, in_library, subscription_status,
    host_item_id, total_episodes, total_episodes_locked, last_synced_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(external_id, item_type) DO UPDATE SET
    title = excluded.title,
    original_title = excluded.original_title,
    year = excluded.year,
    overview = excluded.overview,
    genres_json = excluded.genres_json,
    poster_path = excluded.poster_path,
    backdrop_path = excluded.backdrop_path,
    cast_json = excluded.cast_json,
    expected_cast = excluded.expected_cast,
    in_library = excluded.in_library,
    subscription_status = CASE WHEN excluded.subscription_status = 'none'
        THEN media_records.subscription_status ELSE excluded.subscription_status END,
    host_item_id = COALESCE(excluded.host_item_id, media_records.host_item_id),
    total_episodes = CASE WHEN media_records.total_episodes_locked = 1
        THEN media_records.total_episodes ELSE excluded.total_episodes END,
    total_episodes_locked = MAX(media_records.total_episodes_locked, excluded.total_episodes_locked),
    last_synced_at = excluded.last_synced_at,
    updated_at = excluded.updated_at`,
			rec.ExternalID, string(rec.ItemType),
			nullableString(rec.Title), nullableString(rec.OriginalTitle), rec.Year,
			nullableString(rec.Overview), genres,
			nullableString(rec.PosterPath), nullableString(rec.BackdropPath),
			string(castJSON), rec.ExpectedCast, boolToInt(rec.InLibrary), string(status),
			nullableString(rec.HostItemID), rec.TotalEpisodes, boolToInt(rec.TotalEpisodesLocked),
			nullableTime(synced), now, now,
		)
		if err != nil {
			return fmt.Errorf("upsert record %s: %w", rec.Key, err)
		}

		for _, child := range children {
			parent := child.ParentExternalID
			if parent == "" {
				parent = rec.ExternalID
			}
			_, err := tx.ExecContext(ctx, `
INSERT INTO media_children (
    parent_external_id, item_type, season_number, episode_number, title, overview,
    air_date, asset_path, in_library, host_item_id, episode_count, count_locked, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(parent_external_id, season_number, episode_number) DO UPDATE SET
    item_type = excluded.item_type,
    title = excluded.title,
    overview = excluded.overview,
    air_date = excluded.air_date,
    asset_path = excluded.asset_path,
    in_library = excluded.in_library,
    host_item_id = COALESCE(excluded.host_item_id, media_children.host_item_id),
    episode_count = CASE WHEN media_children.count_locked = 1
        THEN media_children.episode_count ELSE excluded.episode_count END,
    count_locked = MAX(media_children.count_locked, excluded.count_locked),
    updated_at = excluded.updated_at`,
				parent, string(child.ItemType), child.SeasonNumber, child.EpisodeNumber,
				nullableString(child.Title), nullableString(child.Overview),
				nullableString(child.AirDate), nullableString(child.AssetPath),
				boolToInt(child.InLibrary), nullableString(child.HostItemID),
				child.EpisodeCount, boolToInt(child.CountLocked), now,
			)
			if err != nil {
				return fmt.Errorf("upsert child S%02dE%02d of %s: %w", child.SeasonNumber, child.EpisodeNumber, rec.Key, err)
			}
		}
		return nil
	})
}

// SetInLibrary flips the in-library flag on an existing record, binding the
// host item id when one is given. It reports whether a row was touched.
func (s *Store) SetInLibrary(ctx context.Context, key Key, inLibrary bool, hostItemID string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE media_records
         SET in_library = ?, host_item_id = COALESCE(?, host_item_id), updated_at = ?
         WHERE external_id = ? AND item_type = ?`,
		boolToInt(inLibrary), nullableString(hostItemID), s.timestamp(),
		key.ExternalID, string(key.ItemType))
	if err != nil {
		return false, fmt.Errorf("set in-library for %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetSubscriptionStatus updates the subscription workflow state of a record.
func (s *Store) SetSubscriptionStatus(ctx context.Context, key Key, status SubscriptionStatus) error {
	switch status {
	case SubscriptionNone, SubscriptionWanted, SubscriptionSubscribed, SubscriptionPaused, SubscriptionIgnored:
	default:
		return fmt.Errorf("unknown subscription status %q", status)
	}
	_, err := s.execWithRetry(ctx,
		`UPDATE media_records SET subscription_status = ?, updated_at = ? WHERE external_id = ? AND item_type = ?`,
		string(status), s.timestamp(), key.ExternalID, string(key.ItemType))
	if err != nil {
		return fmt.Errorf("set subscription status for %s: %w", key, err)
	}
	return nil
}

// MarkChildrenOffline clears the in-library flag on every child bound to the
// given host item id. Used when an episode disappears from the host.
func (s *Store) MarkChildrenOffline(ctx context.Context, hostItemID string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE media_children SET in_library = 0, updated_at = ? WHERE host_item_id = ?`,
		s.timestamp(), hostItemID)
	if err != nil {
		return 0, fmt.Errorf("mark children offline: %w", err)
	}
	return res.RowsAffected()
}

// MarkChildrenInLibrary flags the referenced child rows of a parent as in
// library. Rows that are already flagged are left alone; the count of rows
// that changed is returned. Refs without a stored row are ignored.
func (s *Store) MarkChildrenInLibrary(ctx context.Context, parentExternalID string, refs []ChildRef) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	var changed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		changed = 0
		now := s.timestamp()
		for _, ref := range refs {
			res, err := tx.ExecContext(ctx,
				`UPDATE media_children
                 SET in_library = 1, host_item_id = COALESCE(?, host_item_id), updated_at = ?
                 WHERE parent_external_id = ? AND season_number = ? AND episode_number = ? AND in_library = 0`,
				nullableString(ref.HostItemID), now, parentExternalID, ref.SeasonNumber, ref.EpisodeNumber)
			if err != nil {
				return fmt.Errorf("flag child S%02dE%02d of %s: %w", ref.SeasonNumber, ref.EpisodeNumber, parentExternalID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}
