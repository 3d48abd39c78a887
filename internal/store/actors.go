package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const actorColumns = "id, tmdb_id, imdb_id, douban_id, host_id, name, original_name, profile_path, updated_at"

// Cross-reference sources recorded in actor_xref.
const (
	XrefDouban = "douban"
	XrefIMDB   = "imdb"
)

func scanActor(scanner interface{ Scan(dest ...any) error }) (*Actor, error) {
	var (
		actor        Actor
		tmdbID       sql.NullInt64
		imdbID       sql.NullString
		doubanID     sql.NullString
		hostID       sql.NullString
		originalName sql.NullString
		profilePath  sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&actor.ID, &tmdbID, &imdbID, &doubanID, &hostID, &actor.Name, &originalName, &profilePath, &updatedRaw); err != nil {
		return nil, err
	}
	actor.TMDBID = tmdbID.Int64
	actor.IMDBID = imdbID.String
	actor.DoubanID = doubanID.String
	actor.HostID = hostID.String
	actor.OriginalName = originalName.String
	actor.ProfilePath = profilePath.String
	actor.UpdatedAt = parseNullTime(updatedRaw)
	return &actor, nil
}

func (s *Store) queryActor(ctx context.Context, where string, arg any) (*Actor, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+actorColumns+` FROM actors WHERE `+where+` LIMIT 1`, arg)
	actor, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query actor: %w", err)
	}
	return actor, nil
}

// ActorByTMDB returns the cached actor for a TMDB person id, or nil.
func (s *Store) ActorByTMDB(ctx context.Context, tmdbID int64) (*Actor, error) {
	if tmdbID == 0 {
		return nil, nil
	}
	return s.queryActor(ctx, "tmdb_id = ?", tmdbID)
}

// ActorByHostID returns the cached actor bound to a host person id, or nil.
func (s *Store) ActorByHostID(ctx context.Context, hostID string) (*Actor, error) {
	if strings.TrimSpace(hostID) == "" {
		return nil, nil
	}
	return s.queryActor(ctx, "host_id = ?", hostID)
}

// UpsertActor writes one actor row inside its own transaction. Rows are
// matched by TMDB id, then host id, then Douban id; non-empty incoming fields
// overwrite stored ones. The row id is returned.
func (s *Store) UpsertActor(ctx context.Context, actor Actor) (int64, error) {
	if strings.TrimSpace(actor.Name) == "" {
		return 0, errors.New("actor name is empty")
	}
	ctx = ensureContext(ctx)
	now := s.timestamp()
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := findActorTx(ctx, tx, actor)
		if err != nil {
			return err
		}
		if existing == 0 {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO actors (tmdb_id, imdb_id, douban_id, host_id, name, original_name, profile_path, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				nullableInt64(actor.TMDBID), nullableString(actor.IMDBID), nullableString(actor.DoubanID),
				nullableString(actor.HostID), actor.Name, nullableString(actor.OriginalName),
				nullableString(actor.ProfilePath), now)
			if err != nil {
				return fmt.Errorf("insert actor %q: %w", actor.Name, err)
			}
			id, err = res.LastInsertId()
			return err
		}
		id = existing
		_, err = tx.ExecContext(ctx,
			`UPDATE actors SET
                tmdb_id = COALESCE(?, tmdb_id),
                imdb_id = COALESCE(?, imdb_id),
                douban_id = COALESCE(?, douban_id),
                host_id = COALESCE(?, host_id),
                name = ?,
                original_name = COALESCE(?, original_name),
                profile_path = COALESCE(?, profile_path),
                updated_at = ?
             WHERE id = ?`,
			nullableInt64(actor.TMDBID), nullableString(actor.IMDBID), nullableString(actor.DoubanID),
			nullableString(actor.HostID), actor.Name, nullableString(actor.OriginalName),
			nullableString(actor.ProfilePath), now, existing)
		if err != nil {
			return fmt.Errorf("update actor %q: %w", actor.Name, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func findActorTx(ctx context.Context, tx *sql.Tx, actor Actor) (int64, error) {
	lookups := []struct {
		column string
		value  any
		ok     bool
	}{
		{"tmdb_id", actor.TMDBID, actor.TMDBID != 0},
		{"host_id", actor.HostID, actor.HostID != ""},
		{"douban_id", actor.DoubanID, actor.DoubanID != ""},
	}
	for _, lookup := range lookups {
		if !lookup.ok {
			continue
		}
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM actors WHERE `+lookup.column+` = ? LIMIT 1`, lookup.value).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("find actor by %s: %w", lookup.column, err)
		}
		return id, nil
	}
	return 0, nil
}

// LookupXref resolves a foreign person id to a TMDB person id.
func (s *Store) LookupXref(ctx context.Context, source, sourceID string) (int64, bool, error) {
	if strings.TrimSpace(sourceID) == "" {
		return 0, false, nil
	}
	var tmdbID int64
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT tmdb_id FROM actor_xref WHERE source = ? AND source_id = ?`, source, sourceID).Scan(&tmdbID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup xref %s/%s: %w", source, sourceID, err)
	}
	return tmdbID, true, nil
}

// SaveXref records that a foreign person id maps to a TMDB person id.
func (s *Store) SaveXref(ctx context.Context, source, sourceID string, tmdbID int64) error {
	if strings.TrimSpace(sourceID) == "" || tmdbID == 0 {
		return nil
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO actor_xref (source, source_id, tmdb_id, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(source, source_id) DO UPDATE SET tmdb_id = excluded.tmdb_id, updated_at = excluded.updated_at`,
		source, sourceID, tmdbID, s.timestamp())
	if err != nil {
		return fmt.Errorf("save xref %s/%s: %w", source, sourceID, err)
	}
	return nil
}
