package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/store"
)

func (d *DB) CollectionFindMany(ctx context.Context) ([]store.Collection, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT id, display_name, steam_tag, normalized_name
		FROM collections ORDER BY display_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("collection.findMany: %w", err)
	}
	defer rows.Close()

	var out []store.Collection
	for rows.Next() {
		var c store.Collection
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.SteamTag, &c.NormalizedName); err != nil {
			return nil, fmt.Errorf("collection.findMany scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) CollectionFindUnique(ctx context.Context, steamTag string, filter store.SkinFilter) (*store.Collection, []store.Skin, error) {
	var c store.Collection
	row := d.sql.QueryRowContext(ctx, `
		SELECT id, display_name, steam_tag, normalized_name FROM collections WHERE steam_tag = ?
	`, steamTag)
	if err := row.Scan(&c.ID, &c.DisplayName, &c.SteamTag, &c.NormalizedName); err == sql.ErrNoRows {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("collection.findUnique: %w", err)
	}

	filter.CollectionID = c.ID
	skins, err := d.SkinFindMany(ctx, filter, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	return &c, skins, nil
}

func (d *DB) SkinGroupByRarity(ctx context.Context, filter store.SkinFilter) (map[market.Rarity]int, error) {
	where, args := skinWhere(filter)
	rows, err := d.sql.QueryContext(ctx, `
		SELECT rarity, COUNT(*) FROM skins `+where+` GROUP BY rarity
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("skin.groupBy: %w", err)
	}
	defer rows.Close()

	out := map[market.Rarity]int{}
	for rows.Next() {
		var r string
		var n int
		if err := rows.Scan(&r, &n); err != nil {
			return nil, fmt.Errorf("skin.groupBy scan: %w", err)
		}
		out[market.Rarity(r)] = n
	}
	return out, rows.Err()
}

func (d *DB) SkinCount(ctx context.Context, filter store.SkinFilter) (int, error) {
	where, args := skinWhere(filter)
	var n int
	row := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM skins `+where, args...)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("skin.count: %w", err)
	}
	return n, nil
}

func (d *DB) SkinFindMany(ctx context.Context, filter store.SkinFilter, skip, take int) ([]store.Skin, error) {
	where, args := skinWhere(filter)
	query := `
		SELECT market_hash_name, collection_id, base_name, exterior, rarity,
		       is_stat_trak, is_souvenir, sell_listings, last_known_price, float_min, float_max
		FROM skins ` + where + ` ORDER BY base_name ASC, exterior ASC`
	if take > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", take, skip)
	}

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("skin.findMany: %w", err)
	}
	defer rows.Close()

	var out []store.Skin
	for rows.Next() {
		var s store.Skin
		var exterior, rarity string
		var statTrak, souvenir int
		if err := rows.Scan(&s.MarketHashName, &s.CollectionID, &s.BaseName, &exterior, &rarity,
			&statTrak, &souvenir, &s.SellListings, &s.LastKnownPrice, &s.FloatMin, &s.FloatMax); err != nil {
			return nil, fmt.Errorf("skin.findMany scan: %w", err)
		}
		s.Exterior = market.Exterior(exterior)
		s.Rarity = market.Rarity(rarity)
		s.IsStatTrak = statTrak != 0
		s.IsSouvenir = souvenir != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

func skinWhere(filter store.SkinFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.CollectionID != "" {
		clauses = append(clauses, "collection_id = ?")
		args = append(args, filter.CollectionID)
	}
	if filter.Rarity != nil {
		clauses = append(clauses, "rarity = ?")
		args = append(args, string(*filter.Rarity))
	}
	if filter.NormalOnly {
		clauses = append(clauses, "is_stat_trak = 0 AND is_souvenir = 0")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// UpsertCollection upserts collection and every skin in skins, then deletes
// any skin previously recorded for that collection and absent from skins,
// all within one transaction — the sync worker's per-collection
// reconciliation unit.
func (d *DB) UpsertCollection(ctx context.Context, collection store.Collection, skins []store.Skin) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning collection upsert tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (id, display_name, steam_tag, normalized_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, normalized_name = excluded.normalized_name
	`, collection.ID, collection.DisplayName, collection.SteamTag, collection.NormalizedName); err != nil {
		return fmt.Errorf("upserting collection %s: %w", collection.SteamTag, err)
	}

	keep := make([]string, 0, len(skins))
	for _, s := range skins {
		keep = append(keep, s.MarketHashName)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO skins (market_hash_name, collection_id, base_name, exterior, rarity,
				is_stat_trak, is_souvenir, sell_listings, last_known_price, float_min, float_max)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(market_hash_name) DO UPDATE SET
				collection_id = excluded.collection_id,
				base_name = excluded.base_name,
				exterior = excluded.exterior,
				rarity = excluded.rarity,
				is_stat_trak = excluded.is_stat_trak,
				is_souvenir = excluded.is_souvenir,
				sell_listings = excluded.sell_listings,
				last_known_price = excluded.last_known_price,
				float_min = excluded.float_min,
				float_max = excluded.float_max
		`, s.MarketHashName, s.CollectionID, s.BaseName, string(s.Exterior), string(s.Rarity),
			boolToInt(s.IsStatTrak), boolToInt(s.IsSouvenir), s.SellListings, s.LastKnownPrice, s.FloatMin, s.FloatMax); err != nil {
			return fmt.Errorf("upserting skin %s: %w", s.MarketHashName, err)
		}
	}

	if err := deleteMissing(ctx, tx, collection.ID, keep); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE catalog_state SET ready = 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("raising catalog-ready flag: %w", err)
	}

	return tx.Commit()
}

// deleteMissing removes every skin of collectionID whose marketHashName is
// not in keep. keep is staged into a temporary table first so the delete
// itself never has to bind more than one parameter per statement,
// regardless of how large a collection's observed set is.
func deleteMissing(ctx context.Context, tx *sql.Tx, collectionID string, keep []string) error {
	if len(keep) == 0 {
		_, err := tx.ExecContext(ctx, `DELETE FROM skins WHERE collection_id = ?`, collectionID)
		if err != nil {
			return fmt.Errorf("reconciling skins for %s: %w", collectionID, err)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS sync_keep (market_hash_name TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("creating sync_keep staging table: %w", err)
	}
	defer tx.ExecContext(ctx, `DELETE FROM sync_keep`)

	const batchSize = 200
	for start := 0; start < len(keep); start += batchSize {
		end := start + batchSize
		if end > len(keep) {
			end = len(keep)
		}
		batch := keep[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("(?),", len(batch)), ",")
		args := make([]any, 0, len(batch))
		for _, k := range batch {
			args = append(args, k)
		}
		query := fmt.Sprintf(`INSERT OR IGNORE INTO sync_keep (market_hash_name) VALUES %s`, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("staging sync_keep for %s: %w", collectionID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM skins
		WHERE collection_id = ? AND market_hash_name NOT IN (SELECT market_hash_name FROM sync_keep)
	`, collectionID); err != nil {
		return fmt.Errorf("reconciling skins for %s: %w", collectionID, err)
	}
	return nil
}

func (d *DB) CatalogReady(ctx context.Context) (bool, error) {
	var ready int
	row := d.sql.QueryRowContext(ctx, `SELECT ready FROM catalog_state WHERE id = 1`)
	if err := row.Scan(&ready); err != nil {
		return false, fmt.Errorf("reading catalog_state: %w", err)
	}
	return ready != 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
