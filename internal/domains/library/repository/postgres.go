package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/F3nrir-00/gaming-library-tracker/internal/domains/library/model"
	"github.com/F3nrir-00/gaming-library-tracker/pkg/database"
)

// =====================================================
// POSTGRES REPOSITORY IMPLEMENTATION
// =====================================================

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var entryColumns = []string{
	"id", "normalized_title", "title", "description", "developer", "publisher",
	"release_date", "cover_image_url", "banner_image_url", "igdb_id", "created_at",
}

var recordColumns = []string{
	"id", "user_id", "catalog_entry_id", "platform", "platform_game_id",
	"playtime_minutes", "last_played_at", "status", "added_at",
}

// maxBindParams is the Postgres wire protocol limit on parameters per
// statement. Multi-row inserts are split so no statement exceeds it.
const maxBindParams = 65535

var (
	entryBatchSize  = maxBindParams / len(entryColumns)
	recordBatchSize = maxBindParams / len(recordColumns)
)

// queryer is satisfied by both the pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db    database.DBTX
	dedup DedupStrategy
	now   func() time.Time
}

func NewPostgresRepository(db database.DBTX, dedup DedupStrategy) Repository {
	if dedup == "" {
		dedup = DedupConflict
	}
	return &postgresRepository{db: db, dedup: dedup, now: time.Now}
}

func qualify(prefix string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + "." + c
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func chunk[T any](items []T, size int) [][]T {
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		batches = append(batches, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		batches = append(batches, items)
	}
	return batches
}

// atomically runs fn against the pool when the write is a single statement
// and inside a transaction when it spans several.
func (r *postgresRepository) atomically(ctx context.Context, statements int, fn func(q queryer) error) error {
	if statements <= 1 {
		return fn(r.db)
	}
	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// titleIn matches normalized_title against an array parameter so the
// statement carries one bind parameter however many titles are passed.
func titleIn(titles []string) squirrel.Sqlizer {
	return squirrel.Expr("normalized_title = ANY(?)", titles)
}

// =====================================================
// SCANNING
// =====================================================

func entryDest(e *model.CatalogEntry) []any {
	return []any{
		&e.ID, &e.NormalizedTitle, &e.Title, &e.Description, &e.Developer, &e.Publisher,
		&e.ReleaseDate, &e.CoverImageURL, &e.BannerImageURL, &e.IGDBID, &e.CreatedAt,
	}
}

func recordDest(r *model.LibraryRecord) []any {
	return []any{
		&r.ID, &r.UserID, &r.CatalogEntryID, &r.Platform, &r.PlatformGameID,
		&r.PlaytimeMinutes, &r.LastPlayedAt, &r.Status, &r.AddedAt,
	}
}

func (r *postgresRepository) queryEntries(ctx context.Context, q queryer, builder squirrel.SelectBuilder) ([]model.CatalogEntry, error) {
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog entries: %w", err)
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		var e model.CatalogEntry
		if err := rows.Scan(entryDest(&e)...); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog entries: %w", err)
	}
	return entries, nil
}

// =====================================================
// SYNC STORE
// =====================================================

func (r *postgresRepository) FindCatalogEntriesByNormalizedTitles(ctx context.Context, titles []string) ([]model.CatalogEntry, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	query := psql.Select(entryColumns...).
		From("catalog_entries").
		Where(titleIn(titles)).
		OrderBy("created_at ASC")

	return r.queryEntries(ctx, r.db, query)
}

func (r *postgresRepository) FindLibraryRecords(ctx context.Context, userID uuid.UUID, platform string, platformGameIDs []string) ([]model.LibraryRecord, error) {
	if len(platformGameIDs) == 0 {
		return nil, nil
	}

	sql, args, err := psql.Select(recordColumns...).
		From("library_records").
		Where(squirrel.Eq{
			"user_id":  userID,
			"platform": platform,
		}).
		Where("platform_game_id = ANY(?)", platformGameIDs).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library records: %w", err)
	}
	defer rows.Close()

	var records []model.LibraryRecord
	for rows.Next() {
		var rec model.LibraryRecord
		if err := rows.Scan(recordDest(&rec)...); err != nil {
			return nil, fmt.Errorf("failed to scan library record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate library records: %w", err)
	}
	return records, nil
}

// InsertCatalogEntries assigns ids and created_at, then writes the entries
// in as few statements as the bind parameter limit allows.
func (r *postgresRepository) InsertCatalogEntries(ctx context.Context, entries []*model.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := r.now().UTC()
	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}

	switch r.dedup {
	case DedupAdvisory:
		return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
			return r.insertEntriesLocked(ctx, tx, entries)
		})
	case DedupNone:
		err := r.insertEntriesPlain(ctx, entries)
		if !isUniqueViolation(err) {
			return err
		}
		// Another sync won the race for at least one title. The plain
		// insert rolled back as a whole, so retry every entry adopting
		// the rows that already exist.
		return r.insertEntriesOnConflictBatched(ctx, entries)
	default:
		return r.insertEntriesOnConflictBatched(ctx, entries)
	}
}

func (r *postgresRepository) insertEntriesPlain(ctx context.Context, entries []*model.CatalogEntry) error {
	batches := chunk(entries, entryBatchSize)
	return r.atomically(ctx, len(batches), func(q queryer) error {
		return execEntryInserts(ctx, q, batches)
	})
}

func execEntryInserts(ctx context.Context, q queryer, batches [][]*model.CatalogEntry) error {
	for _, batch := range batches {
		sql, args, err := entryInsert(batch).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := q.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("failed to insert catalog entries: %w", err)
		}
	}
	return nil
}

func (r *postgresRepository) insertEntriesOnConflictBatched(ctx context.Context, entries []*model.CatalogEntry) error {
	batches := chunk(entries, entryBatchSize)
	return r.atomically(ctx, len(batches), func(q queryer) error {
		for _, batch := range batches {
			if err := r.insertEntriesOnConflict(ctx, q, batch); err != nil {
				return err
			}
		}
		return nil
	})
}

func entryInsert(entries []*model.CatalogEntry) squirrel.InsertBuilder {
	insert := psql.Insert("catalog_entries").Columns(entryColumns...)
	for _, e := range entries {
		insert = insert.Values(
			e.ID, e.NormalizedTitle, e.Title, e.Description, e.Developer, e.Publisher,
			e.ReleaseDate, e.CoverImageURL, e.BannerImageURL, e.IGDBID, e.CreatedAt,
		)
	}
	return insert
}

// insertEntriesOnConflict skips titles that already exist and points the
// skipped entries at the surviving rows.
func (r *postgresRepository) insertEntriesOnConflict(ctx context.Context, q queryer, entries []*model.CatalogEntry) error {
	sql, args, err := entryInsert(entries).
		Suffix("ON CONFLICT (normalized_title) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to insert catalog entries: %w", err)
	}
	inserted := make(map[uuid.UUID]struct{}, len(entries))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan inserted id: %w", err)
		}
		inserted[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to insert catalog entries: %w", err)
	}

	var skipped []*model.CatalogEntry
	for _, e := range entries {
		if _, ok := inserted[e.ID]; !ok {
			skipped = append(skipped, e)
		}
	}
	return r.adoptExisting(ctx, q, skipped)
}

// insertEntriesLocked takes a transaction-scoped advisory lock per title,
// adopts rows that already exist and inserts the rest.
func (r *postgresRepository) insertEntriesLocked(ctx context.Context, tx pgx.Tx, entries []*model.CatalogEntry) error {
	titles := distinctTitles(entries)
	// Fixed lock order keeps two syncs from deadlocking on overlapping titles.
	sort.Strings(titles)
	for _, t := range titles {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", t); err != nil {
			return fmt.Errorf("failed to lock title %q: %w", t, err)
		}
	}

	existing, err := r.queryEntries(ctx, tx, psql.Select(entryColumns...).
		From("catalog_entries").
		Where(titleIn(titles)).
		OrderBy("created_at ASC"))
	if err != nil {
		return err
	}
	byTitle := indexByTitle(existing)

	var fresh []*model.CatalogEntry
	for _, e := range entries {
		if found, ok := byTitle[e.NormalizedTitle]; ok {
			e.ID = found.ID
			e.CreatedAt = found.CreatedAt
			continue
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return nil
	}
	return execEntryInserts(ctx, tx, chunk(fresh, entryBatchSize))
}

func (r *postgresRepository) adoptExisting(ctx context.Context, q queryer, entries []*model.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	existing, err := r.queryEntries(ctx, q, psql.Select(entryColumns...).
		From("catalog_entries").
		Where(titleIn(distinctTitles(entries))).
		OrderBy("created_at ASC"))
	if err != nil {
		return err
	}
	byTitle := indexByTitle(existing)

	for _, e := range entries {
		found, ok := byTitle[e.NormalizedTitle]
		if !ok {
			return fmt.Errorf("catalog entry %q vanished after conflict", e.NormalizedTitle)
		}
		e.ID = found.ID
		e.CreatedAt = found.CreatedAt
	}
	return nil
}

func distinctTitles(entries []*model.CatalogEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.NormalizedTitle]; ok {
			continue
		}
		seen[e.NormalizedTitle] = struct{}{}
		titles = append(titles, e.NormalizedTitle)
	}
	return titles
}

// indexByTitle keeps the oldest entry per title; entries arrive ordered by
// created_at.
func indexByTitle(entries []model.CatalogEntry) map[string]model.CatalogEntry {
	out := make(map[string]model.CatalogEntry, len(entries))
	for _, e := range entries {
		if _, ok := out[e.NormalizedTitle]; !ok {
			out[e.NormalizedTitle] = e
		}
	}
	return out
}

func (r *postgresRepository) UpdateCatalogEntries(ctx context.Context, entries []*model.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		for _, e := range entries {
			sql, args, err := psql.Update("catalog_entries").
				Set("description", e.Description).
				Set("developer", e.Developer).
				Set("publisher", e.Publisher).
				Set("release_date", e.ReleaseDate).
				Set("cover_image_url", e.CoverImageURL).
				Set("banner_image_url", e.BannerImageURL).
				Set("igdb_id", e.IGDBID).
				Where(squirrel.Eq{"id": e.ID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build update: %w", err)
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("failed to update catalog entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (r *postgresRepository) InsertLibraryRecords(ctx context.Context, records []*model.LibraryRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := r.now().UTC()
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.AddedAt.IsZero() {
			rec.AddedAt = now
		}
	}

	batches := chunk(records, recordBatchSize)
	err := r.atomically(ctx, len(batches), func(q queryer) error {
		for _, batch := range batches {
			sql, args, err := recordInsert(batch).ToSql()
			if err != nil {
				return fmt.Errorf("failed to build insert: %w", err)
			}
			if _, err := q.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("failed to insert library records: %w", err)
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return model.ErrDuplicateRecord
	}
	return err
}

func recordInsert(records []*model.LibraryRecord) squirrel.InsertBuilder {
	insert := psql.Insert("library_records").Columns(recordColumns...)
	for _, rec := range records {
		insert = insert.Values(
			rec.ID, rec.UserID, rec.CatalogEntryID, rec.Platform, rec.PlatformGameID,
			rec.PlaytimeMinutes, rec.LastPlayedAt, rec.Status, rec.AddedAt,
		)
	}
	return insert
}

func (r *postgresRepository) UpdateLibraryRecords(ctx context.Context, records []*model.LibraryRecord) error {
	if len(records) == 0 {
		return nil
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		for _, rec := range records {
			sql, args, err := psql.Update("library_records").
				Set("playtime_minutes", rec.PlaytimeMinutes).
				Set("last_played_at", rec.LastPlayedAt).
				Where(squirrel.Eq{"id": rec.ID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build update: %w", err)
			}
			if _, err := tx.Exec(ctx, sql, args...); err != nil {
				return fmt.Errorf("failed to update library record %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func (r *postgresRepository) TouchLastSynced(ctx context.Context, userID uuid.UUID, platform string, at time.Time) error {
	query := `
		UPDATE platform_identities
		SET last_synced_at = $1
		WHERE user_id = $2 AND platform = $3
	`
	if _, err := r.db.Exec(ctx, query, at, userID, platform); err != nil {
		return fmt.Errorf("failed to touch last synced: %w", err)
	}
	return nil
}

// =====================================================
// LIBRARY QUERIES
// =====================================================

func itemSelect() squirrel.SelectBuilder {
	cols := append(qualify("r", recordColumns), qualify("e", entryColumns)...)
	return psql.Select(cols...).
		From("library_records r").
		Join("catalog_entries e ON e.id = r.catalog_entry_id")
}

func scanItem(row pgx.Row) (*model.LibraryItem, error) {
	item := &model.LibraryItem{}
	dest := append(recordDest(&item.Record), entryDest(&item.Entry)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return item, nil
}

// likeEscaper makes user input literal inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func orderClause(filter model.ListLibraryRequest) string {
	dir := "DESC"
	if filter.SortOrder == "asc" {
		dir = "ASC"
	}
	switch filter.SortBy {
	case model.SortLastPlayed:
		return "r.last_played_at " + dir + " NULLS LAST"
	case model.SortTitle:
		return "LOWER(e.title) " + dir
	case model.SortAdded:
		return "r.added_at " + dir
	default:
		return "r.playtime_minutes " + dir
	}
}

func (r *postgresRepository) List(ctx context.Context, userID uuid.UUID, filter model.ListLibraryRequest) ([]model.LibraryItem, error) {
	query := itemSelect().Where(squirrel.Eq{"r.user_id": userID})

	if filter.Platform != "" {
		query = query.Where("LOWER(r.platform) = LOWER(?)", filter.Platform)
	}
	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"r.status": filter.Status})
	}
	if filter.Search != "" {
		query = query.Where(squirrel.ILike{"e.title": "%" + likeEscaper.Replace(filter.Search) + "%"})
	}
	query = query.OrderBy(orderClause(filter), "r.id ASC")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list library: %w", err)
	}
	defer rows.Close()

	items := make([]model.LibraryItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate library: %w", err)
	}
	return items, nil
}

func (r *postgresRepository) GetItem(ctx context.Context, userID, recordID uuid.UUID) (*model.LibraryItem, error) {
	sql, args, err := itemSelect().
		Where(squirrel.Eq{"r.id": recordID, "r.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	item, err := scanItem(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get library item: %w", err)
	}
	return item, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, userID, recordID uuid.UUID, status string) error {
	query := `
		UPDATE library_records
		SET status = $1
		WHERE id = $2 AND user_id = $3
	`
	tag, err := r.db.Exec(ctx, query, status, recordID, userID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRecordNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID, recordID uuid.UUID) error {
	query := `DELETE FROM library_records WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, recordID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete library record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRecordNotFound
	}
	return nil
}

func (r *postgresRepository) findEntry(ctx context.Context, query squirrel.SelectBuilder) (*model.CatalogEntry, error) {
	entries, err := r.queryEntries(ctx, r.db, query.OrderBy("created_at ASC").Limit(1))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, model.ErrCatalogEntryNotFound
	}
	return &entries[0], nil
}

func (r *postgresRepository) FindEntryByIGDBID(ctx context.Context, igdbID int64) (*model.CatalogEntry, error) {
	return r.findEntry(ctx, psql.Select(entryColumns...).
		From("catalog_entries").
		Where(squirrel.Eq{"igdb_id": igdbID}))
}

func (r *postgresRepository) FindEntryByTitle(ctx context.Context, title, normalized string) (*model.CatalogEntry, error) {
	return r.findEntry(ctx, psql.Select(entryColumns...).
		From("catalog_entries").
		Where(squirrel.Or{
			squirrel.Expr("LOWER(title) = LOWER(?)", title),
			squirrel.Eq{"normalized_title": normalized},
		}))
}

func (r *postgresRepository) ExistsRecordForEntry(ctx context.Context, userID, entryID uuid.UUID, platform string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM library_records
			WHERE user_id = $1 AND catalog_entry_id = $2 AND LOWER(platform) = LOWER($3)
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, entryID, platform).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check library record: %w", err)
	}
	return exists, nil
}
