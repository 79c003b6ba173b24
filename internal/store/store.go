package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
)

// Default timeout for store operations.
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when no asset exists for the given ID.
var ErrNotFound = errors.New("asset not found")

// Store manages asset persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the asset database at dbPath. The parent directory
// must already exist and be writable; use startup.LoadConfig for directory
// validation before calling this.
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Asset database path: %s", dbPath)

	// WAL mode plus busy_timeout keeps concurrent pipeline writers and
	// streaming readers from tripping over "database is locked".
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after schema failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info("Asset database initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		original_name TEXT NOT NULL,
		source_path TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'uploading',
		progress INTEGER NOT NULL DEFAULT 0,
		progress_message TEXT NOT NULL DEFAULT '',
		duration REAL,
		width INTEGER,
		height INTEGER,
		codec TEXT,
		frame_rate REAL,
		thumbnail_path TEXT,
		sensitivity_status TEXT NOT NULL DEFAULT 'pending',
		overall_score INTEGER,
		category_scores TEXT,
		reasons TEXT,
		error_message TEXT,
		views INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_assets_status ON assets(status);
	CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);
	CREATE INDEX IF NOT EXISTS idx_assets_sensitivity ON assets(sensitivity_status);
	`

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(opCtx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// observe records query metrics for one store operation.
func observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(op, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Create inserts a new asset record. CreatedAt/UpdatedAt are set here.
func (s *Store) Create(ctx context.Context, a *Asset) (err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())

	if a.Status == "" {
		a.Status = StatusUploading
	}
	if a.Sensitivity.Status == "" {
		a.Sensitivity.Status = SensitivityPending
	}
	now := time.Now().UTC().Truncate(time.Second)
	a.CreatedAt = now
	a.UpdatedAt = now

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(opCtx, `
		INSERT INTO assets (
			id, title, original_name, source_path, mime_type, size,
			status, progress, progress_message, sensitivity_status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.OriginalName, a.SourcePath, a.MimeType, a.Size,
		a.Status, a.Progress, a.ProgressMessage, a.Sensitivity.Status,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset %s: %w", a.ID, err)
	}
	return nil
}

const assetColumns = `id, title, original_name, source_path, mime_type, size,
	status, progress, progress_message,
	duration, width, height, codec, frame_rate, thumbnail_path,
	sensitivity_status, overall_score, category_scores, reasons,
	error_message, views, created_at, updated_at`

// Get returns the asset with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (a *Asset, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(opCtx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	a, err = scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load asset %s: %w", id, err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var (
		a              Asset
		duration       sql.NullFloat64
		width, height  sql.NullInt64
		codec          sql.NullString
		frameRate      sql.NullFloat64
		thumbnailPath  sql.NullString
		overallScore   sql.NullInt64
		categoryScores sql.NullString
		reasons        sql.NullString
		errorMessage   sql.NullString
		createdAt      int64
		updatedAt      int64
	)

	err := row.Scan(
		&a.ID, &a.Title, &a.OriginalName, &a.SourcePath, &a.MimeType, &a.Size,
		&a.Status, &a.Progress, &a.ProgressMessage,
		&duration, &width, &height, &codec, &frameRate, &thumbnailPath,
		&a.Sensitivity.Status, &overallScore, &categoryScores, &reasons,
		&errorMessage, &a.Views, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if duration.Valid {
		a.Duration = &duration.Float64
	}
	if width.Valid {
		w := int(width.Int64)
		a.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		a.Height = &h
	}
	if codec.Valid {
		a.Codec = &codec.String
	}
	if frameRate.Valid {
		a.FrameRate = &frameRate.Float64
	}
	if thumbnailPath.Valid && thumbnailPath.String != "" {
		a.ThumbnailPath = &thumbnailPath.String
		a.HasThumbnail = true
	}
	if overallScore.Valid {
		score := int(overallScore.Int64)
		a.Sensitivity.OverallScore = &score
	}
	if categoryScores.Valid && categoryScores.String != "" {
		if err := json.Unmarshal([]byte(categoryScores.String), &a.Sensitivity.CategoryScores); err != nil {
			logging.Warn("asset %s has malformed category scores: %v", a.ID, err)
		}
	}
	if reasons.Valid && reasons.String != "" {
		if err := json.Unmarshal([]byte(reasons.String), &a.Sensitivity.Reasons); err != nil {
			logging.Warn("asset %s has malformed reasons: %v", a.ID, err)
		}
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &a, nil
}

// Update applies a partial field set to one asset in a single UPDATE
// statement. Nil fields in u are left unchanged. Returns ErrNotFound if
// the asset does not exist.
func (s *Store) Update(ctx context.Context, id string, u AssetUpdate) (err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())

	var sets []string
	var args []any

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Progress != nil {
		add("progress", *u.Progress)
	}
	if u.ProgressMessage != nil {
		add("progress_message", *u.ProgressMessage)
	}
	if u.Duration != nil {
		add("duration", *u.Duration)
	}
	if u.Width != nil {
		add("width", *u.Width)
	}
	if u.Height != nil {
		add("height", *u.Height)
	}
	if u.Codec != nil {
		add("codec", *u.Codec)
	}
	if u.FrameRate != nil {
		add("frame_rate", *u.FrameRate)
	}
	if u.ThumbnailPath != nil {
		add("thumbnail_path", *u.ThumbnailPath)
	}
	if u.MimeType != nil {
		add("mime_type", *u.MimeType)
	}
	if u.ErrorMessage != nil {
		add("error_message", *u.ErrorMessage)
	}
	if u.Sensitivity != nil {
		add("sensitivity_status", string(u.Sensitivity.Status))
		if u.Sensitivity.OverallScore != nil {
			add("overall_score", *u.Sensitivity.OverallScore)
		} else {
			add("overall_score", nil)
		}
		if len(u.Sensitivity.CategoryScores) > 0 {
			raw, merr := json.Marshal(u.Sensitivity.CategoryScores)
			if merr != nil {
				return fmt.Errorf("failed to marshal category scores: %w", merr)
			}
			add("category_scores", string(raw))
		} else {
			add("category_scores", nil)
		}
		if len(u.Sensitivity.Reasons) > 0 {
			raw, merr := json.Marshal(u.Sensitivity.Reasons)
			if merr != nil {
				return fmt.Errorf("failed to marshal reasons: %w", merr)
			}
			add("reasons", string(raw))
		} else {
			add("reasons", nil)
		}
	}

	if len(sets) == 0 {
		return nil
	}

	add("updated_at", time.Now().Unix())
	args = append(args, id)

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(opCtx,
		"UPDATE assets SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update asset %s: %w", id, err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter for an asset. Best-effort: callers
// stream regardless of the outcome.
func (s *Store) IncrementViews(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("increment_views", start, err) }(time.Now())

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(opCtx, `UPDATE assets SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views for %s: %w", id, err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of assets, newest first, optionally filtered by
// status.
func (s *Store) List(ctx context.Context, opts ListOptions) (listing *Listing, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}

	where := ""
	var args []any
	if opts.Status != "" {
		where = " WHERE status = ?"
		args = append(args, string(opts.Status))
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int
	if err = s.db.QueryRowContext(opCtx, "SELECT COUNT(*) FROM assets"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}

	queryArgs := append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)
	rows, err := s.db.QueryContext(opCtx,
		`SELECT `+assetColumns+` FROM assets`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	items := make([]Asset, 0, opts.PageSize)
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", scanErr)
		}
		items = append(items, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading asset rows: %w", err)
	}

	totalPages := (total + opts.PageSize - 1) / opts.PageSize
	return &Listing{
		Items:      items,
		TotalItems: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}

// Delete removes an asset record. The caller is responsible for removing
// the backing files.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { observe("delete", start, err) }(time.Now())

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(opCtx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats summarizes the store contents.
func (s *Store) Stats(ctx context.Context) (stats *Stats, err error) {
	defer func(start time.Time) { observe("stats", start, err) }(time.Now())

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats = &Stats{CountByStatus: make(map[string]int)}

	rows, err := s.db.QueryContext(opCtx, `SELECT status, COUNT(*) FROM assets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count assets by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err = rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.TotalAssets += count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading status counts: %w", err)
	}

	if err = s.db.QueryRowContext(opCtx,
		`SELECT COUNT(*) FROM assets WHERE sensitivity_status = ?`,
		string(SensitivityFlagged)).Scan(&stats.FlaggedAssets); err != nil {
		return nil, fmt.Errorf("failed to count flagged assets: %w", err)
	}

	if err = s.db.QueryRowContext(opCtx,
		`SELECT COALESCE(SUM(views), 0) FROM assets`).Scan(&stats.TotalViews); err != nil {
		return nil, fmt.Errorf("failed to sum views: %w", err)
	}

	return stats, nil
}

// AssetCounts implements metrics.StatsProvider.
func (s *Store) AssetCounts() map[string]int {
	stats, err := s.Stats(context.Background())
	if err != nil {
		logging.Warn("metrics collection: %v", err)
		return nil
	}
	return stats.CountByStatus
}
