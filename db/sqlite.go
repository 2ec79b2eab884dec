package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/brettboylen/social-listener/models"
)

// ErrNotFound is returned when a run or document does not exist
var ErrNotFound = errors.New("not found")

// idChunkSize bounds the number of bound parameters in one IN query
const idChunkSize = 100

// columns lists the writable columns of every table InsertRows accepts
var columns = map[string][]string{
	"collections": {
		"collection_id", "user_id", "original_question", "config", "created_at",
	},
	"posts": {
		"post_id", "collection_id", "platform", "channel_handle", "channel_id",
		"title", "content", "post_url", "posted_at", "post_type", "parent_post_id",
		"media_urls", "media_refs", "platform_metadata", "collected_at",
	},
	"post_engagements": {
		"engagement_id", "post_id", "likes", "shares", "comments_count", "views",
		"saves", "comments", "platform_engagements", "source", "fetched_at",
	},
	"channels": {
		"channel_id", "collection_id", "platform", "channel_handle", "subscribers",
		"total_posts", "channel_url", "description", "created_date",
		"channel_metadata", "observed_at",
	},
}

// PostRef identifies a persisted post for engagement refresh
type PostRef struct {
	PostID   string
	Platform string
	PostURL  string
}

// Database is the sqlite row store for collected posts, engagement
// snapshots, channels and the outputs of the enrichment transforms
type Database struct {
	db    *sql.DB
	mutex sync.RWMutex
	log   *logrus.Logger
}

// NewDatabase creates a new SQLite database connection
func NewDatabase(dbPath string, log *logrus.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:  db,
		log: log,
	}

	if err := database.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.db.Close()
}

// initTables creates the necessary tables if they don't exist
func (d *Database) initTables() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// enriched_posts and post_embeddings are written by the enrichment scripts
	query := `
	CREATE TABLE IF NOT EXISTS collections (
		collection_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		original_question TEXT,
		config TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS posts (
		post_id TEXT NOT NULL,
		collection_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		channel_handle TEXT,
		channel_id TEXT,
		title TEXT,
		content TEXT,
		post_url TEXT,
		posted_at TEXT,
		post_type TEXT,
		parent_post_id TEXT,
		media_urls TEXT NOT NULL DEFAULT '[]',
		media_refs TEXT NOT NULL DEFAULT '[]',
		platform_metadata TEXT,
		collected_at TEXT NOT NULL,
		PRIMARY KEY (collection_id, post_id)
	);
	CREATE INDEX IF NOT EXISTS idx_posts_post_id ON posts(post_id);
	CREATE TABLE IF NOT EXISTS post_engagements (
		engagement_id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL,
		likes INTEGER,
		shares INTEGER,
		comments_count INTEGER,
		views INTEGER,
		saves INTEGER,
		comments TEXT NOT NULL DEFAULT '[]',
		platform_engagements TEXT,
		source TEXT NOT NULL,
		fetched_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_engagements_post_id ON post_engagements(post_id, fetched_at DESC);
	CREATE TABLE IF NOT EXISTS channels (
		channel_id TEXT NOT NULL,
		collection_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		channel_handle TEXT,
		subscribers INTEGER,
		total_posts INTEGER,
		channel_url TEXT,
		description TEXT,
		created_date TEXT,
		channel_metadata TEXT,
		observed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_channels_collection ON channels(collection_id, platform, channel_id);
	CREATE TABLE IF NOT EXISTS enriched_posts (
		post_id TEXT PRIMARY KEY,
		sentiment TEXT,
		themes TEXT,
		enriched_at TEXT
	);
	CREATE TABLE IF NOT EXISTS post_embeddings (
		post_id TEXT PRIMARY KEY,
		embedding BLOB,
		embedded_at TEXT
	);
	`

	_, err := d.db.Exec(query)
	return err
}

// InsertRows appends rows to table in one transaction. Unknown columns are
// ignored and missing columns are written as NULL.
func (d *Database) InsertRows(ctx context.Context, table string, rows []map[string]any) error {
	cols, ok := columns[table]
	if !ok {
		return fmt.Errorf("failed to insert rows: unknown table %q", table)
	}
	if len(rows) == 0 {
		return nil
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			args[i] = row[col]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s rows: %w", table, err)
	}

	d.log.WithFields(logrus.Fields{"table": table, "rows": len(rows)}).Debug("Rows inserted")
	return nil
}

// CollectionConfig loads the stored configuration and originating question of a run
func (d *Database) CollectionConfig(ctx context.Context, collectionID string) (models.CollectionConfig, string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var raw string
	var question sql.NullString
	err := d.db.QueryRowContext(ctx,
		"SELECT config, original_question FROM collections WHERE collection_id = ?", collectionID,
	).Scan(&raw, &question)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CollectionConfig{}, "", fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
	}
	if err != nil {
		return models.CollectionConfig{}, "", fmt.Errorf("failed to query collection: %w", err)
	}

	var cfg models.CollectionConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return models.CollectionConfig{}, "", fmt.Errorf("%w: stored config of %s: %v", models.ErrInvalidConfig, collectionID, err)
	}
	return cfg, question.String, nil
}

// SeenKeys returns the post ids and channel keys already persisted for a run
func (d *Database) SeenKeys(ctx context.Context, collectionID string) (map[string]bool, map[string]bool, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	posts, err := d.stringSet(ctx, "SELECT post_id FROM posts WHERE collection_id = ?", collectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query seen posts: %w", err)
	}
	channels, err := d.stringSet(ctx,
		`SELECT DISTINCT CASE WHEN channel_id = '' THEN platform || ':@' || channel_handle
		ELSE platform || ':' || channel_id END
		FROM channels WHERE collection_id = ?`, collectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query seen channels: %w", err)
	}
	return posts, channels, nil
}

func (d *Database) stringSet(ctx context.Context, query string, args ...any) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		set[v] = true
	}
	return set, rows.Err()
}

// PostRefsForCollection lists every post persisted for a run
func (d *Database) PostRefsForCollection(ctx context.Context, collectionID string) ([]PostRef, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	refs, err := d.postRefs(ctx,
		"SELECT post_id, platform, post_url FROM posts WHERE collection_id = ? ORDER BY platform, post_id", collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts for collection %s: %w", collectionID, err)
	}
	return refs, nil
}

// PostRefsByIDs resolves explicit post ids, querying in chunks of bound parameters
func (d *Database) PostRefsByIDs(ctx context.Context, postIDs []string) ([]PostRef, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var refs []PostRef
	for start := 0; start < len(postIDs); start += idChunkSize {
		chunk := postIDs[start:min(start+idChunkSize, len(postIDs))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		query := fmt.Sprintf(
			"SELECT post_id, platform, post_url FROM posts WHERE post_id IN (%s) GROUP BY post_id",
			strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", "))
		found, err := d.postRefs(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query posts by id: %w", err)
		}
		refs = append(refs, found...)
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Platform != refs[j].Platform {
			return refs[i].Platform < refs[j].Platform
		}
		return refs[i].PostID < refs[j].PostID
	})
	return refs, nil
}

func (d *Database) postRefs(ctx context.Context, query string, args ...any) ([]PostRef, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]PostRef, 0)
	for rows.Next() {
		var ref PostRef
		var postURL sql.NullString
		if err := rows.Scan(&ref.PostID, &ref.Platform, &postURL); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		ref.PostURL = postURL.String
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return refs, nil
}

// CountPosts returns the number of posts persisted for a run
func (d *Database) CountPosts(ctx context.Context, collectionID string) (int, error) {
	return d.count(ctx, "SELECT COUNT(*) FROM posts WHERE collection_id = ?", collectionID)
}

// CountEnriched joins enriched_posts to a run's posts
func (d *Database) CountEnriched(ctx context.Context, collectionID string) (int, error) {
	return d.count(ctx, `
	SELECT COUNT(*) FROM enriched_posts ep
	JOIN posts p ON p.post_id = ep.post_id
	WHERE p.collection_id = ?`, collectionID)
}

// CountEmbedded joins post_embeddings through enriched_posts to a run's posts
func (d *Database) CountEmbedded(ctx context.Context, collectionID string) (int, error) {
	return d.count(ctx, `
	SELECT COUNT(*) FROM post_embeddings pe
	JOIN enriched_posts ep ON ep.post_id = pe.post_id
	JOIN posts p ON p.post_id = ep.post_id
	WHERE p.collection_id = ?`, collectionID)
}

func (d *Database) count(ctx context.Context, query string, args ...any) (int, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// RunScript executes the statements of a SQL file with named parameters,
// bound as :name, @name or $name
func (d *Database) RunScript(ctx context.Context, path string, params map[string]any) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, value))
	}

	for _, stmt := range splitStatements(string(script)) {
		if _, err := d.db.ExecContext(ctx, stmt, usedArgs(stmt, args)...); err != nil {
			return fmt.Errorf("failed to run script %s: %w", path, err)
		}
	}

	d.log.WithField("script", path).Debug("Script executed")
	return nil
}

// splitStatements splits on semicolons ending a line. Scripts keep one
// statement terminator per line end.
func splitStatements(script string) []string {
	var stmts []string
	var current strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != ";" {
				stmts = append(stmts, stmt)
			}
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

// usedArgs keeps the named args a statement references; sqlite rejects
// binding a name that does not appear in the statement
func usedArgs(stmt string, args []any) []any {
	var used []any
	for _, a := range args {
		named := a.(sql.NamedArg)
		for _, prefix := range []string{":", "@", "$"} {
			if strings.Contains(stmt, prefix+named.Name) {
				used = append(used, a)
				break
			}
		}
	}
	return used
}
