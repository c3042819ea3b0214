package conversation

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/SankrityaT/Navia-sub000/core/database"
	"github.com/SankrityaT/Navia-sub000/core/domain"
	"github.com/SankrityaT/Navia-sub000/core/providers"
	"github.com/viterin/vek/vek32"
)

var migrations = []database.Migration{
	{
		Version:     1,
		Description: "chat history",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS chat_history (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				session_id TEXT NOT NULL DEFAULT '',
				domain TEXT NOT NULL DEFAULT '',
				message TEXT NOT NULL,
				response TEXT NOT NULL DEFAULT '',
				embedding BLOB,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_history_user_created
				ON chat_history(user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_history_session
				ON chat_history(user_id, session_id)`,
		},
	},
}

// semanticScanLimit bounds how many past exchanges are scored per lookup.
const semanticScanLimit = 500

type SQLiteConfig struct {
	Embedder  providers.Embedder
	Threshold float64
	Logger    *slog.Logger
}

// SQLiteStore keeps chat history in a local SQLite database. Embeddings
// are stored as little-endian float32 blobs and scored in process.
type SQLiteStore struct {
	pool      *database.Pool
	embedder  providers.Embedder
	threshold float64
	logger    *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string, cfg SQLiteConfig) (*SQLiteStore, error) {
	pool, err := database.Open(path, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}

	store, err := NewSQLiteStore(ctx, pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func NewSQLiteStore(ctx context.Context, pool *database.Pool, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultSemanticThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if _, err := database.NewMigrator(pool, migrations).WithLogger(cfg.Logger).Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate chat history: %w", err)
	}

	return &SQLiteStore{
		pool:      pool,
		embedder:  cfg.Embedder,
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	rec, err := normalize(rec)
	if err != nil {
		return err
	}

	var blob []byte
	if s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, []string{embeddingText(rec)})
		if err != nil {
			s.logger.Warn("storing record without embedding", "user_id", rec.UserID, "error", err)
		} else {
			blob = encodeVector(vecs[0])
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chat_history (id, user_id, session_id, domain, message, response, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.SessionID, rec.Domain, rec.Query, rec.Response, blob, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert chat history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FetchRecent(ctx context.Context, userID string, filter Filter) ([]domain.ConversationTurn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	limit := filter.limit()
	where, args := whereClause(userID, filter)
	args = append(args, recordsFor(limit))

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, domain, message, response, created_at
		 FROM chat_history WHERE `+where+` ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows, nil)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return chronological(records, limit), nil
}

func (s *SQLiteStore) FetchSemantic(ctx context.Context, userID, query string, filter Filter) ([]domain.ConversationTurn, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if s.embedder == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	target := vecs[0]

	where, args := whereClause(userID, filter)
	args = append(args, semanticScanLimit)

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, domain, message, response, created_at, embedding
		 FROM chat_history WHERE `+where+` AND embedding IS NOT NULL
		 ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var matches []scored
	for rows.Next() {
		var blob []byte
		rec, err := scanRecord(rows, &blob)
		if err != nil {
			return nil, err
		}
		vec := decodeVector(blob)
		if len(vec) != len(target) {
			continue
		}
		matches = append(matches, scored{
			rec:   rec,
			score: float64(vek32.CosineSimilarity(target, vec)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ranked(matches, s.threshold, filter.limit()), nil
}

func whereClause(userID string, filter Filter) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if filter.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, filter.Domain)
	}
	if filter.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	return strings.Join(clauses, " AND "), args
}

func scanRecord(rows *sql.Rows, embedding *[]byte) (Record, error) {
	var rec Record
	var created int64
	dest := []any{&rec.ID, &rec.UserID, &rec.SessionID, &rec.Domain, &rec.Query, &rec.Response, &created}
	if embedding != nil {
		dest = append(dest, embedding)
	}
	if err := rows.Scan(dest...); err != nil {
		return rec, fmt.Errorf("scan chat history: %w", err)
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	return rec, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
