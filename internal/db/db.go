package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"error-english/manager-go/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrations holds the schema shipped with the binary. The migrate command
// uses it when no migrations folder exists on disk.
//
//go:embed migrations/*.sql
var Migrations embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

// Publication is one published video.
type Publication struct {
	ID          int64
	TargetWord  string
	YouTubeID   string
	ThreadsID   string
	InstagramID string
	TotalFrames int
	VideoSHA256 string
	Hostname    string
	PublishedAt time.Time
	CreatedAt   time.Time
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) InsertPublication(ctx context.Context, p Publication) (int64, error) {
	utils.Debug("db insert publication", "word", p.TargetWord, "youtube_id", p.YouTubeID)
	if p.PublishedAt.IsZero() {
		p.PublishedAt = time.Now()
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO publications
			(target_word, youtube_id, threads_id, instagram_id, total_frames, video_sha256, hostname, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		p.TargetWord,
		p.YouTubeID,
		p.ThreadsID,
		p.InstagramID,
		p.TotalFrames,
		p.VideoSHA256,
		p.Hostname,
		p.PublishedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert publication %s: %w", p.TargetWord, err)
	}
	return id, nil
}

// GetPublicationByWord returns the latest publication of word.
func (s *Store) GetPublicationByWord(ctx context.Context, word string) (Publication, error) {
	utils.Debug("db get publication", "word", word)
	row := s.pool.QueryRow(ctx, `
		SELECT id, target_word, youtube_id, threads_id, instagram_id, total_frames, video_sha256, hostname, published_at, created_at
		FROM publications
		WHERE target_word = $1
		ORDER BY published_at DESC
		LIMIT 1
	`, word)
	p, err := scanPublication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Publication{}, ErrNotFound
	}
	return p, err
}

func (s *Store) ListPublications(ctx context.Context, limit int) ([]Publication, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, target_word, youtube_id, threads_id, instagram_id, total_frames, video_sha256, hostname, published_at, created_at
		FROM publications
		ORDER BY published_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPublication(row pgx.Row) (Publication, error) {
	var p Publication
	err := row.Scan(
		&p.ID,
		&p.TargetWord,
		&p.YouTubeID,
		&p.ThreadsID,
		&p.InstagramID,
		&p.TotalFrames,
		&p.VideoSHA256,
		&p.Hostname,
		&p.PublishedAt,
		&p.CreatedAt,
	)
	return p, err
}
