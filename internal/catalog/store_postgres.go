package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store and Writer implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed catalog store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

var providerTables = map[Provider]string{
	ProviderKhanAcademy: "khan_academy_resources",
	ProviderKaplan:      "kaplan_resources",
	ProviderJackWestin:  "jack_westin_resources",
	ProviderUWorld:      "uworld_resources",
	ProviderAAMC:        "aamc_resources",
}

// Migrate creates the catalog and ledger tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			id SERIAL PRIMARY KEY,
			content_category_number VARCHAR(10) NOT NULL,
			content_category_title VARCHAR(500) NOT NULL,
			subtopic_number INT NOT NULL,
			subtopic_title VARCHAR(500) NOT NULL,
			concept_number INT NOT NULL,
			concept_title VARCHAR(500) NOT NULL,
			high_yield BOOLEAN NOT NULL DEFAULT FALSE,
			key VARCHAR(20) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS khan_academy_resources (
			id SERIAL PRIMARY KEY,
			stable_id VARCHAR(100),
			title VARCHAR(1000) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			key VARCHAR(20) NOT NULL,
			time_minutes INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS kaplan_resources (
			id SERIAL PRIMARY KEY,
			stable_id VARCHAR(100),
			title VARCHAR(1000) NOT NULL,
			key VARCHAR(20) NOT NULL,
			time_minutes INT NOT NULL,
			high_yield BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS jack_westin_resources (
			id SERIAL PRIMARY KEY,
			stable_id VARCHAR(100),
			title VARCHAR(1000) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			key VARCHAR(20) NOT NULL,
			time_minutes INT NOT NULL,
			cars_resource BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS uworld_resources (
			id SERIAL PRIMARY KEY,
			stable_id VARCHAR(100),
			title VARCHAR(1000) NOT NULL,
			key VARCHAR(20) NOT NULL,
			time_minutes INT NOT NULL,
			question_count INT NOT NULL DEFAULT 10
		)`,
		`CREATE TABLE IF NOT EXISTS aamc_resources (
			id SERIAL PRIMARY KEY,
			stable_id VARCHAR(100),
			title VARCHAR(1000) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			key VARCHAR(20) NOT NULL,
			time_minutes INT NOT NULL,
			pack_name VARCHAR(500)
		)`,
		`CREATE TABLE IF NOT EXISTS used_resources (
			id SERIAL PRIMARY KEY,
			schedule_id VARCHAR(100) NOT NULL,
			provider VARCHAR(50) NOT NULL,
			resource_id INT NOT NULL,
			resource_uid VARCHAR(1000) NOT NULL,
			used_date DATE NOT NULL,
			UNIQUE (schedule_id, resource_uid)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) TopicsByPriority(ctx context.Context, priorities []string) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	patterns := make([]string, len(priorities))
	for i, p := range priorities {
		patterns[i] = p + "%"
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content_category_number, content_category_title,
		        subtopic_number, subtopic_title, concept_number, concept_title,
		        high_yield, key
		 FROM topics
		 WHERE key LIKE ANY($1)
		 ORDER BY
		   CASE
		     WHEN key ~ '^[0-9]+[A-Z]\.[0-9]+\.[0-9]+$' THEN 0
		     WHEN key ~ '^[0-9]+[A-Z]\.[0-9]+\.x$' THEN 1
		     WHEN key ~ '^[0-9]+[A-Z]\.x\.x$' THEN 2
		     ELSE 3
		   END,
		   content_category_number, subtopic_number, concept_number`,
		patterns,
	)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.CategoryNumber, &t.CategoryTitle,
			&t.SubtopicNumber, &t.SubtopicTitle, &t.ConceptNumber, &t.ConceptTitle,
			&t.HighYield, &t.Key); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}

func (s *PostgresStore) KhanAcademyResources(ctx context.Context, key, resourceType string) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT id, stable_id, title, resource_type, key, time_minutes
	          FROM khan_academy_resources
	          WHERE key = ANY($1)`
	args := []any{MatchingKeys(key)}
	if resourceType != "" {
		query += ` AND resource_type = $2`
		args = append(args, resourceType)
	}
	query += ` ORDER BY title`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query khan academy resources: %w", err)
	}
	defer rows.Close()

	return scanTyped(rows, ProviderKhanAcademy)
}

func (s *PostgresStore) KaplanResources(ctx context.Context, key string, highYieldOnly bool) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT id, stable_id, title, key, time_minutes, high_yield
	          FROM kaplan_resources
	          WHERE key = ANY($1)`
	if highYieldOnly {
		query += ` AND high_yield = TRUE`
	}
	query += ` ORDER BY title`

	rows, err := s.pool.Query(ctx, query, MatchingKeys(key))
	if err != nil {
		return nil, fmt.Errorf("query kaplan resources: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		r := Resource{Provider: ProviderKaplan}
		var stableID *string
		if err := rows.Scan(&r.ID, &stableID, &r.Title, &r.Key, &r.TimeMinutes, &r.HighYield); err != nil {
			return nil, fmt.Errorf("scan kaplan resource: %w", err)
		}
		if stableID != nil {
			r.StableID = *stableID
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kaplan resources: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) JackWestinResources(ctx context.Context, key string) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, stable_id, title, resource_type, key, time_minutes, cars_resource
		 FROM jack_westin_resources
		 WHERE key = ANY($1)
		 ORDER BY title`,
		MatchingKeys(key),
	)
	if err != nil {
		return nil, fmt.Errorf("query jack westin resources: %w", err)
	}
	defer rows.Close()

	return scanJackWestin(rows)
}

// CARSPassages returns Jack Westin passages flagged as CARS material during
// ingestion. They are not scoped to any topic.
func (s *PostgresStore) CARSPassages(ctx context.Context) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, stable_id, title, resource_type, key, time_minutes, cars_resource
		 FROM jack_westin_resources
		 WHERE cars_resource = TRUE
		 ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("query cars passages: %w", err)
	}
	defer rows.Close()

	return scanJackWestin(rows)
}

func (s *PostgresStore) UWorldResources(ctx context.Context, key string) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, stable_id, title, key, time_minutes, question_count
		 FROM uworld_resources
		 WHERE key = ANY($1)
		 ORDER BY title`,
		MatchingKeys(key),
	)
	if err != nil {
		return nil, fmt.Errorf("query uworld resources: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		r := Resource{Provider: ProviderUWorld}
		var stableID *string
		if err := rows.Scan(&r.ID, &stableID, &r.Title, &r.Key, &r.TimeMinutes, &r.QuestionCount); err != nil {
			return nil, fmt.Errorf("scan uworld resource: %w", err)
		}
		if stableID != nil {
			r.StableID = *stableID
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uworld resources: %w", err)
	}
	return out, nil
}

// AAMCResources returns general-practice material regardless of topic key.
func (s *PostgresStore) AAMCResources(ctx context.Context, resourceType string) ([]Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT id, stable_id, title, resource_type, key, time_minutes, pack_name
	          FROM aamc_resources`
	var args []any
	if resourceType != "" {
		query += ` WHERE resource_type = $1`
		args = append(args, resourceType)
	}
	query += ` ORDER BY title`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aamc resources: %w", err)
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		r := Resource{Provider: ProviderAAMC}
		var stableID, packName *string
		if err := rows.Scan(&r.ID, &stableID, &r.Title, &r.Type, &r.Key, &r.TimeMinutes, &packName); err != nil {
			return nil, fmt.Errorf("scan aamc resource: %w", err)
		}
		if stableID != nil {
			r.StableID = *stableID
		}
		if packName != nil {
			r.PackName = *packName
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aamc resources: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AAMCFullLengths(ctx context.Context) ([]Resource, error) {
	return s.AAMCResources(ctx, TypeFullLength)
}

func (s *PostgresStore) UsedResources(ctx context.Context, scheduleID string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT resource_uid FROM used_resources WHERE schedule_id = $1`,
		scheduleID,
	)
	if err != nil {
		return nil, fmt.Errorf("query used resources: %w", err)
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan used resource: %w", err)
		}
		used[uid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate used resources: %w", err)
	}
	return used, nil
}

// MarkUsed records a resource in the schedule's ledger. A duplicate insert
// for the same (schedule, resource) pair is a silent no-op: the greedy filler
// can re-offer an already-committed candidate within the same day.
func (s *PostgresStore) MarkUsed(ctx context.Context, scheduleID string, r Resource, provider Provider, usedDate time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO used_resources (schedule_id, provider, resource_id, resource_uid, used_date)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (schedule_id, resource_uid) DO NOTHING`,
		scheduleID, string(provider), r.ID, r.UID(), usedDate,
	)
	if err != nil {
		return fmt.Errorf("mark used: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceTopics(ctx context.Context, topics []Topic) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace topics: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM topics`); err != nil {
		return fmt.Errorf("clear topics: %w", err)
	}
	for _, t := range topics {
		_, err := tx.Exec(ctx,
			`INSERT INTO topics (content_category_number, content_category_title,
			   subtopic_number, subtopic_title, concept_number, concept_title, high_yield, key)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.CategoryNumber, t.CategoryTitle, t.SubtopicNumber, t.SubtopicTitle,
			t.ConceptNumber, t.ConceptTitle, t.HighYield, t.Key,
		)
		if err != nil {
			return fmt.Errorf("insert topic: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ReplaceResources(ctx context.Context, provider Provider, resources []Resource) error {
	table, ok := providerTables[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace resources: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}

	for _, r := range resources {
		if err := insertResource(ctx, tx, table, provider, r); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertResource(ctx context.Context, tx pgx.Tx, table string, provider Provider, r Resource) error {
	var err error
	switch provider {
	case ProviderKhanAcademy:
		_, err = tx.Exec(ctx,
			`INSERT INTO khan_academy_resources (stable_id, title, resource_type, key, time_minutes)
			 VALUES ($1, $2, $3, $4, $5)`,
			nullIfEmpty(r.StableID), r.Title, r.Type, r.Key, r.TimeMinutes)
	case ProviderKaplan:
		_, err = tx.Exec(ctx,
			`INSERT INTO kaplan_resources (stable_id, title, key, time_minutes, high_yield)
			 VALUES ($1, $2, $3, $4, $5)`,
			nullIfEmpty(r.StableID), r.Title, r.Key, r.TimeMinutes, r.HighYield)
	case ProviderJackWestin:
		_, err = tx.Exec(ctx,
			`INSERT INTO jack_westin_resources (stable_id, title, resource_type, key, time_minutes, cars_resource)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			nullIfEmpty(r.StableID), r.Title, r.Type, r.Key, r.TimeMinutes, r.CARS)
	case ProviderUWorld:
		_, err = tx.Exec(ctx,
			`INSERT INTO uworld_resources (stable_id, title, key, time_minutes, question_count)
			 VALUES ($1, $2, $3, $4, $5)`,
			nullIfEmpty(r.StableID), r.Title, r.Key, r.TimeMinutes, r.QuestionCount)
	case ProviderAAMC:
		_, err = tx.Exec(ctx,
			`INSERT INTO aamc_resources (stable_id, title, resource_type, key, time_minutes, pack_name)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			nullIfEmpty(r.StableID), r.Title, r.Type, r.Key, r.TimeMinutes, nullIfEmpty(r.PackName))
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

func scanTyped(rows pgx.Rows, provider Provider) ([]Resource, error) {
	var out []Resource
	for rows.Next() {
		r := Resource{Provider: provider}
		var stableID *string
		if err := rows.Scan(&r.ID, &stableID, &r.Title, &r.Type, &r.Key, &r.TimeMinutes); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		if stableID != nil {
			r.StableID = *stableID
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func scanJackWestin(rows pgx.Rows) ([]Resource, error) {
	var out []Resource
	for rows.Next() {
		r := Resource{Provider: ProviderJackWestin}
		var stableID *string
		if err := rows.Scan(&r.ID, &stableID, &r.Title, &r.Type, &r.Key, &r.TimeMinutes, &r.CARS); err != nil {
			return nil, fmt.Errorf("scan jack westin resource: %w", err)
		}
		if stableID != nil {
			r.StableID = *stableID
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jack westin resources: %w", err)
	}
	return out, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
