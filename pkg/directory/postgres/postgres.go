// Package postgres provides a PostgreSQL implementation of
// directory.Directory using pgx/v5 connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/directory"
)

// Store is a PostgreSQL-backed Directory.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements directory.Directory at compile time.
var _ directory.Directory = (*Store)(nil)

// New creates a new PostgreSQL directory with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	if cfg.SeedOnStart {
		if err := s.Seed(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seeding directory: %w", err)
		}
	}

	return s, nil
}

// FindEventByName returns the event with the given name, ignoring case.
func (s *Store) FindEventByName(ctx context.Context, name string) (*api.Event, error) {
	var e api.Event
	err := s.pool.QueryRow(ctx,
		`SELECT name, location, event_date, description
		   FROM events
		  WHERE lower(name) = lower(trim($1))`,
		name,
	).Scan(&e.Name, &e.Location, &e.Date, &e.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		debug.Log("directory", "event not found", "name", name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying event %q: %w", name, err)
	}
	e.Date = e.Date.UTC()
	return &e, nil
}

// FindUsersByTopics returns users tagged with any of topics, ignoring case.
// Each user appears once, carrying all of its topics.
func (s *Store) FindUsersByTopics(ctx context.Context, topics []string) ([]api.User, error) {
	wanted := directory.NormalizeTopics(topics)
	if len(wanted) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, u.email,
		        array(SELECT t.topic FROM user_topics t WHERE t.user_id = u.id ORDER BY t.topic)
		   FROM users u
		  WHERE EXISTS (
		        SELECT 1 FROM user_topics t
		         WHERE t.user_id = u.id AND lower(t.topic) = ANY($1))
		  ORDER BY u.id`,
		wanted,
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []api.User
	for rows.Next() {
		var u api.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Topics); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	debug.Log("directory", "users by topics", "topics", wanted, "count", len(users))
	return users, nil
}

// AddEvent inserts or updates an event, keyed by its case-insensitive name.
func (s *Store) AddEvent(ctx context.Context, e api.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (name, location, event_date, description)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT ((lower(name))) DO UPDATE
		    SET location = EXCLUDED.location,
		        event_date = EXCLUDED.event_date,
		        description = EXCLUDED.description`,
		e.Name, e.Location, e.Date, e.Description,
	)
	if err != nil {
		return fmt.Errorf("saving event %q: %w", e.Name, err)
	}
	return nil
}

// AddUser inserts or replaces a user and its topics in one transaction.
func (s *Store) AddUser(ctx context.Context, u api.User) error {
	if u.ID == 0 {
		return fmt.Errorf("user %q: id is required", u.Name)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (id, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
		u.ID, u.Name, u.Email,
	); err != nil {
		return fmt.Errorf("saving user %d: %w", u.ID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM user_topics WHERE user_id = $1", u.ID); err != nil {
		return fmt.Errorf("clearing topics of user %d: %w", u.ID, err)
	}

	batch := &pgx.Batch{}
	for _, t := range u.Topics {
		batch.Queue(
			"INSERT INTO user_topics (user_id, topic) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			u.ID, t,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving topics of user %d: %w", u.ID, err)
	}

	return tx.Commit(ctx)
}

// Seed loads the demo events and users when the directory holds no users.
func (s *Store) Seed(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, e := range directory.SeedEvents() {
		if err := s.AddEvent(ctx, e); err != nil {
			return err
		}
	}
	for _, u := range directory.SeedUsers() {
		if err := s.AddUser(ctx, u); err != nil {
			return err
		}
	}
	slog.Info("directory seeded", "events", len(directory.SeedEvents()), "users", len(directory.SeedUsers()))
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
