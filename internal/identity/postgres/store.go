package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-tracker/internal/identity"
)

// Store implements identity.Store on top of the identities table. Names are
// stored normalized so CLI slugs match enrolled display names.
type Store struct {
	pool *Pool
}

// NewStore creates a store over an existing pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// AddSample enrolls one embedding sample under a display name.
func (s *Store) AddSample(ctx context.Context, displayName string, embedding []float32) error {
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO identities (name, display_name, embedding) VALUES ($1, $2, $3)
	`, identity.NormalizeName(displayName), displayName, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("insert identity sample: %w", err)
	}
	return nil
}

// Get loads every sample of one identity and builds its template.
func (s *Store) Get(ctx context.Context, name string) (*identity.Template, error) {
	normalized := identity.NormalizeName(name)
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT display_name, embedding FROM identities WHERE name = $1 ORDER BY id
	`, normalized)
	if err != nil {
		return nil, fmt.Errorf("query identity %q: %w", normalized, err)
	}
	defer rows.Close()

	var display string
	var samples [][]float32
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&display, &vec); err != nil {
			return nil, fmt.Errorf("scan identity sample: %w", err)
		}
		samples = append(samples, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity samples: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("identity %q: %w", normalized, identity.ErrNotFound)
	}

	tmpl, err := identity.NewTemplate(display, samples)
	if err != nil {
		return nil, fmt.Errorf("build template for %q: %w", normalized, err)
	}
	return tmpl, nil
}

// List loads every enrolled identity.
func (s *Store) List(ctx context.Context) ([]*identity.Template, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT name, display_name, embedding FROM identities ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	// Rows arrive grouped by normalized name.
	var templates []*identity.Template
	var curName, curDisplay string
	var samples [][]float32
	flush := func() error {
		if len(samples) == 0 {
			return nil
		}
		tmpl, err := identity.NewTemplate(curDisplay, samples)
		if err != nil {
			return fmt.Errorf("build template for %q: %w", curName, err)
		}
		templates = append(templates, tmpl)
		samples = nil
		return nil
	}

	for rows.Next() {
		var name, display string
		var vec pgvector.Vector
		if err := rows.Scan(&name, &display, &vec); err != nil {
			return nil, fmt.Errorf("scan identity row: %w", err)
		}
		if name != curName {
			if err := flush(); err != nil {
				return nil, err
			}
			curName, curDisplay = name, display
		}
		samples = append(samples, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return templates, nil
}

// Has reports whether at least one sample exists for the identity.
func (s *Store) Has(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM identities WHERE name = $1)
	`, identity.NormalizeName(name)).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check identity: %w", err)
	}
	return exists, nil
}
