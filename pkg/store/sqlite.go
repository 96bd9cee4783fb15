package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
)

// SQLiteStore implements Store using SQLite via the pure-Go modernc driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and creates the favours table if missing.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS favours (
		id TEXT PRIMARY KEY,
		debtor_id TEXT NOT NULL,
		debtor_name TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		recipient_name TEXT NOT NULL,
		rewards JSON,
		initial_evidence TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '',
		created_at DATETIME
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, f favour.Favour) error {
	rewards, err := json.Marshal(f.Rewards)
	if err != nil {
		return fmt.Errorf("failed to encode rewards: %w", err)
	}
	query := `INSERT INTO favours (` + favourColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		f.ID, f.Debtor.ID, f.Debtor.Name, f.Recipient.ID, f.Recipient.Name,
		string(rewards), f.InitialEvidence, f.Evidence, f.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert favour: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (favour.Favour, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+favourColumns+" FROM favours WHERE id = ?", id)
	f, err := scanSQLiteFavour(row)
	if err == sql.ErrNoRows {
		return favour.Favour{}, fault.New(fault.NotFound, "favour not found")
	}
	if err != nil {
		return favour.Favour{}, fmt.Errorf("failed to get favour: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) SetEvidence(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE favours SET evidence = ? WHERE id = ?", path, id)
	if err != nil {
		return fmt.Errorf("failed to set evidence: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM favours WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete favour: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) ListByParty(ctx context.Context, partyID string) ([]favour.Favour, error) {
	query := `
		SELECT ` + favourColumns + `
		FROM favours
		WHERE debtor_id = ? OR recipient_id = ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, partyID, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favours: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var favours []favour.Favour
	for rows.Next() {
		f, err := scanSQLiteFavour(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favour: %w", err)
		}
		favours = append(favours, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return favours, nil
}

// scanSQLiteFavour reads created_at as the RFC 3339 text written by Create.
func scanSQLiteFavour(row rowScanner) (favour.Favour, error) {
	var f favour.Favour
	var rewards, createdAt string
	err := row.Scan(&f.ID, &f.Debtor.ID, &f.Debtor.Name, &f.Recipient.ID, &f.Recipient.Name,
		&rewards, &f.InitialEvidence, &f.Evidence, &createdAt)
	if err != nil {
		return favour.Favour{}, err
	}
	if rewards != "" {
		if err := json.Unmarshal([]byte(rewards), &f.Rewards); err != nil {
			return favour.Favour{}, fmt.Errorf("failed to decode rewards: %w", err)
		}
	}
	if createdAt != "" {
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return favour.Favour{}, fmt.Errorf("failed to parse created_at: %w", err)
		}
		f.CreatedAt = t
	}
	return f, nil
}
