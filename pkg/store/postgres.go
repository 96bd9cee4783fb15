package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const favourColumns = "id, debtor_id, debtor_name, recipient_id, recipient_name, rewards, initial_evidence, evidence, created_at"

func (s *PostgresStore) Create(ctx context.Context, f favour.Favour) error {
	rewards, err := json.Marshal(f.Rewards)
	if err != nil {
		return fmt.Errorf("failed to encode rewards: %w", err)
	}
	query := `
		INSERT INTO favours (` + favourColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		f.ID, f.Debtor.ID, f.Debtor.Name, f.Recipient.ID, f.Recipient.Name,
		string(rewards), f.InitialEvidence, f.Evidence, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert favour: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (favour.Favour, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+favourColumns+" FROM favours WHERE id = $1", id)
	f, err := scanFavour(row)
	if err == sql.ErrNoRows {
		return favour.Favour{}, fault.New(fault.NotFound, "favour not found")
	}
	if err != nil {
		return favour.Favour{}, fmt.Errorf("failed to get favour: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) SetEvidence(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE favours SET evidence = $2 WHERE id = $1", id, path)
	if err != nil {
		return fmt.Errorf("failed to set evidence: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM favours WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete favour: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListByParty(ctx context.Context, partyID string) ([]favour.Favour, error) {
	query := `
		SELECT ` + favourColumns + `
		FROM favours
		WHERE debtor_id = $1 OR recipient_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favours: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var favours []favour.Favour
	for rows.Next() {
		f, err := scanFavour(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFavour(row rowScanner) (favour.Favour, error) {
	var f favour.Favour
	var rewards string
	err := row.Scan(&f.ID, &f.Debtor.ID, &f.Debtor.Name, &f.Recipient.ID, &f.Recipient.Name,
		&rewards, &f.InitialEvidence, &f.Evidence, &f.CreatedAt)
	if err != nil {
		return favour.Favour{}, err
	}
	if rewards != "" {
		if err := json.Unmarshal([]byte(rewards), &f.Rewards); err != nil {
			return favour.Favour{}, fmt.Errorf("failed to decode rewards: %w", err)
		}
	}
	return f, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.New(fault.NotFound, "favour not found")
	}
	return nil
}
