package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Transaction struct {
	ID                string
	UserID            string
	Description       string
	Amount            string
	Type              string
	SavingsCalculated string
	TimestampMs       int64
	Currency          string
}

type Profile struct {
	UserID            string
	SavingsPercentage string
	StartDate         string
	TotalSaved        string
	IsActive          int64
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (id, user_id, description, amount, type, savings_calculated, timestamp_ms, currency)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateTransactionParams struct {
	ID                string
	UserID            string
	Description       string
	Amount            string
	Type              string
	SavingsCalculated string
	TimestampMs       int64
	Currency          string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.UserID,
		arg.Description,
		arg.Amount,
		arg.Type,
		arg.SavingsCalculated,
		arg.TimestampMs,
		arg.Currency,
	)
	return err
}

const listTransactionsInRange = `-- name: ListTransactionsInRange :many
SELECT id, user_id, description, amount, type, savings_calculated, timestamp_ms, currency
FROM transactions
WHERE user_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
ORDER BY timestamp_ms, id
`

type ListTransactionsInRangeParams struct {
	UserID string
	Start  int64
	End    int64
}

func (q *Queries) ListTransactionsInRange(ctx context.Context, arg ListTransactionsInRangeParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsInRange, arg.UserID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Description,
			&i.Amount,
			&i.Type,
			&i.SavingsCalculated,
			&i.TimestampMs,
			&i.Currency,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getProfile = `-- name: GetProfile :one
SELECT user_id, savings_percentage, start_date, total_saved, is_active
FROM profiles
WHERE user_id = ?
`

func (q *Queries) GetProfile(ctx context.Context, userID string) (Profile, error) {
	row := q.db.QueryRowContext(ctx, getProfile, userID)
	var i Profile
	err := row.Scan(
		&i.UserID,
		&i.SavingsPercentage,
		&i.StartDate,
		&i.TotalSaved,
		&i.IsActive,
	)
	return i, err
}

const upsertProfile = `-- name: UpsertProfile :exec
INSERT INTO profiles (user_id, savings_percentage, start_date, total_saved, is_active)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    savings_percentage = excluded.savings_percentage,
    start_date = excluded.start_date,
    total_saved = excluded.total_saved,
    is_active = excluded.is_active,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertProfileParams struct {
	UserID            string
	SavingsPercentage string
	StartDate         string
	TotalSaved        string
	IsActive          int64
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) error {
	_, err := q.db.ExecContext(ctx, upsertProfile,
		arg.UserID,
		arg.SavingsPercentage,
		arg.StartDate,
		arg.TotalSaved,
		arg.IsActive,
	)
	return err
}

const setTotalSaved = `-- name: SetTotalSaved :exec
INSERT INTO profiles (user_id, total_saved)
VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    total_saved = excluded.total_saved,
    updated_at = CURRENT_TIMESTAMP
`

type SetTotalSavedParams struct {
	UserID     string
	TotalSaved string
}

func (q *Queries) SetTotalSaved(ctx context.Context, arg SetTotalSavedParams) error {
	_, err := q.db.ExecContext(ctx, setTotalSaved, arg.UserID, arg.TotalSaved)
	return err
}
