// Package memory is an in-process ledger store for local runs and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartsave/internal/core"
	"smartsave/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	txs      map[string][]core.Transaction
	profiles map[string]core.Profile
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:      map[string][]core.Transaction{},
		profiles: map[string]core.Profile{},
	}
}

// NewFromFile seeds the store from a semicolon separated file with lines of
//
//	user;timestamp_ms;type;amount;savings_calculated;currency;description
//
// Blank lines and lines starting with # are skipped. A missing file yields an
// empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		tx, err := parseSeedLine(line)
		if err != nil {
			return nil, fmt.Errorf("seed line %d: %w", i+1, err)
		}
		if _, err := s.AppendTransaction(context.Background(), tx); err != nil {
			return nil, fmt.Errorf("seed line %d: %w", i+1, err)
		}
	}
	return s, nil
}

// AppendTransaction stores tx and returns its id, minting one when empty.
func (s *Store) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if strings.TrimSpace(tx.UserID) == "" {
		return "", core.ErrUnauthenticated
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Type = core.NormalizeType(string(tx.Type))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[tx.UserID] = append(s.txs[tx.UserID], tx)
	return tx.ID, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, r ledger.Range) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs[userID] {
		if r.Contains(tx.Timestamp) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.Profile{}, ledger.ErrNotFound
	}
	return p, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

func (s *Store) SetTotalSaved(_ context.Context, userID string, total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = core.Profile{UserID: userID}
	}
	p.TotalSaved = total
	s.profiles[userID] = p
	return nil
}

func parseSeedLine(line string) (core.Transaction, error) {
	parts := strings.SplitN(line, ";", 7)
	if len(parts) != 7 {
		return core.Transaction{}, fmt.Errorf("expected 7 fields, got %d", len(parts))
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("timestamp: %w", err)
	}
	amount, err := core.ParseAmount(parts[3])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	saved := decimal.Zero
	if v := strings.TrimSpace(parts[4]); v != "" {
		if saved, err = core.ParseAmount(v); err != nil {
			return core.Transaction{}, fmt.Errorf("savings: %w", err)
		}
	}
	return core.Transaction{
		UserID:            strings.TrimSpace(parts[0]),
		Timestamp:         ts,
		Type:              core.NormalizeType(parts[2]),
		Amount:            amount,
		SavingsCalculated: saved,
		Currency:          strings.TrimSpace(parts[5]),
		Description:       strings.TrimSpace(parts[6]),
	}, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
