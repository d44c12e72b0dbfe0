package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCredentialStore verifies practitioner sign-off codes against the
// practitioner_credential table. Codes are stored as SHA-256 digests; the
// plaintext code never touches the database.
type PGCredentialStore struct {
	pool *pgxpool.Pool
}

func NewPGCredentialStore(pool *pgxpool.Pool) *PGCredentialStore {
	return &PGCredentialStore{pool: pool}
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// VerifyCredential reports whether the given code is the active credential
// registered for the named practitioner.
func (s *PGCredentialStore) VerifyCredential(ctx context.Context, practitioner, code string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM practitioner_credential
			WHERE practitioner = $1 AND digest = $2 AND active
		)`, practitioner, digest(code)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("verify credential: %w", err)
	}
	return ok, nil
}

// SetCredential registers or replaces the credential for a practitioner.
func (s *PGCredentialStore) SetCredential(ctx context.Context, practitioner, code string) error {
	if strings.TrimSpace(practitioner) == "" {
		return fmt.Errorf("practitioner is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO practitioner_credential (practitioner, digest, active, updated_at)
		VALUES ($1, $2, TRUE, NOW())
		ON CONFLICT (practitioner)
		DO UPDATE SET digest = EXCLUDED.digest, active = TRUE, updated_at = NOW()`,
		practitioner, digest(code))
	if err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	return nil
}

// StaticCredentialStore is an in-memory credential verifier used in
// development mode and in tests.
type StaticCredentialStore struct {
	mu    sync.RWMutex
	codes map[string]string // practitioner -> digest
}

func NewStaticCredentialStore() *StaticCredentialStore {
	return &StaticCredentialStore{codes: make(map[string]string)}
}

func (s *StaticCredentialStore) SetCredential(_ context.Context, practitioner, code string) error {
	if strings.TrimSpace(practitioner) == "" {
		return fmt.Errorf("practitioner is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[practitioner] = digest(code)
	return nil
}

func (s *StaticCredentialStore) VerifyCredential(_ context.Context, practitioner, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.codes[practitioner]
	return ok && stored == digest(code), nil
}
