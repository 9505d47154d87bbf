package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSecretNotFound is returned when no secret is stored for a slot.
var ErrSecretNotFound = errors.New("secret not found")

// SecretRecord is an encrypted secret bound to one identity slot of a wallet.
// Data is opaque to the storage layer.
type SecretRecord struct {
	MetaID    string
	Slot      string
	Data      []byte
	CreatedAt time.Time
}

// SaveSecret upserts a secret. The wallet must already exist.
func (s *Storage) SaveSecret(sec *SecretRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveSecret(tx, sec.MetaID, sec, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// saveSecret upserts a secret. A record without data clears the slot.
func saveSecret(tx *sql.Tx, metaID string, sec *SecretRecord, now int64) error {
	if len(sec.Data) == 0 {
		if _, err := tx.Exec(`DELETE FROM secrets WHERE meta_id = ? AND slot = ?`, metaID, sec.Slot); err != nil {
			return fmt.Errorf("failed to clear secret %s: %w", sec.Slot, err)
		}
		return nil
	}

	_, err := tx.Exec(`
		INSERT INTO secrets (meta_id, slot, data, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(meta_id, slot) DO UPDATE SET
			data = excluded.data,
			created_at = excluded.created_at
	`, metaID, sec.Slot, sec.Data, now)
	if err != nil {
		return fmt.Errorf("failed to save secret %s: %w", sec.Slot, err)
	}
	return nil
}

// GetSecret retrieves the secret of a wallet slot.
func (s *Storage) GetSecret(metaID, slot string) (*SecretRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec := SecretRecord{MetaID: metaID, Slot: slot}
	var createdAt int64
	err := s.db.QueryRow(`
		SELECT data, created_at FROM secrets WHERE meta_id = ? AND slot = ?
	`, metaID, slot).Scan(&sec.Data, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	sec.CreatedAt = time.Unix(createdAt, 0)
	return &sec, nil
}

// ListSecretSlots returns the slots holding a secret for a wallet.
func (s *Storage) ListSecretSlots(metaID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT slot FROM secrets WHERE meta_id = ? ORDER BY slot`, metaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
