package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/klingon-exchange/klingvault/internal/account"
)

// SaveMetaAccount upserts a wallet, its chain accounts and any secrets in
// one transaction. Chain account rows are keyed by (meta_id, chain_id), so
// replacing an override updates the existing row.
func (s *Storage) SaveMetaAccount(m *account.MetaAccount, secrets ...*SecretRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := ToRecord(m)
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO meta_accounts (
			meta_id, name,
			substrate_account_id, substrate_public_key, substrate_crypto_type,
			ethereum_address, ethereum_public_key,
			currency_id, currency_symbol, currency_name, currency_icon, currency_selected,
			position, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM meta_accounts), ?, ?)
		ON CONFLICT(meta_id) DO UPDATE SET
			name = excluded.name,
			substrate_account_id = excluded.substrate_account_id,
			substrate_public_key = excluded.substrate_public_key,
			substrate_crypto_type = excluded.substrate_crypto_type,
			ethereum_address = excluded.ethereum_address,
			ethereum_public_key = excluded.ethereum_public_key,
			currency_id = excluded.currency_id,
			currency_symbol = excluded.currency_symbol,
			currency_name = excluded.currency_name,
			currency_icon = excluded.currency_icon,
			currency_selected = excluded.currency_selected,
			updated_at = excluded.updated_at
	`,
		rec.MetaID, rec.Name,
		rec.SubstrateAccountID, rec.SubstratePublicKey, rec.SubstrateCryptoType,
		rec.EthereumAddress, rec.EthereumPublicKey,
		rec.CurrencyID, rec.CurrencySymbol, rec.CurrencyName, rec.CurrencyIcon, boolToInt(rec.CurrencySelected),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save meta account: %w", err)
	}

	for _, ca := range rec.ChainAccounts {
		_, err := tx.Exec(`
			INSERT INTO chain_accounts (meta_id, chain_id, account_id, public_key, crypto_type, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(meta_id, chain_id) DO UPDATE SET
				account_id = excluded.account_id,
				public_key = excluded.public_key,
				crypto_type = excluded.crypto_type,
				updated_at = excluded.updated_at
		`, rec.MetaID, ca.ChainID, ca.AccountID, ca.PublicKey, ca.CryptoType, now)
		if err != nil {
			return fmt.Errorf("failed to save chain account %s: %w", ca.ChainID, err)
		}
	}

	for _, sec := range secrets {
		if err := saveSecret(tx, rec.MetaID, sec, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit meta account: %w", err)
	}
	return nil
}

// GetMetaAccount retrieves a wallet record with its chain accounts.
func (s *Storage) GetMetaAccount(metaID string) (*MetaAccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanMetaAccount(s.db.QueryRow(metaAccountSelect+` WHERE meta_id = ?`, metaID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", account.ErrMetaAccountNotFound, metaID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meta account: %w", err)
	}

	if rec.ChainAccounts, err = s.listChainAccounts(metaID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListMetaAccounts returns all wallet records in creation order.
func (s *Storage) ListMetaAccounts() ([]*MetaAccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(metaAccountSelect + ` ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list meta accounts: %w", err)
	}

	var records []*MetaAccountRecord
	for rows.Next() {
		rec, err := scanMetaAccount(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan meta account: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list meta accounts: %w", err)
	}
	rows.Close()

	for _, rec := range records {
		if rec.ChainAccounts, err = s.listChainAccounts(rec.MetaID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// DeleteMetaAccount removes a wallet with its chain accounts and secrets.
func (s *Storage) DeleteMetaAccount(metaID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chain_accounts WHERE meta_id = ?", metaID); err != nil {
		return fmt.Errorf("failed to delete chain accounts: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM secrets WHERE meta_id = ?", metaID); err != nil {
		return fmt.Errorf("failed to delete secrets: %w", err)
	}
	result, err := tx.Exec("DELETE FROM meta_accounts WHERE meta_id = ?", metaID)
	if err != nil {
		return fmt.Errorf("failed to delete meta account: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", account.ErrMetaAccountNotFound, metaID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// MetaAccountCount returns the number of stored wallets.
func (s *Storage) MetaAccountCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM meta_accounts").Scan(&count)
	return count, err
}

// Helper functions

const metaAccountSelect = `
	SELECT meta_id, name,
		substrate_account_id, substrate_public_key, substrate_crypto_type,
		ethereum_address, ethereum_public_key,
		currency_id, currency_symbol, currency_name, currency_icon, currency_selected,
		position, created_at, updated_at
	FROM meta_accounts`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMetaAccount(row scanner) (*MetaAccountRecord, error) {
	var rec MetaAccountRecord
	var ethAddr, ethPub, symbol, name, icon sql.NullString
	var currencyID sql.NullInt64
	var selected sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&rec.MetaID, &rec.Name,
		&rec.SubstrateAccountID, &rec.SubstratePublicKey, &rec.SubstrateCryptoType,
		&ethAddr, &ethPub,
		&currencyID, &symbol, &name, &icon, &selected,
		&rec.Position, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ethAddr.Valid {
		rec.EthereumAddress = &ethAddr.String
	}
	if ethPub.Valid {
		rec.EthereumPublicKey = &ethPub.String
	}
	if currencyID.Valid {
		id := int(currencyID.Int64)
		rec.CurrencyID = &id
		rec.CurrencySymbol = symbol.String
		rec.CurrencyName = name.String
		rec.CurrencyIcon = icon.String
		rec.CurrencySelected = selected.Int64 == 1
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return &rec, nil
}

// listChainAccounts must be called with s.mu held.
func (s *Storage) listChainAccounts(metaID string) ([]ChainAccountRecord, error) {
	rows, err := s.db.Query(`
		SELECT chain_id, account_id, public_key, crypto_type
		FROM chain_accounts WHERE meta_id = ?
		ORDER BY chain_id
	`, metaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain accounts: %w", err)
	}
	defer rows.Close()

	var out []ChainAccountRecord
	for rows.Next() {
		var ca ChainAccountRecord
		if err := rows.Scan(&ca.ChainID, &ca.AccountID, &ca.PublicKey, &ca.CryptoType); err != nil {
			return nil, fmt.Errorf("failed to scan chain account: %w", err)
		}
		out = append(out, ca)
	}
	return out, rows.Err()
}
