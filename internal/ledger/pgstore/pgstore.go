package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"log"

	_ "github.com/lib/pq"

	"github.com/davidahmann/pdogate/internal/ledger"
)

type Store struct {
	db *sql.DB
}

func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) WithTx(fn func(ledger.Tx) error) error {
	tx, err := s.db.BeginTx(context.Background(), &sql.TxOptions{})
	if err != nil {
		return err
	}
	wrapped := &Tx{tx: tx}
	if err := fn(wrapped); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) PutTrustedKey(key ledger.TrustedKeyRecord) error {
	return s.WithTx(func(tx ledger.Tx) error { return tx.PutTrustedKey(key) })
}

func (s *Store) GetTrustedKey(keyID string) (ledger.TrustedKeyRecord, bool) {
	return scanTrustedKey(keyID, s.db.QueryRow(selectTrustedKey+` WHERE key_id = $1`, keyID))
}

func (s *Store) ListTrustedKeys() ([]ledger.TrustedKeyRecord, error) {
	rows, err := s.db.Query(selectTrustedKey + ` ORDER BY key_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ledger.TrustedKeyRecord{}
	for rows.Next() {
		var rec ledger.TrustedKeyRecord
		if err := rows.Scan(&rec.KeyID, &rec.Algorithm, &rec.Material, &rec.BoundAgentID, &rec.RegisteredAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ConsumeNonce(rec ledger.NonceRecord) (bool, error) {
	var fresh bool
	err := s.WithTx(func(tx ledger.Tx) error {
		var err error
		fresh, err = tx.ConsumeNonce(rec)
		return err
	})
	return fresh, err
}

func (s *Store) PurgeNonces(before string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM pdogate_consumed_nonces WHERE retain_until < $1::timestamptz`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type Tx struct {
	tx *sql.Tx
}

func (t *Tx) PutTrustedKey(key ledger.TrustedKeyRecord) error {
	if key.KeyID == "" {
		return errors.New("missing key_id")
	}
	_, err := t.tx.Exec(`INSERT INTO pdogate_trusted_keys(key_id, algorithm, material, bound_agent_id, registered_at, updated_at)
VALUES($1,$2,$3,$4,$5::timestamptz,$6::timestamptz)
ON CONFLICT(key_id) DO UPDATE SET
  algorithm=EXCLUDED.algorithm,
  material=EXCLUDED.material,
  bound_agent_id=EXCLUDED.bound_agent_id,
  updated_at=EXCLUDED.updated_at`,
		key.KeyID,
		key.Algorithm,
		key.Material,
		key.BoundAgentID,
		key.RegisteredAt,
		key.UpdatedAt,
	)
	return err
}

func (t *Tx) GetTrustedKey(keyID string) (ledger.TrustedKeyRecord, bool) {
	return scanTrustedKey(keyID, t.tx.QueryRow(selectTrustedKey+` WHERE key_id = $1`, keyID))
}

func (t *Tx) ConsumeNonce(rec ledger.NonceRecord) (bool, error) {
	res, err := t.tx.Exec(`INSERT INTO pdogate_consumed_nonces(namespace, nonce, consumed_at, retain_until)
VALUES($1,$2,$3::timestamptz,$4::timestamptz)
ON CONFLICT(namespace, nonce) DO UPDATE SET
  consumed_at=EXCLUDED.consumed_at,
  retain_until=EXCLUDED.retain_until
WHERE pdogate_consumed_nonces.retain_until < EXCLUDED.consumed_at`,
		rec.Namespace, rec.Nonce, rec.ConsumedAt, rec.RetainUntil,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const selectTrustedKey = `SELECT key_id, algorithm, material, bound_agent_id, registered_at::text, updated_at::text FROM pdogate_trusted_keys`

// scanTrustedKey reports a lookup failure as a missing key. Errors other
// than sql.ErrNoRows are logged so a store outage is visible to operators.
func scanTrustedKey(keyID string, row *sql.Row) (ledger.TrustedKeyRecord, bool) {
	var rec ledger.TrustedKeyRecord
	if err := row.Scan(&rec.KeyID, &rec.Algorithm, &rec.Material, &rec.BoundAgentID, &rec.RegisteredAt, &rec.UpdatedAt); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("trusted key lookup failed: key_id=%s err=%v", keyID, err)
		}
		return ledger.TrustedKeyRecord{}, false
	}
	return rec, true
}
