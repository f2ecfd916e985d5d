package database

import (
	"database/sql"
	"errors"

	"github.com/TEENet-io/teleport-bridge/common"
)

// SQLiteDB stores the state in a single kv table.
type SQLiteDB struct {
	db        *sql.DB
	stmtCache *StmtCache
}

func NewSQLiteDB(db *sql.DB) (*SQLiteDB, error) {
	if _, err := db.Exec(kvTable); err != nil {
		return nil, err
	}

	return &SQLiteDB{
		db:        db,
		stmtCache: NewStmtCache(db),
	}, nil
}

func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	stmt, err := s.stmtCache.Prepare(`SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		return nil, err
	}

	var value []byte
	if err := stmt.QueryRow(common.ByteSliceToPureHexStr(key)).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (s *SQLiteDB) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteDB) Put(key, value []byte) error {
	stmt, err := s.stmtCache.Prepare(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(common.ByteSliceToPureHexStr(key), nonNil(value))
	return err
}

func (s *SQLiteDB) Delete(key []byte) error {
	stmt, err := s.stmtCache.Prepare(`DELETE FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(common.ByteSliceToPureHexStr(key))
	return err
}

// Write applies the batch inside one sql transaction.
func (s *SQLiteDB) Write(batch *Batch) error {
	put, err := s.stmtCache.Prepare(`INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	del, err := s.stmtCache.Prepare(`DELETE FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	txPut, txDel := tx.Stmt(put), tx.Stmt(del)

	err = batch.Replay(
		func(key, value []byte) error {
			_, err := txPut.Exec(common.ByteSliceToPureHexStr(key), nonNil(value))
			return err
		},
		func(key []byte) error {
			_, err := txDel.Exec(common.ByteSliceToPureHexStr(key))
			return err
		},
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close releases cached statements. The underlying *sql.DB belongs to the caller.
func (s *SQLiteDB) Close() error {
	s.stmtCache.Clear()
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
