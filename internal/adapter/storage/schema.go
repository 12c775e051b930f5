package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS boards (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		kind VARCHAR(16) NOT NULL,
		linked_board_id VARCHAR(36) NULL,
		threshold_rules TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		board_id VARCHAR(36) NOT NULL,
		name VARCHAR(255) NOT NULL,
		sku VARCHAR(128) NOT NULL DEFAULT '',
		quantity DECIMAL(18,4) NOT NULL DEFAULT 0,
		supplier VARCHAR(255) NOT NULL DEFAULT '',
		category VARCHAR(255) NOT NULL DEFAULT '',
		tags TEXT NOT NULL,
		stock_level INT NOT NULL DEFAULT 0,
		column_name VARCHAR(64) NOT NULL,
		column_entered_at DATETIME(6) NOT NULL,
		location_id VARCHAR(64) NULL,
		assigned_person_id VARCHAR(64) NULL,
		preferred_receive_board_id VARCHAR(36) NULL,
		is_rejected BOOLEAN NOT NULL DEFAULT FALSE,
		is_draft BOOLEAN NOT NULL DEFAULT FALSE,
		closed_at DATETIME(6) NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_items_board (board_id, closed_at)
	)`,
	`CREATE TABLE IF NOT EXISTS transfer_logs (
		seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id VARCHAR(36) NOT NULL,
		product_id VARCHAR(36) NOT NULL,
		target_product_id VARCHAR(36) NULL,
		from_kanban_id VARCHAR(36) NOT NULL,
		to_kanban_id VARCHAR(36) NOT NULL,
		from_column VARCHAR(64) NOT NULL,
		to_column VARCHAR(64) NOT NULL,
		from_location_id VARCHAR(64) NULL,
		to_location_id VARCHAR(64) NULL,
		transfer_type VARCHAR(16) NOT NULL,
		notes TEXT NULL,
		transferred_by VARCHAR(128) NULL,
		request_id VARCHAR(128) NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_transfer_logs_id (id),
		UNIQUE KEY uq_transfer_logs_request (request_id),
		INDEX idx_transfer_logs_product (product_id),
		INDEX idx_transfer_logs_target (target_product_id),
		INDEX idx_transfer_logs_from (from_kanban_id),
		INDEX idx_transfer_logs_to (to_kanban_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS boards (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		linked_board_id TEXT NULL,
		threshold_rules TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT NOT NULL PRIMARY KEY,
		board_id TEXT NOT NULL REFERENCES boards(id),
		name TEXT NOT NULL,
		sku TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '0',
		supplier TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL,
		stock_level INTEGER NOT NULL DEFAULT 0,
		column_name TEXT NOT NULL,
		column_entered_at TEXT NOT NULL,
		location_id TEXT NULL,
		assigned_person_id TEXT NULL,
		preferred_receive_board_id TEXT NULL,
		is_rejected INTEGER NOT NULL DEFAULT 0,
		is_draft INTEGER NOT NULL DEFAULT 0,
		closed_at TEXT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_board ON items(board_id, closed_at)`,
	`CREATE TABLE IF NOT EXISTS transfer_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		product_id TEXT NOT NULL,
		target_product_id TEXT NULL,
		from_kanban_id TEXT NOT NULL,
		to_kanban_id TEXT NOT NULL,
		from_column TEXT NOT NULL,
		to_column TEXT NOT NULL,
		from_location_id TEXT NULL,
		to_location_id TEXT NULL,
		transfer_type TEXT NOT NULL CHECK (transfer_type IN ('automatic', 'manual')),
		notes TEXT NULL,
		transferred_by TEXT NULL,
		request_id TEXT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_logs_product ON transfer_logs(product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_logs_target ON transfer_logs(target_product_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_logs_from ON transfer_logs(from_kanban_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transfer_logs_to ON transfer_logs(to_kanban_id)`,
	// the ledger is append-only
	`CREATE TRIGGER IF NOT EXISTS transfer_logs_no_update BEFORE UPDATE ON transfer_logs
	BEGIN SELECT RAISE(ABORT, 'transfer_logs is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS transfer_logs_no_delete BEFORE DELETE ON transfer_logs
	BEGIN SELECT RAISE(ABORT, 'transfer_logs is append-only'); END`,
}

// Migrate creates the tables for dialect if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts := mysqlSchema
	if dialect == DialectSQLite {
		stmts = sqliteSchema
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
