package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/port"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const itemColumns = `id, board_id, name, sku, quantity, supplier, category, tags, stock_level,
	column_name, column_entered_at, location_id, assigned_person_id, preferred_receive_board_id,
	is_rejected, is_draft, closed_at, version, created_at, updated_at`

const boardColumns = `id, name, kind, linked_board_id, threshold_rules, created_at, updated_at`

const transferColumns = `id, product_id, target_product_id, from_kanban_id, to_kanban_id,
	from_column, to_column, from_location_id, to_location_id, transfer_type, notes,
	transferred_by, request_id, created_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements port.Store on MySQL or SQLite. Both dialects share the
// same statements; only row locking and error codes differ.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	return getBoard(ctx, s.db, id)
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return getItem(ctx, s.db, id, "")
}

func (s *SQLStore) CreateBoard(ctx context.Context, board domain.Board) error {
	rules, err := json.Marshal(board.ThresholdRules)
	if err != nil {
		return fmt.Errorf("encode threshold rules: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (`+boardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		board.ID, board.Name, string(board.Kind), board.LinkedBoardID, string(rules),
		domain.FormatTimestamp(board.CreatedAt), domain.FormatTimestamp(board.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *SQLStore) ListActiveItems(ctx context.Context, boardID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items WHERE board_id = ? AND closed_at IS NULL
		ORDER BY column_entered_at, id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.TransferLogEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.ItemID != "" {
		where = append(where, "(product_id = ? OR target_product_id = ?)")
		args = append(args, filter.ItemID, filter.ItemID)
	}
	if filter.BoardID != "" {
		where = append(where, "(from_kanban_id = ? OR to_kanban_id = ?)")
		args = append(args, filter.BoardID, filter.BoardID)
	}

	query := `SELECT ` + transferColumns + ` FROM transfer_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	entries := []domain.TransferLogEntry{}
	for rows.Next() {
		entry, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	return entries, nil
}

func (s *SQLStore) FindTransferByRequestID(ctx context.Context, requestID string) (*domain.TransferLogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transferColumns+` FROM transfer_logs WHERE request_id = ?`, requestID)
	entry, err := scanTransfer(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

// LocationExists implements port.LocationDirectory against the locations table.
func (s *SQLStore) LocationExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM locations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query location: %w", err)
	}
	return true, nil
}

// RegisterLocation makes a location known to the directory. Locations are
// owned elsewhere; this exists for seeding.
func (s *SQLStore) RegisterLocation(ctx context.Context, id, name string) error {
	exists, err := s.LocationExists(ctx, id)
	if err != nil || exists {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO locations (id, name) VALUES (?, ?)`, id, name); err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// FindBoardByName returns nil, nil if no board has name.
func (s *SQLStore) FindBoardByName(ctx context.Context, name string) (*domain.Board, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE name = ?`, name)
	board, err := scanBoard(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return board, err
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	lock := ""
	if s.dialect == DialectMySQL {
		lock = " FOR UPDATE"
	}
	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, lockSuffix: lock}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx         *sql.Tx
	dialect    Dialect
	lockSuffix string
}

func (t *sqlTx) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	return getBoard(ctx, t.tx, id)
}

func (t *sqlTx) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return getItem(ctx, t.tx, id, t.lockSuffix)
}

func (t *sqlTx) UpdateBoard(ctx context.Context, board domain.Board) error {
	rules, err := json.Marshal(board.ThresholdRules)
	if err != nil {
		return fmt.Errorf("encode threshold rules: %w", err)
	}
	result, err := t.tx.ExecContext(ctx, `
		UPDATE boards SET name = ?, linked_board_id = ?, threshold_rules = ?, updated_at = ?
		WHERE id = ?`,
		board.Name, board.LinkedBoardID, string(rules), domain.FormatTimestamp(board.UpdatedAt), board.ID,
	)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("board %s: %w", board.ID, domain.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) CreateItem(ctx context.Context, item domain.Item) error {
	tags, err := encodeTags(item.Tags)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.BoardID, item.Name, item.SKU, item.Quantity, item.Supplier, item.Category,
		tags, item.StockLevel, item.Column, domain.FormatTimestamp(item.ColumnEnteredAt),
		item.LocationID, item.AssignedPersonID, item.PreferredReceiveBoardID,
		item.IsRejected, item.IsDraft, formatNullable(item.ClosedAt), item.Version,
		domain.FormatTimestamp(item.CreatedAt), domain.FormatTimestamp(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateItem(ctx context.Context, item domain.Item) error {
	tags, err := encodeTags(item.Tags)
	if err != nil {
		return err
	}
	result, err := t.tx.ExecContext(ctx, `
		UPDATE items SET
			board_id = ?, name = ?, sku = ?, quantity = ?, supplier = ?, category = ?, tags = ?,
			stock_level = ?, column_name = ?, column_entered_at = ?, location_id = ?,
			assigned_person_id = ?, preferred_receive_board_id = ?, is_rejected = ?, is_draft = ?,
			closed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		item.BoardID, item.Name, item.SKU, item.Quantity, item.Supplier, item.Category, tags,
		item.StockLevel, item.Column, domain.FormatTimestamp(item.ColumnEnteredAt), item.LocationID,
		item.AssignedPersonID, item.PreferredReceiveBoardID, item.IsRejected, item.IsDraft,
		formatNullable(item.ClosedAt), domain.FormatTimestamp(item.UpdatedAt),
		item.ID, item.Version,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}
	return nil
}

func (t *sqlTx) AppendTransfer(ctx context.Context, entry domain.TransferLogEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transfer_logs (`+transferColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ProductID, entry.TargetProductID, entry.FromKanbanID, entry.ToKanbanID,
		entry.FromColumn, entry.ToColumn, entry.FromLocationID, entry.ToLocationID,
		string(entry.TransferType), entry.Notes, entry.TransferredBy, entry.RequestID,
		domain.FormatTimestamp(entry.CreatedAt),
	)
	if err != nil {
		if entry.RequestID != nil && isUniqueViolation(err) {
			return port.ErrDuplicateRequestID
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func getBoard(ctx context.Context, q querier, id string) (*domain.Board, error) {
	row := q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = ?`, id)
	board, err := scanBoard(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
	}
	return board, err
}

func getItem(ctx context.Context, q querier, id, lockSuffix string) (*domain.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`+lockSuffix, id)
	item, err := scanItem(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return item, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBoard(row scanner) (*domain.Board, error) {
	var (
		b                domain.Board
		kind, rules      string
		linked           sql.NullString
		created, updated dbTime
	)
	err := row.Scan(&b.ID, &b.Name, &kind, &linked, &rules, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan board: %w", err)
	}
	b.Kind = domain.BoardKind(kind)
	b.LinkedBoardID = nullString(linked)
	b.CreatedAt = created.Time
	b.UpdatedAt = updated.Time
	if rules != "" {
		if err := json.Unmarshal([]byte(rules), &b.ThresholdRules); err != nil {
			return nil, fmt.Errorf("decode threshold rules of board %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

func scanItem(row scanner) (*domain.Item, error) {
	var (
		it   domain.Item
		tags string
	)
	var entered, closed, created, updated dbTime
	var location, assignee, preferredReceiveID sql.NullString
	err := row.Scan(&it.ID, &it.BoardID, &it.Name, &it.SKU, &it.Quantity, &it.Supplier, &it.Category,
		&tags, &it.StockLevel, &it.Column, &entered, &location, &assignee, &preferredReceiveID,
		&it.IsRejected, &it.IsDraft, &closed, &it.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of item %s: %w", it.ID, err)
		}
	}
	it.ColumnEnteredAt = entered.Time
	it.LocationID = nullString(location)
	it.AssignedPersonID = nullString(assignee)
	it.PreferredReceiveBoardID = nullString(preferredReceiveID)
	if closed.Valid {
		t := closed.Time
		it.ClosedAt = &t
	}
	it.CreatedAt = created.Time
	it.UpdatedAt = updated.Time
	return &it, nil
}

func scanTransfer(row scanner) (*domain.TransferLogEntry, error) {
	var (
		e            domain.TransferLogEntry
		transferType string
		created      dbTime
	)
	var target, fromLoc, toLoc, notes, by, reqID sql.NullString
	err := row.Scan(&e.ID, &e.ProductID, &target, &e.FromKanbanID, &e.ToKanbanID,
		&e.FromColumn, &e.ToColumn, &fromLoc, &toLoc, &transferType, &notes, &by, &reqID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	e.TransferType = domain.TransferType(transferType)
	e.TargetProductID = nullString(target)
	e.FromLocationID = nullString(fromLoc)
	e.ToLocationID = nullString(toLoc)
	e.Notes = nullString(notes)
	e.TransferredBy = nullString(by)
	e.RequestID = nullString(reqID)
	e.CreatedAt = created.Time
	return &e, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func formatNullable(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.FormatTimestamp(*t)
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

// dbTime scans timestamps from either driver. MySQL with parseTime yields
// time.Time; SQLite yields text. Text without an offset is UTC.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *dbTime) parse(s string) error {
	parsed, err := domain.ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time, t.Valid = parsed, true
	return nil
}
