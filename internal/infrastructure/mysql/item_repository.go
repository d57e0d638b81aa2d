package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-site/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

const itemColumns = "id, title, description, starting_bid, seller_id, created_at, closes_at, closed, winning_bid_id"

type MySQLItemRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewMySQLItemRepository(db *sql.DB) *MySQLItemRepository {
	return &MySQLItemRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var closesAt sql.NullTime
	var winningBidID sql.NullString

	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.StartingBid,
		&item.SellerID, &item.CreatedAt, &closesAt, &item.Closed, &winningBidID)
	if err != nil {
		return nil, err
	}

	if closesAt.Valid {
		t := closesAt.Time
		item.ClosesAt = &t
	}
	if winningBidID.Valid {
		id := winningBidID.String
		item.WinningBidID = &id
	}
	return &item, nil
}

func (r *MySQLItemRepository) CreateItem(ctx context.Context, item *domain.Item) error {
	query := `
        INSERT INTO items (id, title, description, starting_bid, seller_id, created_at, closes_at, closed, winning_bid_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.Title, item.Description, item.StartingBid, item.SellerID,
		item.CreatedAt, item.ClosesAt, item.Closed, item.WinningBidID)
	return err
}

func (r *MySQLItemRepository) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
		}
		return nil, err
	}
	return item, nil
}

// UpdateItem writes the seller-editable fields of an item that is not yet
// closed. closed and winning_bid_id are owned by MarkClosed.
func (r *MySQLItemRepository) UpdateItem(ctx context.Context, item *domain.Item) error {
	query := `UPDATE items SET title = ?, description = ?, closes_at = ? WHERE id = ? AND closed = 0`
	res, err := r.db.ExecContext(ctx, query, item.Title, item.Description, item.ClosesAt, item.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// MySQL reports zero affected rows for a no-op update too.
	var closed bool
	err = r.db.QueryRowContext(ctx, `SELECT closed FROM items WHERE id = ?`, item.ID).Scan(&closed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("item %s: %w", item.ID, domain.ErrNotFound)
	case err != nil:
		return err
	case closed:
		return fmt.Errorf("item %s: %w", item.ID, domain.ErrItemClosed)
	}
	return nil
}

func (r *MySQLItemRepository) DeleteItem(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID)
	if err != nil {
		return err
	}
	return expectRow(res, itemID)
}

func (r *MySQLItemRepository) MarkClosed(ctx context.Context, itemID string, winningBidID *string) (bool, error) {
	query := `UPDATE items SET closed = 1, winning_bid_id = ? WHERE id = ? AND closed = 0`
	res, err := r.db.ExecContext(ctx, query, winningBidID, itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *MySQLItemRepository) ListOpenItems(ctx context.Context, now time.Time, limit, offset int) ([]*domain.Item, error) {
	return r.list(ctx, r.sb.Select(itemColumns).
		From("items").
		Where(sq.Gt{"closes_at": now}).
		OrderBy("closes_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)))
}

func (r *MySQLItemRepository) ListUnclosed(ctx context.Context) ([]*domain.Item, error) {
	return r.list(ctx, r.sb.Select(itemColumns).
		From("items").
		Where(sq.Eq{"closed": false}).
		Where(sq.NotEq{"closes_at": nil}).
		OrderBy("closes_at ASC"))
}

func (r *MySQLItemRepository) ListOverdue(ctx context.Context, now time.Time) ([]*domain.Item, error) {
	return r.list(ctx, r.sb.Select(itemColumns).
		From("items").
		Where(sq.Eq{"closed": false}).
		Where(sq.LtOrEq{"closes_at": now}).
		OrderBy("closes_at ASC"))
}

func (r *MySQLItemRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Item, error) {
	return r.list(ctx, r.sb.Select(itemColumns).
		From("items").
		Where(sq.Eq{"seller_id": sellerID}).
		OrderBy("created_at DESC"))
}

func (r *MySQLItemRepository) ListWonBy(ctx context.Context, bidderID string) ([]*domain.Item, error) {
	return r.list(ctx, r.sb.Select(
		"i.id, i.title, i.description, i.starting_bid, i.seller_id, i.created_at, i.closes_at, i.closed, i.winning_bid_id").
		From("items i").
		Join("bids b ON b.id = i.winning_bid_id").
		Where(sq.Eq{"b.bidder_id": bidderID, "i.closed": true}).
		OrderBy("i.closes_at DESC"))
}

func (r *MySQLItemRepository) list(ctx context.Context, builder sq.SelectBuilder) ([]*domain.Item, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
