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

const bidColumns = "id, item_id, bidder_id, amount, created_at"

type MySQLBidRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	if err := row.Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount, &bid.CreatedAt); err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, item_id, bidder_id, amount, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		bid.ID, bid.ItemID, bid.BidderID, bid.Amount, bid.CreatedAt)
	return err
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`

	bid, err := scanBid(r.db.QueryRowContext(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bid %s: %w", bidID, domain.ErrNotFound)
		}
		return nil, err
	}
	return bid, nil
}

func (r *MySQLBidRepository) HighestBid(ctx context.Context, itemID string, before *time.Time) (*domain.Bid, error) {
	builder := r.sb.Select(bidColumns).
		From("bids").
		Where(sq.Eq{"item_id": itemID})
	if before != nil {
		builder = builder.Where(sq.Lt{"created_at": *before})
	}

	query, args, err := builder.
		OrderBy("amount DESC", "created_at ASC", "id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	bid, err := scanBid(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("bids for item %s: %w", itemID, domain.ErrNotFound)
		}
		return nil, err
	}
	return bid, nil
}

func (r *MySQLBidRepository) ListBids(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE item_id = ?
        ORDER BY amount DESC, created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}

	return bids, rows.Err()
}
