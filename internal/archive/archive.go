package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// SwapRow is one executed swap attempt written to the archive.
type SwapRow struct {
	Signature   string
	Timestamp   time.Time
	Wallet      string
	Pair        string
	TokenIn     string
	TokenOut    string
	AmountIn    float64
	AmountOut   float64
	Price       float64
	SlippageBps uint16
	Status      string
	Pool        string
}

// Archive is an append-only ClickHouse sink for submitted swaps. It is
// best-effort history, not part of the execution path: callers log
// insert failures and move on.
type Archive struct {
	conn   driver.Conn
	logger *logrus.Logger
}

type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

func New(opts Options) (*Archive, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("clickhouse address is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	opts.Logger.WithField("addr", opts.Addr).Info("connected to ClickHouse archive")

	return &Archive{conn: conn, logger: opts.Logger}, nil
}

func (a *Archive) InsertSwap(ctx context.Context, row *SwapRow) error {
	query := `
		INSERT INTO swaps (
			signature, timestamp, wallet, pair, token_in, token_out,
			amount_in, amount_out, price, slippage_bps, status, pool
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := a.conn.Exec(ctx, query,
		row.Signature,
		row.Timestamp,
		row.Wallet,
		row.Pair,
		row.TokenIn,
		row.TokenOut,
		row.AmountIn,
		row.AmountOut,
		row.Price,
		row.SlippageBps,
		row.Status,
		row.Pool,
	)
	if err != nil {
		return fmt.Errorf("failed to insert swap: %w", err)
	}

	return nil
}

// RecentSwaps reads back the newest archived swaps for a wallet.
func (a *Archive) RecentSwaps(ctx context.Context, wallet string, limit int) ([]SwapRow, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT signature, timestamp, wallet, pair, token_in, token_out,
		       amount_in, amount_out, price, slippage_bps, status, pool
		FROM swaps
		WHERE wallet = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := a.conn.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query swaps: %w", err)
	}
	defer rows.Close()

	var out []SwapRow
	for rows.Next() {
		var r SwapRow
		if err := rows.Scan(
			&r.Signature, &r.Timestamp, &r.Wallet, &r.Pair, &r.TokenIn, &r.TokenOut,
			&r.AmountIn, &r.AmountOut, &r.Price, &r.SlippageBps, &r.Status, &r.Pool,
		); err != nil {
			return nil, fmt.Errorf("failed to scan swap row: %w", err)
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

func (a *Archive) Close() error {
	return a.conn.Close()
}
