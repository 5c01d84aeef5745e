package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snowflakedb/gosnowflake"

	"github.com/shaiso/dataflows/internal/config"
)

// Snowflake — Querier поверх sqlx с драйвером gosnowflake.
type Snowflake struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSnowflake открывает пул подключений к Snowflake.
// Подключение проверяется ping'ом, как и пул PostgreSQL.
func NewSnowflake(ctx context.Context, cfg config.Snowflake, logger *slog.Logger) (*Snowflake, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Role:      cfg.Role,
		Warehouse: cfg.Warehouse,
	})
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snowflake: %w", err)
	}

	return NewSnowflakeFromDB(db, logger), nil
}

// NewSnowflakeFromDB оборачивает уже открытый *sql.DB.
func NewSnowflakeFromDB(db *sql.DB, logger *slog.Logger) *Snowflake {
	return &Snowflake{db: sqlx.NewDb(db, "snowflake"), logger: logger}
}

// Close закрывает пул подключений.
func (s *Snowflake) Close() error {
	return s.db.Close()
}

// Query выполняет запрос и читает все строки.
//
// USE SCHEMA и сам запрос выполняются на одном подключении,
// иначе пул может отдать запрос соединению с другим контекстом.
func (s *Snowflake) Query(ctx context.Context, q Query) ([]Row, error) {
	text, args, err := BindNamed(q.SQL, q.Params)
	if err != nil {
		return nil, err
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrQueryFailed, err)
	}
	defer conn.Close()

	if q.Database != "" || q.Schema != "" {
		schema, err := QualifiedSchema(q.Database, q.Schema)
		if err != nil {
			return nil, err
		}
		if _, err := conn.ExecContext(ctx, "USE SCHEMA "+schema); err != nil {
			return nil, fmt.Errorf("%w: use schema %s: %w", ErrQueryFailed, schema, err)
		}
	}

	start := time.Now()
	rows, err := conn.QueryxContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	s.logger.Debug("warehouse query executed",
		"rows", len(result),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// scanRows читает строки в map колонка → значение.
// Текстовые колонки драйвер может отдать как []byte, они приводятся к string.
func scanRows(rows *sqlx.Rows) ([]Row, error) {
	result := make([]Row, 0)
	for rows.Next() {
		row := make(Row)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for col, v := range row {
			if b, ok := v.([]byte); ok {
				row[col] = string(b)
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
