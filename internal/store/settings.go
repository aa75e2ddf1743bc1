package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/erazemk/uniforme/internal/receipt"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}

// OrderSettings are the school-wide ordering limits.
type OrderSettings struct {
	// TotalItemLimit is the number of distinct item slots a student may use.
	// Nil means the limit was never configured.
	TotalItemLimit *int `json:"totalItemLimit"`
	QRValidDays    int  `json:"qrValidDays"`
}

const (
	settingTotalItemLimit = "total_item_limit"
	settingQRValidDays    = "qr_valid_days"
)

// GetOrderSettings returns the ordering limits, with defaults for unset values.
func GetOrderSettings(ctx context.Context, db *sql.DB) (OrderSettings, error) {
	return getOrderSettings(ctx, db)
}

func getOrderSettings(ctx context.Context, q querier) (OrderSettings, error) {
	s := OrderSettings{QRValidDays: receipt.DefaultValidDays}

	limit, ok, err := getIntSetting(ctx, q, settingTotalItemLimit)
	if err != nil {
		return s, err
	}
	if ok {
		s.TotalItemLimit = &limit
	}

	days, ok, err := getIntSetting(ctx, q, settingQRValidDays)
	if err != nil {
		return s, err
	}
	if ok && days > 0 {
		s.QRValidDays = days
	}
	return s, nil
}

// SetOrderSettings stores the ordering limits. A nil TotalItemLimit clears it.
func SetOrderSettings(ctx context.Context, db *sql.DB, s OrderSettings) error {
	if s.TotalItemLimit != nil && *s.TotalItemLimit < 0 {
		return fmt.Errorf("total item limit must not be negative")
	}
	if s.QRValidDays <= 0 {
		return fmt.Errorf("qr valid days must be positive")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if s.TotalItemLimit == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, settingTotalItemLimit); err != nil {
			return fmt.Errorf("clearing %s: %w", settingTotalItemLimit, err)
		}
	} else if err := putSetting(ctx, tx, settingTotalItemLimit, strconv.Itoa(*s.TotalItemLimit)); err != nil {
		return err
	}
	if err := putSetting(ctx, tx, settingQRValidDays, strconv.Itoa(s.QRValidDays)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

func putSetting(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func getIntSetting(ctx context.Context, q querier, key string) (int, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying %s: %w", key, err)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, true, nil
}
