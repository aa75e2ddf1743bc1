package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('admin', 'custodian', 'student')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS students (
    id                  INTEGER PRIMARY KEY,
    user_id             INTEGER REFERENCES users(id),
    student_number      TEXT NOT NULL,
    name                TEXT NOT NULL,
    gender              TEXT,
    education_level     TEXT,
    student_type        TEXT NOT NULL DEFAULT 'new' CHECK (student_type IN ('old', 'new')),
    blocked_due_to_void INTEGER NOT NULL DEFAULT 0,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at          DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_students_number_active
    ON students(student_number) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id              INTEGER PRIMARY KEY,
    name            TEXT NOT NULL,
    education_level TEXT NOT NULL,
    item_type       TEXT NOT NULL DEFAULT '',
    size            TEXT NOT NULL DEFAULT '',
    stock           INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
    for_gender      TEXT NOT NULL DEFAULT 'Unisex' CHECK (for_gender IN ('Unisex', 'Male', 'Female')),
    price           TEXT NOT NULL DEFAULT '0',
    image           BLOB,
    image_mime      TEXT,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at      DATETIME
);

CREATE TABLE IF NOT EXISTS item_permissions (
    student_id   INTEGER NOT NULL REFERENCES students(id),
    item_key     TEXT NOT NULL,
    max_quantity INTEGER NOT NULL CHECK (max_quantity >= 0),
    PRIMARY KEY (student_id, item_key)
);

CREATE TABLE IF NOT EXISTS orders (
    id              TEXT PRIMARY KEY,
    order_number    TEXT NOT NULL UNIQUE,
    order_type      TEXT NOT NULL CHECK (order_type IN ('regular', 'pre-order')),
    status          TEXT NOT NULL DEFAULT 'pending',
    student_id      INTEGER NOT NULL REFERENCES students(id),
    education_level TEXT NOT NULL DEFAULT '',
    total_amount    TEXT NOT NULL DEFAULT '0',
    qr_issued_at    DATETIME,
    voided          INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orders_student ON orders(student_id);

CREATE TABLE IF NOT EXISTS order_items (
    id        INTEGER PRIMARY KEY,
    order_id  TEXT NOT NULL REFERENCES orders(id),
    item_id   INTEGER REFERENCES items(id),
    name      TEXT NOT NULL,
    size      TEXT NOT NULL DEFAULT '',
    quantity  INTEGER NOT NULL CHECK (quantity > 0),
    price     TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// Tables lists every table the schema creates.
var Tables = []string{
	"users", "students", "items", "item_permissions",
	"orders", "order_items", "settings", "revoked_tokens",
}

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
