package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/uniforme/internal/model"
)

const itemColumns = `id, name, education_level, item_type, size, stock, for_gender, price,
	image_mime, created_at, updated_at, deleted_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var imageMime sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.EducationLevel, &item.ItemType, &item.Size,
		&item.Stock, &item.ForGender, &item.Price, &imageMime,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err != nil {
		return nil, err
	}
	item.ImageMime = imageMime.String
	item.Status = model.StockStatus(item.Stock)
	return item, nil
}

// ItemInput holds the fields of one catalog item variant.
type ItemInput struct {
	Name           string
	EducationLevel string
	ItemType       string
	Size           string
	Stock          int
	ForGender      string
	Price          decimal.Decimal
}

// CreateItem creates a new item variant.
func CreateItem(ctx context.Context, db *sql.DB, in ItemInput) (*model.Item, error) {
	if in.ForGender == "" {
		in.ForGender = model.GenderUnisex
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, education_level, item_type, size, stock, for_gender, price)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.EducationLevel, in.ItemType, in.Size, in.Stock, in.ForGender, in.Price,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all non-deleted items. When educationLevel is set, only
// items for that level and items for all levels are returned.
func ListItems(ctx context.Context, db *sql.DB, educationLevel string) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE deleted_at IS NULL`
	var args []any
	if educationLevel != "" {
		query += ` AND education_level IN (?, ?, ?)`
		args = append(args, educationLevel, model.EducationLevelAll, model.EducationLevelGeneral)
	}
	query += ` ORDER BY name, size`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem updates an item's metadata. Stock is changed through AdjustStock.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, in ItemInput) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, education_level = ?, item_type = ?, size = ?, for_gender = ?,
		        price = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		in.Name, in.EducationLevel, in.ItemType, in.Size, in.ForGender, in.Price, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
