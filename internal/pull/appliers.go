package pull

import (
	"context"
	"database/sql"
	"fmt"
)

// applier writes one entity type's decoded items (and any deletedIDs) into
// the store inside tx, returning the number of rows applied. Per-row
// failures are logged by the caller and must not abort the whole batch, so
// appliers skip a bad row rather than returning an error for it.
type applier func(ctx context.Context, tx *sql.Tx, items []map[string]any, deletedIDs []string, fullReplace bool) (int, error)

var appliers = map[string]applier{
	"categories":        applyCategories,
	"taxes":             applyTaxes,
	"products":           applyProducts,
	"customers":         applyCustomers,
	"pizza_size_prices": applyPizzaSizePrices,
}

func applyCategories(ctx context.Context, tx *sql.Tx, items []map[string]any, deletedIDs []string, _ bool) (int, error) {
	if err := deleteByID(ctx, tx, "categories", deletedIDs); err != nil {
		return 0, err
	}

	count := 0
	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		name, _ := item["name"].(string)
		sortOrder := intOrZero(item["sortOrder"])
		version := intOrZero(item["version"])

		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, name, sort_order, version, synced_at)
			VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				sort_order = excluded.sort_order,
				version = excluded.version,
				synced_at = excluded.synced_at
		`, id, name, sortOrder, version)
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}

func applyTaxes(ctx context.Context, tx *sql.Tx, items []map[string]any, deletedIDs []string, _ bool) (int, error) {
	if err := deleteByID(ctx, tx, "taxes", deletedIDs); err != nil {
		return 0, err
	}

	count := 0
	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		name, _ := item["name"].(string)
		rateBps := intOrZero(item["rateBps"])
		version := intOrZero(item["version"])

		_, err := tx.ExecContext(ctx, `
			INSERT INTO taxes (id, name, rate_bps, version, synced_at)
			VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				rate_bps = excluded.rate_bps,
				version = excluded.version,
				synced_at = excluded.synced_at
		`, id, name, rateBps, version)
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// applyProducts upserts products and extracts each product's embedded
// orderTypePrices array into the product_order_type_prices companion table.
func applyProducts(ctx context.Context, tx *sql.Tx, items []map[string]any, deletedIDs []string, _ bool) (int, error) {
	if err := deleteByID(ctx, tx, "products", deletedIDs); err != nil {
		return 0, err
	}

	count := 0
	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		categoryID, _ := item["categoryId"].(string)
		name, _ := item["name"].(string)
		basePrice := intOrZero(item["basePrice"])
		taxID, _ := item["taxId"].(string)
		active := boolToInt(item["active"])
		version := intOrZero(item["version"])

		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, category_id, name, base_price, tax_id, active, version, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			ON CONFLICT(id) DO UPDATE SET
				category_id = excluded.category_id,
				name = excluded.name,
				base_price = excluded.base_price,
				tax_id = excluded.tax_id,
				active = excluded.active,
				version = excluded.version,
				synced_at = excluded.synced_at
		`, id, nullableString(categoryID), name, basePrice, nullableString(taxID), active, version)
		if err != nil {
			continue
		}
		count++

		if prices, ok := item["orderTypePrices"].([]any); ok {
			if err := applyProductOrderTypePrices(ctx, tx, id, prices); err != nil {
				continue
			}
		}
	}
	return count, nil
}

func applyProductOrderTypePrices(ctx context.Context, tx *sql.Tx, productID string, prices []any) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_order_type_prices WHERE product_id = ?`, productID); err != nil {
		return err
	}
	for _, raw := range prices {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		orderType, _ := entry["orderType"].(string)
		price := intOrZero(entry["price"])
		if orderType == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_order_type_prices (product_id, order_type, price)
			VALUES (?, ?, ?)
			ON CONFLICT(product_id, order_type) DO UPDATE SET price = excluded.price
		`, productID, orderType, price)
		if err != nil {
			return fmt.Errorf("upserting order type price: %w", err)
		}
	}
	return nil
}

func applyCustomers(ctx context.Context, tx *sql.Tx, items []map[string]any, deletedIDs []string, _ bool) (int, error) {
	if err := deleteByID(ctx, tx, "customers", deletedIDs); err != nil {
		return 0, err
	}

	count := 0
	for _, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			continue
		}
		name, _ := item["name"].(string)
		phone, _ := item["phone"].(string)
		email, _ := item["email"].(string)
		version := intOrZero(item["version"])

		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (id, name, phone, email, version, synced_at)
			VALUES (?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				phone = excluded.phone,
				email = excluded.email,
				version = excluded.version,
				synced_at = excluded.synced_at
		`, id, name, nullableString(phone), nullableString(email), version)
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// applyPizzaSizePrices uses full-replace semantics: cloud ids for this
// pricing matrix may be recycled, so an upsert-by-id could silently mix
// stale and fresh rows. The whole table is cleared and rebuilt in the same
// transaction as the rest of this batch.
func applyPizzaSizePrices(ctx context.Context, tx *sql.Tx, items []map[string]any, _ []string, _ bool) (int, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pizza_size_prices`); err != nil {
		return 0, fmt.Errorf("clearing pizza_size_prices: %w", err)
	}

	count := 0
	for _, item := range items {
		productID, _ := item["productId"].(string)
		size, _ := item["size"].(string)
		if productID == "" || size == "" {
			continue
		}
		price := intOrZero(item["price"])

		_, err := tx.ExecContext(ctx, `
			INSERT INTO pizza_size_prices (product_id, size, price) VALUES (?, ?, ?)
		`, productID, size, price)
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// deleteByID removes rows (and, via ON DELETE CASCADE, their children) for
// the ids a pull response listed under deletedIds.
func deleteByID(ctx context.Context, tx *sql.Tx, table string, ids []string) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting %s row %s: %w", table, id, err)
		}
	}
	return nil
}

func intOrZero(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func boolToInt(v any) int {
	b, _ := v.(bool)
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
