// Package refdata is the read side of the hub's reference data: the
// terminal-facing GET endpoints over tables the pull engine keeps in sync
// (categories, products, taxes, customers). It never writes these tables —
// that is internal/pull's job — it only serves what pull has already
// landed.
package refdata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emberline/hubd/internal/store"
)

// Category mirrors one row of the categories table.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

// OrderTypePrice is one order-type-specific price override for a product.
type OrderTypePrice struct {
	OrderType string `json:"orderType"`
	Price     int64  `json:"price"`
}

// Product mirrors one row of the products table plus its companion
// order-type prices.
type Product struct {
	ID         string           `json:"id"`
	CategoryID string           `json:"categoryId,omitempty"`
	Name       string           `json:"name"`
	BasePrice  int64            `json:"basePrice"`
	TaxID      string           `json:"taxId,omitempty"`
	Active     bool             `json:"active"`
	Prices     []OrderTypePrice `json:"orderTypePrices,omitempty"`
}

// Tax mirrors one row of the taxes table.
type Tax struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	RateBps int    `json:"rateBps"`
}

// Customer mirrors one row of the customers table.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Store reads the reference-data tables the pull engine populates.
type Store struct {
	store *store.Store
}

// NewStore creates a refdata Store.
func NewStore(s *store.Store) *Store {
	return &Store{store: s}
}

// Categories returns every category ordered by its configured sort order.
func (s *Store) Categories(ctx context.Context) ([]Category, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT id, name, sort_order FROM categories ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Products returns every active product, each with its order-type price
// overrides attached. categoryID, if non-empty, restricts the result to
// one category.
func (s *Store) Products(ctx context.Context, categoryID string) ([]Product, error) {
	query := `SELECT id, category_id, name, base_price, tax_id, active FROM products WHERE active = 1`
	args := []any{}
	if categoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY name`

	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}

	var products []Product
	for rows.Next() {
		var p Product
		var catID, taxID sql.NullString
		var active int
		if err := rows.Scan(&p.ID, &catID, &p.Name, &p.BasePrice, &taxID, &active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		p.CategoryID = catID.String
		p.TaxID = taxID.String
		p.Active = active != 0
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range products {
		prices, err := s.orderTypePrices(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Prices = prices
	}

	return products, nil
}

func (s *Store) orderTypePrices(ctx context.Context, productID string) ([]OrderTypePrice, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT order_type, price FROM product_order_type_prices WHERE product_id = ? ORDER BY order_type
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("querying order type prices: %w", err)
	}
	defer rows.Close()

	var out []OrderTypePrice
	for rows.Next() {
		var p OrderTypePrice
		if err := rows.Scan(&p.OrderType, &p.Price); err != nil {
			return nil, fmt.Errorf("scanning order type price row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Taxes returns every tax rate.
func (s *Store) Taxes(ctx context.Context) ([]Tax, error) {
	rows, err := s.store.DB().QueryContext(ctx, `SELECT id, name, rate_bps FROM taxes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying taxes: %w", err)
	}
	defer rows.Close()

	var out []Tax
	for rows.Next() {
		var t Tax
		if err := rows.Scan(&t.ID, &t.Name, &t.RateBps); err != nil {
			return nil, fmt.Errorf("scanning tax row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Customers returns customers matching an optional name/phone search term.
func (s *Store) Customers(ctx context.Context, search string) ([]Customer, error) {
	query := `SELECT id, name, phone, email FROM customers`
	args := []any{}
	if search != "" {
		query += ` WHERE name LIKE ? OR phone LIKE ?`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY name LIMIT 50`

	rows, err := s.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		var phone, email sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email); err != nil {
			return nil, fmt.Errorf("scanning customer row: %w", err)
		}
		c.Phone = phone.String
		c.Email = email.String
		out = append(out, c)
	}
	return out, rows.Err()
}
