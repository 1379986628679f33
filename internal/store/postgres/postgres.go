// Package postgres implements the datastore on PostgreSQL through the pgx
// stdlib driver. Natural keys (SKU, serial, email) are deliberately NOT
// backed by unique indexes: the import engine needs to see pre-existing
// duplicates to abort a run, so uniqueness is enforced above this layer.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/domain"
	"github.com/smartdiscount31-nord/GestockFlowMael-sub003/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet. Idempotent, safe
// to run at every startup.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL,
			sku_key TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			purchase_price_with_fees DOUBLE PRECISION NOT NULL DEFAULT 0,
			raw_purchase_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			retail_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			pro_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			vat_type TEXT NOT NULL DEFAULT 'normal',
			margin_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			margin_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			pro_margin_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			pro_margin_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			weight_grams DOUBLE PRECISION NOT NULL DEFAULT 0,
			width_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			height_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			depth_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			ean TEXT NOT NULL DEFAULT '',
			category_id TEXT NOT NULL DEFAULT '',
			variant_id TEXT NOT NULL DEFAULT '',
			stock_alert INTEGER NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			parent_id TEXT NOT NULL DEFAULT '',
			mirror_of TEXT NOT NULL DEFAULT '',
			serial_number TEXT NOT NULL DEFAULT '',
			serial_key TEXT NOT NULL DEFAULT '',
			is_parent BOOLEAN NOT NULL DEFAULT false,
			product_type TEXT NOT NULL DEFAULT 'PAU',
			supplier TEXT NOT NULL DEFAULT '',
			battery_percentage INTEGER NOT NULL DEFAULT 0,
			warranty_sticker BOOLEAN NOT NULL DEFAULT false,
			product_note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_sku_key ON products (sku_key)`,
		`CREATE INDEX IF NOT EXISTS idx_products_serial_key ON products (serial_key) WHERE serial_key <> ''`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (type, brand, model)
		)`,
		`CREATE TABLE IF NOT EXISTS variants (
			id TEXT PRIMARY KEY,
			color TEXT NOT NULL,
			grade TEXT NOT NULL,
			capacity INTEGER NOT NULL,
			sim_type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (color, grade, capacity, sim_type)
		)`,
		`CREATE TABLE IF NOT EXISTS stock_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL UNIQUE,
			consignment BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stocks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL UNIQUE,
			group_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stock_allocations (
			product_id TEXT NOT NULL,
			stock_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			PRIMARY KEY (product_id, stock_id)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			customer_group TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			zone TEXT NOT NULL DEFAULT '',
			siren TEXT NOT NULL DEFAULT '',
			billing JSONB NOT NULL DEFAULT '{}',
			shipping_same_as_billing BOOLEAN NOT NULL DEFAULT false,
			shipping JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_settings (
			type TEXT PRIMARY KEY,
			prefix TEXT NOT NULL,
			next_number INTEGER NOT NULL,
			footer_text TEXT NOT NULL DEFAULT '',
			payment_terms TEXT NOT NULL DEFAULT '',
			logo_path TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			number TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			lines JSONB NOT NULL DEFAULT '[]',
			total_ht DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_vat DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_ttc DOUBLE PRECISION NOT NULL DEFAULT 0,
			issued_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_type_issued ON documents (type, issued_at DESC)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ---- products ----

const productColumns = `id, sku, name, description, purchase_price_with_fees, raw_purchase_price,
	retail_price, pro_price, vat_type, margin_percent, margin_value, pro_margin_percent,
	pro_margin_value, weight_grams, width_cm, height_cm, depth_cm, ean, category_id,
	variant_id, stock_alert, location, parent_id, mirror_of, serial_number, is_parent,
	product_type, supplier, battery_percentage, warranty_sticker, product_note,
	created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PurchasePriceWithFees,
		&p.RawPurchasePrice, &p.RetailPrice, &p.ProPrice, &p.VATType, &p.MarginPercent,
		&p.MarginValue, &p.ProMarginPercent, &p.ProMarginValue, &p.WeightGrams,
		&p.WidthCM, &p.HeightCM, &p.DepthCM, &p.EAN, &p.CategoryID, &p.VariantID,
		&p.StockAlert, &p.Location, &p.ParentID, &p.MirrorOf, &p.SerialNumber,
		&p.IsParent, &p.ProductType, &p.Supplier, &p.BatteryPercentage,
		&p.WarrantySticker, &p.ProductNote, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku, id`)
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) FindProductsBySKU(ctx context.Context, sku string) ([]domain.Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku_key = $1 ORDER BY id`,
		domain.SKUKey(sku))
}

func (s *Store) FindProductsBySerial(ctx context.Context, serial string) ([]domain.Product, error) {
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE serial_key = $1 AND serial_key <> '' ORDER BY id`,
		domain.SerialKey(serial))
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.SKU == "" || product.Name == "" {
		return nil, store.ErrInvalid
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, sku_key, name, description, purchase_price_with_fees,
			raw_purchase_price, retail_price, pro_price, vat_type, margin_percent, margin_value,
			pro_margin_percent, pro_margin_value, weight_grams, width_cm, height_cm, depth_cm,
			ean, category_id, variant_id, stock_alert, location, parent_id, mirror_of,
			serial_number, serial_key, is_parent, product_type, supplier, battery_percentage,
			warranty_sticker, product_note, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)
	`, product.ID, product.SKU, domain.SKUKey(product.SKU), product.Name, product.Description,
		product.PurchasePriceWithFees, product.RawPurchasePrice, product.RetailPrice,
		product.ProPrice, product.VATType, product.MarginPercent, product.MarginValue,
		product.ProMarginPercent, product.ProMarginValue, product.WeightGrams, product.WidthCM,
		product.HeightCM, product.DepthCM, product.EAN, product.CategoryID, product.VariantID,
		product.StockAlert, product.Location, product.ParentID, product.MirrorOf,
		product.SerialNumber, serialKeyOrEmpty(product.SerialNumber), product.IsParent,
		product.ProductType, product.Supplier, product.BatteryPercentage,
		product.WarrantySticker, product.ProductNote, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		return nil, store.ErrInvalid
	}
	product.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET sku=$2, sku_key=$3, name=$4, description=$5,
			purchase_price_with_fees=$6, raw_purchase_price=$7, retail_price=$8, pro_price=$9,
			vat_type=$10, margin_percent=$11, margin_value=$12, pro_margin_percent=$13,
			pro_margin_value=$14, weight_grams=$15, width_cm=$16, height_cm=$17, depth_cm=$18,
			ean=$19, category_id=$20, variant_id=$21, stock_alert=$22, location=$23,
			parent_id=$24, mirror_of=$25, serial_number=$26, serial_key=$27, is_parent=$28,
			product_type=$29, supplier=$30, battery_percentage=$31, warranty_sticker=$32,
			product_note=$33, updated_at=$34
		WHERE id = $1
	`, product.ID, product.SKU, domain.SKUKey(product.SKU), product.Name, product.Description,
		product.PurchasePriceWithFees, product.RawPurchasePrice, product.RetailPrice,
		product.ProPrice, product.VATType, product.MarginPercent, product.MarginValue,
		product.ProMarginPercent, product.ProMarginValue, product.WeightGrams, product.WidthCM,
		product.HeightCM, product.DepthCM, product.EAN, product.CategoryID, product.VariantID,
		product.StockAlert, product.Location, product.ParentID, product.MirrorOf,
		product.SerialNumber, serialKeyOrEmpty(product.SerialNumber), product.IsParent,
		product.ProductType, product.Supplier, product.BatteryPercentage,
		product.WarrantySticker, product.ProductNote, product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM stock_allocations WHERE product_id = $1`, id)
	return err
}

// ---- categories ----

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, brand, model, created_at FROM categories ORDER BY type, brand, model
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 64)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Type, &c.Brand, &c.Model, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) FindCategory(ctx context.Context, typ, brand, model string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, brand, model, created_at FROM categories
		WHERE UPPER(type) = UPPER($1) AND UPPER(brand) = UPPER($2) AND UPPER(model) = UPPER($3)
	`, strings.TrimSpace(typ), strings.TrimSpace(brand), strings.TrimSpace(model)).
		Scan(&c.ID, &c.Type, &c.Brand, &c.Model, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || category.Type == "" || category.Brand == "" || category.Model == "" {
		return nil, store.ErrInvalid
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, type, brand, model, created_at) VALUES ($1,$2,$3,$4,$5)
	`, category.ID, category.Type, category.Brand, category.Model, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := category
	return &created, nil
}

// ---- variants ----

func (s *Store) ListVariants(ctx context.Context) ([]domain.Variant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, color, grade, capacity, sim_type, created_at FROM variants
		ORDER BY color, grade, capacity, sim_type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]domain.Variant, 0, 64)
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.Color, &v.Grade, &v.Capacity, &v.SimType, &v.CreatedAt); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (s *Store) FindVariant(ctx context.Context, color, grade string, capacity int, simType string) (*domain.Variant, error) {
	var v domain.Variant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, color, grade, capacity, sim_type, created_at FROM variants
		WHERE UPPER(color) = UPPER($1) AND UPPER(grade) = UPPER($2)
			AND capacity = $3 AND UPPER(sim_type) = UPPER($4)
	`, strings.TrimSpace(color), strings.TrimSpace(grade), capacity, strings.TrimSpace(simType)).
		Scan(&v.ID, &v.Color, &v.Grade, &v.Capacity, &v.SimType, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant domain.Variant) (*domain.Variant, error) {
	if variant.ID == "" {
		return nil, store.ErrInvalid
	}
	if variant.CreatedAt.IsZero() {
		variant.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variants (id, color, grade, capacity, sim_type, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, variant.ID, variant.Color, variant.Grade, variant.Capacity, variant.SimType, variant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := variant
	return &created, nil
}

// ---- stocks & groups ----

func (s *Store) ListStocks(ctx context.Context) ([]domain.Stock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, group_id, created_at FROM stocks ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stocks := make([]domain.Stock, 0, 16)
	for rows.Next() {
		var st domain.Stock
		if err := rows.Scan(&st.ID, &st.Name, &st.GroupID, &st.CreatedAt); err != nil {
			return nil, err
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

func (s *Store) CreateStock(ctx context.Context, stock domain.Stock) (*domain.Stock, error) {
	if stock.ID == "" || stock.Name == "" {
		return nil, store.ErrInvalid
	}
	if stock.CreatedAt.IsZero() {
		stock.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stocks (id, name, name_key, group_id, created_at) VALUES ($1,$2,$3,$4,$5)
	`, stock.ID, stock.Name, domain.StockNameKey(stock.Name), stock.GroupID, stock.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := stock
	return &created, nil
}

func (s *Store) ListStockGroups(ctx context.Context) ([]domain.StockGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, consignment, created_at FROM stock_groups ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]domain.StockGroup, 0, 8)
	for rows.Next() {
		var g domain.StockGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Consignment, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) GetStockGroupByID(ctx context.Context, id string) (*domain.StockGroup, error) {
	var g domain.StockGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, consignment, created_at FROM stock_groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Consignment, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) FindStockGroupByName(ctx context.Context, name string) (*domain.StockGroup, error) {
	var g domain.StockGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, consignment, created_at FROM stock_groups WHERE name_key = $1
	`, domain.StockNameKey(name)).Scan(&g.ID, &g.Name, &g.Consignment, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) CreateStockGroup(ctx context.Context, group domain.StockGroup) (*domain.StockGroup, error) {
	if group.ID == "" || group.Name == "" {
		return nil, store.ErrInvalid
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_groups (id, name, name_key, consignment, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, group.ID, group.Name, domain.StockNameKey(group.Name), group.Consignment, group.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := group
	return &created, nil
}

// ---- allocations ----

func (s *Store) ListAllocationsByProduct(ctx context.Context, productID string) ([]domain.StockAllocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, stock_id, quantity FROM stock_allocations
		WHERE product_id = $1 ORDER BY stock_id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allocs := make([]domain.StockAllocation, 0, 8)
	for rows.Next() {
		var a domain.StockAllocation
		if err := rows.Scan(&a.ProductID, &a.StockID, &a.Quantity); err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

func (s *Store) UpsertAllocation(ctx context.Context, alloc domain.StockAllocation) error {
	if alloc.ProductID == "" || alloc.StockID == "" {
		return store.ErrInvalid
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_allocations (product_id, stock_id, quantity) VALUES ($1,$2,$3)
		ON CONFLICT (product_id, stock_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, alloc.ProductID, alloc.StockID, alloc.Quantity)
	return err
}

func (s *Store) DeleteAllocation(ctx context.Context, productID, stockID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM stock_allocations WHERE product_id = $1 AND stock_id = $2
	`, productID, stockID)
	return err
}

func (s *Store) DeleteAllocationsByProduct(ctx context.Context, productID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM stock_allocations WHERE product_id = $1
	`, productID)
	return err
}

// ---- customers ----

const customerColumns = `id, name, customer_group, email, phone, zone, siren,
	billing, shipping_same_as_billing, shipping, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	var billing, shipping []byte
	err := row.Scan(&c.ID, &c.Name, &c.Group, &c.Email, &c.Phone, &c.Zone, &c.SIREN,
		&billing, &c.ShippingSameAsBilling, &shipping, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(billing) > 0 {
		if err := json.Unmarshal(billing, &c.Billing); err != nil {
			return nil, fmt.Errorf("decode billing address: %w", err)
		}
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &c.Shipping); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE LOWER(email) = LOWER($1) AND email <> '' LIMIT 1`,
		strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return c, err
}

func (s *Store) FindCustomersByName(ctx context.Context, name string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE LOWER(name) = LOWER($1) ORDER BY id`,
		strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 4)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalid
	}
	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now

	billing, err := json.Marshal(customer.Billing)
	if err != nil {
		return nil, err
	}
	shipping, err := json.Marshal(customer.Shipping)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, customer_group, email, phone, zone, siren,
			billing, shipping_same_as_billing, shipping, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, customer.ID, customer.Name, customer.Group, customer.Email, customer.Phone,
		customer.Zone, customer.SIREN, billing, customer.ShippingSameAsBilling,
		shipping, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		return nil, store.ErrInvalid
	}
	customer.UpdatedAt = time.Now().UTC()

	billing, err := json.Marshal(customer.Billing)
	if err != nil {
		return nil, err
	}
	shipping, err := json.Marshal(customer.Shipping)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE customers SET name=$2, customer_group=$3, email=$4, phone=$5, zone=$6,
			siren=$7, billing=$8, shipping_same_as_billing=$9, shipping=$10, updated_at=$11
		WHERE id = $1
	`, customer.ID, customer.Name, customer.Group, customer.Email, customer.Phone,
		customer.Zone, customer.SIREN, billing, customer.ShippingSameAsBilling,
		shipping, customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}

	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- document settings & documents ----

func (s *Store) GetDocumentSettings(ctx context.Context, typ domain.DocumentType) (*domain.DocumentSettings, error) {
	var settings domain.DocumentSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT type, prefix, next_number, footer_text, payment_terms, logo_path, updated_at
		FROM document_settings WHERE type = $1
	`, typ).Scan(&settings.Type, &settings.Prefix, &settings.NextNumber,
		&settings.FooterText, &settings.PaymentTerms, &settings.LogoPath, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpsertDocumentSettings(ctx context.Context, settings domain.DocumentSettings) error {
	if settings.Type == "" {
		return store.ErrInvalid
	}
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_settings (type, prefix, next_number, footer_text, payment_terms, logo_path, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (type) DO UPDATE SET prefix = EXCLUDED.prefix,
			next_number = EXCLUDED.next_number, footer_text = EXCLUDED.footer_text,
			payment_terms = EXCLUDED.payment_terms, logo_path = EXCLUDED.logo_path,
			updated_at = EXCLUDED.updated_at
	`, settings.Type, settings.Prefix, settings.NextNumber, settings.FooterText,
		settings.PaymentTerms, settings.LogoPath, settings.UpdatedAt)
	return err
}

func (s *Store) CreateDocument(ctx context.Context, doc domain.Document) (*domain.Document, error) {
	if doc.ID == "" || doc.Type == "" || doc.Number == "" {
		return nil, store.ErrInvalid
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = time.Now().UTC()
	}

	lines, err := json.Marshal(doc.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, type, number, customer_id, lines, total_ht, total_vat, total_ttc, issued_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, doc.ID, doc.Type, doc.Number, doc.CustomerID, lines, doc.TotalHT, doc.TotalVAT,
		doc.TotalTTC, doc.IssuedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := doc
	return &created, nil
}

func scanDocument(row interface{ Scan(...any) error }) (*domain.Document, error) {
	var doc domain.Document
	var lines []byte
	err := row.Scan(&doc.ID, &doc.Type, &doc.Number, &doc.CustomerID, &lines,
		&doc.TotalHT, &doc.TotalVAT, &doc.TotalTTC, &doc.IssuedAt)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &doc.Lines); err != nil {
			return nil, fmt.Errorf("decode document lines: %w", err)
		}
	}
	return &doc, nil
}

func (s *Store) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, `
		SELECT id, type, number, customer_id, lines, total_ht, total_vat, total_ttc, issued_at
		FROM documents WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return doc, err
}

func (s *Store) ListDocuments(ctx context.Context, typ domain.DocumentType, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, type, number, customer_id, lines, total_ht, total_vat, total_ttc, issued_at
		FROM documents`
	args := []any{}
	if typ != "" {
		query += ` WHERE type = $1`
		args = append(args, typ)
	}
	query += fmt.Sprintf(` ORDER BY issued_at DESC, id LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalid
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at) VALUES ($1,$2,$3,$4,$5)
	`, strings.ToLower(user.Username), user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at FROM users WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).
		Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username)), password)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func serialKeyOrEmpty(serial string) string {
	if strings.TrimSpace(serial) == "" {
		return ""
	}
	return domain.SerialKey(serial)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
