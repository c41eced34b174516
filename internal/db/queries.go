package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/pinggolf/inventory-chat-core/internal/apperr"
	"github.com/shopspring/decimal"
)

// Queries is the sole repository type; every handler, the reorder engine,
// and the alert scheduler receive a *Queries and never touch *sql.DB
// directly. Mirrors the teacher's Queries{db, cacheTablesMeta...} shape.
type Queries struct {
	db *sql.DB

	colMu       sync.RWMutex
	col56Cached map[string]bool // memoized per-check result of Has56DayColumn
}

// New creates a new Queries instance.
func New(conn *sql.DB) *Queries {
	return &Queries{db: conn, col56Cached: make(map[string]bool)}
}

// DB returns the underlying connection, for callers (migrations, health
// checks) that need it directly.
func (q *Queries) DB() *sql.DB { return q.db }

// Has56DayColumn probes information_schema for the optional
// units_56day_avg column on sales_daily, the same discovery pattern as
// the teacher's DiscoverCacheTables, memoized per-process since schema
// doesn't change at runtime.
func (q *Queries) Has56DayColumn(ctx context.Context) (bool, error) {
	const table = "sales_daily"

	q.colMu.RLock()
	has, ok := q.col56Cached[table]
	q.colMu.RUnlock()
	if ok {
		return has, nil
	}

	q.colMu.Lock()
	defer q.colMu.Unlock()
	if has, ok := q.col56Cached[table]; ok {
		return has, nil
	}

	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public'
			  AND table_name = $1
			  AND column_name = 'units_56day_avg'
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe units_56day_avg: %w", err)
	}

	q.col56Cached[table] = exists
	return exists, nil
}

// ListOrganizations enumerates all tenants, used by the daily alert
// scheduler (C8) to iterate per-org digests.
func (q *Queries) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, time_zone, created_at FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.TimeZone, &o.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// GetOrganization fetches a single tenant by id.
func (q *Queries) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var o Organization
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, time_zone, created_at FROM organizations WHERE id = $1
	`, orgID).Scan(&o.ID, &o.Name, &o.TimeZone, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization: %w", apperr.ErrNotFound)
	}
	return &o, err
}

// GetUserByEmail fetches a login identity across all orgs by email
// (org membership is on the row itself, not known ahead of login).
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, `
		SELECT id, org_id, email, password_hash, role, created_at FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", apperr.ErrNotFound)
	}
	return &u, err
}

// GetProductByID fetches a single product, scoped by org. Returns
// apperr.ErrNotFound when no row matches within that org (cross-org reads
// fail closed, per the data model invariant).
func (q *Queries) GetProductByID(ctx context.Context, orgID, productID string) (*Product, error) {
	return q.scanProduct(ctx, `
		SELECT id, org_id, sku, name, category, unit_cost, unit_price, unit_of_measure,
		       reorder_point, safety_stock_days, pack_size, max_stock_days, preferred_supplier, created_at
		FROM products WHERE org_id = $1 AND id = $2
	`, orgID, productID)
}

// GetProductBySKUOrName looks up a product by exact SKU match or
// case-insensitive name match, scoped by org (backs product_detail).
func (q *Queries) GetProductBySKUOrName(ctx context.Context, orgID, query string) (*Product, error) {
	return q.scanProduct(ctx, `
		SELECT id, org_id, sku, name, category, unit_cost, unit_price, unit_of_measure,
		       reorder_point, safety_stock_days, pack_size, max_stock_days, preferred_supplier, created_at
		FROM products
		WHERE org_id = $1 AND (sku = $2 OR lower(name) = lower($2))
		LIMIT 1
	`, orgID, query)
}

func (q *Queries) scanProduct(ctx context.Context, query string, args ...interface{}) (*Product, error) {
	var p Product
	row := q.db.QueryRowContext(ctx, query, args...)
	err := row.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.Category, &p.UnitCost, &p.UnitPrice, &p.UnitOfMeasure,
		&p.ReorderPoint, &p.SafetyStockDays, &p.PackSize, &p.MaxStockDays, &p.PreferredSupplier, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// OnHand computes on-hand quantity for a product as the signed sum of all
// its movements. Always derived, never stored, per the data model.
func (q *Queries) OnHand(ctx context.Context, orgID, productID string) (int, error) {
	var total sql.NullInt64
	err := q.db.QueryRowContext(ctx, `
		SELECT SUM(quantity) FROM inventory_movements WHERE org_id = $1 AND product_id = $2
	`, orgID, productID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}

// OnHandForAll computes on-hand per product_id for every product in an
// org in a single query (stockout_risk, reorder engine, snapshot all need
// org-wide on-hand without N+1 round trips).
func (q *Queries) OnHandForAll(ctx context.Context, orgID string) (map[string]int, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT product_id, COALESCE(SUM(quantity), 0)
		FROM inventory_movements WHERE org_id = $1 GROUP BY product_id
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var sum int
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}

// RecordMovement appends an immutable inventory movement. The sign
// convention is enforced here rather than trusted from the caller: `in`
// and `transfer_in` must be positive, `out` and plain `transfer` (an out
// leg) must be negative; `adjust` may be either sign and is not
// sign-checked, so a negative adjust reduces on-hand like an `out` (an
// org's Open Question resolution, see DESIGN.md).
func (q *Queries) RecordMovement(ctx context.Context, m InventoryMovement) (string, error) {
	switch m.Type {
	case MovementIn, MovementTransferIn:
		if m.Quantity <= 0 {
			return "", fmt.Errorf("%w: %s movement quantity must be positive", apperr.ErrValidation, m.Type)
		}
	case MovementOut, MovementTransfer:
		if m.Quantity >= 0 {
			return "", fmt.Errorf("%w: %s movement quantity must be negative", apperr.ErrValidation, m.Type)
		}
	case MovementAdjust:
		// either sign permitted; no additional check
	default:
		return "", fmt.Errorf("%w: unknown movement type %q", apperr.ErrValidation, m.Type)
	}

	var id string
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO inventory_movements (org_id, product_id, location_id, quantity, type, occurred_at, reference, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.OrgID, m.ProductID, m.LocationID, m.Quantity, m.Type, m.OccurredAt, m.Reference, m.Notes).Scan(&id)
	return id, err
}

// TodayMovementCount returns the count of inventory movements that
// occurred in [dayStart, dayEnd) as given by the caller, for the
// business-context snapshot (C10).
func (q *Queries) TodayMovementCount(ctx context.Context, orgID string, dayStart, dayEnd time.Time) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM inventory_movements
		WHERE org_id = $1 AND occurred_at >= $2 AND occurred_at < $3
	`, orgID, dayStart, dayEnd).Scan(&n)
	return n, err
}

// SalesDailyRange fetches sales_daily mart rows for an org across
// [start,end), scoped to the SKUs given (nil/empty means all SKUs).
// Returns apperr.ErrDataUnavailable when the mart has zero matching rows,
// signaling handlers to fall back to base tables.
func (q *Queries) SalesDailyRange(ctx context.Context, orgID string, start, end time.Time, skus []string) ([]SalesDailyMartRow, error) {
	has56, err := q.Has56DayColumn(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT org_id, sale_date, sku, units_sold, gross_revenue, gross_margin, margin_percent,
		       orders_count, units_7day_avg, units_30day_avg`
	if has56 {
		query += `, units_56day_avg`
	} else {
		query += `, NULL::numeric`
	}
	query += ` FROM sales_daily WHERE org_id = $1 AND sale_date >= $2 AND sale_date < $3`
	args := []interface{}{orgID, start, end}
	if len(skus) > 0 {
		query += ` AND sku = ANY($4)`
		args = append(args, pq.Array(skus))
	}
	query += ` ORDER BY sale_date, sku`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesDailyMartRow
	for rows.Next() {
		var r SalesDailyMartRow
		if err := rows.Scan(&r.OrgID, &r.SaleDate, &r.SKU, &r.UnitsSold, &r.GrossRevenue, &r.GrossMargin,
			&r.MarginPercent, &r.OrdersCount, &r.Units7DayAvg, &r.Units30DayAvg, &r.Units56DayAvg); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sales_daily: %w", apperr.ErrDataUnavailable)
	}
	return out, nil
}

// ReorderInputs fetches every reorder-inputs mart row for an org, with no
// further filtering (C6 consumes these directly; C7 derives on_hand and
// velocity from the same preselected columns).
func (q *Queries) ReorderInputs(ctx context.Context, orgID string) ([]ReorderInputsRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT product_id, sku, org_id, on_hand, reorder_point, safety_stock_days, pack_size, max_stock_days,
		       lead_time_days, moq, supplier_id, unit_cost, v7d, v30d, v56d, incoming_30d, incoming_60d
		FROM reorder_inputs WHERE org_id = $1 ORDER BY sku
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReorderInputsRow
	for rows.Next() {
		var r ReorderInputsRow
		if err := rows.Scan(&r.ProductID, &r.SKU, &r.OrgID, &r.OnHand, &r.ReorderPoint, &r.SafetyStockDays, &r.PackSize,
			&r.MaxStockDays, &r.LeadTimeDays, &r.MOQ, &r.SupplierID, &r.UnitCost, &r.V7d, &r.V30d, &r.V56d,
			&r.Incoming30d, &r.Incoming60d); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reorder_inputs: %w", apperr.ErrDataUnavailable)
	}
	return out, nil
}

// ListProducts returns every product in an org, for handlers that must
// fall back to base tables when a mart is unavailable.
func (q *Queries) ListProducts(ctx context.Context, orgID string) ([]Product, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, org_id, sku, name, category, unit_cost, unit_price, unit_of_measure,
		       reorder_point, safety_stock_days, pack_size, max_stock_days, preferred_supplier, created_at
		FROM products WHERE org_id = $1 ORDER BY sku
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.Category, &p.UnitCost, &p.UnitPrice, &p.UnitOfMeasure,
			&p.ReorderPoint, &p.SafetyStockDays, &p.PackSize, &p.MaxStockDays, &p.PreferredSupplier, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OrderItemSalesSince sums quantity/revenue/margin per product across
// order_items joined to orders, for the base-table fallback path that
// handlers take when the sales_daily mart is unavailable. margin is
// approximated as revenue - (quantity * unit_cost) from products.
func (q *Queries) OrderItemSalesSince(ctx context.Context, orgID string, since time.Time) (map[string]struct {
	Units   int
	Revenue decimal.Decimal
	Margin  decimal.Decimal
}, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT oi.product_id,
		       SUM(oi.quantity) AS units,
		       SUM(oi.quantity * oi.unit_price - oi.discount) AS revenue,
		       SUM(oi.quantity * (oi.unit_price - p.unit_cost) - oi.discount) AS margin
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.org_id = $1 AND o.ordered_at >= $2
		GROUP BY oi.product_id
	`, orgID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct {
		Units   int
		Revenue decimal.Decimal
		Margin  decimal.Decimal
	})
	for rows.Next() {
		var productID string
		var units int
		var revenue, margin decimal.Decimal
		if err := rows.Scan(&productID, &units, &revenue, &margin); err != nil {
			return nil, err
		}
		out[productID] = struct {
			Units   int
			Revenue decimal.Decimal
			Margin  decimal.Decimal
		}{units, revenue, margin}
	}
	return out, rows.Err()
}

// BeginMartAttempt runs fn inside a transaction; if fn returns
// apperr.ErrDataUnavailable the transaction is rolled back and the error
// is returned to the caller unchanged so it can switch to the base-table
// fallback, per the "roll back and execute an equivalent query over base
// tables" handler contract.
func (q *Queries) BeginMartAttempt(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := q.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreatePurchaseOrder inserts a draft purchase order with its line items
// in a single transaction, used by the reorder engine's draft-PO grouping
// step (C6).
func (q *Queries) CreatePurchaseOrder(ctx context.Context, po PurchaseOrder, items []POItem) (string, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO purchase_orders (org_id, supplier_id, po_number, status, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, po.OrgID, po.SupplierID, po.PONumber, po.Status, po.TotalAmount, po.CreatedAt).Scan(&id)
	if err != nil {
		return "", err
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO po_items (purchase_order_id, product_id, quantity, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5)
		`, id, item.ProductID, item.Quantity, item.UnitCost, item.LineTotal); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// GetPurchaseOrder fetches a PO and its items, scoped by org.
func (q *Queries) GetPurchaseOrder(ctx context.Context, orgID, poID string) (*PurchaseOrder, []POItem, error) {
	var po PurchaseOrder
	err := q.db.QueryRowContext(ctx, `
		SELECT id, org_id, supplier_id, po_number, status, order_date, received_date, total_amount, created_at
		FROM purchase_orders WHERE org_id = $1 AND id = $2
	`, orgID, poID).Scan(&po.ID, &po.OrgID, &po.SupplierID, &po.PONumber, &po.Status, &po.OrderDate,
		&po.ReceivedDate, &po.TotalAmount, &po.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("purchase order: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, purchase_order_id, product_id, quantity, unit_cost, line_total
		FROM po_items WHERE purchase_order_id = $1
	`, poID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var items []POItem
	for rows.Next() {
		var it POItem
		if err := rows.Scan(&it.ID, &it.PurchaseOrderID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.LineTotal); err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}
	return &po, items, rows.Err()
}

// GetSupplier fetches a supplier scoped by org.
func (q *Queries) GetSupplier(ctx context.Context, orgID, supplierID string) (*Supplier, error) {
	var s Supplier
	err := q.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, lead_time_days, min_order_quantity, is_active, payment_terms
		FROM suppliers WHERE org_id = $1 AND id = $2
	`, orgID, supplierID).Scan(&s.ID, &s.OrgID, &s.Name, &s.LeadTimeDays, &s.MinOrderQuantity, &s.IsActive, &s.PaymentTerms)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("supplier: %w", apperr.ErrNotFound)
	}
	return &s, err
}
