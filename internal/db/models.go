package db

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Organization is the tenant root. Every other table carries an org_id
// foreign key and every query in this package MUST filter by it.
type Organization struct {
	ID        string
	Name      string
	TimeZone  string
	CreatedAt time.Time
}

// Product belongs to exactly one organization.
type Product struct {
	ID                 string
	OrgID              string
	SKU                string
	Name               string
	Category           string
	UnitCost           decimal.Decimal
	UnitPrice          decimal.Decimal
	UnitOfMeasure      string
	ReorderPoint       int
	SafetyStockDays    int
	PackSize           int
	MaxStockDays       sql.NullInt32
	PreferredSupplier  sql.NullString
	CreatedAt          time.Time
}

// User is an org-scoped login identity for the HTTP API's bearer-token
// auth flow (internal/auth issues the tokens; this is the credential
// record they're issued against).
type User struct {
	ID           string
	OrgID        string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// LocationType enumerates the Location.Type domain.
type LocationType string

const (
	LocationWarehouse LocationType = "warehouse"
	LocationStore     LocationType = "store"
	LocationVirtual   LocationType = "virtual"
)

// Location belongs to one org.
type Location struct {
	ID    string
	OrgID string
	Name  string
	Type  LocationType
}

// Supplier belongs to one org.
type Supplier struct {
	ID                string
	OrgID             string
	Name              string
	LeadTimeDays      int
	MinOrderQuantity  int
	IsActive          bool
	PaymentTerms      string
}

// MovementType enumerates InventoryMovement.Type.
type MovementType string

const (
	MovementIn          MovementType = "in"
	MovementOut         MovementType = "out"
	MovementAdjust      MovementType = "adjust"
	MovementTransfer    MovementType = "transfer"
	MovementTransferIn  MovementType = "transfer_in"
)

// InventoryMovement is an immutable, append-only ledger entry. On-hand is
// always derived by summing movements for a product; it is never stored.
type InventoryMovement struct {
	ID         string
	OrgID      string
	ProductID  string
	LocationID string
	Quantity   int // signed; sign convention enforced at write time, see Queries.RecordMovement
	Type       MovementType
	OccurredAt time.Time
	Reference  sql.NullString
	Notes      sql.NullString
}

// OrderStatus enumerates Order.Status.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a sales order; Channel is treated as an opaque string (the
// sales-daily mart's channel values are not enumerated by the spec).
type Order struct {
	ID          string
	OrgID       string
	OrderNumber string
	Channel     string
	Status      OrderStatus
	OrderedAt   time.Time
	FulfilledAt sql.NullTime
	LocationID  sql.NullString
	TotalAmount decimal.Decimal
}

// OrderItem references a product with quantity, unit price and discount.
type OrderItem struct {
	ID         string
	OrderID    string
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	Discount   decimal.Decimal
}

// POStatus enumerates PurchaseOrder.Status. draft is mutable and
// deletable; any other state is only status-advanceable.
type POStatus string

const (
	POStatusDraft     POStatus = "draft"
	POStatusPending   POStatus = "pending"
	POStatusOrdered   POStatus = "ordered"
	POStatusReceived  POStatus = "received"
	POStatusCancelled POStatus = "cancelled"
)

// PurchaseOrder is supplier-scoped.
type PurchaseOrder struct {
	ID           string
	OrgID        string
	SupplierID   string
	PONumber     string
	Status       POStatus
	OrderDate    sql.NullTime
	ReceivedDate sql.NullTime
	TotalAmount  decimal.Decimal
	CreatedAt    time.Time
}

// POItem is a purchase order line.
type POItem struct {
	ID              string
	PurchaseOrderID string
	ProductID       string
	Quantity        int
	UnitCost        decimal.Decimal
	LineTotal       decimal.Decimal
}

// SalesDailyMartRow mirrors one per-org, per-day, per-SKU row of the
// external sales_daily mart. Units56DayAvg is optional: the core must
// tolerate its absence (see Queries.Has56DayColumn).
type SalesDailyMartRow struct {
	OrgID         string
	SaleDate      time.Time
	SKU           string
	UnitsSold     int
	GrossRevenue  decimal.Decimal
	GrossMargin   decimal.Decimal
	MarginPercent decimal.Decimal
	OrdersCount   int
	Units7DayAvg  decimal.Decimal
	Units30DayAvg decimal.Decimal
	Units56DayAvg decimal.NullDecimal
}

// VelocitySource names which mart column backed a selected velocity
// value, used by the reorder engine's explanation block.
type VelocitySource string

const (
	VelocitySource7d  VelocitySource = "v7d"
	VelocitySource30d VelocitySource = "v30d"
	VelocitySource56d VelocitySource = "v56d"
	VelocitySourceNone VelocitySource = "none"
)

// ReorderInputsRow mirrors one per-product row of the external
// reorder_inputs mart: product attributes, current on-hand, and
// preselected velocity candidates for both reorder strategies.
type ReorderInputsRow struct {
	ProductID       string
	SKU             string
	OrgID           string
	OnHand          int
	ReorderPoint    int
	SafetyStockDays int
	PackSize        int
	MaxStockDays    sql.NullInt32
	LeadTimeDays    int
	MOQ             int
	SupplierID      sql.NullString
	UnitCost        decimal.NullDecimal
	V7d             decimal.NullDecimal
	V30d            decimal.NullDecimal
	V56d            decimal.NullDecimal
	Incoming30d     int
	Incoming60d     int
}
