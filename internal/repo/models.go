package repo

import (
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

// User is a register operator account.
type User struct {
	ID           pgtype.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	IsActive     bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// RefreshToken stores a hashed refresh token for session continuation.
type RefreshToken struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	TokenHash string
	ExpiresAt pgtype.Timestamptz
	RevokedAt pgtype.Timestamptz
	CreatedAt pgtype.Timestamptz
}

// Product is a catalog entry. Price amounts are minor currency units.
type Product struct {
	ID          pgtype.UUID
	Name        string
	Barcode     string
	Category    string
	Description string
	Price       int64
	CostPrice   int64
	Stock       int32
	MinStock    int32
	IsActive    bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// Customer carries loyalty state alongside contact details.
type Customer struct {
	ID            pgtype.UUID
	Name          string
	Email         string
	Phone         string
	LoyaltyPoints int64
	TotalSpent    int64
	JoinedAt      pgtype.Timestamptz
	LastVisit     pgtype.Timestamptz
}

// Discount is a promotional rule definition. The buy_x_get_y kind stores the
// explicit BuyQty/GetQty pair.
type Discount struct {
	ID          pgtype.UUID
	Code        string
	Name        string
	Kind        string
	Value       int64
	PercentBps  pgtype.Int4
	BuyQty      pgtype.Int4
	GetQty      pgtype.Int4
	MinPurchase pgtype.Int8
	MaxDiscount pgtype.Int8
	StartsAt    pgtype.Timestamptz
	EndsAt      pgtype.Timestamptz
	IsActive    bool
	UsageLimit  pgtype.Int4
	UsedCount   int32
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// Cart is an open register basket.
type Cart struct {
	ID                  pgtype.UUID
	CashierID           pgtype.UUID
	CustomerID          pgtype.UUID
	AppliedDiscountCode pgtype.Text
	CreatedAt           pgtype.Timestamptz
	UpdatedAt           pgtype.Timestamptz
	ExpiresAt           pgtype.Timestamptz
}

// CartItem is one product line in a cart. Product identity is unique per cart.
type CartItem struct {
	ID        pgtype.UUID
	CartID    pgtype.UUID
	ProductID pgtype.UUID
	Name      string
	Qty       int32
	UnitPrice int64
	Subtotal  int64
}

// Shift is a cash-drawer session for one cashier.
type Shift struct {
	ID                pgtype.UUID
	CashierID         pgtype.UUID
	Status            string
	StartedAt         pgtype.Timestamptz
	EndedAt           pgtype.Timestamptz
	StartingCash      int64
	EndingCash        pgtype.Int8
	CashSales         int64
	TotalSales        int64
	TotalTransactions int32
	ExpectedCash      pgtype.Int8
	Variance          pgtype.Int8
	Notes             pgtype.Text
}

// Shift status values.
const (
	ShiftStatusActive = "active"
	ShiftStatusClosed = "closed"
)

// Settlement is a finalized sale or return. Immutable once inserted.
type Settlement struct {
	ID           pgtype.UUID
	Kind         string
	CashierID    pgtype.UUID
	CustomerID   pgtype.UUID
	ShiftID      pgtype.UUID
	OriginalID   pgtype.UUID
	Subtotal     int64
	Discount     int64
	DiscountCode pgtype.Text
	Tax          int64
	Total        int64
	Payments     json.RawMessage
	Notes        pgtype.Text
	CreatedAt    pgtype.Timestamptz
}

// Settlement kinds.
const (
	SettlementKindSale   = "sale"
	SettlementKindReturn = "return"
)

// SettlementItem is a snapshot of one cart line at completion time.
type SettlementItem struct {
	ID           pgtype.UUID
	SettlementID pgtype.UUID
	ProductID    pgtype.UUID
	Name         string
	Qty          int32
	UnitPrice    int64
	Subtotal     int64
}

// Movement is one append-only inventory log entry.
type Movement struct {
	ID         int64
	ProductID  pgtype.UUID
	Kind       string
	Qty        int32
	Reason     string
	Reference  pgtype.Text
	RecordedBy pgtype.UUID
	Notes      pgtype.Text
	CreatedAt  pgtype.Timestamptz
}

// Movement kinds.
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
)

// DomainEvent is a persisted outbox record.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     json.RawMessage
	OccurredAt  pgtype.Timestamptz
}
