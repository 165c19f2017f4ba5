package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineStatus is the state of an order line
type LineStatus string

const (
	LineProcessing  LineStatus = "Processing"
	LineOrdered     LineStatus = "Ordered"
	LineDelivered   LineStatus = "Delivered"
	LineUndelivered LineStatus = "Undelivered"
)

// Trigger tags recorded on order lines
const (
	TriggerUser   = "User added"
	TriggerSystem = "System trigger"
)

// DeliveryStatus is the state of a delivery. The sequence only moves forward:
// Processed, Delivery in process, Delivered, Completed.
type DeliveryStatus string

const (
	DeliveryProcessed DeliveryStatus = "Processed"
	DeliveryInProcess DeliveryStatus = "Delivery in process"
	DeliveryDelivered DeliveryStatus = "Delivered"
	DeliveryCompleted DeliveryStatus = "Completed"
)

var deliveryOrder = map[DeliveryStatus]int{
	DeliveryProcessed: 0,
	DeliveryInProcess: 1,
	DeliveryDelivered: 2,
	DeliveryCompleted: 3,
}

// CanAdvanceTo reports whether next is the single state that follows s
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	cur, ok := deliveryOrder[s]
	if !ok {
		return false
	}
	n, ok := deliveryOrder[next]
	return ok && n == cur+1
}

// Access code purposes sharing the active code space
const (
	AccessCodeSession  = "session"
	AccessCodeDelivery = "delivery"
)

// Product is read-only catalog reference data
type Product struct {
	ProductID int             `gorm:"primaryKey;autoIncrement:false" json:"productID"`
	Name      string          `gorm:"not null;index" json:"Name"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"Price"`
}

// TableName overrides the table name
func (Product) TableName() string { return "products" }

// InventoryItem is the stock held for one product
type InventoryItem struct {
	ItemID      int       `gorm:"primaryKey;autoIncrement:false" json:"itemID"`
	Quantity    int       `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	ExpiryDate  time.Time `gorm:"not null;index" json:"expiryDate"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"lastUpdated"`
}

// TableName overrides the table name
func (InventoryItem) TableName() string { return "inventory" }

// StockedProduct is a product joined with its inventory row
type StockedProduct struct {
	ProductID   int             `json:"productID"`
	Name        string          `json:"Name"`
	Price       decimal.Decimal `json:"Price"`
	ItemID      int             `json:"itemID"`
	Quantity    int             `json:"quantity"`
	ExpiryDate  time.Time       `json:"expiryDate"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// OrderLine is one product requested in a weekly order
type OrderLine struct {
	ID          uint       `gorm:"primaryKey" json:"-"`
	OrderID     string     `gorm:"size:4;not null;uniqueIndex:idx_order_product,priority:1" json:"orderID"`
	ProductID   int        `gorm:"not null;uniqueIndex:idx_order_product,priority:2" json:"productID"`
	Quantity    int        `gorm:"not null" json:"quantity"`
	OrderedAt   time.Time  `gorm:"not null" json:"orderedAt"`
	Status      LineStatus `gorm:"size:16;not null;index" json:"status"`
	TriggerType string     `gorm:"size:64;not null" json:"triggerType"`
}

// TableName overrides the table name
func (OrderLine) TableName() string { return "orders" }

// OrderLineDetail is an order line joined with its catalog entry
type OrderLineDetail struct {
	OrderID     string          `json:"orderID"`
	ProductID   int             `json:"productID"`
	Quantity    int             `json:"quantity"`
	OrderedAt   time.Time       `json:"orderedAt"`
	Status      LineStatus      `json:"status"`
	TriggerType string          `json:"triggerType"`
	Name        string          `json:"Name,omitempty"`
	Price       decimal.Decimal `json:"Price"`
}

// Delivery is the weekly delivery created from a finalized order
type Delivery struct {
	DeliveryID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"deliveryID"`
	OrderID          string         `gorm:"size:4;not null;uniqueIndex" json:"orderID"`
	DeliveryDate     time.Time      `gorm:"not null" json:"deliveryDate"`
	AccessCode       *int           `gorm:"uniqueIndex" json:"accessCode"`
	ItemsToDeliver   int            `gorm:"not null" json:"itemsToDeliver"`
	ItemsUndelivered int            `gorm:"not null;default:0" json:"itemsUndelivered"`
	Status           DeliveryStatus `gorm:"size:32;not null" json:"status"`
	TotalCost        string         `gorm:"size:32;not null" json:"totalCost"`
	DeliveryNotes    *string        `json:"deliveryNotes"`
	IsDelivered      bool           `gorm:"not null;default:false" json:"isDelivered"`
	IsChecked        bool           `gorm:"not null;default:false" json:"isChecked"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name
func (Delivery) TableName() string { return "deliveries" }

// AccessCode is a currently active one-time code. Sessions and deliveries
// draw from the same code space.
type AccessCode struct {
	Code     int       `gorm:"primaryKey;autoIncrement:false" json:"code"`
	Purpose  string    `gorm:"size:16;not null" json:"purpose"`
	IssuedAt time.Time `gorm:"not null" json:"issuedAt"`
}

// TableName overrides the table name
func (AccessCode) TableName() string { return "access_codes" }

// Activity is an append-only audit entry
type Activity struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UID        *string   `gorm:"size:64" json:"uid"`
	Action     string    `gorm:"not null" json:"action"`
	OccurredAt time.Time `gorm:"not null;index" json:"occuredAt"`
}

// TableName overrides the table name
func (Activity) TableName() string { return "activity" }

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Product{},
		&InventoryItem{},
		&OrderLine{},
		&Delivery{},
		&AccessCode{},
		&Activity{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
