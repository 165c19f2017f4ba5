package services

import (
	"context"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/orderid"
	"example.com/backstage/services/fridge/internal/repositories"

	"github.com/rs/zerolog/log"
)

// LineInput is one requested product and quantity
type LineInput struct {
	ProductID int `json:"productID" validate:"gt=0"`
	Quantity  int `json:"quantity" validate:"gt=0"`
}

// AddRequest is either a SingleLine or a BatchLines
type AddRequest interface {
	isAddRequest()
}

// SingleLine adds one product to an order
type SingleLine LineInput

// BatchLines adds several products to an order. The batch is validated as
// a whole before any line is inserted.
type BatchLines struct {
	Lines []LineInput
}

func (SingleLine) isAddRequest() {}
func (BatchLines) isAddRequest() {}

// LineRejection explains why a line was not inserted
type LineRejection struct {
	ProductID int    `json:"productID"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// AddResult reports which lines were inserted
type AddResult struct {
	Inserted []models.OrderLine `json:"inserted"`
	Rejected []LineRejection    `json:"rejected,omitempty"`
}

// OrderLedger manages the lines of weekly orders. An order that already has
// a delivery is closed to new lines.
type OrderLedger struct {
	products   *repositories.ProductRepository
	lines      *repositories.OrderLineRepository
	deliveries *repositories.DeliveryRepository
	now        Clock
}

// NewOrderLedger creates a new order ledger
func NewOrderLedger(products *repositories.ProductRepository, lines *repositories.OrderLineRepository, deliveries *repositories.DeliveryRepository, now Clock) *OrderLedger {
	if now == nil {
		now = SystemClock
	}
	return &OrderLedger{products: products, lines: lines, deliveries: deliveries, now: now}
}

func (l *OrderLedger) ensureOpen(ctx context.Context, orderID string) error {
	closed, err := l.deliveries.ExistsForOrder(ctx, orderID)
	if err != nil {
		return apperrors.Storage(err, "failed to check delivery")
	}
	if closed {
		return apperrors.Conflict("order %s already has a delivery", orderID)
	}
	return nil
}

// Add dispatches a single or batch request
func (l *OrderLedger) Add(ctx context.Context, orderID string, req AddRequest, trigger string) (*AddResult, error) {
	switch r := req.(type) {
	case SingleLine:
		line, err := l.AddLine(ctx, orderID, r.ProductID, r.Quantity, trigger)
		if err != nil {
			return nil, err
		}
		return &AddResult{Inserted: []models.OrderLine{*line}}, nil
	case BatchLines:
		if err := l.ValidateBatch(ctx, orderID, r.Lines); err != nil {
			return nil, err
		}
		return l.AddLines(ctx, orderID, r.Lines, trigger)
	default:
		return nil, apperrors.InvalidArgument("unsupported add request %T", req)
	}
}

// AddLine inserts one line with status Processing
func (l *OrderLedger) AddLine(ctx context.Context, orderID string, productID, quantity int, trigger string) (*models.OrderLine, error) {
	if !orderid.Valid(orderID) {
		return nil, apperrors.InvalidArgument("invalid order id %q", orderID)
	}
	if err := ValidateStruct(LineInput{ProductID: productID, Quantity: quantity}); err != nil {
		return nil, apperrors.InvalidArgument("product id and quantity must be positive integers")
	}
	if trigger == "" {
		trigger = models.TriggerUser
	}
	if err := l.ensureOpen(ctx, orderID); err != nil {
		return nil, err
	}

	exists, err := l.products.Exists(ctx, productID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to look up product")
	}
	if !exists {
		return nil, apperrors.NotFound("product %d does not exist", productID)
	}

	dup, err := l.lines.Exists(ctx, orderID, productID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to check order")
	}
	if dup {
		return nil, apperrors.Conflict("product %d is already in order %s", productID, orderID)
	}

	line := &models.OrderLine{
		OrderID:     orderID,
		ProductID:   productID,
		Quantity:    quantity,
		OrderedAt:   l.now().UTC(),
		Status:      models.LineProcessing,
		TriggerType: trigger,
	}
	if err := l.lines.Create(ctx, line); err != nil {
		if err == repositories.ErrDuplicateKey {
			return nil, apperrors.Conflict("product %d is already in order %s", productID, orderID)
		}
		return nil, apperrors.Storage(err, "failed to add order line")
	}

	log.Info().
		Str("order_id", orderID).
		Int("product_id", productID).
		Int("quantity", quantity).
		Str("trigger", trigger).
		Msg("Order line added")

	return line, nil
}

// AddLines inserts each line independently. Lines that fail are reported in
// the result and do not stop the rest.
func (l *OrderLedger) AddLines(ctx context.Context, orderID string, lines []LineInput, trigger string) (*AddResult, error) {
	if !orderid.Valid(orderID) {
		return nil, apperrors.InvalidArgument("invalid order id %q", orderID)
	}

	result := &AddResult{Inserted: make([]models.OrderLine, 0, len(lines))}
	for _, in := range lines {
		line, err := l.AddLine(ctx, orderID, in.ProductID, in.Quantity, trigger)
		if err != nil {
			result.Rejected = append(result.Rejected, LineRejection{
				ProductID: in.ProductID,
				Code:      apperrors.KindOf(err).Code(),
				Reason:    apperrors.PublicMessage(err),
			})
			continue
		}
		result.Inserted = append(result.Inserted, *line)
	}
	return result, nil
}

// ValidateBatch rejects the whole batch if any line has a non-positive
// product id or quantity, names an unknown product, repeats a product, or is
// already in the order. A batch for an order with a delivery is a Conflict.
func (l *OrderLedger) ValidateBatch(ctx context.Context, orderID string, lines []LineInput) error {
	if !orderid.Valid(orderID) {
		return apperrors.InvalidArgument("invalid order id %q", orderID)
	}
	if len(lines) == 0 {
		return apperrors.InvalidArgument("at least one line is required")
	}

	ids := make([]int, 0, len(lines))
	seen := make(map[int]bool, len(lines))
	for i, in := range lines {
		if err := ValidateStruct(in); err != nil {
			return apperrors.InvalidArgument("line %d: product id and quantity must be positive integers", i)
		}
		if seen[in.ProductID] {
			return apperrors.InvalidArgument("line %d: product %d is repeated", i, in.ProductID)
		}
		seen[in.ProductID] = true
		ids = append(ids, in.ProductID)
	}
	if err := l.ensureOpen(ctx, orderID); err != nil {
		return err
	}

	products, err := l.products.GetMany(ctx, ids)
	if err != nil {
		return apperrors.Storage(err, "failed to look up products")
	}
	existing, err := l.lines.ExistingProducts(ctx, orderID, ids)
	if err != nil {
		return apperrors.Storage(err, "failed to check order")
	}

	for i, id := range ids {
		if _, ok := products[id]; !ok {
			return apperrors.InvalidArgument("line %d: product %d does not exist", i, id)
		}
		if existing[id] {
			return apperrors.InvalidArgument("line %d: product %d is already in order %s", i, id, orderID)
		}
	}
	return nil
}

// RemoveLine deletes a line
func (l *OrderLedger) RemoveLine(ctx context.Context, orderID string, productID int) error {
	err := l.lines.Delete(ctx, orderID, productID)
	if err == repositories.ErrNotFound {
		return apperrors.NotFound("product %d is not in order %s", productID, orderID)
	}
	if err != nil {
		return apperrors.Storage(err, "failed to remove order line")
	}

	log.Info().Str("order_id", orderID).Int("product_id", productID).Msg("Order line removed")
	return nil
}

// EditLine replaces the quantity of a line
func (l *OrderLedger) EditLine(ctx context.Context, orderID string, productID, quantity int) (*models.OrderLine, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidArgument("quantity must be a positive integer")
	}

	err := l.lines.UpdateQuantity(ctx, orderID, productID, quantity)
	if err == repositories.ErrNotFound {
		return nil, apperrors.NotFound("product %d is not in order %s", productID, orderID)
	}
	if err != nil {
		return nil, apperrors.Storage(err, "failed to edit order line")
	}

	line, err := l.lines.Get(ctx, orderID, productID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to read order line")
	}
	return line, nil
}

// ListLines returns the lines of an order, with catalog name and price when
// joinCatalog is set
func (l *OrderLedger) ListLines(ctx context.Context, orderID string, joinCatalog bool) ([]models.OrderLineDetail, error) {
	if !orderid.Valid(orderID) {
		return nil, apperrors.InvalidArgument("invalid order id %q", orderID)
	}

	if joinCatalog {
		rows, err := l.lines.ListWithCatalog(ctx, orderID)
		if err != nil {
			return nil, apperrors.Storage(err, "failed to list order lines")
		}
		return rows, nil
	}

	lines, err := l.lines.List(ctx, orderID)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list order lines")
	}
	rows := make([]models.OrderLineDetail, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, models.OrderLineDetail{
			OrderID:     line.OrderID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			OrderedAt:   line.OrderedAt,
			Status:      line.Status,
			TriggerType: line.TriggerType,
		})
	}
	return rows, nil
}

// HasLine reports whether the order already holds the product
func (l *OrderLedger) HasLine(ctx context.Context, orderID string, productID int) (bool, error) {
	ok, err := l.lines.Exists(ctx, orderID, productID)
	if err != nil {
		return false, apperrors.Storage(err, "failed to check order")
	}
	return ok, nil
}

// CurrentOrderID returns the id of the order being built this week
func (l *OrderLedger) CurrentOrderID() string {
	return orderid.Current(l.now())
}
