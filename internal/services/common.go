package services

import (
	"context"
	"time"

	"example.com/backstage/services/fridge/internal/orderid"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Clock returns the current instant. Services always work in UTC.
type Clock func() time.Time

// SystemClock is the wall clock in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

type actorKey struct{}

// WithActor attaches the id of the calling user to ctx. Activity entries
// appended under ctx are attributed to it.
func WithActor(ctx context.Context, uid string) context.Context {
	if uid == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, uid)
}

// ActorFrom returns the user id attached by WithActor
func ActorFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(actorKey{}).(string)
	return uid, ok && uid != ""
}

// FormatCost renders a total the way deliveries store it, e.g. "£12.50"
func FormatCost(symbol string, total decimal.Decimal) string {
	return symbol + total.StringFixed(2)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("order_id", func(fl validator.FieldLevel) bool {
		return orderid.Valid(fl.Field().String())
	})
	return v
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
