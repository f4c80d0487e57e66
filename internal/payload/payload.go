// Package payload turns platform records into Yotpo request items.
// Builders are pure: the same record always yields the same payload.
package payload

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

const module = "payload"

// ErrInvalidRecord marks a record that cannot be transformed.
var ErrInvalidRecord = errors.New("invalid record")

// Options carries the installation-wide values payloads embed.
type Options struct {
	Platform          string
	StorefrontBaseURL string
}

// Product is one entry of a purchase's products map.
type Product struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// Purchase is one order of the purchase feed.
type Purchase struct {
	Email        string             `json:"email" validate:"required,email"`
	CustomerName string             `json:"customer_name"`
	OrderID      string             `json:"order_id" validate:"required"`
	OrderDate    string             `json:"order_date" validate:"required"`
	CurrencyISO  string             `json:"currency_iso" validate:"omitempty,len=3"`
	Platform     string             `json:"platform"`
	Products     map[string]Product `json:"products"`
}

// Address is a flattened postal address.
type Address struct {
	Name        string `json:"name,omitempty"`
	Address1    string `json:"address1,omitempty"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// LoyaltyItem is one line of a loyalty order.
type LoyaltyItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// LoyaltyOrder is one order of the loyalty order feed.
type LoyaltyOrder struct {
	OrderID          string        `json:"order_id" validate:"required"`
	CustomerEmail    string        `json:"customer_email" validate:"required,email"`
	CustomerID       string        `json:"customer_id,omitempty"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	CurrencyCode     string        `json:"currency_code" validate:"omitempty,len=3"`
	Status           string        `json:"status,omitempty"`
	CreatedAt        string        `json:"created_at" validate:"required"`
	CouponCode       string        `json:"coupon_code,omitempty"`
	IPAddress        string        `json:"ip_address,omitempty"`
	UserAgent        string        `json:"user_agent,omitempty"`
	Items            []LoyaltyItem `json:"items"`
	BillingAddress   *Address      `json:"billing_address,omitempty"`
	ShippingAddress  *Address      `json:"shipping_address,omitempty"`
}

// LoyaltyCustomer is one customer of the loyalty customer feed.
type LoyaltyCustomer struct {
	ID               string `json:"id" validate:"required"`
	Email            string `json:"email" validate:"required,email"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	Birthday         string `json:"birthday,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
	AcceptsMarketing bool   `json:"accepts_marketing"`
}

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates p and converts failures into a skippable transform error.
func check(kind, id string, p interface{}) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
		}
		err = fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(fields, ", "))
	} else {
		err = errors.Join(ErrInvalidRecord, err)
	}
	return exception.NewBatchError(module, fmt.Sprintf("%s %s failed validation", kind, id), err, true, false)
}

// Cents converts an amount to minor units, rounding half away from zero.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
