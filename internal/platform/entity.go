package platform

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is a postal address attached to an order.
type Address struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	StateCode   string `json:"stateCode"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	Phone       string `json:"phone"`
}

// LineItem is one product line of an order.
type LineItem struct {
	ProductID   string
	Name        string
	Description string
	ImageURL    string
	Quantity    int
	Price       decimal.Decimal
}

// OrderExtension holds the storefront attributes the platform stores beside an order.
type OrderExtension struct {
	UserAgent       string
	IPAddress       string
	LoyaltyExported bool
}

// Order is a placed storefront order.
type Order struct {
	ID              string
	Locale          string
	CustomerID      string
	CustomerEmail   string
	CustomerName    string
	CurrencyCode    string
	Total           decimal.Decimal
	Status          string
	CouponCode      string
	CreatedAt       time.Time
	BillingAddress  Address
	ShippingAddress Address
	LineItems       []LineItem
	Extension       OrderExtension
}

// Customer is a registered storefront customer.
type Customer struct {
	ID               string
	Locale           string
	Email            string
	FirstName        string
	LastName         string
	Phone            string
	Birthday         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	AcceptsMarketing bool
}
