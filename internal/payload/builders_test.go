package payload_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/yotposync/internal/payload"
	"github.com/tigerroll/yotposync/internal/platform"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
)

func sampleOrder() platform.Order {
	return platform.Order{
		ID:            "1001",
		Locale:        "en_US",
		CustomerID:    "c-1",
		CustomerEmail: " jane@example.com ",
		CustomerName:  "Jane <b>Doe</b>",
		CurrencyCode:  "usd",
		Total:         decimal.RequireFromString("19.995"),
		Status:        "NEW",
		CouponCode:    "SPRING",
		CreatedAt:     time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC),
		BillingAddress: platform.Address{
			FirstName: "Jane", LastName: "Doe", Address1: "1 Main St", City: "Springfield",
			StateCode: "IL", PostalCode: "62701", CountryCode: "us",
		},
		LineItems: []platform.LineItem{
			{ProductID: "p-1", Name: "Mug\t&amp; Cup", Description: "<p>Ceramic\n mug</p>", ImageURL: "https://img/p-1.png", Quantity: 2, Price: decimal.RequireFromString("4.505")},
		},
		Extension: platform.OrderExtension{UserAgent: "ua", IPAddress: "10.0.0.1"},
	}
}

func TestBuildPurchase(t *testing.T) {
	p, err := payload.BuildPurchase(sampleOrder(), payload.Options{Platform: "commerce_cloud", StorefrontBaseURL: "https://shop.example.com/p/"})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", p.Email)
	assert.Equal(t, "Jane Doe", p.CustomerName)
	assert.Equal(t, "1001", p.OrderID)
	assert.Equal(t, "2024-03-05", p.OrderDate)
	assert.Equal(t, "USD", p.CurrencyISO)
	assert.Equal(t, "commerce_cloud", p.Platform)
	require.Contains(t, p.Products, "p-1")
	prod := p.Products["p-1"]
	assert.Equal(t, "Mug & Cup", prod.Name)
	assert.Equal(t, "Ceramic mug", prod.Description)
	assert.Equal(t, "https://shop.example.com/p/p-1", prod.URL)
	assert.InDelta(t, 4.51, prod.Price, 0.0001)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"email", "customer_name", "order_id", "order_date", "currency_iso", "platform", "products"} {
		assert.Contains(t, fields, key)
	}
}

func TestBuildPurchase_InvalidEmail(t *testing.T) {
	for _, email := range []string{"", "not-an-email"} {
		o := sampleOrder()
		o.CustomerEmail = email
		_, err := payload.BuildPurchase(o, payload.Options{})
		require.Error(t, err, email)
		assert.True(t, errors.Is(err, payload.ErrInvalidRecord))
		assert.Contains(t, err.Error(), "email")

		var be *exception.BatchError
		require.True(t, errors.As(err, &be))
		assert.True(t, be.IsSkippable())
	}
}

func TestBuildLoyaltyOrder(t *testing.T) {
	lo, err := payload.BuildLoyaltyOrder(sampleOrder())
	require.NoError(t, err)

	assert.Equal(t, int64(2000), lo.TotalAmountCents)
	assert.Equal(t, "2024-03-05T10:30:00Z", lo.CreatedAt)
	assert.Equal(t, "SPRING", lo.CouponCode)
	assert.Equal(t, "10.0.0.1", lo.IPAddress)
	assert.Equal(t, "ua", lo.UserAgent)
	require.Len(t, lo.Items, 1)
	assert.Equal(t, int64(451), lo.Items[0].PriceCents)
	require.NotNil(t, lo.BillingAddress)
	assert.Equal(t, "Jane Doe", lo.BillingAddress.Name)
	assert.Equal(t, "US", lo.BillingAddress.CountryCode)
	assert.Nil(t, lo.ShippingAddress)
}

func TestBuildLoyaltyCustomer(t *testing.T) {
	birthday := time.Date(1990, 12, 1, 0, 0, 0, 0, time.UTC)
	c := platform.Customer{
		ID: "42", Email: "a@b.co", FirstName: " Ann\x00", LastName: "Lee",
		Phone: "555", Birthday: &birthday, CreatedAt: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		AcceptsMarketing: true,
	}
	lc, err := payload.BuildLoyaltyCustomer(c)
	require.NoError(t, err)
	assert.Equal(t, "42", lc.ID)
	assert.Equal(t, "Ann", lc.FirstName)
	assert.Equal(t, "1990-12-01", lc.Birthday)
	assert.Equal(t, "2020-01-02T03:04:05Z", lc.CreatedAt)
	assert.Empty(t, lc.UpdatedAt)
	assert.True(t, lc.AcceptsMarketing)

	c.Email = ""
	_, err = payload.BuildLoyaltyCustomer(c)
	assert.ErrorIs(t, err, payload.ErrInvalidRecord)
}

func TestCents(t *testing.T) {
	tests := map[string]int64{
		"0":      0,
		"1":      100,
		"0.005":  1,
		"0.004":  0,
		"12.345": 1235,
		"-0.005": -1,
		"-2.5":   -250,
	}
	for in, want := range tests {
		assert.Equal(t, want, payload.Cents(decimal.RequireFromString(in)), in)
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "", payload.Sanitize(""))
	assert.Equal(t, "a b c", payload.Sanitize("  a\n\tb   c "))
	assert.Equal(t, "Hello world", payload.Sanitize("<div>Hello</div><br/>world"))
	assert.Equal(t, "x y", payload.Sanitize("x\x07y"))
	assert.Equal(t, "Fish & Chips", payload.Sanitize("Fish &amp; Chips"))
}
