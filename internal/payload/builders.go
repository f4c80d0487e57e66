package payload

import (
	"net/url"
	"strings"

	"github.com/tigerroll/yotposync/internal/platform"
)

// BuildPurchase builds the purchase feed entry of o.
func BuildPurchase(o platform.Order, opts Options) (*Purchase, error) {
	p := &Purchase{
		Email:        strings.TrimSpace(o.CustomerEmail),
		CustomerName: Sanitize(o.CustomerName),
		OrderID:      o.ID,
		CurrencyISO:  strings.ToUpper(o.CurrencyCode),
		Platform:     opts.Platform,
		Products:     make(map[string]Product, len(o.LineItems)),
	}
	if !o.CreatedAt.IsZero() {
		p.OrderDate = o.CreatedAt.UTC().Format("2006-01-02")
	}
	for _, li := range o.LineItems {
		if li.ProductID == "" {
			continue
		}
		p.Products[li.ProductID] = Product{
			Name:        Sanitize(li.Name),
			URL:         productURL(opts.StorefrontBaseURL, li.ProductID),
			Image:       li.ImageURL,
			Description: Sanitize(li.Description),
			Price:       li.Price.Round(2).InexactFloat64(),
		}
	}
	if err := check("order", o.ID, p); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildLoyaltyOrder builds the loyalty order feed entry of o.
func BuildLoyaltyOrder(o platform.Order) (*LoyaltyOrder, error) {
	lo := &LoyaltyOrder{
		OrderID:          o.ID,
		CustomerEmail:    strings.TrimSpace(o.CustomerEmail),
		CustomerID:       o.CustomerID,
		TotalAmountCents: Cents(o.Total),
		CurrencyCode:     strings.ToUpper(o.CurrencyCode),
		Status:           o.Status,
		CreatedAt:        formatTime(o.CreatedAt),
		CouponCode:       o.CouponCode,
		IPAddress:        o.Extension.IPAddress,
		UserAgent:        o.Extension.UserAgent,
		Items:            make([]LoyaltyItem, 0, len(o.LineItems)),
		BillingAddress:   flattenAddress(o.BillingAddress),
		ShippingAddress:  flattenAddress(o.ShippingAddress),
	}
	for _, li := range o.LineItems {
		lo.Items = append(lo.Items, LoyaltyItem{
			ProductID:  li.ProductID,
			Name:       Sanitize(li.Name),
			Quantity:   li.Quantity,
			PriceCents: Cents(li.Price),
		})
	}
	if err := check("order", o.ID, lo); err != nil {
		return nil, err
	}
	return lo, nil
}

// BuildLoyaltyCustomer builds the loyalty customer feed entry of c.
func BuildLoyaltyCustomer(c platform.Customer) (*LoyaltyCustomer, error) {
	lc := &LoyaltyCustomer{
		ID:               c.ID,
		Email:            strings.TrimSpace(c.Email),
		FirstName:        Sanitize(c.FirstName),
		LastName:         Sanitize(c.LastName),
		PhoneNumber:      strings.TrimSpace(c.Phone),
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
		AcceptsMarketing: c.AcceptsMarketing,
	}
	if c.Birthday != nil {
		lc.Birthday = c.Birthday.Format("2006-01-02")
	}
	if err := check("customer", c.ID, lc); err != nil {
		return nil, err
	}
	return lc, nil
}

// flattenAddress returns nil for an empty address.
func flattenAddress(a platform.Address) *Address {
	if a == (platform.Address{}) {
		return nil
	}
	name := strings.TrimSpace(Sanitize(a.FirstName) + " " + Sanitize(a.LastName))
	return &Address{
		Name:        name,
		Address1:    Sanitize(a.Address1),
		Address2:    Sanitize(a.Address2),
		City:        Sanitize(a.City),
		State:       a.StateCode,
		Zip:         a.PostalCode,
		CountryCode: strings.ToUpper(a.CountryCode),
		Phone:       strings.TrimSpace(a.Phone),
	}
}

func productURL(base, productID string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(productID)
}
