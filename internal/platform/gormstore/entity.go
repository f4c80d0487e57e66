package gormstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tigerroll/yotposync/internal/platform"
)

// jsonColumn stores any JSON-encodable value in a text column.
type jsonColumn[T any] struct {
	Data T
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *jsonColumn[T]) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JSON column: %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &c.Data)
}

type configObjectEntity struct {
	ObjectType   string                             `gorm:"column:object_type;primaryKey"`
	ObjectID     string                             `gorm:"column:object_id;primaryKey"`
	Attributes   jsonColumn[map[string]interface{}] `gorm:"column:attributes"`
	LastModified time.Time                          `gorm:"column:last_modified"`
}

func (configObjectEntity) TableName() string { return "custom_objects" }

type sitePreferenceEntity struct {
	Name  string                  `gorm:"column:name;primaryKey"`
	Value jsonColumn[interface{}] `gorm:"column:value"`
}

func (sitePreferenceEntity) TableName() string { return "site_preferences" }

type orderEntity struct {
	ID              string                       `gorm:"column:id;primaryKey"`
	Locale          string                       `gorm:"column:locale"`
	CustomerID      string                       `gorm:"column:customer_id"`
	CustomerEmail   string                       `gorm:"column:customer_email"`
	CustomerName    string                       `gorm:"column:customer_name"`
	CurrencyCode    string                       `gorm:"column:currency_code"`
	Total           decimal.Decimal              `gorm:"column:total"`
	Status          string                       `gorm:"column:status"`
	CouponCode      string                       `gorm:"column:coupon_code"`
	CreatedAt       time.Time                    `gorm:"column:created_at"`
	BillingAddress  jsonColumn[platform.Address] `gorm:"column:billing_address"`
	ShippingAddress jsonColumn[platform.Address] `gorm:"column:shipping_address"`
	UserAgent       string                       `gorm:"column:user_agent"`
	IPAddress       string                       `gorm:"column:ip_address"`
	LoyaltyExported bool                         `gorm:"column:loyalty_exported"`
}

func (orderEntity) TableName() string { return "orders" }

type lineItemEntity struct {
	OrderID     string          `gorm:"column:order_id;primaryKey"`
	Position    int             `gorm:"column:position;primaryKey"`
	ProductID   string          `gorm:"column:product_id"`
	Name        string          `gorm:"column:name"`
	Description string          `gorm:"column:description"`
	ImageURL    string          `gorm:"column:image_url"`
	Quantity    int             `gorm:"column:quantity"`
	Price       decimal.Decimal `gorm:"column:price"`
}

func (lineItemEntity) TableName() string { return "order_line_items" }

type customerEntity struct {
	ID               string     `gorm:"column:id;primaryKey"`
	Locale           string     `gorm:"column:locale"`
	Email            string     `gorm:"column:email"`
	FirstName        string     `gorm:"column:first_name"`
	LastName         string     `gorm:"column:last_name"`
	Phone            string     `gorm:"column:phone"`
	Birthday         *time.Time `gorm:"column:birthday"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
	AcceptsMarketing bool       `gorm:"column:accepts_marketing"`
}

func (customerEntity) TableName() string { return "customers" }

func fromDomainOrder(o platform.Order) (orderEntity, []lineItemEntity) {
	entity := orderEntity{
		ID:              o.ID,
		Locale:          o.Locale,
		CustomerID:      o.CustomerID,
		CustomerEmail:   o.CustomerEmail,
		CustomerName:    o.CustomerName,
		CurrencyCode:    o.CurrencyCode,
		Total:           o.Total,
		Status:          o.Status,
		CouponCode:      o.CouponCode,
		CreatedAt:       o.CreatedAt,
		BillingAddress:  jsonColumn[platform.Address]{Data: o.BillingAddress},
		ShippingAddress: jsonColumn[platform.Address]{Data: o.ShippingAddress},
		UserAgent:       o.Extension.UserAgent,
		IPAddress:       o.Extension.IPAddress,
		LoyaltyExported: o.Extension.LoyaltyExported,
	}
	items := make([]lineItemEntity, 0, len(o.LineItems))
	for i, li := range o.LineItems {
		items = append(items, lineItemEntity{
			OrderID:     o.ID,
			Position:    i,
			ProductID:   li.ProductID,
			Name:        li.Name,
			Description: li.Description,
			ImageURL:    li.ImageURL,
			Quantity:    li.Quantity,
			Price:       li.Price,
		})
	}
	return entity, items
}

func toDomainOrder(e orderEntity, items []lineItemEntity) platform.Order {
	o := platform.Order{
		ID:              e.ID,
		Locale:          e.Locale,
		CustomerID:      e.CustomerID,
		CustomerEmail:   e.CustomerEmail,
		CustomerName:    e.CustomerName,
		CurrencyCode:    e.CurrencyCode,
		Total:           e.Total,
		Status:          e.Status,
		CouponCode:      e.CouponCode,
		CreatedAt:       e.CreatedAt,
		BillingAddress:  e.BillingAddress.Data,
		ShippingAddress: e.ShippingAddress.Data,
		Extension: platform.OrderExtension{
			UserAgent:       e.UserAgent,
			IPAddress:       e.IPAddress,
			LoyaltyExported: e.LoyaltyExported,
		},
	}
	for _, li := range items {
		o.LineItems = append(o.LineItems, platform.LineItem{
			ProductID:   li.ProductID,
			Name:        li.Name,
			Description: li.Description,
			ImageURL:    li.ImageURL,
			Quantity:    li.Quantity,
			Price:       li.Price,
		})
	}
	return o
}

func fromDomainCustomer(c platform.Customer) customerEntity {
	return customerEntity{
		ID:               c.ID,
		Locale:           c.Locale,
		Email:            c.Email,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Phone:            c.Phone,
		Birthday:         c.Birthday,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		AcceptsMarketing: c.AcceptsMarketing,
	}
}

func toDomainCustomer(e customerEntity) platform.Customer {
	return platform.Customer{
		ID:               e.ID,
		Locale:           e.Locale,
		Email:            e.Email,
		FirstName:        e.FirstName,
		LastName:         e.LastName,
		Phone:            e.Phone,
		Birthday:         e.Birthday,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		AcceptsMarketing: e.AcceptsMarketing,
	}
}
