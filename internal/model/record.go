package model

import "time"

// RawRecord is one transaction line as received from the source feed. Fields
// are pointers so a column that was absent in the source stays absent through
// the store round trip instead of collapsing to a zero value.
type RawRecord struct {
	UserID      *int64   `json:"user_id"`
	OrderID     *string  `json:"order_id"`
	ProductID   *string  `json:"product_id"`
	ProductName *string  `json:"product_name"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Quantity    *int64   `json:"quantity"`
	OrderDate   *string  `json:"order_date"`
	Status      *string  `json:"status"`
}

// CleanRecord is a RawRecord after normalization: optional fields resolved to
// defaults, status mapped into the closed enumeration, text normalized, order
// date parsed, and derived columns added.
type CleanRecord struct {
	UserID      int64     `json:"user_id"`
	OrderID     string    `json:"order_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Quantity    int64     `json:"quantity"`
	OrderDate   time.Time `json:"order_date"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	DayOfWeek   string    `json:"day_of_week"`
}

// AggregateRecord is one rollup row keyed by the group value. The optional
// columns only appear on the rollups that compute them: first/last order date
// on category and user, categories purchased and the missing unique-customers
// count on user.
type AggregateRecord struct {
	ID                  string  `json:"_id"`
	TotalOrders         int     `json:"total_orders"`
	TotalRevenue        float64 `json:"total_revenue"`
	AvgOrderValue       float64 `json:"avg_order_value"`
	UniqueCustomers     int     `json:"unique_customers,omitempty"`
	TotalQuantity       int64   `json:"total_quantity"`
	FirstOrderDate      string  `json:"first_order_date,omitempty"`
	LastOrderDate       string  `json:"last_order_date,omitempty"`
	CategoriesPurchased int     `json:"categories_purchased,omitempty"`
}
