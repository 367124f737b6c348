package domain

import (
	"math"
	"time"
)

// OrderStatus enumerates the fulfilment states of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a customer's purchase with prices captured at order time.
type Order struct {
	ID              string
	IdentityID      string
	Items           []OrderItem
	TotalAmount     float64
	ShippingAddress string
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID    string
	Name         string
	Quantity     int
	PriceAtOrder float64
}

// Subtotal returns quantity times the captured price.
func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.PriceAtOrder
}

// OrderTotal sums the subtotals and rounds to cents.
func OrderTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return math.Round(total*100) / 100
}

// DashboardCounts summarizes storefront collections for the admin dashboard.
type DashboardCounts struct {
	Users    int64
	Products int64
	Orders   int64
}
