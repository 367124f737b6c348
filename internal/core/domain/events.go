package domain

import "time"

// IdentityRegisteredEvent is emitted when an identity is created, by OTP issuance or registration.
type IdentityRegisteredEvent struct {
	EventID      string
	IdentityID   string
	Role         Role
	Email        string
	Phone        string
	Method       string
	RegisteredAt time.Time
}

// LoginSucceededEvent is emitted after a session token is issued.
type LoginSucceededEvent struct {
	EventID    string
	IdentityID string
	Role       Role
	Method     string
	At         time.Time
}

// PasswordChangedEvent is emitted after a stored credential is replaced.
type PasswordChangedEvent struct {
	EventID    string
	IdentityID string
	ChangedBy  string
	ChangedAt  time.Time
}

// RoleChangedEvent is emitted when an admin changes the role of an identity.
type RoleChangedEvent struct {
	EventID    string
	IdentityID string
	From       Role
	To         Role
	ChangedBy  string
	ChangedAt  time.Time
}

// IdentityDeletedEvent is emitted when an identity is removed by a teacher or admin.
type IdentityDeletedEvent struct {
	EventID    string
	IdentityID string
	DeletedBy  string
	DeletedAt  time.Time
}

// OrderPlacedEvent is emitted when a customer places an order.
type OrderPlacedEvent struct {
	EventID     string
	OrderID     string
	IdentityID  string
	TotalAmount float64
	ItemCount   int
	PlacedAt    time.Time
}

// OrderStatusChangedEvent is emitted when an admin moves an order to another status.
type OrderStatusChangedEvent struct {
	EventID   string
	OrderID   string
	From      OrderStatus
	To        OrderStatus
	ChangedBy string
	ChangedAt time.Time
}
