package models

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null"                 json:"name"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"                 json:"price"`
	Quantity    uint    `gorm:"not null;default:0"       json:"quantity"`
	Image       string  `json:"image"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	Role      string `gorm:"not null"        json:"role"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

// CartItem carries name/price snapshots taken when the product was put in
// the cart, so later admin edits do not change what the customer saw.
type CartItem struct {
	ID          uint    `gorm:"primaryKey"                                json:"id"`
	UserID      uint    `gorm:"not null;uniqueIndex:uniq_cart_line,priority:1" json:"user_id"`
	ProductID   uint    `gorm:"not null;uniqueIndex:uniq_cart_line,priority:2" json:"product_id"`
	ProductName string  `gorm:"not null"                                  json:"product_name"`
	Price       float64 `gorm:"not null"                                  json:"price"`
	Quantity    uint    `gorm:"default:1;check:quantity>0"                json:"quantity"`
	Image       string  `json:"image"`
}

// Order is immutable once created: nothing in the codebase updates or
// deletes a row after CreateOrder commits.
type Order struct {
	ID        uint    `gorm:"primaryKey"     json:"id"`
	UserID    uint    `gorm:"index;not null" json:"user_id"`
	CreatedAt int64   `gorm:"not null"       json:"created_at"`
	Total     float64 `gorm:"not null"       json:"total"`
}

type OrderItem struct {
	ID          uint    `gorm:"primaryKey"                 json:"id"`
	OrderID     uint    `gorm:"index;not null"             json:"order_id"`
	ProductID   uint    `gorm:"not null"                   json:"product_id"`
	ProductName string  `gorm:"not null"                   json:"product_name"`
	Quantity    uint    `gorm:"default:1;check:quantity>0" json:"quantity"`
	Price       float64 `gorm:"not null"                   json:"price"`
	LineTotal   float64 `gorm:"not null"                   json:"line_total"`
}
