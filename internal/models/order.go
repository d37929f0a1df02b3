package models

import "time"

// OrderStatusPending is the status every new order starts with.
const OrderStatusPending = "pending"

// Order represents a customer order. Products holds the JSON snapshot of
// the submitted lines exactly as they were received.
type Order struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      uint      `gorm:"not null;index"`
	User        User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Products    string    `gorm:"type:text"`
	TotalAmount float64   `gorm:"not null;default:0"`
	Status      string    `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt   time.Time `gorm:"index"`
}
