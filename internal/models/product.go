package models

import "time"

// Product represents a catalog item. Photos are kept as a JSON encoded
// array of image references, the way they are stored in the table.
type Product struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"type:varchar(255);not null"`
	Brand       string    `gorm:"type:varchar(255);not null"`
	Price       float64   `gorm:"not null;index"`
	Description *string   `gorm:"type:text"`
	Preview     string    `gorm:"type:text;not null"`
	Photos      string    `gorm:"type:text"`
	IsAccessory bool      `gorm:"column:is_accessory;not null;default:false;index"`
	Category    *string   `gorm:"type:varchar(100);index"`
	Stock       int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}
