package models

import (
	"time"

	"gorm.io/gorm"
)

// Event — событие школьного календаря. ClassID == nil означает общешкольное
// событие, видимое всем.
type Event struct {
	gorm.Model
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	StartTime   time.Time `gorm:"index;not null"`
	EndTime     time.Time `gorm:"not null"`
	ClassID     *uint     `gorm:"index"`
	Class       *Class    `gorm:"foreignKey:ClassID"`
}

// Announcement — объявление. ClassID == nil означает общешкольное объявление.
type Announcement struct {
	gorm.Model
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Date        time.Time `gorm:"index;not null"`
	ClassID     *uint     `gorm:"index"`
	Class       *Class    `gorm:"foreignKey:ClassID"`
}
