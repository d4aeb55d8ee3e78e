package models

import (
	"time"

	"gorm.io/gorm"
)

// Sex — пол пользователя, значения совпадают с провайдером идентификации.
type Sex string

const (
	SexMale   Sex = "MALE"
	SexFemale Sex = "FEMALE"
)

// Admin — администратор системы. Учетная запись живет в провайдере
// идентификации, локально храним только зеркало.
type Admin struct {
	ID        string `gorm:"primaryKey"` // ID пользователя из провайдера идентификации
	Username  string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

type Teacher struct {
	ID        string  `gorm:"primaryKey"` // ID пользователя из провайдера идентификации
	Username  string  `gorm:"uniqueIndex;not null"`
	Name      string  `gorm:"not null"`
	Surname   string  `gorm:"not null"`
	Email     *string `gorm:"uniqueIndex"` // Уникален, если задан
	Phone     *string `gorm:"uniqueIndex"`
	Address   string  `gorm:"not null"`
	Img       *string
	BloodType string    `gorm:"not null"`
	Sex       Sex       `gorm:"type:varchar(10);not null"`
	Birthday  time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Subjects []Subject `gorm:"many2many:subject_teachers;"` // Предметы, которые преподаватель ведет
	Lessons  []Lesson  `gorm:"foreignKey:TeacherID"`
	Classes  []Class   `gorm:"foreignKey:SupervisorID"` // Классы под кураторством
}

type Student struct {
	ID        string  `gorm:"primaryKey"` // ID пользователя из провайдера идентификации
	Username  string  `gorm:"uniqueIndex;not null"`
	Name      string  `gorm:"not null"`
	Surname   string  `gorm:"not null"`
	Email     *string `gorm:"uniqueIndex"`
	Phone     *string `gorm:"uniqueIndex"`
	Address   string  `gorm:"not null"`
	Img       *string
	BloodType string    `gorm:"not null"`
	Sex       Sex       `gorm:"type:varchar(10);not null"`
	Birthday  time.Time `gorm:"not null"`
	GradeID   uint      `gorm:"index;not null"`
	Grade     Grade     `gorm:"foreignKey:GradeID"`
	ClassID   uint      `gorm:"index;not null"`
	Class     Class     `gorm:"foreignKey:ClassID"`
	ParentID  string    `gorm:"index;not null"`
	Parent    Parent    `gorm:"foreignKey:ParentID"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

type Parent struct {
	ID        string  `gorm:"primaryKey"` // ID пользователя из провайдера идентификации
	Username  string  `gorm:"uniqueIndex;not null"`
	Name      string  `gorm:"not null"`
	Surname   string  `gorm:"not null"`
	Email     *string `gorm:"uniqueIndex"`
	Phone     string  `gorm:"uniqueIndex;not null"` // Телефон у родителя обязателен
	Address   string  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Students []Student `gorm:"foreignKey:ParentID"`
}
