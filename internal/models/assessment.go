package models

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	gorm.Model
	Title     string    `gorm:"not null"`
	StartTime time.Time `gorm:"index;not null"`
	EndTime   time.Time `gorm:"not null"`
	LessonID  uint      `gorm:"index;not null"`
	Lesson    Lesson    `gorm:"foreignKey:LessonID"`
	// Флаг, что напоминание о скором экзамене уже разослано по WebSocket
	ReminderSent bool `gorm:"default:false"`

	Results []Result `gorm:"foreignKey:ExamID"`
}

type Assignment struct {
	gorm.Model
	Title     string    `gorm:"not null"`
	StartDate time.Time `gorm:"not null"`
	DueDate   time.Time `gorm:"index;not null"`
	LessonID  uint      `gorm:"index;not null"`
	Lesson    Lesson    `gorm:"foreignKey:LessonID"`

	Results []Result `gorm:"foreignKey:AssignmentID"`
}

// Result — оценка за экзамен или задание. Заполнено ровно одно из полей
// ExamID/AssignmentID.
type Result struct {
	gorm.Model
	Score        int         `gorm:"not null"` // Баллы от 0 до 100
	StudentID    string      `gorm:"index;not null"`
	Student      Student     `gorm:"foreignKey:StudentID"`
	ExamID       *uint       `gorm:"index"`
	Exam         *Exam       `gorm:"foreignKey:ExamID"`
	AssignmentID *uint       `gorm:"index"`
	Assignment   *Assignment `gorm:"foreignKey:AssignmentID"`
}

type Attendance struct {
	gorm.Model
	Date      time.Time `gorm:"index;not null"` // Дата занятия
	Present   bool      `gorm:"not null"`
	StudentID string    `gorm:"index;not null"`
	Student   Student   `gorm:"foreignKey:StudentID"`
	LessonID  uint      `gorm:"index;not null"`
	Lesson    Lesson    `gorm:"foreignKey:LessonID"`
}
