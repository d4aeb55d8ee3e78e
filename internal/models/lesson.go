package models

import (
	"time"

	"gorm.io/gorm"
)

// Day — учебный день недели. Занятия проводятся только по будням.
type Day string

const (
	Monday    Day = "MONDAY"
	Tuesday   Day = "TUESDAY"
	Wednesday Day = "WEDNESDAY"
	Thursday  Day = "THURSDAY"
	Friday    Day = "FRIDAY"
)

type Lesson struct {
	gorm.Model
	Name      string    `gorm:"not null"`                              // Название занятия
	Day       Day       `gorm:"type:varchar(10);index;not null"`       // День недели, выводится из времени начала
	StartTime time.Time `gorm:"index;not null"`                        // Начало занятия
	EndTime   time.Time `gorm:"not null"`                              // Окончание занятия
	SubjectID uint      `gorm:"index;not null"`
	Subject   Subject   `gorm:"foreignKey:SubjectID"`
	ClassID   uint      `gorm:"index:idx_lessons_class_day;not null"`
	Class     Class     `gorm:"foreignKey:ClassID"`
	TeacherID string    `gorm:"index:idx_lessons_teacher_day;not null"`
	Teacher   Teacher   `gorm:"foreignKey:TeacherID"`

	Exams       []Exam       `gorm:"foreignKey:LessonID"`
	Assignments []Assignment `gorm:"foreignKey:LessonID"`
	Attendances []Attendance `gorm:"foreignKey:LessonID"`
}
