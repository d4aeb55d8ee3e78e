package models

import "gorm.io/gorm"

type Grade struct {
	gorm.Model
	Level int `gorm:"uniqueIndex;not null"` // Уровень параллели, например 1..6
}

type Class struct {
	gorm.Model
	Name         string   `gorm:"uniqueIndex;not null"` // Название класса, например "5A"
	Capacity     int      `gorm:"not null"`             // Максимальное количество учеников
	GradeID      uint     `gorm:"index;not null"`
	Grade        Grade    `gorm:"foreignKey:GradeID"`
	SupervisorID *string  `gorm:"index"` // Куратор класса (преподаватель), может отсутствовать
	Supervisor   *Teacher `gorm:"foreignKey:SupervisorID"`

	Students []Student `gorm:"foreignKey:ClassID"`
	Lessons  []Lesson  `gorm:"foreignKey:ClassID"`
}

type Subject struct {
	gorm.Model
	Name string `gorm:"uniqueIndex;not null"`

	Teachers []Teacher `gorm:"many2many:subject_teachers;"` // Преподаватели, допущенные к предмету
	Lessons  []Lesson  `gorm:"foreignKey:SubjectID"`
}
