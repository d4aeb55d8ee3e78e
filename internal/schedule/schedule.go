package schedule

import (
	"errors"
	"strconv"
	"time"

	"schoolhub/internal/models"

	"gorm.io/gorm"
)

// Границы учебного дня: занятия идут с 8:00 и должны закончиться не позже 17:00.
const (
	openHour  = 8
	closeHour = 17
)

// Коды ошибок планирования занятий.
const (
	CodeMalformedInput       = "MALFORMED_INPUT"
	CodeOutsideHours         = "OUTSIDE_OPERATING_HOURS"
	CodeCrossesDay           = "CROSSES_DAY_BOUNDARY"
	CodeNonPositiveDuration  = "NON_POSITIVE_DURATION"
	CodeSubjectNotFound      = "SUBJECT_NOT_FOUND"
	CodeLessonNotFound       = "LESSON_NOT_FOUND"
	CodeTeacherNotAuthorized = "TEACHER_NOT_AUTHORIZED"
	CodeTeacherConflict      = "TEACHER_CONFLICT"
	CodeClassConflict        = "CLASS_CONFLICT"
	CodeDBError              = "DB_ERROR"
)

// Error — структурированная ошибка планировщика. Любой отказ проверки или
// записи превращается в значение этого типа, наружу ничего не паникует.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// DayFromTime выводит учебный день недели из времени начала занятия.
// Суббота и воскресенье схлопываются в понедельник, функция тотальна.
func DayFromTime(t time.Time) models.Day {
	switch t.Weekday() {
	case time.Tuesday:
		return models.Tuesday
	case time.Wednesday:
		return models.Wednesday
	case time.Thursday:
		return models.Thursday
	case time.Friday:
		return models.Friday
	default:
		return models.Monday
	}
}

// ValidateWindow проверяет временное окно занятия. Проверки идут в
// фиксированном порядке, возвращается первая нарушенная:
// начало в рабочих часах, конец не позже 17:00, один календарный день,
// положительная длительность.
func ValidateWindow(start, end time.Time) *Error {
	if start.Hour() < openHour || start.Hour() >= closeHour {
		return &Error{CodeOutsideHours, "Начало занятия должно быть между 8:00 и 17:00"}
	}
	if end.Hour() > closeHour || (end.Hour() == closeHour && end.Minute() > 0) {
		return &Error{CodeOutsideHours, "Занятие не может заканчиваться позже 17:00"}
	}
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		return &Error{CodeCrossesDay, "Начало и конец занятия должны быть в один день"}
	}
	if !end.After(start) {
		return &Error{CodeNonPositiveDuration, "Окончание занятия должно быть позже начала"}
	}
	return nil
}

// Overlaps проверяет пересечение полуоткрытых интервалов [start, end) занятия-
// кандидата и существующего занятия. Пересечение — объединение трех случаев:
// существующий интервал содержит начало кандидата, существующий содержит
// конец кандидата, кандидат целиком накрывает существующий. Касание границ
// (конец одного равен началу другого) пересечением не считается.
func Overlaps(candStart, candEnd, exStart, exEnd time.Time) bool {
	if !exStart.After(candStart) && exEnd.After(candStart) {
		return true
	}
	if exStart.Before(candEnd) && !exEnd.Before(candEnd) {
		return true
	}
	if !exStart.Before(candStart) && !exEnd.After(candEnd) {
		return true
	}
	return false
}

// LessonInput — полезная нагрузка формы занятия. Времена приходят строками
// ISO-8601, идентификаторы — строками из селектов формы. Поле Day из формы
// носит справочный характер: фактический день выводится из времени начала.
type LessonInput struct {
	ID        string
	Name      string
	Day       string
	StartTime string
	EndTime   string
	SubjectID string
	ClassID   string
	TeacherID string
}

type parsedLesson struct {
	lessonID  uint
	name      string
	start     time.Time
	end       time.Time
	subjectID uint
	classID   uint
	teacherID string
}

// Planner — оркестратор создания и обновления занятий. Все проверки читают
// базу, запись ровно одна и выполняется последней; хэндл базы передается при
// создании, а не берется из глобального состояния.
type Planner struct {
	db *gorm.DB
}

func NewPlanner(db *gorm.DB) *Planner {
	return &Planner{db: db}
}

// CreateLesson проводит полную цепочку проверок и создает занятие.
// Возвращает ID созданного занятия либо *Error.
func (p *Planner) CreateLesson(in LessonInput) (uint, error) {
	return p.run(in, false)
}

// UpdateLesson проводит ту же цепочку проверок и полностью заменяет поля
// занятия. Проверки конфликтов исключают само обновляемое занятие.
func (p *Planner) UpdateLesson(in LessonInput) (uint, error) {
	return p.run(in, true)
}

func (p *Planner) run(in LessonInput, update bool) (uint, error) {
	pl, perr := parseInput(in, update)
	if perr != nil {
		return 0, perr
	}

	if update {
		var existing models.Lesson
		if err := p.db.First(&existing, pl.lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, &Error{CodeLessonNotFound, "Занятие не найдено"}
			}
			return 0, dbError(err)
		}
	}

	if verr := ValidateWindow(pl.start, pl.end); verr != nil {
		return 0, verr
	}

	day := DayFromTime(pl.start)

	var subject models.Subject
	if err := p.db.Select("id").First(&subject, pl.subjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &Error{CodeSubjectNotFound, "Выбранный предмет не найден"}
		}
		return 0, dbError(err)
	}

	authorized, aerr := p.isTeacherAuthorized(pl.teacherID, pl.subjectID)
	if aerr != nil {
		return 0, aerr
	}
	if !authorized {
		return 0, &Error{CodeTeacherNotAuthorized, "Выбранный преподаватель не ведет этот предмет"}
	}

	conflict, cerr := p.findConflict("teacher_id", pl.teacherID, day, pl.start, pl.end, pl.lessonID)
	if cerr != nil {
		return 0, cerr
	}
	if conflict != nil {
		return 0, &Error{CodeTeacherConflict, "У преподавателя уже есть занятие в это время"}
	}

	conflict, cerr = p.findConflict("class_id", pl.classID, day, pl.start, pl.end, pl.lessonID)
	if cerr != nil {
		return 0, cerr
	}
	if conflict != nil {
		return 0, &Error{CodeClassConflict, "У класса уже есть занятие в это время"}
	}

	if update {
		err := p.db.Model(&models.Lesson{}).Where("id = ?", pl.lessonID).Updates(map[string]interface{}{
			"name":       pl.name,
			"day":        day,
			"start_time": pl.start,
			"end_time":   pl.end,
			"subject_id": pl.subjectID,
			"class_id":   pl.classID,
			"teacher_id": pl.teacherID,
		}).Error
		if err != nil {
			return 0, dbError(err)
		}
		return pl.lessonID, nil
	}

	lesson := models.Lesson{
		Name:      pl.name,
		Day:       day,
		StartTime: pl.start,
		EndTime:   pl.end,
		SubjectID: pl.subjectID,
		ClassID:   pl.classID,
		TeacherID: pl.teacherID,
	}
	if err := p.db.Create(&lesson).Error; err != nil {
		return 0, dbError(err)
	}
	return lesson.ID, nil
}

// isTeacherAuthorized проверяет, что пара предмет-преподаватель присутствует
// в таблице допусков subject_teachers. Только чтение, без побочных эффектов.
func (p *Planner) isTeacherAuthorized(teacherID string, subjectID uint) (bool, *Error) {
	var count int64
	err := p.db.Table("subject_teachers").
		Where("subject_id = ? AND teacher_id = ?", subjectID, teacherID).
		Count(&count).Error
	if err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

// findConflict ищет первое занятие того же измерения (преподаватель или
// класс) в тот же день, чей интервал пересекается с кандидатом. excludeID
// исключает само занятие при обновлении; достаточно факта пересечения,
// перечисление всех конфликтов не требуется.
func (p *Planner) findConflict(column string, value interface{}, day models.Day, start, end time.Time, excludeID uint) (*models.Lesson, *Error) {
	var lessons []models.Lesson
	q := p.db.Where(column+" = ? AND day = ?", value, day)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Find(&lessons).Error; err != nil {
		return nil, dbError(err)
	}
	for i := range lessons {
		if Overlaps(start, end, lessons[i].StartTime, lessons[i].EndTime) {
			return &lessons[i], nil
		}
	}
	return nil, nil
}

func parseInput(in LessonInput, update bool) (*parsedLesson, *Error) {
	pl := &parsedLesson{name: in.Name, teacherID: in.TeacherID}

	if update {
		id, err := strconv.Atoi(in.ID)
		if err != nil || id <= 0 {
			return nil, &Error{CodeMalformedInput, "Неверный идентификатор занятия"}
		}
		pl.lessonID = uint(id)
	}

	start, err := parseTime(in.StartTime)
	if err != nil {
		return nil, &Error{CodeMalformedInput, "Неверный формат времени начала"}
	}
	end, err := parseTime(in.EndTime)
	if err != nil {
		return nil, &Error{CodeMalformedInput, "Неверный формат времени окончания"}
	}
	pl.start, pl.end = start, end

	subjectID, err := strconv.Atoi(in.SubjectID)
	if err != nil || subjectID <= 0 {
		return nil, &Error{CodeMalformedInput, "Неверный идентификатор предмета"}
	}
	classID, err := strconv.Atoi(in.ClassID)
	if err != nil || classID <= 0 {
		return nil, &Error{CodeMalformedInput, "Неверный идентификатор класса"}
	}
	pl.subjectID, pl.classID = uint(subjectID), uint(classID)

	if in.TeacherID == "" {
		return nil, &Error{CodeMalformedInput, "Не указан преподаватель"}
	}
	return pl, nil
}

// parseTime принимает ISO-8601 с зоной и без (значение из input
// datetime-local приходит без зоны и трактуется как локальное время).
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", value, time.Local)
}

func dbError(err error) *Error {
	return &Error{CodeDBError, "Ошибка при обращении к базе данных: " + err.Error()}
}
