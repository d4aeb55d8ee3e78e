package schedule

import (
	"fmt"
	"os"
	"testing"
	"time"

	"schoolhub/internal/models"
	"schoolhub/internal/storage"

	"github.com/stretchr/testify/assert"
)

// 2026-01-05 — понедельник, удобная опорная дата для тестов.
func monday(hour, min int) time.Time {
	return time.Date(2026, 1, 5, hour, min, 0, 0, time.UTC)
}

func TestValidateWindow_Valid(t *testing.T) {
	cases := [][2]time.Time{
		{monday(8, 0), monday(9, 0)},
		{monday(9, 0), monday(10, 0)},
		{monday(16, 30), monday(17, 0)}, // окончание ровно в 17:00 допустимо
		{monday(8, 0), monday(17, 0)},
	}
	for _, c := range cases {
		err := ValidateWindow(c[0], c[1])
		assert.Nil(t, err, "Окно %s-%s должно быть валидным", c[0], c[1])
	}
}

func TestValidateWindow_Violations(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		code  string
	}{
		{"начало до 8:00", monday(7, 59), monday(9, 0), CodeOutsideHours},
		{"начало в 17:00", monday(17, 0), monday(17, 30), CodeOutsideHours},
		{"окончание после 17:00", monday(16, 30), monday(17, 30), CodeOutsideHours},
		{"окончание в 18:00", monday(10, 0), monday(18, 0), CodeOutsideHours},
		{"разные дни", monday(9, 0), monday(9, 0).AddDate(0, 0, 1), CodeCrossesDay},
		{"нулевая длительность", monday(9, 0), monday(9, 0), CodeNonPositiveDuration},
		{"отрицательная длительность", monday(10, 0), monday(9, 0), CodeNonPositiveDuration},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateWindow(c.start, c.end)
			if assert.NotNil(t, err) {
				assert.Equal(t, c.code, err.Code)
			}
		})
	}
}

// Порядок проверок фиксированный: при нескольких нарушениях наружу выходит
// первое. Занятие понедельник 23:00 — вторник 00:30 нарушает и рабочие часы,
// и границу дня, но сообщается о рабочих часах.
func TestValidateWindow_Precedence(t *testing.T) {
	err := ValidateWindow(monday(23, 0), monday(0, 30).AddDate(0, 0, 1))
	if assert.NotNil(t, err) {
		assert.Equal(t, CodeOutsideHours, err.Code)
	}

	// Валидные часы, но разные дни и конец раньше начала: сначала граница дня.
	err = ValidateWindow(monday(10, 0), monday(9, 0).AddDate(0, 0, 1))
	if assert.NotNil(t, err) {
		assert.Equal(t, CodeCrossesDay, err.Code)
	}
}

func TestDayFromTime_Total(t *testing.T) {
	// 2026-01-05..2026-01-11 покрывают все семь дней недели.
	expected := []models.Day{
		models.Monday,    // пн
		models.Tuesday,   // вт
		models.Wednesday, // ср
		models.Thursday,  // чт
		models.Friday,    // пт
		models.Monday,    // сб схлопывается в понедельник
		models.Monday,    // вс схлопывается в понедельник
	}
	for i, want := range expected {
		got := DayFromTime(monday(9, 0).AddDate(0, 0, i))
		assert.Equal(t, want, got, "день %d", i)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name string
		a    [2]time.Time // кандидат
		b    [2]time.Time // существующее занятие
		want bool
	}{
		{"идентичные", [2]time.Time{monday(9, 0), monday(10, 0)}, [2]time.Time{monday(9, 0), monday(10, 0)}, true},
		{"вложенное в кандидата", [2]time.Time{monday(9, 0), monday(12, 0)}, [2]time.Time{monday(10, 0), monday(11, 0)}, true},
		{"кандидат вложен", [2]time.Time{monday(10, 0), monday(11, 0)}, [2]time.Time{monday(9, 0), monday(12, 0)}, true},
		{"пересечение слева", [2]time.Time{monday(9, 0), monday(10, 0)}, [2]time.Time{monday(8, 30), monday(9, 30)}, true},
		{"пересечение справа", [2]time.Time{monday(9, 0), monday(10, 0)}, [2]time.Time{monday(9, 30), monday(10, 30)}, true},
		{"касание: существующее заканчивается на старте", [2]time.Time{monday(9, 0), monday(10, 0)}, [2]time.Time{monday(8, 0), monday(9, 0)}, false},
		{"касание: существующее начинается на финише", [2]time.Time{monday(9, 0), monday(10, 0)}, [2]time.Time{monday(10, 0), monday(11, 0)}, false},
		{"без пересечения", [2]time.Time{monday(9, 0), monday(10, 0)}, [2]time.Time{monday(12, 0), monday(13, 0)}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Overlaps(c.a[0], c.a[1], c.b[0], c.b[1])
			assert.Equal(t, c.want, got)

			// Симметрия: пересечение не зависит от того, кто кандидат.
			rev := Overlaps(c.b[0], c.b[1], c.a[0], c.a[1])
			assert.Equal(t, c.want, rev, "пересечение должно быть симметричным")
		})
	}
}

func TestParseInput_Malformed(t *testing.T) {
	base := LessonInput{
		Name:      "Алгебра",
		StartTime: "2026-01-05T09:00:00Z",
		EndTime:   "2026-01-05T10:00:00Z",
		SubjectID: "1",
		ClassID:   "1",
		TeacherID: "teacher_1",
	}

	bad := base
	bad.StartTime = "не время"
	_, err := parseInput(bad, false)
	if assert.NotNil(t, err) {
		assert.Equal(t, CodeMalformedInput, err.Code)
	}

	bad = base
	bad.SubjectID = "abc"
	_, err = parseInput(bad, false)
	if assert.NotNil(t, err) {
		assert.Equal(t, CodeMalformedInput, err.Code)
	}

	bad = base
	bad.TeacherID = ""
	_, err = parseInput(bad, false)
	if assert.NotNil(t, err) {
		assert.Equal(t, CodeMalformedInput, err.Code)
	}

	bad = base
	_, err = parseInput(bad, true) // обновление без ID
	if assert.NotNil(t, err) {
		assert.Equal(t, CodeMalformedInput, err.Code)
	}

	ok, err := parseInput(base, false)
	assert.Nil(t, err)
	assert.Equal(t, uint(1), ok.subjectID)
}

// Сквозные сценарии планировщика. Требуют тестовую базу Postgres,
// без TEST_DB_HOST пропускаются.
func setupPlannerTest(t *testing.T) *Planner {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST не задан, пропускаем тесты с базой")
	}

	storage.ConnectTestingDatabase()
	storage.DB.Exec("TRUNCATE TABLE lessons, subject_teachers, subjects, classes, grades, teachers RESTART IDENTITY CASCADE;")

	if err := storage.DB.AutoMigrate(
		&models.Grade{}, &models.Teacher{}, &models.Class{},
		&models.Subject{}, &models.Lesson{},
	); err != nil {
		t.Fatal("Ошибка при миграции... ", err.Error())
	}

	grade := models.Grade{Level: 5}
	assert.NoError(t, storage.DB.Create(&grade).Error)

	teacher := models.Teacher{
		ID: "teacher_1", Username: "ivanov", Name: "Иван", Surname: "Иванов",
		Address: "ул. Ленина, 1", BloodType: "A+", Sex: models.SexMale,
		Birthday: time.Date(1985, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, storage.DB.Create(&teacher).Error)

	class := models.Class{Name: "5A", Capacity: 30, GradeID: grade.ID}
	assert.NoError(t, storage.DB.Create(&class).Error)

	second := models.Teacher{
		ID: "teacher_2", Username: "petrov", Name: "Петр", Surname: "Петров",
		Address: "ул. Ленина, 2", BloodType: "B+", Sex: models.SexMale,
		Birthday: time.Date(1990, 7, 21, 0, 0, 0, 0, time.UTC),
	}
	assert.NoError(t, storage.DB.Create(&second).Error)

	subject := models.Subject{Name: "Математика"}
	assert.NoError(t, storage.DB.Create(&subject).Error)
	assert.NoError(t, storage.DB.Model(&subject).Association("Teachers").Append(&teacher, &second))

	// Второй предмет без допуска преподавателя.
	other := models.Subject{Name: "Физика"}
	assert.NoError(t, storage.DB.Create(&other).Error)

	return NewPlanner(storage.DB)
}

func TestPlannerFlow(t *testing.T) {
	planner := setupPlannerTest(t)

	input := func(start, end string) LessonInput {
		return LessonInput{
			Name:      "Алгебра",
			StartTime: start,
			EndTime:   end,
			SubjectID: "1",
			ClassID:   "1",
			TeacherID: "teacher_1",
		}
	}

	// Сценарий 1: корректное занятие создается.
	id, err := planner.CreateLesson(input("2026-01-05T09:00:00Z", "2026-01-05T10:00:00Z"))
	assert.NoError(t, err, "Корректное занятие должно создаваться")
	assert.NotZero(t, id)

	// Сценарий 2: пересечение у преподавателя.
	_, err = planner.CreateLesson(input("2026-01-05T09:30:00Z", "2026-01-05T10:30:00Z"))
	if assert.Error(t, err) {
		assert.Equal(t, CodeTeacherConflict, err.(*Error).Code)
	}

	// Пересечение у класса: другой преподаватель, тот же класс.
	classClash := input("2026-01-05T09:30:00Z", "2026-01-05T10:30:00Z")
	classClash.TeacherID = "teacher_2"
	_, err = planner.CreateLesson(classClash)
	if assert.Error(t, err) {
		assert.Equal(t, CodeClassConflict, err.(*Error).Code)
	}

	// Касание границ интервалов конфликтом не является.
	id2, err := planner.CreateLesson(input("2026-01-05T10:00:00Z", "2026-01-05T11:00:00Z"))
	assert.NoError(t, err, "Касание границ интервалов не должно давать конфликт")
	assert.NotZero(t, id2)

	// Сценарий 3: преподаватель без допуска к предмету.
	bad := input("2026-01-05T12:00:00Z", "2026-01-05T13:00:00Z")
	bad.SubjectID = "2"
	_, err = planner.CreateLesson(bad)
	if assert.Error(t, err) {
		assert.Equal(t, CodeTeacherNotAuthorized, err.(*Error).Code)
	}

	// Сценарий 4: выход за рабочие часы.
	_, err = planner.CreateLesson(input("2026-01-05T16:30:00Z", "2026-01-05T17:30:00Z"))
	if assert.Error(t, err) {
		assert.Equal(t, CodeOutsideHours, err.(*Error).Code)
	}

	// Сценарий 5: переход через границу дня (и рабочих часов).
	_, err = planner.CreateLesson(input("2026-01-05T23:00:00Z", "2026-01-06T00:30:00Z"))
	if assert.Error(t, err) {
		assert.Equal(t, CodeOutsideHours, err.(*Error).Code)
	}

	// Несуществующий предмет.
	bad = input("2026-01-05T12:00:00Z", "2026-01-05T13:00:00Z")
	bad.SubjectID = "999"
	_, err = planner.CreateLesson(bad)
	if assert.Error(t, err) {
		assert.Equal(t, CodeSubjectNotFound, err.(*Error).Code)
	}

	// Сценарий 6: обновление занятия без изменений не конфликтует с собой.
	upd := input("2026-01-05T09:00:00Z", "2026-01-05T10:00:00Z")
	upd.ID = fmt.Sprintf("%d", id)
	sameID, err := planner.UpdateLesson(upd)
	assert.NoError(t, err, "Обновление занятия без изменений не должно конфликтовать с самим собой")
	assert.Equal(t, id, sameID)

	// Обновление несуществующего занятия.
	upd.ID = "999"
	_, err = planner.UpdateLesson(upd)
	if assert.Error(t, err) {
		assert.Equal(t, CodeLessonNotFound, err.(*Error).Code)
	}
}
