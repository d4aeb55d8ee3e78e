package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"schoolhub/internal/logger"
	"schoolhub/internal/models"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testAuth подменяет JWT-мидлварь: userID и роль берутся из заголовков.
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Test-UserID"))
		c.Set("role", c.GetHeader("X-Test-Role"))
		c.Next()
	}
}

func setupLessonRouter(t *testing.T) *gin.Engine {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST не задан, пропускаем интеграционные тесты")
	}

	logger.Log = zap.NewNop()
	storage.ConnectTestingDatabase()

	require.NoError(t, storage.DB.AutoMigrate(
		&models.Teacher{}, &models.Parent{}, &models.Grade{}, &models.Class{},
		&models.Subject{}, &models.Lesson{}, &models.Exam{}, &models.Assignment{},
		&models.Result{}, &models.Attendance{}, &models.Student{},
	))

	err := storage.DB.Exec(`TRUNCATE TABLE attendances, results, exams, assignments, lessons,
		subject_teachers, subjects, students, classes, grades, teachers, parents
		RESTART IDENTITY CASCADE`).Error
	require.NoError(t, err)

	grade := models.Grade{Level: 5}
	require.NoError(t, storage.DB.Create(&grade).Error)

	teacher := models.Teacher{
		ID: "teacher_1", Username: "ivanov", Name: "Иван", Surname: "Иванов",
		Address: "ул. Ленина 1", BloodType: "A+", Sex: models.SexMale,
		Birthday: time.Date(1985, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, storage.DB.Create(&teacher).Error)

	subject := models.Subject{Name: "Математика"}
	require.NoError(t, storage.DB.Create(&subject).Error)
	require.NoError(t, storage.DB.Model(&subject).Association("Teachers").Append(&teacher))

	class := models.Class{Name: "5А", Capacity: 30, GradeID: grade.ID}
	require.NoError(t, storage.DB.Create(&class).Error)

	InitLessonPlanner(storage.DB)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(testAuth())
	r.POST("/api/lessons", CreateLessonHandler)
	r.PUT("/api/lessons/:id", UpdateLessonHandler)
	r.DELETE("/api/lessons/:id", DeleteLessonHandler)
	r.GET("/api/lessons", ListLessonsHandler)
	return r
}

func doLessonRequest(t *testing.T, r *gin.Engine, method, path, role, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", role)
	req.Header.Set("X-Test-UserID", userID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLessonHandlers(t *testing.T) {
	r := setupLessonRouter(t)

	lesson := LessonRequest{
		Name:      "Алгебра",
		Day:       "MONDAY",
		StartTime: "2026-01-05T09:00:00Z",
		EndTime:   "2026-01-05T10:00:00Z",
		SubjectID: "1",
		ClassID:   "1",
		TeacherID: "teacher_1",
	}

	w := doLessonRequest(t, r, http.MethodPost, "/api/lessons", "admin", "admin_1", lesson)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	// Преподаватель не может создавать занятия за другого.
	w = doLessonRequest(t, r, http.MethodPost, "/api/lessons", "teacher", "teacher_2", lesson)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Пересечение у того же преподавателя.
	clash := lesson
	clash.Name = "Геометрия"
	clash.StartTime = "2026-01-05T09:30:00Z"
	clash.EndTime = "2026-01-05T10:30:00Z"
	w = doLessonRequest(t, r, http.MethodPost, "/api/lessons", "admin", "admin_1", clash)
	require.Equal(t, http.StatusConflict, w.Code)
	var errResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "TEACHER_CONFLICT", errResp.Code)

	// Касание границ пересечением не считается.
	touch := lesson
	touch.Name = "Геометрия"
	touch.StartTime = "2026-01-05T10:00:00Z"
	touch.EndTime = "2026-01-05T11:00:00Z"
	w = doLessonRequest(t, r, http.MethodPost, "/api/lessons", "admin", "admin_1", touch)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Список по классу.
	w = doLessonRequest(t, r, http.MethodGet, "/api/lessons?classId=1", "admin", "admin_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list LessonListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(2), list.Total)

	// Занятие с экзаменом удалить нельзя.
	exam := models.Exam{
		Title:     "Контрольная",
		StartTime: time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC),
		LessonID:  created.ID,
	}
	require.NoError(t, storage.DB.Create(&exam).Error)

	w = doLessonRequest(t, r, http.MethodDelete, fmt.Sprintf("/api/lessons/%d", created.ID), "admin", "admin_1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "LESSON_HAS_DEPENDENTS", errResp.Code)

	require.NoError(t, storage.DB.Delete(&exam).Error)
	w = doLessonRequest(t, r, http.MethodDelete, fmt.Sprintf("/api/lessons/%d", created.ID), "admin", "admin_1", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
