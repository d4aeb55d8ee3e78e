package handlers

import (
	"net/http"
	"time"

	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
)

// AttendanceRequest — полезная нагрузка формы посещаемости.
type AttendanceRequest struct {
	Date      string `json:"date" binding:"required"`
	Present   *bool  `json:"present" binding:"required"`
	StudentID string `json:"studentId" binding:"required"`
	LessonID  uint   `json:"lessonId" binding:"required"`
}

// CreateAttendanceHandler обрабатывает отметку посещаемости
// @Summary		Отметка посещаемости
// @Description	Отмечает присутствие или отсутствие ученика на занятии. Повторная отметка за ту же дату запрещена
// @Tags			attendances
// @Accept			json
// @Produce		json
// @Param			attendance	body		AttendanceRequest	true	"Данные посещаемости"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Посещаемость отмечена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, STUDENT_NOT_ENROLLED, ATTENDANCE_EXISTS)"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Занятие или ученик не найдены (LESSON_NOT_FOUND, STUDENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/attendances [post]
func CreateAttendanceHandler(c *gin.Context) {
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Дата должна быть в формате YYYY-MM-DD",
		})
		return
	}

	lesson, ok := lessonForAssessment(c, req.LessonID)
	if !ok {
		return
	}

	var student models.Student
	if err := storage.DB.First(&student, "id = ?", req.StudentID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "Ученик не найден",
		})
		return
	}
	if student.ClassID != lesson.ClassID {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "STUDENT_NOT_ENROLLED",
			Message: "Ученик не учится в классе этого занятия",
		})
		return
	}

	var count int64
	storage.DB.Model(&models.Attendance{}).
		Where("student_id = ? AND lesson_id = ? AND date = ?", req.StudentID, req.LessonID, date).
		Count(&count)
	if count > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "ATTENDANCE_EXISTS",
			Message: "Посещаемость ученика на этом занятии за эту дату уже отмечена",
		})
		return
	}

	attendance := models.Attendance{
		Date:      date,
		Present:   *req.Present,
		StudentID: req.StudentID,
		LessonID:  req.LessonID,
	}
	if err := storage.DB.Create(&attendance).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при отметке посещаемости",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Посещаемость успешно отмечена",
		ID:      attendance.ID,
	})
}

// UpdateAttendanceHandler обрабатывает изменение отметки посещаемости
// @Summary		Изменение отметки посещаемости
// @Tags			attendances
// @Accept			json
// @Produce		json
// @Param			id			path		string				true	"ID отметки"
// @Param			attendance	body		AttendanceRequest	true	"Данные посещаемости"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Отметка изменена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Отметка не найдена (ATTENDANCE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/attendances/{id} [put]
func UpdateAttendanceHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_ATTENDANCE_ID", "Неверный идентификатор отметки")
	if !ok {
		return
	}

	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Дата должна быть в формате YYYY-MM-DD",
		})
		return
	}

	var attendance models.Attendance
	if err := storage.DB.First(&attendance, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ATTENDANCE_NOT_FOUND",
			Message: "Отметка посещаемости не найдена",
		})
		return
	}

	if _, ok := lessonForAssessment(c, req.LessonID); !ok {
		return
	}

	updates := map[string]interface{}{
		"date":       date,
		"present":    *req.Present,
		"student_id": req.StudentID,
		"lesson_id":  req.LessonID,
	}
	if err := storage.DB.Model(&attendance).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при изменении отметки посещаемости",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Отметка посещаемости успешно изменена",
		ID:      attendance.ID,
	})
}

// DeleteAttendanceHandler обрабатывает удаление отметки посещаемости
// @Summary		Удаление отметки посещаемости
// @Tags			attendances
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID отметки"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Отметка удалена"
// @Failure		404	{object}	response.ErrorResponse	"Отметка не найдена (ATTENDANCE_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/attendances/{id} [delete]
func DeleteAttendanceHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_ATTENDANCE_ID", "Неверный идентификатор отметки")
	if !ok {
		return
	}

	var attendance models.Attendance
	if err := storage.DB.First(&attendance, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ATTENDANCE_NOT_FOUND",
			Message: "Отметка посещаемости не найдена",
		})
		return
	}

	if err := storage.DB.Delete(&attendance).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении отметки посещаемости",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Отметка посещаемости успешно удалена",
	})
}

// AttendanceListResponse — страница списка отметок посещаемости.
type AttendanceListResponse struct {
	Items []models.Attendance `json:"items"`
	Page  int                 `json:"page"`
	Total int64               `json:"total"`
}

// ListAttendancesHandler обрабатывает запрос списка отметок посещаемости
// @Summary		Список отметок посещаемости
// @Description	Возвращает страницу отметок с фильтрами по ученику, занятию и дате
// @Tags			attendances
// @Accept			json
// @Produce		json
// @Param			studentId	query		string	false	"Фильтр по ученику"
// @Param			lessonId	query		string	false	"Фильтр по занятию"
// @Param			date		query		string	false	"Фильтр по дате (YYYY-MM-DD)"
// @Param			page		query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	AttendanceListResponse	"Страница отметок"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/attendances [get]
func ListAttendancesHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Attendance{})
	if studentID := c.Query("studentId"); studentID != "" {
		q = q.Where("student_id = ?", studentID)
	}
	if lessonID := c.Query("lessonId"); lessonID != "" {
		q = q.Where("lesson_id = ?", lessonID)
	}
	if date := c.Query("date"); date != "" {
		if d, err := time.Parse("2006-01-02", date); err == nil {
			q = q.Where("date = ?", d)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки посещаемости",
			Details: err.Error(),
		})
		return
	}

	var attendances []models.Attendance
	if err := q.Preload("Student").Preload("Lesson").
		Order("date DESC").
		Limit(pageSize).Offset(offset).
		Find(&attendances).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки посещаемости",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, AttendanceListResponse{Items: attendances, Page: page, Total: total})
}
