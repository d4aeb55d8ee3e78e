package handlers

import (
	"net/http"

	"schoolhub/internal/auth"
	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
)

// ExamRequest — полезная нагрузка формы экзамена.
type ExamRequest struct {
	Title     string `json:"title" binding:"required"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
	LessonID  uint   `json:"lessonId" binding:"required"`
}

// lessonForAssessment загружает занятие и проверяет, что преподаватель
// управляет оценками только по своим занятиям. При ошибке сам пишет ответ.
func lessonForAssessment(c *gin.Context, lessonID uint) (*models.Lesson, bool) {
	var lesson models.Lesson
	if err := storage.DB.First(&lesson, lessonID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "LESSON_NOT_FOUND",
			Message: "Занятие не найдено",
		})
		return nil, false
	}
	if c.GetString("role") == auth.RoleTeacher && lesson.TeacherID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Преподаватель может управлять только своими занятиями",
		})
		return nil, false
	}
	return &lesson, true
}

// CreateExamHandler обрабатывает создание экзамена
// @Summary		Создание экзамена
// @Description	Создает экзамен по занятию. Преподаватель может создавать экзамены только по своим занятиям
// @Tags			exams
// @Accept			json
// @Produce		json
// @Param			exam	body		ExamRequest	true	"Данные экзамена"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Экзамен создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, INVALID_TIME_RANGE)"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Занятие не найдено (LESSON_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/exams [post]
func CreateExamHandler(c *gin.Context) {
	var req ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	start, err := parseDateTime(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат времени начала",
		})
		return
	}
	end, err := parseDateTime(req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат времени окончания",
		})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_TIME_RANGE",
			Message: "Окончание экзамена должно быть позже начала",
		})
		return
	}

	if _, ok := lessonForAssessment(c, req.LessonID); !ok {
		return
	}

	exam := models.Exam{
		Title:     req.Title,
		StartTime: start,
		EndTime:   end,
		LessonID:  req.LessonID,
	}
	if err := storage.DB.Create(&exam).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании экзамена",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Экзамен успешно создан",
		ID:      exam.ID,
	})
}

// UpdateExamHandler обрабатывает обновление экзамена
// @Summary		Обновление экзамена
// @Description	Обновляет название, время и занятие экзамена. При переносе времени напоминание рассылается заново
// @Tags			exams
// @Accept			json
// @Produce		json
// @Param			id		path		string		true	"ID экзамена"
// @Param			exam	body		ExamRequest	true	"Данные экзамена"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Экзамен обновлен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Экзамен или занятие не найдены (EXAM_NOT_FOUND, LESSON_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/exams/{id} [put]
func UpdateExamHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_EXAM_ID", "Неверный идентификатор экзамена")
	if !ok {
		return
	}

	var req ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	start, err := parseDateTime(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат времени начала",
		})
		return
	}
	end, err := parseDateTime(req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат времени окончания",
		})
		return
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_TIME_RANGE",
			Message: "Окончание экзамена должно быть позже начала",
		})
		return
	}

	var exam models.Exam
	if err := storage.DB.First(&exam, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "EXAM_NOT_FOUND",
			Message: "Экзамен не найден",
		})
		return
	}

	if _, ok := lessonForAssessment(c, req.LessonID); !ok {
		return
	}

	updates := map[string]interface{}{
		"title":      req.Title,
		"start_time": start,
		"end_time":   end,
		"lesson_id":  req.LessonID,
	}
	// Перенос на другое время заново включает напоминание.
	if !start.Equal(exam.StartTime) {
		updates["reminder_sent"] = false
	}
	if err := storage.DB.Model(&exam).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении экзамена",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Экзамен успешно обновлен",
		ID:      exam.ID,
	})
}

// DeleteExamHandler обрабатывает удаление экзамена
// @Summary		Удаление экзамена
// @Description	Удаляет экзамен вместе с результатами по нему
// @Tags			exams
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID экзамена"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Экзамен удален"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Экзамен не найден (EXAM_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/exams/{id} [delete]
func DeleteExamHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_EXAM_ID", "Неверный идентификатор экзамена")
	if !ok {
		return
	}

	var exam models.Exam
	if err := storage.DB.First(&exam, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "EXAM_NOT_FOUND",
			Message: "Экзамен не найден",
		})
		return
	}

	if _, ok := lessonForAssessment(c, exam.LessonID); !ok {
		return
	}

	if err := storage.DB.Where("exam_id = ?", id).Delete(&models.Result{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении результатов экзамена",
			Details: err.Error(),
		})
		return
	}
	if err := storage.DB.Delete(&exam).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении экзамена",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Экзамен успешно удален",
	})
}

// ExamListResponse — страница списка экзаменов.
type ExamListResponse struct {
	Items []models.Exam `json:"items"`
	Page  int           `json:"page"`
	Total int64         `json:"total"`
}

// ListExamsHandler обрабатывает запрос списка экзаменов
// @Summary		Список экзаменов
// @Description	Возвращает страницу экзаменов с фильтрами по классу и преподавателю и поиском по названию
// @Tags			exams
// @Accept			json
// @Produce		json
// @Param			classId		query		string	false	"Фильтр по классу"
// @Param			teacherId	query		string	false	"Фильтр по преподавателю"
// @Param			search		query		string	false	"Поиск по названию"
// @Param			page		query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	ExamListResponse	"Страница экзаменов"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/exams [get]
func ListExamsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Exam{}).
		Joins("JOIN lessons ON lessons.id = exams.lesson_id")
	if classID := c.Query("classId"); classID != "" {
		q = q.Where("lessons.class_id = ?", classID)
	}
	if teacherID := c.Query("teacherId"); teacherID != "" {
		q = q.Where("lessons.teacher_id = ?", teacherID)
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("exams.title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки экзаменов",
			Details: err.Error(),
		})
		return
	}

	var exams []models.Exam
	if err := q.Preload("Lesson").Preload("Lesson.Subject").Preload("Lesson.Class").
		Order("exams.start_time").
		Limit(pageSize).Offset(offset).
		Find(&exams).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки экзаменов",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ExamListResponse{Items: exams, Page: page, Total: total})
}
