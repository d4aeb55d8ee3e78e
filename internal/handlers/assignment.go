package handlers

import (
	"net/http"

	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
)

// AssignmentRequest — полезная нагрузка формы задания.
type AssignmentRequest struct {
	Title     string `json:"title" binding:"required"`
	StartDate string `json:"startDate" binding:"required"`
	DueDate   string `json:"dueDate" binding:"required"`
	LessonID  uint   `json:"lessonId" binding:"required"`
}

// CreateAssignmentHandler обрабатывает создание задания
// @Summary		Создание задания
// @Description	Создает задание по занятию со сроком сдачи позже даты выдачи. Преподаватель может создавать задания только по своим занятиям
// @Tags			assignments
// @Accept			json
// @Produce		json
// @Param			assignment	body		AssignmentRequest	true	"Данные задания"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Задание создано"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, INVALID_TIME_RANGE)"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Занятие не найдено (LESSON_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/assignments [post]
func CreateAssignmentHandler(c *gin.Context) {
	var req AssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	start, err := parseDateTime(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат даты выдачи",
		})
		return
	}
	due, err := parseDateTime(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат срока сдачи",
		})
		return
	}
	if !due.After(start) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_TIME_RANGE",
			Message: "Срок сдачи должен быть позже даты выдачи",
		})
		return
	}

	if _, ok := lessonForAssessment(c, req.LessonID); !ok {
		return
	}

	assignment := models.Assignment{
		Title:     req.Title,
		StartDate: start,
		DueDate:   due,
		LessonID:  req.LessonID,
	}
	if err := storage.DB.Create(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании задания",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Задание успешно создано",
		ID:      assignment.ID,
	})
}

// UpdateAssignmentHandler обрабатывает обновление задания
// @Summary		Обновление задания
// @Description	Обновляет название, даты и занятие задания
// @Tags			assignments
// @Accept			json
// @Produce		json
// @Param			id			path		string				true	"ID задания"
// @Param			assignment	body		AssignmentRequest	true	"Данные задания"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Задание обновлено"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Задание или занятие не найдены (ASSIGNMENT_NOT_FOUND, LESSON_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/assignments/{id} [put]
func UpdateAssignmentHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_ASSIGNMENT_ID", "Неверный идентификатор задания")
	if !ok {
		return
	}

	var req AssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	start, err := parseDateTime(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат даты выдачи",
		})
		return
	}
	due, err := parseDateTime(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат срока сдачи",
		})
		return
	}
	if !due.After(start) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_TIME_RANGE",
			Message: "Срок сдачи должен быть позже даты выдачи",
		})
		return
	}

	var assignment models.Assignment
	if err := storage.DB.First(&assignment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ASSIGNMENT_NOT_FOUND",
			Message: "Задание не найдено",
		})
		return
	}

	if _, ok := lessonForAssessment(c, req.LessonID); !ok {
		return
	}

	updates := map[string]interface{}{
		"title":      req.Title,
		"start_date": start,
		"due_date":   due,
		"lesson_id":  req.LessonID,
	}
	if err := storage.DB.Model(&assignment).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении задания",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Задание успешно обновлено",
		ID:      assignment.ID,
	})
}

// DeleteAssignmentHandler обрабатывает удаление задания
// @Summary		Удаление задания
// @Description	Удаляет задание вместе с результатами по нему
// @Tags			assignments
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID задания"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Задание удалено"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Задание не найдено (ASSIGNMENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/assignments/{id} [delete]
func DeleteAssignmentHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_ASSIGNMENT_ID", "Неверный идентификатор задания")
	if !ok {
		return
	}

	var assignment models.Assignment
	if err := storage.DB.First(&assignment, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ASSIGNMENT_NOT_FOUND",
			Message: "Задание не найдено",
		})
		return
	}

	if _, ok := lessonForAssessment(c, assignment.LessonID); !ok {
		return
	}

	if err := storage.DB.Where("assignment_id = ?", id).Delete(&models.Result{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении результатов задания",
			Details: err.Error(),
		})
		return
	}
	if err := storage.DB.Delete(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении задания",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Задание успешно удалено",
	})
}

// AssignmentListResponse — страница списка заданий.
type AssignmentListResponse struct {
	Items []models.Assignment `json:"items"`
	Page  int                 `json:"page"`
	Total int64               `json:"total"`
}

// ListAssignmentsHandler обрабатывает запрос списка заданий
// @Summary		Список заданий
// @Description	Возвращает страницу заданий с фильтрами по классу и преподавателю и поиском по названию
// @Tags			assignments
// @Accept			json
// @Produce		json
// @Param			classId		query		string	false	"Фильтр по классу"
// @Param			teacherId	query		string	false	"Фильтр по преподавателю"
// @Param			search		query		string	false	"Поиск по названию"
// @Param			page		query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	AssignmentListResponse	"Страница заданий"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/assignments [get]
func ListAssignmentsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Assignment{}).
		Joins("JOIN lessons ON lessons.id = assignments.lesson_id")
	if classID := c.Query("classId"); classID != "" {
		q = q.Where("lessons.class_id = ?", classID)
	}
	if teacherID := c.Query("teacherId"); teacherID != "" {
		q = q.Where("lessons.teacher_id = ?", teacherID)
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("assignments.title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки заданий",
			Details: err.Error(),
		})
		return
	}

	var assignments []models.Assignment
	if err := q.Preload("Lesson").Preload("Lesson.Subject").Preload("Lesson.Class").
		Order("assignments.due_date").
		Limit(pageSize).Offset(offset).
		Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки заданий",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, AssignmentListResponse{Items: assignments, Page: page, Total: total})
}
