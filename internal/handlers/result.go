package handlers

import (
	"net/http"

	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
)

// ResultRequest — полезная нагрузка формы оценки. Заполняется ровно одно из
// полей ExamID/AssignmentID.
type ResultRequest struct {
	Score        int    `json:"score" binding:"min=0,max=100"`
	StudentID    string `json:"studentId" binding:"required"`
	ExamID       *uint  `json:"examId"`
	AssignmentID *uint  `json:"assignmentId"`
}

// resultTarget проверяет, что указана ровно одна работа, что она существует
// и что ученик учится в классе ее занятия. Возвращает занятие работы.
// При ошибке сам пишет ответ.
func resultTarget(c *gin.Context, req ResultRequest) (*models.Lesson, bool) {
	if (req.ExamID == nil) == (req.AssignmentID == nil) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "RESULT_TARGET_AMBIGUOUS",
			Message: "Оценка выставляется ровно за одну работу: экзамен либо задание",
		})
		return nil, false
	}

	var lessonID uint
	if req.ExamID != nil {
		var exam models.Exam
		if err := storage.DB.First(&exam, *req.ExamID).Error; err != nil {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "EXAM_NOT_FOUND",
				Message: "Экзамен не найден",
			})
			return nil, false
		}
		lessonID = exam.LessonID
	} else {
		var assignment models.Assignment
		if err := storage.DB.First(&assignment, *req.AssignmentID).Error; err != nil {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "ASSIGNMENT_NOT_FOUND",
				Message: "Задание не найдено",
			})
			return nil, false
		}
		lessonID = assignment.LessonID
	}

	lesson, ok := lessonForAssessment(c, lessonID)
	if !ok {
		return nil, false
	}

	var student models.Student
	if err := storage.DB.First(&student, "id = ?", req.StudentID).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "Ученик не найден",
		})
		return nil, false
	}
	if student.ClassID != lesson.ClassID {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "STUDENT_NOT_ENROLLED",
			Message: "Ученик не учится в классе этого занятия",
		})
		return nil, false
	}

	return lesson, true
}

// resultExists проверяет, что у ученика еще нет оценки за эту работу.
func resultExists(req ResultRequest, excludeID uint) bool {
	q := storage.DB.Model(&models.Result{}).Where("student_id = ?", req.StudentID)
	if req.ExamID != nil {
		q = q.Where("exam_id = ?", *req.ExamID)
	} else {
		q = q.Where("assignment_id = ?", *req.AssignmentID)
	}
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	q.Count(&count)
	return count > 0
}

// CreateResultHandler обрабатывает выставление оценки
// @Summary		Выставление оценки
// @Description	Выставляет ученику оценку за экзамен или задание. Ученик должен учиться в классе занятия, повторная оценка за ту же работу запрещена
// @Tags			results
// @Accept			json
// @Produce		json
// @Param			result	body		ResultRequest	true	"Данные оценки"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Оценка выставлена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, RESULT_TARGET_AMBIGUOUS, STUDENT_NOT_ENROLLED, RESULT_EXISTS)"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Работа или ученик не найдены (EXAM_NOT_FOUND, ASSIGNMENT_NOT_FOUND, STUDENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/results [post]
func CreateResultHandler(c *gin.Context) {
	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	if _, ok := resultTarget(c, req); !ok {
		return
	}
	if resultExists(req, 0) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "RESULT_EXISTS",
			Message: "У ученика уже есть оценка за эту работу",
		})
		return
	}

	result := models.Result{
		Score:        req.Score,
		StudentID:    req.StudentID,
		ExamID:       req.ExamID,
		AssignmentID: req.AssignmentID,
	}
	if err := storage.DB.Create(&result).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при выставлении оценки",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Оценка успешно выставлена",
		ID:      result.ID,
	})
}

// UpdateResultHandler обрабатывает изменение оценки
// @Summary		Изменение оценки
// @Description	Изменяет балл, ученика или работу существующей оценки
// @Tags			results
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID оценки"
// @Param			result	body		ResultRequest	true	"Данные оценки"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Оценка изменена"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		403	{object}	response.ErrorResponse	"Чужое занятие (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Оценка не найдена (RESULT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/results/{id} [put]
func UpdateResultHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_RESULT_ID", "Неверный идентификатор оценки")
	if !ok {
		return
	}

	var req ResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var result models.Result
	if err := storage.DB.First(&result, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "RESULT_NOT_FOUND",
			Message: "Оценка не найдена",
		})
		return
	}

	if _, ok := resultTarget(c, req); !ok {
		return
	}
	if resultExists(req, result.ID) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "RESULT_EXISTS",
			Message: "У ученика уже есть оценка за эту работу",
		})
		return
	}

	updates := map[string]interface{}{
		"score":         req.Score,
		"student_id":    req.StudentID,
		"exam_id":       req.ExamID,
		"assignment_id": req.AssignmentID,
	}
	if err := storage.DB.Model(&result).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при изменении оценки",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Оценка успешно изменена",
		ID:      result.ID,
	})
}

// DeleteResultHandler обрабатывает удаление оценки
// @Summary		Удаление оценки
// @Tags			results
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID оценки"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Оценка удалена"
// @Failure		404	{object}	response.ErrorResponse	"Оценка не найдена (RESULT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/results/{id} [delete]
func DeleteResultHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_RESULT_ID", "Неверный идентификатор оценки")
	if !ok {
		return
	}

	var result models.Result
	if err := storage.DB.First(&result, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "RESULT_NOT_FOUND",
			Message: "Оценка не найдена",
		})
		return
	}

	if err := storage.DB.Delete(&result).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении оценки",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Оценка успешно удалена",
	})
}

// ResultListResponse — страница списка оценок.
type ResultListResponse struct {
	Items []models.Result `json:"items"`
	Page  int             `json:"page"`
	Total int64           `json:"total"`
}

// ListResultsHandler обрабатывает запрос списка оценок
// @Summary		Список оценок
// @Description	Возвращает страницу оценок с фильтром по ученику
// @Tags			results
// @Accept			json
// @Produce		json
// @Param			studentId	query		string	false	"Фильтр по ученику"
// @Param			page		query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	ResultListResponse	"Страница оценок"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/results [get]
func ListResultsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Result{})
	if studentID := c.Query("studentId"); studentID != "" {
		q = q.Where("student_id = ?", studentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки оценок",
			Details: err.Error(),
		})
		return
	}

	var results []models.Result
	if err := q.Preload("Student").Preload("Exam").Preload("Assignment").
		Order("id DESC").
		Limit(pageSize).Offset(offset).
		Find(&results).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки оценок",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ResultListResponse{Items: results, Page: page, Total: total})
}
