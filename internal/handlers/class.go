package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"schoolhub/internal/logger"
	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClassRequest — полезная нагрузка формы класса.
type ClassRequest struct {
	Name         string  `json:"name" binding:"required"`
	Capacity     int     `json:"capacity" binding:"required,gt=0"`
	GradeID      uint    `json:"gradeId" binding:"required"`
	SupervisorID *string `json:"supervisorId"`
}

// GradeRequest — полезная нагрузка формы параллели.
type GradeRequest struct {
	Level int `json:"level" binding:"required,gt=0"`
}

// CreateGradeHandler обрабатывает создание параллели
// @Summary		Создание параллели
// @Description	Создает параллель с уникальным номером
// @Tags			grades
// @Accept			json
// @Produce		json
// @Param			grade	body		GradeRequest	true	"Данные параллели"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Параллель создана"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, GRADE_LEVEL_EXISTS)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/grades [post]
func CreateGradeHandler(c *gin.Context) {
	var req GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var existing models.Grade
	if err := storage.DB.Where("level = ?", req.Level).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "GRADE_LEVEL_EXISTS",
			Message: "Параллель с таким номером уже существует",
		})
		return
	}

	grade := models.Grade{Level: req.Level}
	if err := storage.DB.Create(&grade).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании параллели",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Параллель успешно создана",
		ID:      grade.ID,
	})
}

// ListGradesHandler обрабатывает запрос списка параллелей
// @Summary		Список параллелей
// @Description	Возвращает все параллели, отсортированные по номеру
// @Tags			grades
// @Accept			json
// @Produce		json
// @Security		BearerAuth
// @Success		200	{array}		models.Grade	"Список параллелей"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/grades [get]
func ListGradesHandler(c *gin.Context) {
	var grades []models.Grade
	if err := storage.DB.Order("level").Find(&grades).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки параллелей",
			Details: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, grades)
}

// validateClassRefs проверяет существование параллели и, если указан,
// классного руководителя. При ошибке сам пишет ответ и возвращает false.
func validateClassRefs(c *gin.Context, req ClassRequest) bool {
	var grade models.Grade
	if err := storage.DB.First(&grade, req.GradeID).Error; err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "GRADE_NOT_FOUND",
			Message: "Параллель не найдена",
		})
		return false
	}
	if req.SupervisorID != nil && *req.SupervisorID != "" {
		var teacher models.Teacher
		if err := storage.DB.First(&teacher, "id = ?", *req.SupervisorID).Error; err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "SUPERVISOR_NOT_FOUND",
				Message: "Классный руководитель не найден",
			})
			return false
		}
	}
	return true
}

// CreateClassHandler обрабатывает создание класса
// @Summary		Создание класса
// @Description	Создает класс с уникальным названием, вместимостью, параллелью и необязательным классным руководителем
// @Tags			classes
// @Accept			json
// @Produce		json
// @Param			class	body		ClassRequest	true	"Данные класса"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Класс создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, CLASS_NAME_EXISTS, GRADE_NOT_FOUND, SUPERVISOR_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/classes [post]
func CreateClassHandler(c *gin.Context) {
	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var existing models.Class
	if err := storage.DB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CLASS_NAME_EXISTS",
			Message: "Класс с таким названием уже существует",
		})
		return
	}

	if !validateClassRefs(c, req) {
		return
	}

	class := models.Class{
		Name:         req.Name,
		Capacity:     req.Capacity,
		GradeID:      req.GradeID,
		SupervisorID: req.SupervisorID,
	}
	if err := storage.DB.Create(&class).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании класса",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Класс успешно создан",
		ID:      class.ID,
	})
}

// UpdateClassHandler обрабатывает обновление класса
// @Summary		Обновление класса
// @Description	Обновляет название, вместимость, параллель и классного руководителя
// @Tags			classes
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID класса"
// @Param			class	body		ClassRequest	true	"Данные класса"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Класс обновлен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Класс не найден (CLASS_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/classes/{id} [put]
func UpdateClassHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_CLASS_ID", "Неверный идентификатор класса")
	if !ok {
		return
	}

	var req ClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var class models.Class
	if err := storage.DB.First(&class, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "CLASS_NOT_FOUND",
			Message: "Класс не найден",
		})
		return
	}

	var conflicting models.Class
	if err := storage.DB.Where("name = ? AND id <> ?", req.Name, id).First(&conflicting).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CLASS_NAME_EXISTS",
			Message: "Другой класс с таким названием уже существует",
		})
		return
	}

	// Вместимость нельзя опускать ниже текущего числа учеников.
	var students int64
	storage.DB.Model(&models.Student{}).Where("class_id = ?", id).Count(&students)
	if int64(req.Capacity) < students {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CAPACITY_BELOW_ENROLLMENT",
			Message: fmt.Sprintf("В классе уже %d учеников, вместимость не может быть меньше", students),
		})
		return
	}

	if !validateClassRefs(c, req) {
		return
	}

	updates := map[string]interface{}{
		"name":          req.Name,
		"capacity":      req.Capacity,
		"grade_id":      req.GradeID,
		"supervisor_id": req.SupervisorID,
	}
	if err := storage.DB.Model(&class).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении класса",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Класс успешно обновлен",
		ID:      class.ID,
	})
}

// DeleteClassHandler обрабатывает удаление класса
// @Summary		Удаление класса
// @Description	Удаляет класс, если в нем нет учеников и занятий
// @Tags			classes
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID класса"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Класс удален"
// @Failure		400	{object}	response.ErrorResponse	"Класс не пуст (CLASS_HAS_STUDENTS, CLASS_HAS_LESSONS)"
// @Failure		404	{object}	response.ErrorResponse	"Класс не найден (CLASS_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/classes/{id} [delete]
func DeleteClassHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_CLASS_ID", "Неверный идентификатор класса")
	if !ok {
		return
	}

	var class models.Class
	if err := storage.DB.First(&class, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "CLASS_NOT_FOUND",
			Message: "Класс не найден",
		})
		return
	}

	var students int64
	storage.DB.Model(&models.Student{}).Where("class_id = ?", id).Count(&students)
	if students > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CLASS_HAS_STUDENTS",
			Message: "Нельзя удалить класс, в котором есть ученики",
		})
		return
	}

	var lessons int64
	storage.DB.Model(&models.Lesson{}).Where("class_id = ?", id).Count(&lessons)
	if lessons > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CLASS_HAS_LESSONS",
			Message: "Нельзя удалить класс, у которого есть занятия",
		})
		return
	}

	if err := storage.DB.Delete(&class).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении класса",
			Details: err.Error(),
		})
		return
	}

	dropClassScheduleCache(fmt.Sprintf("%d", id))

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Класс успешно удален",
	})
}

// ClassListResponse — страница списка классов.
type ClassListResponse struct {
	Items []models.Class `json:"items"`
	Page  int            `json:"page"`
	Total int64          `json:"total"`
}

// ListClassesHandler обрабатывает запрос списка классов
// @Summary		Список классов
// @Description	Возвращает страницу классов с фильтром по классному руководителю и поиском по названию
// @Tags			classes
// @Accept			json
// @Produce		json
// @Param			supervisorId	query		string	false	"Фильтр по классному руководителю"
// @Param			search			query		string	false	"Поиск по названию"
// @Param			page			query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	ClassListResponse	"Страница классов"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/classes [get]
func ListClassesHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Class{})
	if supervisorID := c.Query("supervisorId"); supervisorID != "" {
		q = q.Where("supervisor_id = ?", supervisorID)
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки классов",
			Details: err.Error(),
		})
		return
	}

	var classes []models.Class
	if err := q.Preload("Grade").Preload("Supervisor").
		Order("name").
		Limit(pageSize).Offset(offset).
		Find(&classes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки классов",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ClassListResponse{Items: classes, Page: page, Total: total})
}

// ClassScheduleHandler обрабатывает запрос недельного расписания класса
// @Summary		Расписание класса
// @Description	Возвращает занятия класса, отсортированные по дню и времени начала. Результат кэшируется в Redis на час
// @Tags			classes
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID класса"
// @Security		BearerAuth
// @Success		200	{array}		models.Lesson	"Занятия класса"
// @Failure		404	{object}	response.ErrorResponse	"Класс не найден (CLASS_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/classes/{id}/schedule [get]
func ClassScheduleHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_CLASS_ID", "Неверный идентификатор класса")
	if !ok {
		return
	}

	cacheKey := fmt.Sprintf("class_schedule_%d", id)
	if storage.RedisClient != nil {
		if cached, err := storage.RedisClient.Get(ctx, cacheKey).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
	}

	var class models.Class
	if err := storage.DB.First(&class, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "CLASS_NOT_FOUND",
			Message: "Класс не найден",
		})
		return
	}

	var lessons []models.Lesson
	if err := storage.DB.
		Preload("Subject").Preload("Teacher").
		Where("class_id = ?", id).
		Order("day, start_time").
		Find(&lessons).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки расписания",
			Details: err.Error(),
		})
		return
	}

	if storage.RedisClient != nil {
		if payload, err := json.Marshal(lessons); err == nil {
			if err := storage.RedisClient.Set(ctx, cacheKey, payload, time.Hour).Err(); err != nil {
				logger.Log.Warn("Не удалось закэшировать расписание класса",
					zap.Uint("class_id", id), zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, lessons)
}
