package handlers

import (
	"errors"
	"net/http"

	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubjectRequest — полезная нагрузка формы предмета. Teachers — список ID
// преподавателей, допущенных к предмету.
type SubjectRequest struct {
	Name     string   `json:"name" binding:"required"`
	Teachers []string `json:"teachers"`
}

func subjectTeachers(ids []string) []models.Teacher {
	teachers := make([]models.Teacher, 0, len(ids))
	for _, id := range ids {
		teachers = append(teachers, models.Teacher{ID: id})
	}
	return teachers
}

// CreateSubjectHandler обрабатывает создание предмета
// @Summary		Создание предмета
// @Description	Создает предмет с уникальным названием и списком допущенных преподавателей
// @Tags			subjects
// @Accept			json
// @Produce		json
// @Param			subject	body		SubjectRequest	true	"Данные предмета"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Предмет создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, SUBJECT_NAME_EXISTS)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/subjects [post]
func CreateSubjectHandler(c *gin.Context) {
	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var existing models.Subject
	if err := storage.DB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "SUBJECT_NAME_EXISTS",
			Message: "Предмет с таким названием уже существует",
		})
		return
	}

	subject := models.Subject{
		Name:     req.Name,
		Teachers: subjectTeachers(req.Teachers),
	}
	if err := storage.DB.Create(&subject).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании предмета",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Предмет успешно создан",
		ID:      subject.ID,
	})
}

// UpdateSubjectHandler обрабатывает обновление предмета
// @Summary		Обновление предмета
// @Description	Обновляет название предмета и полностью заменяет список допущенных преподавателей
// @Tags			subjects
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID предмета"
// @Param			subject	body		SubjectRequest	true	"Данные предмета"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Предмет обновлен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_SUBJECT_ID, SUBJECT_NAME_EXISTS)"
// @Failure		404	{object}	response.ErrorResponse	"Предмет не найден (SUBJECT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/subjects/{id} [put]
func UpdateSubjectHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_SUBJECT_ID", "Неверный идентификатор предмета")
	if !ok {
		return
	}

	var req SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var subject models.Subject
	if err := storage.DB.First(&subject, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "SUBJECT_NOT_FOUND",
			Message: "Предмет не найден",
		})
		return
	}

	var conflicting models.Subject
	if err := storage.DB.Where("name = ? AND id <> ?", req.Name, id).First(&conflicting).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "SUBJECT_NAME_EXISTS",
			Message: "Другой предмет с таким названием уже существует",
		})
		return
	}

	subject.Name = req.Name
	if err := storage.DB.Save(&subject).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении предмета",
			Details: err.Error(),
		})
		return
	}

	if err := storage.DB.Model(&subject).Association("Teachers").Replace(subjectTeachers(req.Teachers)); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении списка преподавателей",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Предмет успешно обновлен",
		ID:      subject.ID,
	})
}

// DeleteSubjectHandler обрабатывает удаление предмета
// @Summary		Удаление предмета
// @Description	Удаляет предмет, если по нему нет занятий
// @Tags			subjects
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID предмета"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Предмет удален"
// @Failure		400	{object}	response.ErrorResponse	"По предмету есть занятия (SUBJECT_HAS_LESSONS)"
// @Failure		404	{object}	response.ErrorResponse	"Предмет не найден (SUBJECT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/subjects/{id} [delete]
func DeleteSubjectHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_SUBJECT_ID", "Неверный идентификатор предмета")
	if !ok {
		return
	}

	var subject models.Subject
	if err := storage.DB.First(&subject, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, response.ErrorResponse{
				Code:    "SUBJECT_NOT_FOUND",
				Message: "Предмет не найден",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки предмета",
			Details: err.Error(),
		})
		return
	}

	var lessons int64
	storage.DB.Model(&models.Lesson{}).Where("subject_id = ?", id).Count(&lessons)
	if lessons > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "SUBJECT_HAS_LESSONS",
			Message: "Нельзя удалить предмет, по которому есть занятия. Сначала удалите занятия",
		})
		return
	}

	if err := storage.DB.Select("Teachers").Delete(&subject).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении предмета",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Предмет успешно удален",
	})
}

// SubjectListResponse — страница списка предметов.
type SubjectListResponse struct {
	Items []models.Subject `json:"items"`
	Page  int              `json:"page"`
	Total int64            `json:"total"`
}

// ListSubjectsHandler обрабатывает запрос списка предметов
// @Summary		Список предметов
// @Description	Возвращает страницу предметов с поиском по названию и допущенными преподавателями
// @Tags			subjects
// @Accept			json
// @Produce		json
// @Param			search	query		string	false	"Поиск по названию"
// @Param			page	query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	SubjectListResponse	"Страница предметов"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/subjects [get]
func ListSubjectsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Subject{})
	if search := c.Query("search"); search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки предметов",
			Details: err.Error(),
		})
		return
	}

	var subjects []models.Subject
	if err := q.Preload("Teachers").Order("name").
		Limit(pageSize).Offset(offset).
		Find(&subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки предметов",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, SubjectListResponse{Items: subjects, Page: page, Total: total})
}
