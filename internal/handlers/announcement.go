package handlers

import (
	"net/http"
	"strconv"
	"time"

	"schoolhub/internal/auth"
	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"
	"schoolhub/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AnnouncementRequest — полезная нагрузка формы объявления. ClassID == nil
// означает общешкольное объявление.
type AnnouncementRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Date        string `json:"date" binding:"required"`
	ClassID     *uint  `json:"classId"`
}

// announcementScope ограничивает выборку объявлений видимостью текущей роли:
// админ видит все, преподаватель — классы своих занятий, ученик — свой класс,
// родитель — классы своих детей. Общешкольные объявления видны всем.
func announcementScope(c *gin.Context, q *gorm.DB) *gorm.DB {
	userID := c.GetString("userID")
	switch c.GetString("role") {
	case auth.RoleAdmin:
		return q
	case auth.RoleTeacher:
		return q.Where("class_id IS NULL OR class_id IN (?)",
			storage.DB.Model(&models.Lesson{}).Select("class_id").Where("teacher_id = ?", userID))
	case auth.RoleStudent:
		return q.Where("class_id IS NULL OR class_id IN (?)",
			storage.DB.Model(&models.Student{}).Select("class_id").Where("id = ?", userID))
	case auth.RoleParent:
		return q.Where("class_id IS NULL OR class_id IN (?)",
			storage.DB.Model(&models.Student{}).Select("class_id").Where("parent_id = ?", userID))
	default:
		return q.Where("class_id IS NULL")
	}
}

// CreateAnnouncementHandler обрабатывает создание объявления
// @Summary		Создание объявления
// @Description	Создает объявление для класса либо общешкольное и рассылает уведомление в WebSocket-канал. Преподаватель может публиковать только для классов под своим кураторством
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Param			announcement	body		AnnouncementRequest	true	"Данные объявления"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Объявление создано"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, CLASS_NOT_FOUND)"
// @Failure		403	{object}	response.ErrorResponse	"Чужой класс (FORBIDDEN)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/announcements [post]
func CreateAnnouncementHandler(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	date, err := parseDateTime(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат даты объявления",
		})
		return
	}

	if req.ClassID != nil {
		var class models.Class
		if err := storage.DB.First(&class, *req.ClassID).Error; err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "CLASS_NOT_FOUND",
				Message: "Класс не найден",
			})
			return
		}
		if c.GetString("role") == auth.RoleTeacher {
			userID := c.GetString("userID")
			if class.SupervisorID == nil || *class.SupervisorID != userID {
				c.JSON(http.StatusForbidden, response.ErrorResponse{
					Code:    "FORBIDDEN",
					Message: "Преподаватель может публиковать объявления только для классов под своим кураторством",
				})
				return
			}
		}
	} else if c.GetString("role") == auth.RoleTeacher {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Общешкольные объявления публикует только администратор",
		})
		return
	}

	announcement := models.Announcement{
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		ClassID:     req.ClassID,
	}
	if err := storage.DB.Create(&announcement).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании объявления",
			Details: err.Error(),
		})
		return
	}

	classChannel := ""
	if req.ClassID != nil {
		classChannel = strconv.FormatUint(uint64(*req.ClassID), 10)
	}
	ws.HubInstance.BroadcastNotice(ws.Notice{
		EventType: "announcement",
		ClassID:   classChannel,
		Data: map[string]interface{}{
			"announcement_id": announcement.ID,
			"title":           announcement.Title,
			"date":            announcement.Date.Format(time.RFC3339),
		},
	})

	dropAnnouncementCountCache()

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Объявление успешно создано",
		ID:      announcement.ID,
	})
}

// dropAnnouncementCountCache сбрасывает закэшированные счетчики объявлений
// всех ролей.
func dropAnnouncementCountCache() {
	if storage.RedisClient == nil {
		return
	}
	iter := storage.RedisClient.Scan(ctx, 0, "announcement_count_*", 100).Iterator()
	for iter.Next(ctx) {
		storage.RedisClient.Del(ctx, iter.Val())
	}
}

// UpdateAnnouncementHandler обрабатывает обновление объявления
// @Summary		Обновление объявления
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Param			id				path		string				true	"ID объявления"
// @Param			announcement	body		AnnouncementRequest	true	"Данные объявления"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Объявление обновлено"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Объявление не найдено (ANNOUNCEMENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/announcements/{id} [put]
func UpdateAnnouncementHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_ANNOUNCEMENT_ID", "Неверный идентификатор объявления")
	if !ok {
		return
	}

	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	date, err := parseDateTime(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат даты объявления",
		})
		return
	}

	var announcement models.Announcement
	if err := storage.DB.First(&announcement, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ANNOUNCEMENT_NOT_FOUND",
			Message: "Объявление не найдено",
		})
		return
	}

	updates := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
		"date":        date,
		"class_id":    req.ClassID,
	}
	if err := storage.DB.Model(&announcement).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении объявления",
			Details: err.Error(),
		})
		return
	}

	dropAnnouncementCountCache()

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Объявление успешно обновлено",
		ID:      announcement.ID,
	})
}

// DeleteAnnouncementHandler обрабатывает удаление объявления
// @Summary		Удаление объявления
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID объявления"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Объявление удалено"
// @Failure		404	{object}	response.ErrorResponse	"Объявление не найдено (ANNOUNCEMENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/announcements/{id} [delete]
func DeleteAnnouncementHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_ANNOUNCEMENT_ID", "Неверный идентификатор объявления")
	if !ok {
		return
	}

	var announcement models.Announcement
	if err := storage.DB.First(&announcement, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "ANNOUNCEMENT_NOT_FOUND",
			Message: "Объявление не найдено",
		})
		return
	}

	if err := storage.DB.Delete(&announcement).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении объявления",
			Details: err.Error(),
		})
		return
	}

	dropAnnouncementCountCache()

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Объявление успешно удалено",
	})
}

// AnnouncementListResponse — страница списка объявлений.
type AnnouncementListResponse struct {
	Items []models.Announcement `json:"items"`
	Page  int                   `json:"page"`
	Total int64                 `json:"total"`
}

// ListAnnouncementsHandler обрабатывает запрос списка объявлений
// @Summary		Список объявлений
// @Description	Возвращает страницу объявлений, видимых текущей роли, свежие первыми
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Param			search	query		string	false	"Поиск по заголовку"
// @Param			page	query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	AnnouncementListResponse	"Страница объявлений"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/announcements [get]
func ListAnnouncementsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := announcementScope(c, storage.DB.Model(&models.Announcement{}))
	if search := c.Query("search"); search != "" {
		q = q.Where("title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки объявлений",
			Details: err.Error(),
		})
		return
	}

	var announcements []models.Announcement
	if err := q.Preload("Class").
		Order("date DESC").
		Limit(pageSize).Offset(offset).
		Find(&announcements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки объявлений",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, AnnouncementListResponse{Items: announcements, Page: page, Total: total})
}

// CountAnnouncementsHandler обрабатывает запрос счетчика объявлений
// @Summary		Счетчик объявлений
// @Description	Возвращает число объявлений, видимых текущей роли. Значение кэшируется в Redis на 10 минут
// @Tags			announcements
// @Accept			json
// @Produce		json
// @Security		BearerAuth
// @Success		200	{object}	map[string]int64	"Число объявлений"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/announcements/count [get]
func CountAnnouncementsHandler(c *gin.Context) {
	cacheKey := "announcement_count_" + c.GetString("role") + "_" + c.GetString("userID")
	if storage.RedisClient != nil {
		if cached, err := storage.RedisClient.Get(ctx, cacheKey).Int64(); err == nil {
			c.JSON(http.StatusOK, gin.H{"count": cached})
			return
		}
	}

	var count int64
	if err := announcementScope(c, storage.DB.Model(&models.Announcement{})).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка подсчета объявлений",
			Details: err.Error(),
		})
		return
	}

	if storage.RedisClient != nil {
		storage.RedisClient.Set(ctx, cacheKey, count, 10*time.Minute)
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
