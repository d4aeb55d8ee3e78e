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

// EventRequest — полезная нагрузка формы события. ClassID == nil означает
// общешкольное событие.
type EventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	StartTime   string `json:"startTime" binding:"required"`
	EndTime     string `json:"endTime" binding:"required"`
	ClassID     *uint  `json:"classId"`
}

// eventScope ограничивает выборку событий видимостью текущей роли,
// по тем же правилам, что и объявления.
func eventScope(c *gin.Context, q *gorm.DB) *gorm.DB {
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

func parseEventTimes(c *gin.Context, req EventRequest) (start, end time.Time, ok bool) {
	start, err := parseDateTime(req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат времени начала",
		})
		return start, end, false
	}
	end, err = parseDateTime(req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Неверный формат времени окончания",
		})
		return start, end, false
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "INVALID_TIME_RANGE",
			Message: "Окончание события должно быть позже начала",
		})
		return start, end, false
	}
	return start, end, true
}

// CreateEventHandler обрабатывает создание события
// @Summary		Создание события
// @Description	Создает событие календаря для класса либо общешкольное и рассылает уведомление в WebSocket-канал
// @Tags			events
// @Accept			json
// @Produce		json
// @Param			event	body		EventRequest	true	"Данные события"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Событие создано"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, INVALID_TIME_RANGE, CLASS_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/events [post]
func CreateEventHandler(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	start, end, ok := parseEventTimes(c, req)
	if !ok {
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
	}

	event := models.Event{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		ClassID:     req.ClassID,
	}
	if err := storage.DB.Create(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании события",
			Details: err.Error(),
		})
		return
	}

	classChannel := ""
	if req.ClassID != nil {
		classChannel = strconv.FormatUint(uint64(*req.ClassID), 10)
	}
	ws.HubInstance.BroadcastNotice(ws.Notice{
		EventType: "event",
		ClassID:   classChannel,
		Data: map[string]interface{}{
			"event_id":   event.ID,
			"title":      event.Title,
			"start_time": event.StartTime.Format(time.RFC3339),
		},
	})

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Событие успешно создано",
		ID:      event.ID,
	})
}

// UpdateEventHandler обрабатывает обновление события
// @Summary		Обновление события
// @Tags			events
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID события"
// @Param			event	body		EventRequest	true	"Данные события"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Событие обновлено"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Событие не найдено (EVENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/events/{id} [put]
func UpdateEventHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_EVENT_ID", "Неверный идентификатор события")
	if !ok {
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	start, end, ok := parseEventTimes(c, req)
	if !ok {
		return
	}

	var event models.Event
	if err := storage.DB.First(&event, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "EVENT_NOT_FOUND",
			Message: "Событие не найдено",
		})
		return
	}

	updates := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
		"start_time":  start,
		"end_time":    end,
		"class_id":    req.ClassID,
	}
	if err := storage.DB.Model(&event).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении события",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Событие успешно обновлено",
		ID:      event.ID,
	})
}

// DeleteEventHandler обрабатывает удаление события
// @Summary		Удаление события
// @Tags			events
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID события"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Событие удалено"
// @Failure		404	{object}	response.ErrorResponse	"Событие не найдено (EVENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/events/{id} [delete]
func DeleteEventHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_EVENT_ID", "Неверный идентификатор события")
	if !ok {
		return
	}

	var event models.Event
	if err := storage.DB.First(&event, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "EVENT_NOT_FOUND",
			Message: "Событие не найдено",
		})
		return
	}

	if err := storage.DB.Delete(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении события",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Событие успешно удалено",
	})
}

// EventListResponse — страница списка событий.
type EventListResponse struct {
	Items []models.Event `json:"items"`
	Page  int            `json:"page"`
	Total int64          `json:"total"`
}

// ListEventsHandler обрабатывает запрос списка событий
// @Summary		Список событий
// @Description	Возвращает страницу событий, видимых текущей роли, с фильтром по дате
// @Tags			events
// @Accept			json
// @Produce		json
// @Param			date	query		string	false	"События за дату (YYYY-MM-DD)"
// @Param			search	query		string	false	"Поиск по заголовку"
// @Param			page	query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	EventListResponse	"Страница событий"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/events [get]
func ListEventsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := eventScope(c, storage.DB.Model(&models.Event{}))
	if date := c.Query("date"); date != "" {
		if d, err := time.Parse("2006-01-02", date); err == nil {
			q = q.Where("start_time >= ? AND start_time < ?", d, d.AddDate(0, 0, 1))
		}
	}
	if search := c.Query("search"); search != "" {
		q = q.Where("title ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки событий",
			Details: err.Error(),
		})
		return
	}

	var events []models.Event
	if err := q.Preload("Class").
		Order("start_time").
		Limit(pageSize).Offset(offset).
		Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки событий",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, EventListResponse{Items: events, Page: page, Total: total})
}
