package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"schoolhub/internal/response"

	"github.com/gin-gonic/gin"
)

var ctx = context.Background()

// Размер страницы списков, как на страницах-списках веб-клиента.
const pageSize = 10

// pageParam извлекает номер страницы из query-параметра page (с единицы).
func pageParam(c *gin.Context) (page int, offset int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return page, (page - 1) * pageSize
}

// idParam извлекает числовой идентификатор из параметра пути. При ошибке
// сам пишет ответ и возвращает false.
func idParam(c *gin.Context, code, message string) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    code,
			Message: message,
		})
		return 0, false
	}
	return uint(id), true
}

// parseDateTime принимает RFC3339 либо локальное время без зоны, как его
// отправляет форма веб-клиента (datetime-local).
func parseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", s, time.Local)
}
