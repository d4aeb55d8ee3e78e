package handlers

import (
	"net/http"

	"schoolhub/internal/auth"
	"schoolhub/internal/identity"
	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
)

// ParentRequest — полезная нагрузка формы родителя. Телефон обязателен.
type ParentRequest struct {
	Username string  `json:"username" binding:"required,min=3"`
	Password string  `json:"password"`
	Name     string  `json:"name" binding:"required"`
	Surname  string  `json:"surname" binding:"required"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    string  `json:"phone" binding:"required"`
	Address  string  `json:"address" binding:"required"`
}

func parentFieldsTaken(c *gin.Context, req ParentRequest, excludeID string) bool {
	var taken models.Parent

	q := storage.DB.Where("username = ?", req.Username)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&taken).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "USERNAME_EXISTS",
			Message: "Родитель с таким username уже существует",
		})
		return true
	}

	if req.Email != nil && *req.Email != "" {
		q = storage.DB.Where("email = ?", *req.Email)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.First(&taken).Error; err == nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "EMAIL_EXISTS",
				Message: "Родитель с таким email уже существует",
			})
			return true
		}
	}

	q = storage.DB.Where("phone = ?", req.Phone)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&taken).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "PHONE_EXISTS",
			Message: "Родитель с таким телефоном уже существует",
		})
		return true
	}

	return false
}

// CreateParentHandler обрабатывает создание родителя
// @Summary		Создание родителя
// @Description	Создает учетную запись у провайдера идентификации и зеркальную запись в базе
// @Tags			parents
// @Accept			json
// @Produce		json
// @Param			parent	body		ParentRequest	true	"Данные родителя"
// @Security		BearerAuth
// @Success		201	{object}	response.SuccessResponse	"Родитель создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, USERNAME_EXISTS, EMAIL_EXISTS, PHONE_EXISTS, PASSWORD_PWNED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/parents [post]
func CreateParentHandler(c *gin.Context) {
	var req ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Пароль обязателен при создании",
		})
		return
	}

	if parentFieldsTaken(c, req, "") {
		return
	}

	user, err := identityClient.CreateUser(c.Request.Context(), identity.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.Name,
		LastName:  req.Surname,
		Role:      auth.RoleParent,
	})
	if err != nil {
		respondIdentityError(c, err)
		return
	}

	parent := models.Parent{
		ID:       user.ID,
		Username: req.Username,
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
	}
	if err := storage.DB.Create(&parent).Error; err != nil {
		if !identityClient.Compensate(user.ID) {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "MANUAL_CLEANUP_REQUIRED",
				Message: "Ошибка при создании родителя, откат у провайдера не удался",
				Details: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании родителя, запись у провайдера отменена",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Родитель успешно создан",
		"id":      parent.ID,
	})
}

// UpdateParentHandler обрабатывает обновление родителя
// @Summary		Обновление родителя
// @Description	Обновляет данные у провайдера идентификации и в базе. Пароль меняется только если передан
// @Tags			parents
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID родителя"
// @Param			parent	body		ParentRequest	true	"Данные родителя"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Родитель обновлен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Родитель не найден (PARENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/parents/{id} [put]
func UpdateParentHandler(c *gin.Context) {
	id := c.Param("id")

	var req ParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	var parent models.Parent
	if err := storage.DB.First(&parent, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "PARENT_NOT_FOUND",
			Message: "Родитель не найден",
		})
		return
	}

	if parentFieldsTaken(c, req, id) {
		return
	}

	if err := identityClient.UpdateUser(c.Request.Context(), id, identity.UserUpdate{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.Name,
		LastName:  req.Surname,
	}); err != nil {
		respondIdentityError(c, err)
		return
	}

	updates := map[string]interface{}{
		"username": req.Username,
		"name":     req.Name,
		"surname":  req.Surname,
		"email":    req.Email,
		"phone":    req.Phone,
		"address":  req.Address,
	}
	if err := storage.DB.Model(&parent).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении родителя",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Родитель успешно обновлен",
	})
}

// DeleteParentHandler обрабатывает удаление родителя
// @Summary		Удаление родителя
// @Description	Удаляет родителя у провайдера идентификации и в базе, если за ним не числятся ученики
// @Tags			parents
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID родителя"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Родитель удален"
// @Failure		400	{object}	response.ErrorResponse	"За родителем числятся ученики (PARENT_HAS_STUDENTS)"
// @Failure		404	{object}	response.ErrorResponse	"Родитель не найден (PARENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/parents/{id} [delete]
func DeleteParentHandler(c *gin.Context) {
	id := c.Param("id")

	var parent models.Parent
	if err := storage.DB.First(&parent, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "PARENT_NOT_FOUND",
			Message: "Родитель не найден",
		})
		return
	}

	var students int64
	storage.DB.Model(&models.Student{}).Where("parent_id = ?", id).Count(&students)
	if students > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "PARENT_HAS_STUDENTS",
			Message: "Нельзя удалить родителя, за которым числятся ученики",
		})
		return
	}

	if err := identityClient.DeleteUser(c.Request.Context(), id); err != nil {
		respondIdentityError(c, err)
		return
	}

	if err := storage.DB.Delete(&parent).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении родителя",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Родитель успешно удален",
	})
}

// ParentListResponse — страница списка родителей.
type ParentListResponse struct {
	Items []models.Parent `json:"items"`
	Page  int             `json:"page"`
	Total int64           `json:"total"`
}

// ListParentsHandler обрабатывает запрос списка родителей
// @Summary		Список родителей
// @Description	Возвращает страницу родителей с их учениками и поиском по имени
// @Tags			parents
// @Accept			json
// @Produce		json
// @Param			search	query		string	false	"Поиск по имени, фамилии или username"
// @Param			page	query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	ParentListResponse	"Страница родителей"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/parents [get]
func ListParentsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Parent{})
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("name ILIKE ? OR surname ILIKE ? OR username ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки родителей",
			Details: err.Error(),
		})
		return
	}

	var parents []models.Parent
	if err := q.Preload("Students").
		Order("surname, name").
		Limit(pageSize).Offset(offset).
		Find(&parents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки родителей",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, ParentListResponse{Items: parents, Page: page, Total: total})
}
