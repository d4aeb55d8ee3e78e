package handlers

import (
	"errors"
	"net/http"
	"time"

	"schoolhub/internal/auth"
	"schoolhub/internal/identity"
	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
)

// Клиент провайдера идентификации, общий для всех хэндлеров пользователей.
// Инициализируется в main.
var identityClient *identity.Client

// InitIdentityClient связывает хэндлеры с клиентом провайдера идентификации.
func InitIdentityClient(c *identity.Client) {
	identityClient = c
}

// parseBirthday принимает дату в формате YYYY-MM-DD.
func parseBirthday(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// respondIdentityError переводит известные ошибки провайдера в ответы API.
func respondIdentityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrUsernameExists):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "USERNAME_EXISTS",
			Message: "Пользователь с таким username уже существует",
		})
	case errors.Is(err, identity.ErrPasswordPwned):
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "PASSWORD_PWNED",
			Message: "Пароль найден в утечках, выберите другой",
		})
	case errors.Is(err, identity.ErrUserNotFound):
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "IDENTITY_USER_NOT_FOUND",
			Message: "Пользователь не найден в провайдере идентификации",
		})
	default:
		c.JSON(http.StatusBadGateway, response.ErrorResponse{
			Code:    "IDENTITY_ERROR",
			Message: "Провайдер идентификации недоступен",
			Details: err.Error(),
		})
	}
}

// TeacherRequest — полезная нагрузка формы преподавателя.
type TeacherRequest struct {
	Username  string  `json:"username" binding:"required,min=3"`
	Password  string  `json:"password"`
	Name      string  `json:"name" binding:"required"`
	Surname   string  `json:"surname" binding:"required"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone"`
	Address   string  `json:"address" binding:"required"`
	Img       *string `json:"img"`
	BloodType string  `json:"bloodType" binding:"required"`
	Sex       string  `json:"sex" binding:"required,oneof=MALE FEMALE"`
	Birthday  string  `json:"birthday" binding:"required"`
	Subjects  []uint  `json:"subjects"`
}

func teacherSubjects(ids []uint) []models.Subject {
	subjects := make([]models.Subject, 0, len(ids))
	for _, id := range ids {
		var subject models.Subject
		subject.ID = id
		subjects = append(subjects, subject)
	}
	return subjects
}

// teacherFieldsTaken проверяет уникальность username, email и телефона среди
// преподавателей. excludeID пустой при создании. При конфликте сам пишет
// ответ и возвращает true.
func teacherFieldsTaken(c *gin.Context, req TeacherRequest, excludeID string) bool {
	var taken models.Teacher

	q := storage.DB.Where("username = ?", req.Username)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&taken).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "USERNAME_EXISTS",
			Message: "Преподаватель с таким username уже существует",
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
				Message: "Преподаватель с таким email уже существует",
			})
			return true
		}
	}

	if req.Phone != nil && *req.Phone != "" {
		q = storage.DB.Where("phone = ?", *req.Phone)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.First(&taken).Error; err == nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{
				Code:    "PHONE_EXISTS",
				Message: "Преподаватель с таким телефоном уже существует",
			})
			return true
		}
	}

	return false
}

// CreateTeacherHandler обрабатывает создание преподавателя
// @Summary		Создание преподавателя
// @Description	Создает учетную запись у провайдера идентификации, затем зеркальную запись в базе. При сбое локальной записи выполняется компенсирующее удаление у провайдера
// @Tags			teachers
// @Accept			json
// @Produce		json
// @Param			teacher	body		TeacherRequest	true	"Данные преподавателя"
// @Security		BearerAuth
// @Success		201	{object}	response.SuccessResponse	"Преподаватель создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, USERNAME_EXISTS, EMAIL_EXISTS, PHONE_EXISTS, PASSWORD_PWNED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/teachers [post]
func CreateTeacherHandler(c *gin.Context) {
	var req TeacherRequest
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

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Дата рождения должна быть в формате YYYY-MM-DD",
		})
		return
	}

	if teacherFieldsTaken(c, req, "") {
		return
	}

	user, err := identityClient.CreateUser(c.Request.Context(), identity.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.Name,
		LastName:  req.Surname,
		Role:      auth.RoleTeacher,
	})
	if err != nil {
		respondIdentityError(c, err)
		return
	}

	teacher := models.Teacher{
		ID:        user.ID,
		Username:  req.Username,
		Name:      req.Name,
		Surname:   req.Surname,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Img:       req.Img,
		BloodType: req.BloodType,
		Sex:       models.Sex(req.Sex),
		Birthday:  birthday,
		Subjects:  teacherSubjects(req.Subjects),
	}
	if err := storage.DB.Create(&teacher).Error; err != nil {
		// Откатываем запись у провайдера, иначе останется сирота.
		if !identityClient.Compensate(user.ID) {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "MANUAL_CLEANUP_REQUIRED",
				Message: "Ошибка при создании преподавателя, откат у провайдера не удался",
				Details: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании преподавателя, запись у провайдера отменена",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Преподаватель успешно создан",
		"id":      teacher.ID,
	})
}

// UpdateTeacherHandler обрабатывает обновление преподавателя
// @Summary		Обновление преподавателя
// @Description	Обновляет данные у провайдера идентификации и в базе. Пароль меняется только если передан
// @Tags			teachers
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID преподавателя"
// @Param			teacher	body		TeacherRequest	true	"Данные преподавателя"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Преподаватель обновлен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Преподаватель не найден (TEACHER_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/teachers/{id} [put]
func UpdateTeacherHandler(c *gin.Context) {
	id := c.Param("id")

	var req TeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Дата рождения должна быть в формате YYYY-MM-DD",
		})
		return
	}

	var teacher models.Teacher
	if err := storage.DB.First(&teacher, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "TEACHER_NOT_FOUND",
			Message: "Преподаватель не найден",
		})
		return
	}

	if teacherFieldsTaken(c, req, id) {
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
		"username":   req.Username,
		"name":       req.Name,
		"surname":    req.Surname,
		"email":      req.Email,
		"phone":      req.Phone,
		"address":    req.Address,
		"img":        req.Img,
		"blood_type": req.BloodType,
		"sex":        req.Sex,
		"birthday":   birthday,
	}
	if err := storage.DB.Model(&teacher).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении преподавателя",
			Details: err.Error(),
		})
		return
	}

	if err := storage.DB.Model(&teacher).Association("Subjects").Replace(teacherSubjects(req.Subjects)); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении предметов преподавателя",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Преподаватель успешно обновлен",
	})
}

// DeleteTeacherHandler обрабатывает удаление преподавателя
// @Summary		Удаление преподавателя
// @Description	Удаляет преподавателя у провайдера идентификации и в базе, если за ним не числятся занятия и классы
// @Tags			teachers
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID преподавателя"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Преподаватель удален"
// @Failure		400	{object}	response.ErrorResponse	"За преподавателем числятся занятия или классы (TEACHER_HAS_LESSONS, TEACHER_SUPERVISES_CLASS)"
// @Failure		404	{object}	response.ErrorResponse	"Преподаватель не найден (TEACHER_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/teachers/{id} [delete]
func DeleteTeacherHandler(c *gin.Context) {
	id := c.Param("id")

	var teacher models.Teacher
	if err := storage.DB.First(&teacher, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "TEACHER_NOT_FOUND",
			Message: "Преподаватель не найден",
		})
		return
	}

	var lessons int64
	storage.DB.Model(&models.Lesson{}).Where("teacher_id = ?", id).Count(&lessons)
	if lessons > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "TEACHER_HAS_LESSONS",
			Message: "Нельзя удалить преподавателя, за которым числятся занятия",
		})
		return
	}

	var classes int64
	storage.DB.Model(&models.Class{}).Where("supervisor_id = ?", id).Count(&classes)
	if classes > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "TEACHER_SUPERVISES_CLASS",
			Message: "Нельзя удалить классного руководителя, сначала переназначьте классы",
		})
		return
	}

	if err := identityClient.DeleteUser(c.Request.Context(), id); err != nil {
		respondIdentityError(c, err)
		return
	}

	if err := storage.DB.Model(&teacher).Association("Subjects").Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при отвязке предметов преподавателя",
			Details: err.Error(),
		})
		return
	}
	if err := storage.DB.Delete(&teacher).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении преподавателя",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Преподаватель успешно удален",
	})
}

// TeacherListResponse — страница списка преподавателей.
type TeacherListResponse struct {
	Items []models.Teacher `json:"items"`
	Page  int              `json:"page"`
	Total int64            `json:"total"`
}

// ListTeachersHandler обрабатывает запрос списка преподавателей
// @Summary		Список преподавателей
// @Description	Возвращает страницу преподавателей с фильтром по классу (преподаватели, ведущие занятия в классе) и поиском по имени
// @Tags			teachers
// @Accept			json
// @Produce		json
// @Param			classId	query		string	false	"Фильтр по классу"
// @Param			search	query		string	false	"Поиск по имени, фамилии или username"
// @Param			page	query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	TeacherListResponse	"Страница преподавателей"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/teachers [get]
func ListTeachersHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Teacher{})
	if classID := c.Query("classId"); classID != "" {
		q = q.Where("id IN (?)",
			storage.DB.Model(&models.Lesson{}).Select("teacher_id").Where("class_id = ?", classID))
	}
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("name ILIKE ? OR surname ILIKE ? OR username ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки преподавателей",
			Details: err.Error(),
		})
		return
	}

	var teachers []models.Teacher
	if err := q.Preload("Subjects").Preload("Classes").
		Order("surname, name").
		Limit(pageSize).Offset(offset).
		Find(&teachers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки преподавателей",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, TeacherListResponse{Items: teachers, Page: page, Total: total})
}
