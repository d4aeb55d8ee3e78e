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

// StudentRequest — полезная нагрузка формы ученика.
type StudentRequest struct {
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
	GradeID   uint    `json:"gradeId" binding:"required"`
	ClassID   uint    `json:"classId" binding:"required"`
	ParentID  string  `json:"parentId" binding:"required"`
}

// studentFieldsTaken проверяет уникальность username, email и телефона среди
// учеников. При конфликте сам пишет ответ и возвращает true.
func studentFieldsTaken(c *gin.Context, req StudentRequest, excludeID string) bool {
	var taken models.Student

	q := storage.DB.Where("username = ?", req.Username)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&taken).Error; err == nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "USERNAME_EXISTS",
			Message: "Ученик с таким username уже существует",
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
				Message: "Ученик с таким email уже существует",
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
				Message: "Ученик с таким телефоном уже существует",
			})
			return true
		}
	}

	return false
}

// validateStudentRefs проверяет родителя, класс и параллель: родитель
// существует, в классе есть место (excludeID не учитывается в подсчете),
// класс принадлежит указанной параллели. При ошибке сам пишет ответ и
// возвращает false.
func validateStudentRefs(c *gin.Context, req StudentRequest, excludeID string) bool {
	var parent models.Parent
	if err := storage.DB.First(&parent, "id = ?", req.ParentID).Error; err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "PARENT_NOT_FOUND",
			Message: "Родитель не найден",
		})
		return false
	}

	var class models.Class
	if err := storage.DB.First(&class, req.ClassID).Error; err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CLASS_NOT_FOUND",
			Message: "Класс не найден",
		})
		return false
	}

	if class.GradeID != req.GradeID {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "GRADE_MISMATCH",
			Message: "Класс не принадлежит указанной параллели",
		})
		return false
	}

	cq := storage.DB.Model(&models.Student{}).Where("class_id = ?", req.ClassID)
	if excludeID != "" {
		cq = cq.Where("id <> ?", excludeID)
	}
	var enrolled int64
	cq.Count(&enrolled)
	if enrolled >= int64(class.Capacity) {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "CLASS_FULL",
			Message: "В классе нет свободных мест",
		})
		return false
	}

	return true
}

// CreateStudentHandler обрабатывает создание ученика
// @Summary		Создание ученика
// @Description	Создает учетную запись у провайдера идентификации и зеркальную запись в базе. Проверяет родителя, вместимость класса и соответствие класса параллели
// @Tags			students
// @Accept			json
// @Produce		json
// @Param			student	body		StudentRequest	true	"Данные ученика"
// @Security		BearerAuth
// @Success		201	{object}	response.SuccessResponse	"Ученик создан"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (VALIDATION_ERROR, USERNAME_EXISTS, PARENT_NOT_FOUND, CLASS_FULL, GRADE_MISMATCH, PASSWORD_PWNED)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/students [post]
func CreateStudentHandler(c *gin.Context) {
	var req StudentRequest
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

	if studentFieldsTaken(c, req, "") {
		return
	}
	if !validateStudentRefs(c, req, "") {
		return
	}

	user, err := identityClient.CreateUser(c.Request.Context(), identity.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.Name,
		LastName:  req.Surname,
		Role:      auth.RoleStudent,
	})
	if err != nil {
		respondIdentityError(c, err)
		return
	}

	student := models.Student{
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
		GradeID:   req.GradeID,
		ClassID:   req.ClassID,
		ParentID:  req.ParentID,
	}
	if err := storage.DB.Create(&student).Error; err != nil {
		if !identityClient.Compensate(user.ID) {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{
				Code:    "MANUAL_CLEANUP_REQUIRED",
				Message: "Ошибка при создании ученика, откат у провайдера не удался",
				Details: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при создании ученика, запись у провайдера отменена",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Ученик успешно создан",
		"id":      student.ID,
	})
}

// UpdateStudentHandler обрабатывает обновление ученика
// @Summary		Обновление ученика
// @Description	Обновляет данные у провайдера идентификации и в базе, включая перевод в другой класс с проверкой вместимости
// @Tags			students
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID ученика"
// @Param			student	body		StudentRequest	true	"Данные ученика"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Ученик обновлен"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		404	{object}	response.ErrorResponse	"Ученик не найден (STUDENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/students/{id} [put]
func UpdateStudentHandler(c *gin.Context) {
	id := c.Param("id")

	var req StudentRequest
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

	var student models.Student
	if err := storage.DB.First(&student, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "Ученик не найден",
		})
		return
	}

	if studentFieldsTaken(c, req, id) {
		return
	}
	if !validateStudentRefs(c, req, id) {
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
		"grade_id":   req.GradeID,
		"class_id":   req.ClassID,
		"parent_id":  req.ParentID,
	}
	if err := storage.DB.Model(&student).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при обновлении ученика",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Ученик успешно обновлен",
	})
}

// DeleteStudentHandler обрабатывает удаление ученика
// @Summary		Удаление ученика
// @Description	Удаляет ученика у провайдера идентификации и в базе вместе с его результатами и посещаемостью
// @Tags			students
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID ученика"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Ученик удален"
// @Failure		404	{object}	response.ErrorResponse	"Ученик не найден (STUDENT_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Failure		502	{object}	response.ErrorResponse	"Провайдер идентификации недоступен (IDENTITY_ERROR)"
// @Router			/api/students/{id} [delete]
func DeleteStudentHandler(c *gin.Context) {
	id := c.Param("id")

	var student models.Student
	if err := storage.DB.First(&student, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "STUDENT_NOT_FOUND",
			Message: "Ученик не найден",
		})
		return
	}

	if err := identityClient.DeleteUser(c.Request.Context(), id); err != nil {
		respondIdentityError(c, err)
		return
	}

	// Результаты и посещаемость ученика удаляются вместе с ним.
	if err := storage.DB.Where("student_id = ?", id).Delete(&models.Result{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении результатов ученика",
			Details: err.Error(),
		})
		return
	}
	if err := storage.DB.Where("student_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении посещаемости ученика",
			Details: err.Error(),
		})
		return
	}
	if err := storage.DB.Delete(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении ученика",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Ученик успешно удален",
	})
}

// StudentListResponse — страница списка учеников.
type StudentListResponse struct {
	Items []models.Student `json:"items"`
	Page  int              `json:"page"`
	Total int64            `json:"total"`
}

// ListStudentsHandler обрабатывает запрос списка учеников
// @Summary		Список учеников
// @Description	Возвращает страницу учеников с фильтрами по классу, родителю и преподавателю (ученики классов, где преподаватель ведет занятия)
// @Tags			students
// @Accept			json
// @Produce		json
// @Param			classId		query		string	false	"Фильтр по классу"
// @Param			parentId	query		string	false	"Фильтр по родителю"
// @Param			teacherId	query		string	false	"Фильтр по преподавателю"
// @Param			search		query		string	false	"Поиск по имени, фамилии или username"
// @Param			page		query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	StudentListResponse	"Страница учеников"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/students [get]
func ListStudentsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Student{})
	if classID := c.Query("classId"); classID != "" {
		q = q.Where("class_id = ?", classID)
	}
	if parentID := c.Query("parentId"); parentID != "" {
		q = q.Where("parent_id = ?", parentID)
	}
	if teacherID := c.Query("teacherId"); teacherID != "" {
		q = q.Where("class_id IN (?)",
			storage.DB.Model(&models.Lesson{}).Select("class_id").Where("teacher_id = ?", teacherID))
	}
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		q = q.Where("name ILIKE ? OR surname ILIKE ? OR username ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки учеников",
			Details: err.Error(),
		})
		return
	}

	var students []models.Student
	if err := q.Preload("Grade").Preload("Class").Preload("Parent").
		Order("surname, name").
		Limit(pageSize).Offset(offset).
		Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки учеников",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, StudentListResponse{Items: students, Page: page, Total: total})
}
