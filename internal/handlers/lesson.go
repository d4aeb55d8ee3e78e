package handlers

import (
	"fmt"
	"net/http"

	"schoolhub/internal/auth"
	"schoolhub/internal/models"
	"schoolhub/internal/response"
	"schoolhub/internal/schedule"
	"schoolhub/internal/storage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Планировщик занятий, общий для всех хэндлеров. Инициализируется в main
// после подключения базы.
var lessonPlanner *schedule.Planner

// InitLessonPlanner связывает планировщик с хэндлом базы данных.
func InitLessonPlanner(db *gorm.DB) {
	lessonPlanner = schedule.NewPlanner(db)
}

// LessonRequest — полезная нагрузка формы занятия. Имена полей совпадают с
// формой веб-клиента, времена — строки ISO-8601.
type LessonRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name" binding:"required"`
	Day       string `json:"day" binding:"omitempty,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
	SubjectID string `json:"subjectId" binding:"required"`
	ClassID   string `json:"classId" binding:"required"`
	TeacherID string `json:"teacherId" binding:"required"`
}

func scheduleErrorStatus(code string) int {
	switch code {
	case schedule.CodeSubjectNotFound, schedule.CodeLessonNotFound:
		return http.StatusNotFound
	case schedule.CodeTeacherConflict, schedule.CodeClassConflict:
		return http.StatusConflict
	case schedule.CodeDBError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func respondScheduleError(c *gin.Context, err error) {
	if serr, ok := err.(*schedule.Error); ok {
		c.JSON(scheduleErrorStatus(serr.Code), response.ErrorResponse{
			Code:    serr.Code,
			Message: serr.Message,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, response.ErrorResponse{
		Code:    "DB_ERROR",
		Message: "Ошибка при сохранении занятия",
		Details: err.Error(),
	})
}

// dropClassScheduleCache сбрасывает закэшированное недельное расписание класса.
func dropClassScheduleCache(classID string) {
	if storage.RedisClient != nil {
		storage.RedisClient.Del(ctx, "class_schedule_"+classID)
	}
}

// CreateLessonHandler обрабатывает создание занятия
// @Summary		Создание занятия
// @Description	Проверяет окно времени, допуск преподавателя к предмету и пересечения у преподавателя и класса, затем создает занятие
// @Tags			lessons
// @Accept			json
// @Produce		json
// @Param			lesson	body		LessonRequest	true	"Данные занятия"
// @Security		BearerAuth
// @Success		201	{object}	response.CreatedResponse	"Занятие создано"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (MALFORMED_INPUT, OUTSIDE_OPERATING_HOURS, CROSSES_DAY_BOUNDARY, NON_POSITIVE_DURATION, TEACHER_NOT_AUTHORIZED)"
// @Failure		403	{object}	response.ErrorResponse	"Преподаватель может создавать только свои занятия (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Предмет не найден (SUBJECT_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Пересечение занятий (TEACHER_CONFLICT, CLASS_CONFLICT)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/lessons [post]
func CreateLessonHandler(c *gin.Context) {
	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	// Преподаватель может создавать занятия только для себя.
	if c.GetString("role") == auth.RoleTeacher && req.TeacherID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Преподаватель может создавать только свои занятия",
		})
		return
	}

	id, err := lessonPlanner.CreateLesson(schedule.LessonInput{
		Name:      req.Name,
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SubjectID: req.SubjectID,
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		respondScheduleError(c, err)
		return
	}

	dropClassScheduleCache(req.ClassID)

	c.JSON(http.StatusCreated, response.CreatedResponse{
		Message: "Занятие успешно создано",
		ID:      id,
	})
}

// UpdateLessonHandler обрабатывает обновление занятия
// @Summary		Обновление занятия
// @Description	Полностью заменяет поля занятия после той же цепочки проверок, что и при создании; пересечения проверяются без учета самого занятия
// @Tags			lessons
// @Accept			json
// @Produce		json
// @Param			id		path		string			true	"ID занятия"
// @Param			lesson	body		LessonRequest	true	"Данные занятия"
// @Security		BearerAuth
// @Success		200	{object}	response.CreatedResponse	"Занятие обновлено"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации"
// @Failure		403	{object}	response.ErrorResponse	"Преподаватель может менять только свои занятия (FORBIDDEN)"
// @Failure		404	{object}	response.ErrorResponse	"Занятие или предмет не найдены (LESSON_NOT_FOUND, SUBJECT_NOT_FOUND)"
// @Failure		409	{object}	response.ErrorResponse	"Пересечение занятий (TEACHER_CONFLICT, CLASS_CONFLICT)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/lessons/{id} [put]
func UpdateLessonHandler(c *gin.Context) {
	var req LessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Ошибка валидации данных",
			Details: err.Error(),
		})
		return
	}

	if c.GetString("role") == auth.RoleTeacher && req.TeacherID != c.GetString("userID") {
		c.JSON(http.StatusForbidden, response.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "Преподаватель может менять только свои занятия",
		})
		return
	}

	req.ID = c.Param("id")
	id, err := lessonPlanner.UpdateLesson(schedule.LessonInput{
		ID:        req.ID,
		Name:      req.Name,
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SubjectID: req.SubjectID,
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		respondScheduleError(c, err)
		return
	}

	dropClassScheduleCache(req.ClassID)

	c.JSON(http.StatusOK, response.CreatedResponse{
		Message: "Занятие успешно обновлено",
		ID:      id,
	})
}

// DeleteLessonHandler обрабатывает удаление занятия
// @Summary		Удаление занятия
// @Description	Удаляет занятие, если на него не ссылаются экзамены, задания или посещаемость
// @Tags			lessons
// @Accept			json
// @Produce		json
// @Param			id	path		string	true	"ID занятия"
// @Security		BearerAuth
// @Success		200	{object}	response.SuccessResponse	"Занятие удалено"
// @Failure		400	{object}	response.ErrorResponse	"Ошибка валидации (INVALID_LESSON_ID, LESSON_HAS_DEPENDENTS)"
// @Failure		404	{object}	response.ErrorResponse	"Занятие не найдено (LESSON_NOT_FOUND)"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/lessons/{id} [delete]
func DeleteLessonHandler(c *gin.Context) {
	id, ok := idParam(c, "INVALID_LESSON_ID", "Неверный идентификатор занятия")
	if !ok {
		return
	}

	var lesson models.Lesson
	if err := storage.DB.First(&lesson, id).Error; err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{
			Code:    "LESSON_NOT_FOUND",
			Message: "Занятие не найдено",
		})
		return
	}

	var exams, assignments, attendances int64
	storage.DB.Model(&models.Exam{}).Where("lesson_id = ?", id).Count(&exams)
	storage.DB.Model(&models.Assignment{}).Where("lesson_id = ?", id).Count(&assignments)
	storage.DB.Model(&models.Attendance{}).Where("lesson_id = ?", id).Count(&attendances)

	if exams > 0 || assignments > 0 || attendances > 0 {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{
			Code: "LESSON_HAS_DEPENDENTS",
			Message: fmt.Sprintf("Нельзя удалить занятие: на него ссылаются %d экзамен(ов), %d задание(й) и %d записей посещаемости",
				exams, assignments, attendances),
		})
		return
	}

	if err := storage.DB.Delete(&models.Lesson{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка при удалении занятия",
			Details: err.Error(),
		})
		return
	}

	dropClassScheduleCache(fmt.Sprintf("%d", lesson.ClassID))

	c.JSON(http.StatusOK, response.SuccessResponse{
		Message: "Занятие успешно удалено",
	})
}

// LessonListResponse — страница списка занятий.
type LessonListResponse struct {
	Items []models.Lesson `json:"items"`
	Page  int             `json:"page"`
	Total int64           `json:"total"`
}

// ListLessonsHandler обрабатывает запрос списка занятий
// @Summary		Список занятий
// @Description	Возвращает страницу занятий с фильтрами по преподавателю, классу и поиском по названию
// @Tags			lessons
// @Accept			json
// @Produce		json
// @Param			teacherId	query		string	false	"Фильтр по преподавателю"
// @Param			classId		query		string	false	"Фильтр по классу"
// @Param			search		query		string	false	"Поиск по названию занятия или предмета"
// @Param			page		query		int		false	"Номер страницы"
// @Security		BearerAuth
// @Success		200	{object}	LessonListResponse	"Страница занятий"
// @Failure		500	{object}	response.ErrorResponse	"Ошибка сервера (DB_ERROR)"
// @Router			/api/lessons [get]
func ListLessonsHandler(c *gin.Context) {
	page, offset := pageParam(c)

	q := storage.DB.Model(&models.Lesson{})
	if teacherID := c.Query("teacherId"); teacherID != "" {
		q = q.Where("teacher_id = ?", teacherID)
	}
	if classID := c.Query("classId"); classID != "" {
		q = q.Where("class_id = ?", classID)
	}
	if search := c.Query("search"); search != "" {
		q = q.Joins("JOIN subjects ON subjects.id = lessons.subject_id").
			Where("lessons.name ILIKE ? OR subjects.name ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки занятий",
			Details: err.Error(),
		})
		return
	}

	var lessons []models.Lesson
	if err := q.Preload("Subject").Preload("Class").Preload("Teacher").
		Order("day, start_time").
		Limit(pageSize).Offset(offset).
		Find(&lessons).Error; err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{
			Code:    "DB_ERROR",
			Message: "Ошибка загрузки занятий",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, LessonListResponse{Items: lessons, Page: page, Total: total})
}
