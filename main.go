package main

import (
	"fmt"
	"log"
	"os"
	"time"

	_ "schoolhub/docs"
	"schoolhub/internal/auth"
	"schoolhub/internal/handlers"
	"schoolhub/internal/identity"
	"schoolhub/internal/logger"
	"schoolhub/internal/models"
	"schoolhub/internal/storage"
	"schoolhub/internal/tasks"
	"schoolhub/internal/ws"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @Title						Школьный портал
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
func main() {
	key := os.Getenv("ENV_CHEK")
	if key == "" {
		fmt.Println("Подключение к .env")
		err := godotenv.Load()
		if err != nil {
			log.Fatal("Ошибка получения .env")
		}
	}

	logger.Init()

	storage.ConnectDatabase()

	if err := storage.DB.AutoMigrate(
		&models.Admin{}, &models.Teacher{}, &models.Student{}, &models.Parent{},
		&models.Grade{}, &models.Class{}, &models.Subject{}, &models.Lesson{},
		&models.Exam{}, &models.Assignment{}, &models.Result{}, &models.Attendance{},
		&models.Event{}, &models.Announcement{},
	); err != nil {
		log.Fatal("Ошибка при миграции... ", err.Error())
	}

	storage.InitRedis()

	handlers.InitLessonPlanner(storage.DB)
	handlers.InitIdentityClient(identity.NewClientFromEnv())

	tasks.InitScheduler()

	go ws.HubInstance.Run()

	r := gin.New()
	r.Use(ginzap.Ginzap(logger.Log, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger.Log, true))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api", auth.AuthMiddleware())
	{
		adminOnly := auth.RequireRoles(auth.RoleAdmin)
		staff := auth.RequireRoles(auth.RoleAdmin, auth.RoleTeacher)

		teachers := api.Group("/teachers")
		{
			teachers.GET("", handlers.ListTeachersHandler)
			teachers.POST("", adminOnly, handlers.CreateTeacherHandler)
			teachers.PUT("/:id", adminOnly, handlers.UpdateTeacherHandler)
			teachers.DELETE("/:id", adminOnly, handlers.DeleteTeacherHandler)
		}

		students := api.Group("/students")
		{
			students.GET("", handlers.ListStudentsHandler)
			students.POST("", adminOnly, handlers.CreateStudentHandler)
			students.PUT("/:id", adminOnly, handlers.UpdateStudentHandler)
			students.DELETE("/:id", adminOnly, handlers.DeleteStudentHandler)
		}

		parents := api.Group("/parents")
		{
			parents.GET("", handlers.ListParentsHandler)
			parents.POST("", adminOnly, handlers.CreateParentHandler)
			parents.PUT("/:id", adminOnly, handlers.UpdateParentHandler)
			parents.DELETE("/:id", adminOnly, handlers.DeleteParentHandler)
		}

		grades := api.Group("/grades")
		{
			grades.GET("", handlers.ListGradesHandler)
			grades.POST("", adminOnly, handlers.CreateGradeHandler)
		}

		classes := api.Group("/classes")
		{
			classes.GET("", handlers.ListClassesHandler)
			classes.GET("/:id/schedule", handlers.ClassScheduleHandler)
			classes.GET("/:id/ws", ws.ClassWebSocketHandler)
			classes.POST("", adminOnly, handlers.CreateClassHandler)
			classes.PUT("/:id", adminOnly, handlers.UpdateClassHandler)
			classes.DELETE("/:id", adminOnly, handlers.DeleteClassHandler)
		}

		subjects := api.Group("/subjects")
		{
			subjects.GET("", handlers.ListSubjectsHandler)
			subjects.POST("", adminOnly, handlers.CreateSubjectHandler)
			subjects.PUT("/:id", adminOnly, handlers.UpdateSubjectHandler)
			subjects.DELETE("/:id", adminOnly, handlers.DeleteSubjectHandler)
		}

		lessons := api.Group("/lessons")
		{
			lessons.GET("", handlers.ListLessonsHandler)
			lessons.POST("", staff, handlers.CreateLessonHandler)
			lessons.PUT("/:id", staff, handlers.UpdateLessonHandler)
			lessons.DELETE("/:id", staff, handlers.DeleteLessonHandler)
		}

		exams := api.Group("/exams")
		{
			exams.GET("", handlers.ListExamsHandler)
			exams.POST("", staff, handlers.CreateExamHandler)
			exams.PUT("/:id", staff, handlers.UpdateExamHandler)
			exams.DELETE("/:id", staff, handlers.DeleteExamHandler)
		}

		assignments := api.Group("/assignments")
		{
			assignments.GET("", handlers.ListAssignmentsHandler)
			assignments.POST("", staff, handlers.CreateAssignmentHandler)
			assignments.PUT("/:id", staff, handlers.UpdateAssignmentHandler)
			assignments.DELETE("/:id", staff, handlers.DeleteAssignmentHandler)
		}

		results := api.Group("/results")
		{
			results.GET("", handlers.ListResultsHandler)
			results.POST("", staff, handlers.CreateResultHandler)
			results.PUT("/:id", staff, handlers.UpdateResultHandler)
			results.DELETE("/:id", staff, handlers.DeleteResultHandler)
		}

		attendances := api.Group("/attendances")
		{
			attendances.GET("", handlers.ListAttendancesHandler)
			attendances.POST("", staff, handlers.CreateAttendanceHandler)
			attendances.PUT("/:id", staff, handlers.UpdateAttendanceHandler)
			attendances.DELETE("/:id", staff, handlers.DeleteAttendanceHandler)
		}

		announcements := api.Group("/announcements")
		{
			announcements.GET("", handlers.ListAnnouncementsHandler)
			announcements.GET("/count", handlers.CountAnnouncementsHandler)
			announcements.POST("", staff, handlers.CreateAnnouncementHandler)
			announcements.PUT("/:id", adminOnly, handlers.UpdateAnnouncementHandler)
			announcements.DELETE("/:id", adminOnly, handlers.DeleteAnnouncementHandler)
		}

		events := api.Group("/events")
		{
			events.GET("", handlers.ListEventsHandler)
			events.POST("", adminOnly, handlers.CreateEventHandler)
			events.PUT("/:id", adminOnly, handlers.UpdateEventHandler)
			events.DELETE("/:id", adminOnly, handlers.DeleteEventHandler)
		}
	}

	if err := r.Run(":8080"); err != nil {
		log.Fatal("Ошибка запуска сервера...", err.Error())
	}
}
