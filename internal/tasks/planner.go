package tasks

import (
	"fmt"
	"time"

	"schoolhub/internal/logger"
	"schoolhub/internal/models"
	"schoolhub/internal/storage"
	"schoolhub/internal/ws"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RemindUpcomingExams ищет экзамены, до начала которых осталось меньше
// 24 часов, и рассылает напоминание в канал класса. Повторная рассылка
// блокируется флагом ReminderSent.
func RemindUpcomingExams() {
	now := time.Now()
	startWindow := now
	endWindow := now.Add(24 * time.Hour).Add(5 * time.Minute)

	var exams []models.Exam
	if err := storage.DB.
		Preload("Lesson").
		Where("start_time BETWEEN ? AND ? AND reminder_sent = ?", startWindow, endWindow, false).
		Find(&exams).Error; err != nil {
		logger.Log.Error("Ошибка при поиске экзаменов для напоминаний", zap.Error(err))
		return
	}

	if len(exams) == 0 {
		return
	}

	for _, exam := range exams {
		// Экзамен уже начался — напоминать поздно.
		if exam.StartTime.Before(now) {
			continue
		}

		ws.HubInstance.BroadcastNotice(ws.Notice{
			EventType: "exam_reminder",
			ClassID:   fmt.Sprintf("%d", exam.Lesson.ClassID),
			Data: map[string]interface{}{
				"exam_id":    exam.ID,
				"title":      exam.Title,
				"start_time": exam.StartTime.Format(time.RFC3339),
			},
		})

		if err := storage.DB.Model(&models.Exam{}).Where("id = ?", exam.ID).
			Update("reminder_sent", true).Error; err != nil {
			logger.Log.Error("Ошибка при отметке напоминания", zap.Uint("exam_id", exam.ID), zap.Error(err))
		} else {
			logger.Log.Info("Напоминание об экзамене разослано",
				zap.Uint("exam_id", exam.ID), zap.String("title", exam.Title))
		}
	}
}

// CleanOldAnnouncements удаляет объявления старше 90 дней.
func CleanOldAnnouncements() {
	threshold := time.Now().AddDate(0, 0, -90)
	if err := storage.DB.Where("date < ?", threshold).Delete(&models.Announcement{}).Error; err != nil {
		logger.Log.Error("Ошибка при удалении устаревших объявлений", zap.Error(err))
	} else {
		logger.Log.Info("Устаревшие объявления успешно удалены")
	}
}

// InitScheduler инициализирует планировщик cron-задач.
func InitScheduler() *cron.Cron {
	c := cron.New(cron.WithSeconds())

	// Напоминания об экзаменах каждые 5 минут.
	if _, err := c.AddFunc("0 */5 * * * *", RemindUpcomingExams); err != nil {
		logger.Log.Error("Ошибка запуска cron-задачи RemindUpcomingExams", zap.Error(err))
	}

	// Очистка устаревших объявлений каждый день в 03:00.
	if _, err := c.AddFunc("0 0 3 * * *", CleanOldAnnouncements); err != nil {
		logger.Log.Error("Ошибка запуска cron-задачи CleanOldAnnouncements", zap.Error(err))
	}

	c.Start()
	logger.Log.Info("Cron-планировщик запущен")
	return c
}
