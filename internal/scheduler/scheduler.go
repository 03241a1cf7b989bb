package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(userID int64, dueCount int) error
}

// Scheduler runs the hourly reminder sweep: users whose notification hour
// matches and who have reviews due get a nudge with the due count.
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	userRepo  *database.UserRepository
	records   *database.MemoryRecordRepository
	hours     config.Notifications
	log       *zap.Logger
}

// New creates a new scheduler instance
func New(cfg *config.Config, notifier Notifier, log *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		userRepo:  database.NewUserRepository(),
		records:   database.NewMemoryRecordRepository(),
		hours:     cfg.Notifications,
		log:       log,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders finds users due a reminder at the current hour.
func (s *Scheduler) checkAndSendReminders() {
	currentHour := time.Now().Hour()

	if currentHour < s.hours.StartHour || currentHour > s.hours.EndHour {
		s.log.Debug("outside notification hours, skipping reminders",
			zap.Int("hour", currentHour),
			zap.Int("start", s.hours.StartHour),
			zap.Int("end", s.hours.EndHour))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, err := s.userRepo.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		s.log.Error("failed to get users for notification", zap.Error(err))
		return
	}

	for _, user := range users {
		dueCount, err := s.records.CountDue(ctx, user.ID, time.Now())
		if err != nil {
			s.log.Error("failed to count due records",
				zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		if dueCount == 0 {
			continue
		}

		if err := s.notifier.SendReminder(user.ID, dueCount); err != nil {
			s.log.Error("failed to send reminder",
				zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
}
