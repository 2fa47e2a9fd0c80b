package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/langsched/internal/config"
	"github.com/example/langsched/pkg/models"
)

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	users     UserLister
	due       DueCounter
	cfg       config.SchedulerConfig
	now       func() time.Time

	mu       sync.Mutex
	notified map[int64]time.Time // user -> hour of the last reminder
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(userID int64, count int) error
}

// UserLister returns users who want a reminder at the given hour
type UserLister interface {
	GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// DueCounter counts due reviews of a user
type DueCounter interface {
	DueCount(ctx context.Context, userID int64, now time.Time) (int, error)
}

// New creates a new scheduler instance
func New(cfg config.SchedulerConfig, notifier Notifier, users UserLister, due DueCounter) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		users:     users,
		due:       due,
		cfg:       cfg,
		now:       time.Now,
		notified:  make(map[int64]time.Time),
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start(ctx context.Context) error {
	// Rebuild queues and remind users with due reviews
	_, err := s.scheduler.Every(s.cfg.ReminderInterval).Do(func() {
		s.checkAndSendReminders(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminders: %v", err)
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	log.Printf("Reminder scheduler started, interval %s", s.cfg.ReminderInterval)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// checkAndSendReminders checks for users who need reminders and sends them
func (s *Scheduler) checkAndSendReminders(ctx context.Context) {
	now := s.now().UTC()
	currentHour := now.Hour()

	if currentHour < s.cfg.NotificationStartHour || currentHour > s.cfg.NotificationEndHour {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, s.cfg.NotificationStartHour, s.cfg.NotificationEndHour)
		return
	}

	users, err := s.users.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		log.Printf("Error getting users for notification: %v", err)
		return
	}

	hour := now.Truncate(time.Hour)
	for _, user := range users {
		if s.alreadyNotified(user.ID, hour) {
			continue
		}

		count, err := s.due.DueCount(ctx, user.ID, now)
		if err != nil {
			log.Printf("Error counting due reviews for user %d: %v", user.ID, err)
			continue
		}
		if count == 0 {
			continue
		}

		// Don't announce more than one session
		if user.SessionSize > 0 && count > user.SessionSize {
			count = user.SessionSize
		}

		if err := s.notifier.SendReminders(user.ID, count); err != nil {
			log.Printf("Error sending reminder to user %d: %v", user.ID, err)
			continue
		}
		s.markNotified(user.ID, hour)
	}
}

func (s *Scheduler) alreadyNotified(userID int64, hour time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.notified[userID]
	return ok && last.Equal(hour)
}

func (s *Scheduler) markNotified(userID int64, hour time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[userID] = hour
}

// RunManualCheck reminds one user right away, ignoring the notification
// window, and returns the announced count. Nothing is sent when no review is
// due. A sent reminder counts for the current hour's run.
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) (int, error) {
	now := s.now().UTC()
	count, err := s.due.DueCount(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.notifier.SendReminders(userID, count); err != nil {
		return 0, err
	}
	s.markNotified(userID, now.Truncate(time.Hour))
	return count, nil
}
