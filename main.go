package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/example/langsched/internal/bot"
	"github.com/example/langsched/internal/config"
	"github.com/example/langsched/internal/database"
	"github.com/example/langsched/internal/learning"
	"github.com/example/langsched/internal/mastery"
	"github.com/example/langsched/internal/priority"
	"github.com/example/langsched/internal/queue"
	"github.com/example/langsched/internal/scheduler"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "langsched",
		Short:         "Adaptive scheduler for language learning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(levelCmd())
	rootCmd.AddCommand(rebuildCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// app holds the wired dependencies shared by all commands
type app struct {
	cfg     *config.Config
	db      *sqlx.DB
	users   *database.UserRepository
	objects *database.ObjectRepository
	states  *database.MasteryRepository
	logs    *database.ReviewLogRepository
	service *learning.Service
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	fsrs, err := cfg.Scheduling.FSRS()
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		users:   database.NewUserRepository(db),
		objects: database.NewObjectRepository(db),
		states:  database.NewMasteryRepository(db),
		logs:    database.NewReviewLogRepository(db),
	}
	a.service = learning.NewService(a.users, a.objects, a.states, a.logs,
		mastery.NewEngine(fsrs, cfg.Scheduling.Thresholds),
		queue.NewBuilder(fsrs, priority.NewModel()),
		learning.Options{
			NewItemRatio: cfg.Scheduling.NewItemRatio,
			SessionSize:  cfg.Scheduling.SessionSize,
		})
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			// Создаем канал для сигналов
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			// Создаем контекст с отменой
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			b, err := bot.New(a.cfg.Telegram.Token, a.cfg.Telegram.AdminUserIDs, a.service, a.users, a.objects)
			if err != nil {
				return err
			}

			var sched *scheduler.Scheduler
			if a.cfg.Scheduler.Enabled {
				sched = scheduler.New(a.cfg.Scheduler, b, a.users, a.service)
				if err := sched.Start(ctx); err != nil {
					return err
				}
				b.SetReminder(sched)
			}

			// Канал для ожидания завершения бота
			done := make(chan struct{})

			// Горутина для обработки сигналов
			go func() {
				sig := <-sigChan
				log.Printf("Received signal: %v", sig)
				cancel()

				// Даем время на graceful shutdown
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if sched != nil {
					sched.Stop()
				}
				if err := b.Stop(shutdownCtx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}

				close(done)
			}()

			log.Println("Bot started. Press Ctrl+C to stop.")
			go func() {
				if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("Bot error: %v", err)
					sigChan <- syscall.SIGTERM
				}
			}()

			<-done
			log.Println("Bot stopped successfully")
			return nil
		},
	}
}
