package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Sessions untouched for longer than this are dropped
	SessionTTL time.Duration
	// Answers slower than this are recorded with this duration
	MaxAnswerTime time.Duration
	// Telegram long polling timeout in seconds
	UpdateTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		SessionTTL:    time.Hour * 2,
		MaxAnswerTime: time.Minute * 5,
		UpdateTimeout: 60,
	}
}
