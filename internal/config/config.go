package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	ServerAddr string

	// Database configuration
	DatabaseURL string

	// CORS configuration
	AllowedOrigins []string

	// Invoice defaults
	DefaultCurrency string

	// Recurring invoice scheduler
	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	// Gmail sync
	GmailSyncMaxResults int
	MaxGmailAccounts    int

	// Email notifications
	EmailProvider      string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	EmailAPIKey        string
	EmailFromAddress   string
	EmailFromName      string
	EmailNotifyAddress string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = ":8080"
	}

	// Allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173"}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = []string{origins}
	}

	defaultCurrency := os.Getenv("DEFAULT_CURRENCY")
	if defaultCurrency == "" {
		defaultCurrency = "HUF"
	}

	schedulerEnabled := os.Getenv("RECURRING_SCHEDULER_ENABLED") != "false"
	schedulerInterval := time.Duration(envInt("RECURRING_SCHEDULER_INTERVAL_SECONDS", 300)) * time.Second

	smtpPort := envInt("SMTP_PORT", 587)

	return &Config{
		ServerAddr:          serverAddr,
		DatabaseURL:         databaseURL,
		AllowedOrigins:      allowedOrigins,
		DefaultCurrency:     defaultCurrency,
		SchedulerEnabled:    schedulerEnabled,
		SchedulerInterval:   schedulerInterval,
		GmailSyncMaxResults: envInt("GMAIL_SYNC_MAX_RESULTS", 50),
		MaxGmailAccounts:    envInt("MAX_GMAIL_ACCOUNTS", 2),
		EmailProvider:       os.Getenv("EMAIL_PROVIDER"),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            smtpPort,
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		EmailAPIKey:         os.Getenv("EMAIL_API_KEY"),
		EmailFromAddress:    os.Getenv("EMAIL_FROM_ADDRESS"),
		EmailFromName:       os.Getenv("EMAIL_FROM_NAME"),
		EmailNotifyAddress:  os.Getenv("EMAIL_NOTIFY_ADDRESS"),
	}, nil
}

// envInt reads an integer environment variable, falling back to def when
// unset or malformed.
func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}
