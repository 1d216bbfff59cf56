package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/korjavin/gamenight/pkg/bot"
	"github.com/korjavin/gamenight/pkg/config"
	"github.com/korjavin/gamenight/pkg/dialogue"
	"github.com/korjavin/gamenight/pkg/health"
	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/korjavin/gamenight/pkg/messages"
	"github.com/korjavin/gamenight/pkg/openai"
	"github.com/korjavin/gamenight/pkg/reminder"
	"github.com/korjavin/gamenight/pkg/session"
	"github.com/korjavin/gamenight/pkg/storage/sqlite"
	"github.com/korjavin/gamenight/pkg/telegram"
)

// version is stamped by the build, e.g. -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	log := logger.Global
	log.Info("Starting GameNight bot...")

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	// Initialize storage
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Error("Failed to create data directory: %v", err)
		os.Exit(1)
	}
	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("Failed to open storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	dialogues, err := dialogue.New(cfg.StateDir)
	if err != nil {
		log.Error("Failed to open dialogue store: %v", err)
		os.Exit(1)
	}
	defer dialogues.Close()

	// Start BadgerDB garbage collection
	dialogues.StartGCRoutine(10 * time.Minute)

	// Initialize OpenAI client
	openaiClient := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIAPIBase, cfg.OpenAIModel)

	// Initialize services
	messageService := messages.New(openaiClient)
	sessionService := session.New(store)

	// Initialize Telegram bot
	tgBot, err := telegram.New(cfg.BotToken)
	if err != nil {
		log.Error("Failed to initialize Telegram bot: %v", err)
		os.Exit(1)
	}

	reminderService := reminder.New(store, tgBot, cfg.ReminderInterval)
	reminderService.Start()

	healthServer := health.New(store, version)
	healthServer.Start(fmt.Sprintf(":%d", cfg.HTTPPort))

	handlers := bot.New(tgBot, sessionService, reminderService, dialogues, messageService)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down...")
		reminderService.Stop()
		tgBot.Stop()
	}()

	// Start the bot; this blocks until Stop closes the update stream.
	log.Info("Bot is now running. Press CTRL-C to exit.")
	if err := tgBot.Start(handlers.CommandHandlers(), handlers.CallbackHandlers(), handlers.DefaultHandler()); err != nil {
		log.Error("Error running bot: %v", err)
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
