package main

import (
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/The-TM1/QuizBot/internal/bot"
	"github.com/The-TM1/QuizBot/internal/database"
	"github.com/The-TM1/QuizBot/internal/handlers"
	"github.com/The-TM1/QuizBot/internal/keepalive"
	"github.com/The-TM1/QuizBot/internal/quiz"
	"github.com/The-TM1/QuizBot/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	// Logger config from env (LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT)
	loggerConfig := &logger.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
		Output: getEnv("LOG_OUTPUT", "stdout"),
	}
	zapLogger, err := logger.New(loggerConfig, logger.DefaultServiceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		zap.L().Fatal("BOT_TOKEN is required")
	}

	ownerIDStr := os.Getenv("OWNER_ID")
	if ownerIDStr == "" {
		zap.L().Fatal("OWNER_ID is required")
	}
	ownerID, err := strconv.ParseInt(ownerIDStr, 10, 64)
	if err != nil {
		zap.L().Fatal("Invalid OWNER_ID", zap.Error(err))
	}

	envAdminIDs, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		zap.L().Fatal("Invalid ADMIN_IDS", zap.Error(err))
	}

	db, err := database.New(database.Config{Path: getEnv("DB_PATH", "quizbot.db")})
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	zap.L().Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		zap.L().Fatal("Failed to run migrations", zap.Error(err))
	}

	b, err := bot.New(botToken, db, ownerID, envAdminIDs)
	if err != nil {
		zap.L().Fatal("Failed to create bot", zap.Error(err))
	}

	eng := quiz.NewEngine(db, b)

	go func() {
		if err := keepalive.Serve(os.Getenv("PORT")); err != nil {
			zap.L().Error("Keepalive server stopped", zap.Error(err))
		}
	}()

	zap.L().Info("Bot started successfully")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.Message != nil:
			if !update.Message.Chat.IsPrivate() {
				continue
			}
			if update.Message.IsCommand() {
				handlers.HandleCommand(b, eng, update.Message)
			} else {
				handlers.HandleMessage(b, update.Message)
			}

		case update.CallbackQuery != nil:
			handlers.HandleCallbackQuery(b, eng, update.CallbackQuery)

		case update.PollAnswer != nil:
			handlers.HandlePollAnswer(eng, update.PollAnswer)
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parseAdminIDs splits a comma separated id list, tolerating blanks.
func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
