package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/hphungg/chatbot-sub001/api"
	"github.com/hphungg/chatbot-sub001/auth"
	"github.com/hphungg/chatbot-sub001/contract"
	"github.com/hphungg/chatbot-sub001/domain/event"
	"github.com/hphungg/chatbot-sub001/generation"
	"github.com/hphungg/chatbot-sub001/internal"
	"github.com/hphungg/chatbot-sub001/moderation"
	"github.com/hphungg/chatbot-sub001/observability"
	"github.com/hphungg/chatbot-sub001/repositories"
	"github.com/hphungg/chatbot-sub001/runtime"
	"github.com/hphungg/chatbot-sub001/runtime/workers"
	"github.com/hphungg/chatbot-sub001/search"
	"github.com/hphungg/chatbot-sub001/services"
	"github.com/hphungg/chatbot-sub001/sink"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := internal.GetLoggerFromLevel(config.LogLevel)

	ctx := context.Background()

	// 2. Storage (BadgerDB timeline + Bluge search index)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Moderation
	loader := moderation.NewCensoredLoader()
	censoredData, err := loader.LoadAll("words")
	if err != nil {
		return exitRuntime, fmt.Errorf("loading censored words: %w", err)
	}
	logger.Info("Censored dictionaries loaded",
		"languages", censoredData.Languages, "words", len(censoredData.Words))

	moderator, err := moderation.NewModerator(censoredData.Words, charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("building moderator: %w", err)
	}

	// 4. Repositories & Generation Runtime
	chatRepository := repositories.NewChatRepository(db, logger)
	groupRepository := repositories.NewGroupRepository(db, logger)
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)

	generator := generation.NewOpenAIClient(config.OpenAIAPIKey, config.OpenAIAPIHost, config.OpenAIModel)

	eventChan := make(chan event.DomainEvent, config.BufferSize)
	manager := runtime.NewManager(logger, messageRepository, generator, eventChan, runtime.Config{
		Model:             config.OpenAIModel,
		SystemPrompt:      config.SystemPrompt,
		GenerationTimeout: config.GenerationTimeout,
		CancelGrace:       config.CancelGracePeriod,
	})

	titleModel := config.TitleModel
	if titleModel == "" {
		titleModel = config.OpenAIModel
	}
	titleService := services.NewTitleService(
		chatRepository, messageRepository, generator, eventChan, logger, titleModel, config.TitleTimeout)

	chatService := services.NewChatService(
		chatRepository, groupRepository, messageRepository, manager, moderator, titleService, logger)
	groupService := services.NewGroupService(groupRepository, chatRepository, logger)

	// 5. Observability & Sinks
	monitoring := observability.NewMonitoringManager(logger)
	index := search.NewIndex(blugeWriter, logger, config.SearchPageSize)

	fanout := workers.NewEventFanout(logger, eventChan).
		Add([]contract.EventSink{
			sink.NewIndexSink(index, logger),
			sink.NewTelemetrySink(monitoring, logger),
		}).
		WithName("event fanout")

	// 6. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(fanout)
	go supervisor.Run(ctx)

	// 7. HTTP Server
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	chatHandler := api.NewChatHandler(chatService, titleService, monitoring, logger, config.MaxContentLength)
	groupHandler := api.NewGroupHandler(groupService, logger)
	systemHandler := api.NewSystemHandler(index, monitoring, logger)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	h := server.Default(server.WithHostPorts(address))
	api.Setup(h, tokens, chatHandler, groupHandler, systemHandler, logger)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := h.Run(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// Active SSE streams get a bounded window to finish, then workers drain.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
	supervisor.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
