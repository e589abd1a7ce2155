package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/catalog"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/gateway/discord"
	"github.com/spec-kit/ticket-bot/internal/interaction"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/store"
	"github.com/spec-kit/ticket-bot/internal/transcript"
	"github.com/spec-kit/ticket-bot/internal/wizard"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := store.NewFileBackend(cfg.Store.DataDir)
	if err != nil {
		logger.Fatal("failed to prepare data dir", zap.Error(err))
	}
	st, err := store.Open(backend, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() {
		if err := st.Flush(); err != nil {
			logger.Error("failed to flush store", zap.Error(err))
		}
	}()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	healthDeps := map[string]handlers.Pinger{}
	var historyRepo repository.TicketHistoryRepository
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		historyRepo = repository.NewTicketHistoryRepository(pool)
		healthDeps["postgres"] = pg
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	notifyDeps := service.NotificationDependencies{
		Dispatcher: dispatcher,
		History:    historyRepo,
		Logger:     logger.Named("notifications"),
	}
	if redis != nil {
		notifyDeps.Publisher = redis
		healthDeps["redis"] = redis
	}
	notifications := service.NewNotificationService(notifyDeps)

	cat := catalog.MustDefault()
	metrics := observability.NewMetrics()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	gw := discord.NewGateway(session)
	exporter := transcript.NewExporter(gw, transcript.Config{
		Footer:      cfg.Transcript.Footer,
		MaxMessages: cfg.Transcript.MaxMessages,
	}, logger.Named("transcript"))

	tickets := service.NewTicketService(service.TicketDependencies{
		Store:      st,
		Catalog:    cat,
		Gateway:    gw,
		Exporter:   exporter,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("tickets"),
	})
	feedback := service.NewFeedbackService(service.FeedbackDependencies{
		Store:      st,
		Catalog:    cat,
		Gateway:    gw,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("feedback"),
		Window:     cfg.Tickets.FeedbackWindow(),
	})
	admin := service.NewAdminService(service.AdminDependencies{
		Store:      st,
		Catalog:    cat,
		Gateway:    gw,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.Named("admin"),
	})

	router := interaction.NewRouter(interaction.Dependencies{
		Flow:       wizard.New(cat, tickets, logger.Named("wizard")),
		Tickets:    tickets,
		Feedback:   feedback,
		Admin:      admin,
		Authorizer: interaction.NewAuthorizer(st, cfg.Discord.AdminRoleID),
		Catalog:    cat,
		Metrics:    metrics,
		Logger:     logger.Named("interactions"),
	})
	discord.NewBridge(router, logger.Named("bridge"), 0).Attach(session)

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}
	defer session.Close() //nolint:errcheck

	worker.Start(ctx, worker.Jobs{
		Notifications: notifications,
		Pruner:        tickets,
		PruneInterval: cfg.Tickets.PruneInterval(),
		Logger:        logger,
	})

	if err := discord.RegisterCommands(ctx, session, cfg.Discord.GuildID, interaction.Commands); err != nil {
		logger.Error("failed to register commands", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, tokens, logger.Named("auth"))

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st, healthDeps),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets, historyRepo),
		Feedback:       handlers.NewFeedbackHandler(feedback),
		Admin:          handlers.NewAdminHandler(admin, cfg.Discord.GuildID, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("bot started", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
