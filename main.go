package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tablebot/api"
	"tablebot/bot"
	"tablebot/config"
	"tablebot/middleware"
	"tablebot/platform"
	"tablebot/services"
	"tablebot/store"
)

const maxFeedConnections = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no configured logger yet
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis
	rs := store.NewRedisStore(store.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})
	defer rs.Close()
	if err := rs.Ping(ctx); err != nil {
		log.Fatal("redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	log.Info("redis connected", zap.String("addr", cfg.RedisAddr))

	// Kafka is optional; without it events stay in-process
	var kafka *services.KafkaService
	if cfg.KafkaEnabled() {
		kafka, err = services.NewKafkaService(cfg, log)
		if err != nil {
			log.Warn("kafka unavailable, delivering events in-process", zap.Error(err))
			kafka = nil
		} else {
			defer kafka.Close()
		}
	}
	events := services.NewEventBus(kafka, log)

	// the archive is optional too
	var history api.HistoryReader
	if cfg.ArchiveEnabled() {
		archive, err := services.OpenArchive(cfg, log)
		if err != nil {
			log.Warn("event archive unavailable", zap.Error(err))
		} else {
			defer archive.Close()
			events.Subscribe(archive.Record)
			history = archive
		}
	}

	feed := services.NewFeedHub(maxFeedConnections, log)
	defer feed.Close()
	events.Subscribe(feed.HandleEvent)

	// Discord
	session, err := bot.NewSession(cfg)
	if err != nil {
		log.Fatal("create discord session", zap.Error(err))
	}
	guild := platform.NewDiscord(session, cfg.GuildID)

	directory := services.NewDirectory(rs)
	notifier := services.NewNotifier(guild, cfg, log)
	tables := services.NewTableService(guild, directory, services.NewProvisioner(guild, cfg, log), events, cfg, log)
	help := services.NewHelpService(services.NewHelpQueue(rs, log), tables, notifier, events, rs, cfg, log)

	commands := bot.NewCommandHandler(tables, help, notifier, guild, cfg, log, stop)
	discordBot := bot.NewBot(session, commands, cfg, log)
	if err := discordBot.Start(); err != nil {
		log.Fatal("connect to discord", zap.Error(err))
	}

	go func() {
		if err := events.Run(ctx); err != nil {
			log.Error("event consumer stopped", zap.Error(err))
		}
	}()

	// ops API
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(middleware.RateLimiter(rs, log))
	r.Use(middleware.JWTAuth(cfg.JWTSecret))

	api.RegisterRoutes(r, api.Dependencies{
		Config:  cfg,
		Store:   rs,
		Tables:  tables,
		Help:    help,
		Archive: history,
		Feed:    feed,
		Kafka:   kafka,
		Log:     log,
	})

	srv, serveErr := services.StartServer(r, cfg.Port, log)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed, shutting down", zap.Error(err))
		}
	}
	stop()

	discordBot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced http shutdown", zap.Error(err))
	}

	log.Info("shut down cleanly")
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsRelease() {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}
