// Package app assembles the bot: repositories, domain services, handlers,
// and the periodic housekeeping jobs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cinebot/app/access"
	"github.com/m3rciful/cinebot/app/broadcast"
	"github.com/m3rciful/cinebot/app/gate"
	"github.com/m3rciful/cinebot/app/handlers"
	"github.com/m3rciful/cinebot/app/repository"
	"github.com/m3rciful/cinebot/app/session"
	"github.com/m3rciful/cinebot/app/transport"
	"github.com/m3rciful/cinebot/app/wizard"
	"github.com/m3rciful/cinebot/core/bootstrap"
	"github.com/m3rciful/cinebot/core/logger"
	coretelegram "github.com/m3rciful/cinebot/core/telegram"
	"github.com/m3rciful/cinebot/core/telegram/middleware"
)

// App owns every long-lived component of the bot.
type App struct {
	cfg *Config
	db  *sqlx.DB

	sessions *session.Store
	access   *access.Service
	handlers *handlers.Handlers

	users    *repository.Users
	content  *repository.Content
	channels *repository.Channels
	admins   *repository.Admins
	settings *repository.Settings

	floodGuard    *middleware.Guard
	downloadGuard *middleware.Guard

	cron *cron.Cron
}

// Bootstrap initializes infrastructure and builds the application graph.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}

	result, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg: cfg,
		db:  result.DB,

		sessions: session.NewStore(time.Duration(cfg.Session.TTLMinutes) * time.Minute),

		users:    repository.NewUsers(result.DB),
		content:  repository.NewContent(result.DB),
		channels: repository.NewChannels(result.DB),
		admins:   repository.NewAdmins(result.DB),
		settings: repository.NewSettings(result.DB),

		floodGuard:    middleware.NewGuard(coretelegram.FloodWindow(cfg.CoreConfig())),
		downloadGuard: middleware.NewGuard(coretelegram.DownloadWindow(cfg.CoreConfig())),
	}
	a.access = access.NewService(a.admins, cfg.Telegram.OwnerID)
	a.handlers = handlers.New(a.users, a.content, a.channels, a.admins, a.settings, a.access, a.downloadGuard)
	return a, nil
}

// TelegramRunOptions builds the bot runtime wiring for the core runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	registry := coretelegram.NewRegistry()
	routes := a.handlers.Register(registry)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    registry,
		Middlewares: coretelegram.DefaultMiddlewares(a.floodGuard),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

// onStart wires the transport-backed services and starts housekeeping.
func (a *App) onStart(_ context.Context, bot *tele.Bot) error {
	adapter := transport.New(bot)

	gateSvc := gate.New(a.channels, adapter, a.access)
	engine := wizard.New(a.sessions, a.content, a.channels, a.users, a.admins,
		a.settings, a.access, adapter, adapter)
	broadcaster := broadcast.NewController(a.users, adapter, a.users, a.cfg.Broadcast.PerSecond)

	a.handlers.BindTransport(gateSvc, engine, broadcaster)

	a.cron = cron.New()
	if _, err := a.cron.AddFunc("@every 5m", a.sweep); err != nil {
		return fmt.Errorf("app: schedule sweep: %w", err)
	}
	a.cron.Start()
	return nil
}

// onStop stops housekeeping and releases the database.
func (a *App) onStop(_ context.Context, _ *tele.Bot) error {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("app: close database: %w", err)
		}
	}
	return nil
}

// sweep evicts expired sessions, cache entries, and throttle timestamps.
func (a *App) sweep() {
	sessions := a.sessions.Sweep()
	cached := a.access.Sweep()
	// Flood entries stay twice the window so a rejected hit still sees the
	// original timestamp on its next attempt.
	flood := a.floodGuard.Sweep(2 * a.floodGuard.Window())
	downloads := a.downloadGuard.Sweep(a.downloadGuard.Window())

	logger.SVCSessions.LogAttrs(context.Background(), slog.LevelDebug, "housekeeping.sweep",
		slog.Int("sessions", sessions),
		slog.Int("admin_cache", cached),
		slog.Int("flood", flood),
		slog.Int("downloads", downloads),
	)
}
