package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/cinebot/core/config"
	"github.com/m3rciful/cinebot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain: panic recovery,
// the generic flood guard, and update logging. The flood guard drops
// excess updates silently.
func DefaultMiddlewares(flood *middleware.Guard) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if flood != nil && flood.Window() > 0 {
		mws = append(mws, Middleware{
			Name: "flood",
			Use:  middleware.FloodMiddleware(flood, nil),
		})
	}
	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	return mws
}

// FloodWindow converts the configured generic interval into a duration.
func FloodWindow(cfg *coreconfig.Config) time.Duration {
	if cfg == nil {
		return 0
	}
	return time.Duration(cfg.Flood.IntervalMS) * time.Millisecond
}

// DownloadWindow converts the configured download cooldown into a duration.
func DownloadWindow(cfg *coreconfig.Config) time.Duration {
	if cfg == nil {
		return 0
	}
	return time.Duration(cfg.Flood.DownloadSeconds) * time.Second
}
