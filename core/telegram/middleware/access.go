package middleware

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// AdminChecker answers whether an actor currently holds admin status.
type AdminChecker interface {
	IsAdmin(ctx context.Context, actorID int64) bool
}

// AdminOptions defines how admin-only checks behave.
type AdminOptions struct {
	Checker  AdminChecker
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only admins can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Checker == nil {
				return next(c)
			}
			sender := c.Sender()
			if sender == nil || !opts.Checker.IsAdmin(context.Background(), sender.ID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
