package app

import (
	"log/slog"

	"github.com/geocoder89/taskhub/internal/accounts"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cascade"
	"github.com/geocoder89/taskhub/internal/config"
	httpx "github.com/geocoder89/taskhub/internal/http"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/geocoder89/taskhub/internal/tasks"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type APIOptions struct {
	Tokens   *auth.Manager
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

// NewAPI builds the services on top of b and returns the HTTP handler.
func NewAPI(cfg config.Config, log *slog.Logger, b *Backends, opts APIOptions) *gin.Engine {
	hasher := security.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)

	var authObserver auth.FailureObserver
	var followUpObserver cascade.FollowUpObserver
	if opts.Prom != nil {
		authObserver = opts.Prom.AuthFailure
		followUpObserver = opts.Prom.CascadeFollowUp
	}

	guard := auth.NewGuard(opts.Tokens, b.Sessions, b.Users, authObserver)

	accountsSvc := accounts.NewService(b.Users, opts.Tokens, b.Sessions, hasher, b.Avatars)
	tasksSvc := tasks.NewService(b.Tasks)

	coordinator := cascade.NewCoordinator(cascade.Deps{
		Tx:            b.Tx,
		Users:         b.Users,
		Tasks:         b.Tasks,
		Jobs:          b.Jobs,
		Sessions:      b.Sessions,
		Avatars:       b.Avatars,
		FollowUpDelay: cfg.FollowUpDelay,
		Log:           log,
		Observe:       followUpObserver,
	})

	return httpx.NewRouter(httpx.RouterDeps{
		Log:                log,
		Env:                cfg.Env,
		Prom:               opts.Prom,
		Gatherer:           opts.Gatherer,
		Guard:              guard,
		Accounts:           accountsSvc,
		Deleter:            coordinator,
		Tasks:              tasksSvc,
		Checks:             b.Checks,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:       cfg.MaxBodyBytes,
		AuthRateLimit:      cfg.AuthRateLimit,
		AuthRateWindow:     cfg.AuthRateWindow,
	})
}
