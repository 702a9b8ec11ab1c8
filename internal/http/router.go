package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/storage/avatar"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// multipart framing around the image itself
const avatarBodyOverhead = 64 << 10

type RouterDeps struct {
	Log         *slog.Logger
	Env         string
	ServiceName string

	// Prom and Gatherer are optional; without them no metrics are recorded
	// or served.
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	Guard    middlewares.Authenticator
	Accounts handlers.AccountService
	Deleter  handlers.AccountDeleter
	Tasks    handlers.TaskService
	Checks   []handlers.Check

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	AuthRateLimit      int
	AuthRateWindow     time.Duration
	// UserRateLimit applies per user to authenticated routes over AuthRateWindow.
	UserRateLimit int
}

func (d *RouterDeps) defaults() {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ServiceName == "" {
		d.ServiceName = "taskhub-api"
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	if d.AuthRateLimit <= 0 {
		d.AuthRateLimit = 20
	}
	if d.AuthRateWindow <= 0 {
		d.AuthRateWindow = time.Minute
	}
	if d.UserRateLimit <= 0 {
		d.UserRateLimit = 15 * d.AuthRateLimit
	}
}

func NewRouter(d RouterDeps) *gin.Engine {
	d.defaults()

	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(d.ServiceName))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSAllowedOrigins))

	health := handlers.NewHealthHandler(d.Checks...)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMW := middlewares.NewAuthMiddleware(d.Guard)
	ipLimiter := middlewares.NewRateLimiter(d.AuthRateLimit, d.AuthRateWindow)
	userLimiter := middlewares.NewRateLimiter(d.UserRateLimit, d.AuthRateWindow)

	authH := handlers.NewAuthHandler(d.Accounts, d.Deleter)
	tasksH := handlers.NewTasksHandler(d.Tasks)

	jsonBody := []gin.HandlerFunc{middlewares.MaxBodyBytes(d.MaxBodyBytes), middlewares.RequireJSON()}

	// public
	public := r.Group("/auth", jsonBody...)
	public.POST("/register", ipLimiter.Middleware(middlewares.KeyByIP), authH.Register)
	public.POST("/login", ipLimiter.Middleware(middlewares.KeyByIP), authH.Login)

	r.GET("/users/:id/avatar", authH.GetAvatar)

	// authenticated
	authed := r.Group("/", authMW.RequireAuth(), userLimiter.Middleware(middlewares.KeyByUserOrIP))

	// the avatar upload is multipart and carries its own cap
	authed.POST("/auth/me/avatar", middlewares.MaxBodyBytes(avatar.MaxBytes+avatarBodyOverhead), authH.UploadAvatar)
	authed.DELETE("/auth/me/avatar", authH.DeleteAvatar)

	account := authed.Group("/auth", jsonBody...)
	account.POST("/logout", authH.Logout)
	account.POST("/logout-all", authH.LogoutAll)
	account.GET("/me", authH.Me)
	account.PATCH("/me", authH.UpdateMe)
	account.DELETE("/me", authH.DeleteMe)

	tasks := authed.Group("/tasks", jsonBody...)
	tasks.POST("", tasksH.CreateTask)
	tasks.GET("", tasksH.ListTasks)
	tasks.GET("/:id", tasksH.GetTask)
	tasks.PATCH("/:id", tasksH.UpdateTask)
	tasks.DELETE("/:id", tasksH.DeleteTask)

	return r
}
