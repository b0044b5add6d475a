package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/shambasecure/shamba-auth/pkg/client"
	"github.com/shambasecure/shamba-auth/pkg/config"
	"github.com/shambasecure/shamba-auth/pkg/identity"
	"github.com/shambasecure/shamba-auth/pkg/login"
	loginapi "github.com/shambasecure/shamba-auth/pkg/login/api"
	"github.com/shambasecure/shamba-auth/pkg/notification"
	"github.com/shambasecure/shamba-auth/pkg/profile"
	"github.com/shambasecure/shamba-auth/pkg/ratelimit"
	"github.com/shambasecure/shamba-auth/pkg/sensor"
	"github.com/shambasecure/shamba-auth/pkg/signup"
	"github.com/shambasecure/shamba-auth/pkg/tokenstore"
	"github.com/shambasecure/shamba-auth/pkg/trusteddevice"
	"github.com/shambasecure/shamba-auth/pkg/user"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	// Load .env if present; real environments set variables directly.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file")
	}

	cfg := config.Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	// User repository: bbolt file when a path is configured, else in-memory.
	var users user.Repository
	if cfg.Auth.UserDBPath != "" {
		repo, err := user.OpenBoltRepository(cfg.Auth.UserDBPath)
		if err != nil {
			slog.Error("Failed to open user database", "path", cfg.Auth.UserDBPath, "err", err)
			os.Exit(1)
		}
		defer repo.Close()
		users = repo
		slog.Info("Using bbolt user repository", "path", cfg.Auth.UserDBPath)
	} else {
		users = user.NewInMemRepository()
		slog.Warn("Using in-memory user repository; set USER_DB_PATH to persist users")
	}

	notificationManager, err := notification.NewNotificationManagerWithOptions(
		cfg.FrontendURL,
		notification.WithSMTP(cfg.Email.ToSMTPConfig()),
		notification.WithDefaultTemplates(),
	)
	if err != nil {
		slog.Error("Failed to initialize notification manager", "err", err)
		os.Exit(1)
	}

	sessionTTL := config.ParseDuration(cfg.Auth.SessionTokenExpiration, time.Hour)
	identityProvider := identity.NewLocalProvider(cfg.Auth.SessionSecret,
		identity.WithSessionTTL(sessionTTL),
	)

	trustedDevices := trusteddevice.NewService(users)

	loginTokenTTL := config.ParseDuration(cfg.Auth.LoginTokenExpiration, login.DefaultLoginTokenTTL)
	deviceTokenTTL := config.ParseDuration(cfg.Auth.DeviceTokenExpiration, login.DefaultVerificationTokenTTL)
	loginService := login.NewLoginService(identityProvider, users, trustedDevices, notificationManager,
		login.WithTokenTTLs(loginTokenTTL, deviceTokenTTL),
		login.WithLoginTokenStore(tokenstore.NewInMemStore(loginTokenTTL)),
		login.WithVerificationTokenStore(tokenstore.NewInMemStore(deviceTokenTTL)),
	)

	signupService := signup.NewService(identityProvider, users, notificationManager)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(client.AuthMiddleware(identityProvider))
	if cfg.Auth.RateLimitEnabled {
		r.Use(ratelimit.NewMiddleware(ratelimit.DefaultConfig()).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, map[string]string{"status": "ok"})
	})

	signupHandle := signup.NewHandle(signupService)
	profileHandle := profile.NewHandle(users)

	r.Mount("/api/auth", loginapi.NewHandle(loginService, trustedDevices).Routes())
	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", signupHandle.Register)
		r.Group(func(r chi.Router) {
			r.Use(client.RequireAuth)
			r.Get("/profile", profileHandle.GetProfile)
		})
	})
	r.Mount("/api/sensors", sensor.NewHandle(sensor.NewGenerator()).Routes())

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "addr", server.Addr, "frontend", cfg.FrontendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "err", err)
	}
}
