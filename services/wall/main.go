package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emotionwall/internal/assets"
	"github.com/emotionwall/internal/broadcast"
	"github.com/emotionwall/internal/config"
	"github.com/emotionwall/internal/handler"
	"github.com/emotionwall/internal/hossii"
	"github.com/emotionwall/internal/identity"
	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/middleware"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/profile"
	"github.com/emotionwall/internal/push"
	"github.com/emotionwall/internal/repository"
	"github.com/emotionwall/internal/space"
	"github.com/emotionwall/internal/startup"
	"github.com/emotionwall/internal/storage"
	"github.com/emotionwall/internal/storage/postgres"
	"github.com/emotionwall/internal/ws"
	"github.com/emotionwall/migrations"
)

const (
	postsKey     = "wall:posts"
	spacesKey    = "wall:spaces"
	reactionsKey = "wall:reactions"
)

func main() {
	logger.SetPrefix("wall")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting wall service")
	cfg := config.Load()

	var embeddedDB *embeddedpostgres.EmbeddedPostgres
	if *dev {
		var err error
		embeddedDB, err = startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 4

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	defer pool.Close()

	runMigrations(pool)
	if *migrate && !*dev {
		return
	}
	logger.Info("database connected, migrations applied")

	// State lives in Postgres; with Redis configured it is mirrored there too
	// and Redis carries the cross-instance change feed and reaction events.
	var stateStore storage.Store = postgres.New(pool)
	var transport broadcast.Transport = broadcast.NewBus()
	if cfg.Redis.URL != "" {
		redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
		stateStore = storage.NewDual(redisClient, postgres.New(pool))
		transport = broadcast.NewStoreTransport(redisClient, reactionsKey)
		logger.Info("redis connected, cross-instance sync enabled")
	}

	ctx := context.Background()
	spaces, err := space.NewStore(ctx, stateStore, spacesKey)
	if err != nil {
		logger.Errorf("load spaces: %v", err)
		os.Exit(1)
	}
	profiles, err := profile.NewStore(ctx, stateStore)
	if err != nil {
		logger.Errorf("load nicknames: %v", err)
		os.Exit(1)
	}
	auditRepo := repository.NewAuditRepository(pool)

	// The append hook points at the hub, which needs the post store first.
	var hub *ws.Hub
	posts, err := hossii.NewStore(ctx, stateStore, postsKey,
		hossii.WithNicknames(profiles),
		hossii.WithAuditor(auditRepo),
		hossii.WithAppendHook(func(h model.Hossii) {
			if hub != nil {
				hub.OnPostAppended(h)
			}
		}),
	)
	if err != nil {
		logger.Errorf("load posts: %v", err)
		os.Exit(1)
	}
	defer posts.Close()

	if _, err := spaces.Ensure(ctx, cfg.DefaultSpace.Slug, cfg.DefaultSpace.Name); err != nil {
		logger.Errorf("ensure default space: %v", err)
	}

	pushClient := push.NewClient(cfg.PushServiceURL)
	faces := assets.NewStatic(cfg.MascotAssetBase)
	admins := identity.NewAdminSet(cfg.AdminIDs)

	hub = ws.NewHub(ws.Deps{
		Posts:        posts,
		Spaces:       spaces,
		Transport:    transport,
		Faces:        faces,
		Push:         pushClient,
		Admins:       admins,
		AudioConfig:  cfg.Audio,
		SpeechConfig: cfg.Speech,
		MascotConfig: cfg.Mascot,
	}, cfg.MaxWSConnections)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	spaceH := handler.NewSpaceHandler(spaces, profiles)
	hossiiH := handler.NewHossiiHandler(posts, admins, hub)
	imageH := handler.NewImageHandler(cfg)
	configH := handler.NewConfigHandler(cfg)
	pushH := handler.NewPushHandler(pushClient)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.RecoverJSON)
	// Never compress WebSocket: a wrapped ResponseWriter loses http.Hijacker
	// and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Identity)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/config/engine", configH.GetEngineConfig)
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/images/{filename}", imageH.Serve)
	r.Post("/api/images/upload", imageH.Upload)

	r.Get("/api/spaces", spaceH.List)
	r.Post("/api/spaces", spaceH.Create)
	r.Get("/api/spaces/by-slug/{slug}", spaceH.BySlug)
	r.Get("/api/spaces/{id}", spaceH.Get)
	r.Put("/api/spaces/{id}/nickname", spaceH.SetNickname)
	r.Get("/api/spaces/{id}/hossiis", hossiiH.List)
	r.Post("/api/spaces/{id}/hossiis", hossiiH.Create)
	r.Post("/api/spaces/{id}/push/subscribe", pushH.Subscribe)
	r.Delete("/api/spaces/{id}/push/subscribe", pushH.Unsubscribe)

	r.Post("/api/hossiis/{id}/hide", hossiiH.Hide)
	r.Post("/api/hossiis/{id}/restore", hossiiH.Restore)
	r.Put("/api/hossiis/{id}/position", hossiiH.UpdatePosition)
	r.Put("/api/hossiis/{id}/scale", hossiiH.UpdateScale)
	r.Put("/api/hossiis/{id}/color", hossiiH.UpdateColor)
	r.Delete("/api/hossiis", hossiiH.ClearAll)

	r.Get("/ws", wsH.ServeWS)

	webDist := "./web/dist"
	if info, err := os.Stat(webDist); err == nil && info.IsDir() {
		r.Get("/*", spaHandler(webDist))
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func spaHandler(dir string) http.HandlerFunc {
	fs := http.Dir(dir)
	fileServer := http.FileServer(fs)
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
		if path == "" {
			path = "index.html"
		}
		if f, err := fs.Open(path); err != nil {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
		} else {
			f.Close()
			fileServer.ServeHTTP(w, r)
		}
	}
}

func runMigrations(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	files := []string{
		"001_init.sql",
	}
	for _, f := range files {
		data, err := migrations.Files.ReadFile(f)
		if err != nil {
			logger.Errorf("read migration %s: %v", f, err)
			os.Exit(1)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			logger.Errorf("run migration %s: %v", f, err)
			os.Exit(1)
		}
	}
	logger.Info("migrations applied")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "wall"
		password = "wall_secret"
		database = "emotionwall"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
