package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/zhouzirui/realty-assistant/backend/internal/config"
	"github.com/zhouzirui/realty-assistant/backend/internal/database"
	"github.com/zhouzirui/realty-assistant/backend/internal/handler"
	"github.com/zhouzirui/realty-assistant/backend/internal/model/user"
	"github.com/zhouzirui/realty-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/realty-assistant/backend/internal/service/auth"
	"github.com/zhouzirui/realty-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/realty-assistant/backend/internal/service/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Conversation store and idle-session janitor
	store := chat.NewStore(chat.StoreConfig{
		MaxTurns: cfg.Chat.MaxTurns,
		TTL:      cfg.Chat.SessionTTL,
	})
	janitor := chat.NewJanitor(store, cfg.Chat.CleanupInterval)
	if cfg.Chat.SessionTTL > 0 {
		janitor.Start(ctx)
		defer janitor.Stop()
	}

	// Initialize AI service
	var generator chat.Generator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			generator = aiService
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	chatService := chat.NewService(store, generator, render.NewMarkdown(), chat.Options{
		HistoryWindow:     cfg.Chat.HistoryWindow,
		GenerationTimeout: cfg.Chat.GenerationTimeout,
	})

	authService, db := initAuth(ctx, cfg)
	if db != nil {
		defer func() {
			if err := database.Close(db); err != nil {
				log.Printf("warning: failed to close database: %v", err)
			}
		}()
	}

	router := handler.NewRouter(cfg, chatService, authService)

	startServer(ctx, cfg.Server, router)
}

// initAuth wires Google sign-in; the user database is optional.
func initAuth(ctx context.Context, cfg *config.Config) (*auth.Service, *gorm.DB) {
	if !cfg.Auth.Enabled() {
		log.Println("Google 登录凭证未配置，跳过登录功能初始化")
		return nil, nil
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		log.Printf("warning: failed to initialize token issuer: %v", err)
		return nil, nil
	}

	var users user.Store
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Printf("warning: user database unavailable: %v", err)
		log.Println("continuing without user registration")
	} else {
		gormStore := user.NewGormStore(db)
		if err := gormStore.Migrate(ctx); err != nil {
			log.Printf("warning: failed to migrate user table: %v", err)
		}
		users = gormStore
	}

	svc := auth.NewService(
		auth.NewGoogleVerifier(cfg.Auth.GoogleClientID),
		auth.NewGoogleOAuth(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURL),
		issuer,
		users,
	)
	log.Println("Google sign-in initialized successfully")
	return svc, db
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Realty assistant backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
