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
	"github.com/zhouzirui/boundary-tools/backend/internal/config"
	"github.com/zhouzirui/boundary-tools/backend/internal/handler"
	"github.com/zhouzirui/boundary-tools/backend/internal/model/tool"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/ai"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/governor"
	"github.com/zhouzirui/boundary-tools/backend/internal/service/usage"
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

	tools, err := tool.LoadCatalog(cfg.Usage.ToolsFile)
	if err != nil {
		log.Fatalf("failed to load tool catalog: %v", err)
	}
	toolStore := tool.NewMemoryStore(tools)
	log.Printf("loaded %d tools", len(tools))

	codec, err := usage.NewCodec(cfg.Usage.SigningSecret)
	if err != nil {
		log.Fatalf("failed to initialize usage codec: %v", err)
	}

	// 缺少模型凭证属于部署错误，直接退出
	if !cfg.AI.Enabled() {
		log.Fatalf("%v: 请检查 Ark 模型相关环境变量", governor.ErrMissingGeneratorCredential)
	}
	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	log.Printf("AI service initialized successfully (streaming=%t)", aiService.StreamingEnabled())

	if cfg.Usage.InviteCode == "" {
		log.Println("INVITE_CODE 未配置，邀请码校验已关闭")
	}

	gov := governor.New(governor.Config{
		InviteCode:       cfg.Usage.InviteCode,
		SessionDuration:  cfg.Usage.SessionDuration,
		GeneratorTimeout: cfg.AI.Timeout,
	}, toolStore, codec, aiService)

	router := handler.NewRouter(toolStore, gov, aiService, handler.Options{
		CookieName:    cfg.Usage.CookieName,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Boundary tools backend listening on %s", addr)
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
