package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stream-snapshot/pkg/auth"
	"stream-snapshot/pkg/config"
	"stream-snapshot/pkg/cors"
	"stream-snapshot/pkg/handlers"
	"stream-snapshot/web"
)

func SetupRouter(cfg *config.Config, h *handlers.Handler) (*gin.Engine, error) {
	r := gin.Default()
	// Every path, matched or not, gets CORS handling and 204 on OPTIONS.
	r.Use(cors.Middleware(cfg.CORSRootDomain))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/", h.HandleIndex)

	// Webcam
	r.GET("/snapshot", h.HandleSnapshot)
	r.GET("/redirect", h.HandleRedirect)
	r.GET("/images/:filename", h.HandleImage)

	// YouTube
	yt := r.Group("/youtube-snapshot")
	{
		yt.GET("", h.HandleYouTubeSnapshot)
		yt.GET("/redirect", h.HandleYouTubeRedirect)
		yt.GET("/images/:filename", h.HandleYouTubeImage)
	}

	if !cfg.AdminEnabled() {
		return r, nil
	}

	// --- Admin API ---
	r.POST("/api/login", auth.LoginHandler)

	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(), auth.AdminOnlyMiddleware())
	{
		api.GET("/captures", h.HandleListCaptures)
		api.POST("/cleanup", h.HandleCleanup)
		api.GET("/status", h.HandleStatus)
		api.POST("/logout", auth.LogoutHandler)
	}

	return r, nil
}

// StartServer serves until ctx is cancelled, then drains in-flight requests.
func StartServer(ctx context.Context, cfg *config.Config, h *handlers.Handler) error {
	r, err := SetupRouter(cfg, h)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("✅ Gin server starting on port %d...", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	// In-flight captures get at most one capture timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CaptureTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped.")
	return nil
}
