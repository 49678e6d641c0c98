// Command server runs the anonymous submission intake service.
//
// It accepts public submissions over HTTP, gates them through captcha,
// honeypot, rate-limit, moderation and attachment policy, and relays
// accepted ones into a Telegram broadcast channel where each message is
// edited to carry its permanent public identifier (cu-<message id>).
//
// All configuration comes from the environment; see the config package for
// the full list. Required: TELEGRAM_BOT_TOKEN, TELEGRAM_CHANNEL_ID,
// TELEGRAM_SCRATCH_CHAT_ID, SIGNING_SECRET.
//
// # Usage
//
//	SIGNING_SECRET=... TELEGRAM_BOT_TOKEN=... TELEGRAM_CHANNEL_ID=@channel \
//	TELEGRAM_SCRATCH_CHAT_ID=... CAPTCHA_MODE=none go run ./cmd/server
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/railesDev/chaoticShittyRapMusic/captcha"
	"github.com/railesDev/chaoticShittyRapMusic/config"
	"github.com/railesDev/chaoticShittyRapMusic/intake"
	"github.com/railesDev/chaoticShittyRapMusic/moderation"
	"github.com/railesDev/chaoticShittyRapMusic/server"
	"github.com/railesDev/chaoticShittyRapMusic/telegram"
	"github.com/railesDev/chaoticShittyRapMusic/token"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides LISTEN_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	mode, err := captcha.ParseMode(cfg.CaptchaMode)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	signer, err := token.NewSigner(cfg.SigningSecret, cfg.RateLimitWindow())
	if err != nil {
		log.Fatalf("Signer error: %v", err)
	}

	channel := telegram.NewClient(cfg.BotToken)
	resolver := intake.NewResolver(channel, cfg.ChannelID, cfg.ScratchChatID)
	verifier := captcha.NewVerifier(mode, cfg.CaptchaSecret())

	svc := intake.NewService(intake.Config{
		Channel:        channel,
		ChannelID:      cfg.ChannelID,
		Resolver:       resolver,
		Signer:         signer,
		Captcha:        verifier,
		Filter:         moderation.NewFilter(nil),
		MaxUploadBytes: cfg.MaxAttachmentBytes(),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", intake.CaptchaTokenHeader},
		AllowCredentials: true,
	}))

	handler := server.NewHandler(svc, resolver, signer, verifier, cfg.CaptchaSiteKey())
	handler.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("Intake listening on %s (captcha=%s)", cfg.ListenAddr, mode)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
