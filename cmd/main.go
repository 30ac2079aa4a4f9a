package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"caries-demo/config"
	"caries-demo/internal/api/telegram"
	"caries-demo/internal/api/web"
	"caries-demo/internal/container"
	"caries-demo/internal/infrastructure/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Создаём хранилище пользователей Telegram
	userRepo := storage.NewMemoryUserRepository()

	// Собираем сервисы приложения
	appContainer, err := container.Build(cfg, userRepo)
	if err != nil {
		stop()
		log.Fatalf("Failed to initialize predictor %q: %v", cfg.Predictor, err)
	}

	log.Printf("Predictor: %s", appContainer.FrontendService.PredictorName())

	err = serve(ctx, cfg, appContainer)

	// log.Fatalf не выполняет defer, поэтому ресурсы освобождаются явно
	appContainer.Close()
	stop()

	if err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// serve запускает бота (если задан токен) и HTTP сервер. Возвращается после остановки сервера.
func serve(ctx context.Context, cfg *config.Config, appContainer *container.Container) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.UserService, appContainer.FrontendService)
		if err != nil {
			return err
		}
		go func() {
			log.Println("Bot is running...")
			if err := bot.Run(ctx); err != nil {
				log.Printf("Bot error: %v", err)
			}
		}()
	}

	server := web.NewServer(appContainer.FrontendService, cfg.UI, cfg.MaxUploadBytes)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	return server.Listen(cfg.Addr())
}
