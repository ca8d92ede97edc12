package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"threadchat/internal/analytics"
	"threadchat/internal/auth"
	"threadchat/internal/chat"
	"threadchat/internal/config"
	"threadchat/internal/llm"
	"threadchat/internal/scheduler"
	"threadchat/internal/storage"
	"threadchat/internal/store"
	"threadchat/internal/telegram"
	"threadchat/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open thread store: %v", err)
	}
	defer st.Close()
	log.Printf("💾 Thread store ready at %s", cfg.DatabasePath)

	client, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to init LLM client: %v", err)
	}
	log.Printf("🧠 LLM provider: %s", cfg.LLMProvider)

	var recorder storage.Recorder
	if cfg.UsageLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.UsageLogPath)
		if err != nil {
			log.Fatalf("❌ Failed to init usage log: %v", err)
		}
		recorder = fr
		log.Printf("📝 Usage log at %s", cfg.UsageLogPath)
	}

	opts := []chat.Option{chat.WithHistoryLimit(cfg.HistoryLimit)}
	if cfg.SystemPromptPath != "" {
		prompt, err := os.ReadFile(cfg.SystemPromptPath)
		if err != nil {
			log.Fatalf("❌ Failed to read system prompt: %v", err)
		}
		opts = append(opts, chat.WithSystemPrompt(strings.TrimSpace(string(prompt))))
	}
	if recorder != nil {
		opts = append(opts, chat.WithRecorder(recorder))
	}
	dispatcher := chat.New(st, client, opts...)

	sched := scheduler.New()
	sched.SetMaintenanceFunc(func(ctx context.Context) error {
		if cfg.RetentionDays > 0 {
			cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)
			n, err := st.PruneThreadsIdleSince(ctx, cutoff)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Printf("🧹 Pruned %d idle threads", n)
			}
		}
		if recorder != nil {
			events, err := recorder.LoadInteractions()
			if err != nil {
				return err
			}
			stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC().AddDate(0, 0, -1))
			log.Print(stats.Summary())
		}
		return nil
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TelegramBotToken != "" {
		var repo auth.Repository
		if cfg.AllowlistPath != "" {
			fileRepo, err := auth.NewFileRepository(cfg.AllowlistPath)
			if err != nil {
				log.Fatalf("❌ Failed to init allowlist repository: %v", err)
			}
			repo = fileRepo
		}
		authSvc, err := auth.NewWithRepo(repo, cfg.AllowedUsers)
		if err != nil {
			log.Fatalf("❌ Failed to init auth service: %v", err)
		}

		bot, err := telegram.New(cfg.TelegramBotToken, authSvc, dispatcher, st)
		if err != nil {
			log.Fatalf("❌ Failed to init Telegram bot: %v", err)
		}
		go bot.Start(ctx)
		log.Println("🤖 Telegram gateway started")
	}

	server := web.NewServer(cfg.HTTPAddr, st, dispatcher, recorder)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("❌ Web server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("web server shutdown: %v", err)
	}
}
