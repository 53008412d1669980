package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Import pgx driver for database/sql

	"mcqgenerator/internal/api"
	"mcqgenerator/internal/api/handlers"
	"mcqgenerator/internal/config"
	"mcqgenerator/internal/db"
	"mcqgenerator/internal/gemini"
	"mcqgenerator/internal/notify"
	"mcqgenerator/internal/pipeline"
	"mcqgenerator/internal/r2"
	"mcqgenerator/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GenerationTimeout)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Gemini client: %v", err)
	}
	defer geminiClient.Close()

	deps := pipeline.Deps{
		Generator: geminiClient,
		Renderer:  render.NewRenderer(render.DefaultConfig()),
	}

	// Optional collaborators are only assigned when configured, so the interfaces stay nil.
	var history handlers.RunLister
	var sessionDB *sql.DB
	if cfg.DatabaseURL != "" {
		database, err := db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("FATAL: Failed to connect to database: %v", err)
		}
		defer database.Close()
		deps.Runs = database
		history = database

		// The session store needs a database/sql pool, opened through the pgx stdlib driver.
		sessionDB, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("FATAL: Failed to open database connection for session store: %v", err)
		}
		defer sessionDB.Close()
		if err := sessionDB.PingContext(ctx); err != nil {
			log.Fatalf("FATAL: Failed to ping database for session store: %v", err)
		}
	} else {
		log.Println("WARN: DATABASE_URL not set. Run history is disabled and sessions use signed cookies.")
	}

	r2Client, err := r2.NewClient(ctx, cfg.R2)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize R2 client: %v", err)
	}
	if r2Client != nil {
		deps.Mirror = r2Client
	}

	discord := notify.NewDiscord(cfg.DiscordWebhookURL)
	if discord != nil {
		deps.Notifier = discord
		defer discord.Wait()
	}

	service, err := pipeline.NewService(cfg.UploadDir, cfg.ResultsDir, deps)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize pipeline: %v", err)
	}

	store, err := api.NewSessionStore(cfg.SessionSecret, sessionDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to create session store: %v", err)
	}

	handler := handlers.NewHandler(service, pipeline.NewResultCache(pipeline.DefaultResultTTL, pipeline.DefaultMaxResults), history)
	router := api.NewRouter(handler, store, api.Options{
		FrontendURL:    cfg.FrontendURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("INFO: Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: Failed to start server: %v", err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down server...")

	// Generation requests can run up to the model timeout, so give them that long to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.GenerationTimeout+5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("INFO: Server exited properly")
}
