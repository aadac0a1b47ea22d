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

	"github.com/joho/godotenv"

	"github.com/sproutlearn/backend/internal/config"
	"github.com/sproutlearn/backend/internal/gamification"
	"github.com/sproutlearn/backend/internal/httpapi"
	"github.com/sproutlearn/backend/internal/plan"
	"github.com/sproutlearn/backend/internal/scheduler"
	"github.com/sproutlearn/backend/internal/seed"
	"github.com/sproutlearn/backend/internal/store"
)

func main() {
	demoMode := flag.Bool("demo", false, "Seed demo curriculum data on startup")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	// .env is optional; deployments set real environment variables.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if *demoMode {
		log.Println("Seeding demo data")
		if err := seed.Run(ctx, st, cfg.Goals.WeeklyTarget, time.Now()); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	engine := gamification.NewEngine(st)
	planner := plan.NewBuilder(st, st)
	broadcaster := httpapi.NewBroadcaster()
	server := httpapi.NewServer(engine, planner, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(st)
		sched.Start()
		defer sched.Stop()
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := httpapi.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
