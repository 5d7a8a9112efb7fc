/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the driver log server: configuration, database,
  engine wiring, HTTP router, graceful shutdown.

CONFIGURATION:
  Flags, each with an environment-variable fallback:

    -port        PORT          HTTP port (default 8080)
    -db          DB_FILE       SQLite path (default driverlog.db,
                               ":memory:" for in-memory)
    -admin-token ADMIN_TOKEN   Shared secret for admin routes
    -week-start  WEEK_START    Pay period start weekday (default mon)
    -cutoff      PERIOD_CUTOFF Cutoff time on the start day (default 09:00)
    -webhook     MAIL_WEBHOOK_URL  Edited-log notification URL (optional)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for
  in-flight requests, close the database, exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetware/driverlog/api"
	"github.com/fleetware/driverlog/payroll"
	"github.com/fleetware/driverlog/store/sqlite"
)

func main() {
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_FILE", "driverlog.db"), "SQLite database path")
	adminToken := flag.String("admin-token", envStr("ADMIN_TOKEN", ""), "shared secret for admin routes")
	weekStart := flag.String("week-start", envStr("WEEK_START", "mon"), "pay period start weekday")
	cutoff := flag.String("cutoff", envStr("PERIOD_CUTOFF", "09:00"), "period cutoff time (HH:MM)")
	webhook := flag.String("webhook", envStr("MAIL_WEBHOOK_URL", ""), "edited-log webhook URL")
	requireApproval := flag.Bool("require-approval-before-paid", false, "refuse to mark unapproved entries paid")
	flag.Parse()

	if *adminToken == "" {
		log.Println("WARNING: no admin token configured; admin routes will reject every request")
	}

	day, err := payroll.ParseWeekday(*weekStart)
	if err != nil {
		log.Fatalf("Invalid -week-start: %v", err)
	}
	hour, minute, err := payroll.ParseCutoff(*cutoff)
	if err != nil {
		log.Fatalf("Invalid -cutoff: %v", err)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	engine := payroll.New(store, payroll.Config{
		Periods:   &payroll.PeriodConfig{WeekStart: day, CutoffHour: hour, CutoffMinute: minute},
		Lifecycle: payroll.LifecyclePolicy{RequireApprovedBeforePaid: *requireApproval},
	})

	handler := api.NewHandler(engine, *adminToken, *webhook)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Driver log server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
