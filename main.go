// Command scenario-server serves recorded comparison runs, on-demand
// trace comparisons, and rendered charts over HTTP, plus the admin
// debug surface of the runs database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/scenario.report/internal/api"
	"github.com/banshee-data/scenario.report/internal/runstore"
	"github.com/banshee-data/scenario.report/internal/units"
	"github.com/banshee-data/scenario.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "runs.db", "Runs database path (empty disables run persistence)")
	traceDir   = flag.String("trace-dir", "", "Directory comparison endpoints may read traces from (empty disables them)")
	speedUnits = flag.String("units", units.MPS, "Speed units for charts: "+units.GetValidUnitsString())
	devMode    = flag.Bool("dev", false, "Log every request, not just the API")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*speedUnits) {
		log.Fatalf("invalid units %q, must be one of %s", *speedUnits, units.GetValidUnitsString())
	}

	var store *runstore.Store
	if *dbFile != "" {
		var err error
		store, err = runstore.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open runs database: %v", err)
		}
		defer store.Close()
	} else {
		log.Print("no database configured, run persistence disabled")
	}
	if *traceDir == "" {
		log.Print("no trace directory configured, compare endpoints disabled")
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := newMux(store)

		// Request logging covers the API; dev mode covers everything,
		// including the debug surface.
		var handler http.Handler = mux
		if *devMode {
			handler = api.LoggingMiddleware(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: handler,
		}

		go func() {
			log.Printf("scenario-server %s listening on %s", version.Version, *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// newMux assembles the outer route table: admin debug routes at their
// own prefixes, the API under /api, and a landing page at /.
func newMux(store *runstore.Store) *http.ServeMux {
	mux := http.NewServeMux()

	// Admin debugging routes; tsweb gates access to them.
	if store != nil {
		store.AttachAdminRoutes(mux)
	}

	apiMux := api.NewServer(store, *traceDir, *speedUnits).ServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.LoggingMiddleware(apiMux)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "scenario.report %s\nAPI under /api, debug surface under /debug\n", version.Version)
	})

	return mux
}
