package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/density-cli/internal/cache"
	"github.com/sells-group/density-cli/internal/config"
	"github.com/sells-group/density-cli/internal/density"
	"github.com/sells-group/density-cli/internal/report"
)

// Parameter bounds accepted by the explorer, in miles.
const (
	minRadiusMiles  = 1.0
	maxRadiusMiles  = 50.0
	minSpacingMiles = 5.0
	maxSpacingMiles = 50.0
)

var explorePort int

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Serve an interactive density explorer",
	Long:  "Starts an HTTP server that recomputes the density ranking for radius, spacing and top-K values chosen per request.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("explore"); err != nil {
			return err
		}

		sourceFlag, _ := cmd.Flags().GetString("source")
		if sourceFlag == "" {
			sourceFlag = cfg.Source.Path
		}
		src := parseSource(sourceFlag, cfg)
		surface := cfg.Analysis.Surface

		ex := &explorer{
			cache:    cache.New(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute),
			key:      src.Key(),
			defaults: cfg.Analysis,
			load: func(ctx context.Context) (*density.Prepared, error) {
				return loadDataset(ctx, src, surface)
			},
		}

		// Warm the cache so the first request does not pay for loading.
		if _, err := ex.cache.GetOrLoad(ctx, ex.key, ex.load); err != nil {
			return eris.Wrap(err, "explore: load dataset")
		}

		port := explorePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           ex.routes(rate.Limit(cfg.Server.RatePerSec), cfg.Server.Burst),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting explorer", zap.Int("port", port), zap.String("source", ex.key))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// explorer serves density rankings for one road dataset.
type explorer struct {
	cache    *cache.DatasetCache
	key      string
	defaults config.AnalysisConfig
	load     cache.LoadFunc
}

// exploreParams are the per-request analysis settings in miles.
type exploreParams struct {
	RadiusMiles  float64 `json:"radius_miles"`
	SpacingMiles float64 `json:"spacing_miles"`
	TopK         int     `json:"top_k"`
}

type densityResponse struct {
	Params     exploreParams  `json:"params"`
	Extent     density.Extent `json:"extent"`
	Summary    report.Summary `json:"summary"`
	Top        []report.Row   `json:"top"`
	DurationMs int64          `json:"duration_ms"`
}

func (e *explorer) routes(limit rate.Limit, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(rate.NewLimiter(limit, burst)))
		r.Get("/api/density", e.handleDensity)
		r.Get("/map", e.handleMap)
		r.Get("/api/cache/stats", e.handleCacheStats)
		r.Post("/api/cache/invalidate", e.handleCacheInvalidate)
	})

	return r
}

func (e *explorer) handleDensity(w http.ResponseWriter, r *http.Request) {
	p, res, ok := e.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, densityResponse{
		Params:     p,
		Extent:     res.Extent,
		Summary:    report.Summarize(res.Grid),
		Top:        report.Rows(res.Grid.Frame, res.Top),
		DurationMs: res.Duration.Milliseconds(),
	})
}

func (e *explorer) handleMap(w http.ResponseWriter, r *http.Request) {
	p, res, ok := e.analyze(w, r)
	if !ok {
		return
	}
	title := fmt.Sprintf("Road density, %.0f mi radius, %.0f mi spacing", p.RadiusMiles, p.SpacingMiles)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTMLMap(w, res.Grid, res.Top, title); err != nil {
		zap.L().Error("explore: render map", zap.Error(err))
	}
}

func (e *explorer) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, e.cache.Stats())
}

func (e *explorer) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		removed := 0
		if e.cache.Invalidate(key) {
			removed = 1
		}
		writeJSON(w, http.StatusOK, map[string]int{"invalidated": removed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"invalidated": e.cache.InvalidateAll()})
}

// analyze parses request parameters, fetches the cached dataset and runs the
// ranking. It writes an error response and returns false on failure.
func (e *explorer) analyze(w http.ResponseWriter, r *http.Request) (exploreParams, *density.Result, bool) {
	p, err := parseExploreParams(r, e.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return p, nil, false
	}

	prepared, err := e.cache.GetOrLoad(r.Context(), e.key, e.load)
	if err != nil {
		zap.L().Error("explore: load dataset", zap.String("source", e.key), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return p, nil, false
	}

	res, err := density.Analyze(r.Context(), prepared,
		milesParams(p.RadiusMiles, p.SpacingMiles, p.TopK),
		density.WithWorkers(e.defaults.Workers),
	)
	switch {
	case err == nil:
		return p, res, true
	case density.IsInvalidParameter(err), density.IsEmptyInput(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zap.L().Error("explore: analyze", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
	return p, nil, false
}

// parseExploreParams reads radius_miles, spacing_miles and top from the
// query string, falling back to defaults for absent values.
func parseExploreParams(r *http.Request, defaults config.AnalysisConfig) (exploreParams, error) {
	q := r.URL.Query()
	p := exploreParams{
		RadiusMiles:  defaults.RadiusMiles,
		SpacingMiles: defaults.SpacingMiles,
		TopK:         defaults.TopK,
	}

	if v := q.Get("radius_miles"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, eris.Errorf("radius_miles: invalid number %q", v)
		}
		p.RadiusMiles = f
	}
	if v := q.Get("spacing_miles"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, eris.Errorf("spacing_miles: invalid number %q", v)
		}
		p.SpacingMiles = f
	}
	if v := q.Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, eris.Errorf("top: invalid integer %q", v)
		}
		p.TopK = n
	}

	if p.RadiusMiles < minRadiusMiles || p.RadiusMiles > maxRadiusMiles {
		return p, eris.Errorf("radius_miles must be between %g and %g", minRadiusMiles, maxRadiusMiles)
	}
	if p.SpacingMiles < minSpacingMiles || p.SpacingMiles > maxSpacingMiles {
		return p, eris.Errorf("spacing_miles must be between %g and %g", minSpacingMiles, maxSpacingMiles)
	}
	if p.TopK < 1 {
		return p, eris.New("top must be >= 1")
	}
	return p, nil
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("explore: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	exploreCmd.Flags().IntVar(&explorePort, "port", 0, "server port (default from config)")
	exploreCmd.Flags().String("source", "", "road dataset: .shp, .zip, .geojson or postgis:<table> (default from config)")
	rootCmd.AddCommand(exploreCmd)
}
