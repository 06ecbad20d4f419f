// Command transitsim runs a synthetic city with the waiting-passenger limiter attached.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/talgya/transit-limiter/internal/citizens"
	"github.com/talgya/transit-limiter/internal/config"
	"github.com/talgya/transit-limiter/internal/engine"
	"github.com/talgya/transit-limiter/internal/network"
	"github.com/talgya/transit-limiter/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	seed := envInt("TRANSITSIM_SEED", 42)
	population := envInt("TRANSITSIM_CITIZENS", 20000)
	ticks := envInt("TRANSITSIM_TICKS", 0)
	limitsPath := os.Getenv("TRANSITSIM_CONFIG")
	dbPath := os.Getenv("TRANSITSIM_DB")

	slog.Info("transitsim starting", "seed", seed, "citizens", humanize.Comma(population))

	// ── City ──────────────────────────────────────────────────────────
	genCfg := network.DefaultGenConfig()
	genCfg.Seed = seed
	city, err := network.Generate(genCfg)
	if err != nil {
		slog.Error("failed to generate city", "error", err)
		os.Exit(1)
	}
	for t, c := range network.StopCounts(city) {
		slog.Info("stops", "mode", network.TransportName(t), "count", c)
	}
	slog.Info("city ready", "network", city.Net.String(), "stops", len(city.Stops))

	// ── Simulation ────────────────────────────────────────────────────
	buf := citizens.NewBuffer(citizens.MaxInstanceCount)
	simCfg := engine.DefaultSimConfig()
	simCfg.Seed = seed

	// The limits file is one provider among the sources handed to OnCreated;
	// an absent or broken file leaves the built-in defaults in force.
	sim := engine.NewSimulation(city, buf, simCfg, config.FileProvider{Path: limitsPath})
	sim.Seed(int(population))

	// ── Run ledger ────────────────────────────────────────────────────
	var ledger *persistence.Ledger
	var runID string
	if dbPath != "" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("failed to create ledger directory", "dir", dir, "error", err)
				os.Exit(1)
			}
		}
		ledger, err = persistence.Open(dbPath)
		if err != nil {
			slog.Error("failed to open run ledger", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer ledger.Close()

		runID, err = ledger.StartRun(seed, sim.Mod.Limits())
		if err != nil {
			slog.Error("failed to start run", "error", err)
			ledger.Close()
			os.Exit(1)
		}
	}

	flush := func() {
		batch := sim.Flush()
		if ledger == nil {
			return
		}
		if err := ledger.RecordTicks(runID, batch); err != nil {
			slog.Error("ledger write failed", "error", err)
		}
	}

	eng := engine.NewEngine()
	sim.Attach(eng)
	eng.OnReport = func(tick uint64) {
		sim.Report(tick)
		flush()
	}

	// ── Start ─────────────────────────────────────────────────────────
	if ticks > 0 {
		eng.RunTicks(uint64(ticks))
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Println("Starting simulation... (Ctrl+C to stop)")
		eng.Run(ctx)
	}

	flush()
	if ledger != nil {
		if err := ledger.RecordTicks(runID, []engine.TickStats{sim.Current}); err != nil {
			slog.Error("ledger write failed", "error", err)
		}
		if err := ledger.FinishRun(runID); err != nil {
			slog.Error("finish run failed", "error", err)
		}
	}

	fmt.Printf("\nSimulation stopped at tick %d: %s evicted, %s boarded, %s abandoned.\n",
		eng.Tick,
		humanize.Comma(int64(sim.Totals.Evicted)),
		humanize.Comma(int64(sim.Totals.Boarded)),
		humanize.Comma(int64(sim.Totals.Abandoned)),
	)
}

func envInt(key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		slog.Warn("ignoring malformed environment value", "key", key, "value", raw)
		return fallback
	}
	return v
}
