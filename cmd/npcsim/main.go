// Command npcsim runs the NPC behavior engine on a generated demo village,
// saving its state to SQLite and serving it over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/npc-favor/internal/api"
	"github.com/talgya/npc-favor/internal/engine"
	"github.com/talgya/npc-favor/internal/entropy"
	"github.com/talgya/npc-favor/internal/fieldwork"
	"github.com/talgya/npc-favor/internal/persistence"
	"github.com/talgya/npc-favor/internal/tuning"
	"github.com/talgya/npc-favor/internal/weather"
	"github.com/talgya/npc-favor/internal/world"
)

// logNotifier delivers player notifications to the log.
type logNotifier struct{}

func (logNotifier) Notify(title, message string) {
	slog.Info("notification", "title", title, "message", message)
}

func main() {
	level := slog.LevelInfo
	if v := os.Getenv("NPCSIM_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			fmt.Fprintf(os.Stderr, "bad NPCSIM_LOG_LEVEL %q: %v\n", v, err)
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	seed := int64(envIntOrDefault("NPCSIM_SEED", 42))
	dbPath := envOrDefault("NPCSIM_DB", "data/npcsim.db")
	archiveDir := os.Getenv("NPCSIM_ARCHIVE")
	apiPort := envIntOrDefault("NPCSIM_PORT", 8080)
	agentCount := envIntOrDefault("NPCSIM_AGENTS", 12)

	// ── Tuning ────────────────────────────────────────────────────────
	cfg := tuning.Default()
	if path := os.Getenv("NPCSIM_TUNING"); path != "" {
		loaded, err := tuning.Load(path)
		if err != nil {
			slog.Error("failed to load tuning", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("tuning loaded", "path", path)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── World (always regenerated, deterministic from seed) ───────────
	gen := world.DefaultGenConfig()
	gen.Seed = seed
	m := world.Generate(gen)
	slog.Info("world generated", "map", m.String())

	fields := make([]fieldwork.Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		fields = append(fields, fieldwork.Field{ID: f.ID, Center: f.Center, Area: f.Area})
	}

	clock := engine.NewSimClock(cfg.Clock, seed)
	sim := engine.NewSimulation(engine.Options{
		Host: world.Host{
			Terrain:   m,
			Obstacles: m,
			Roads:     m,
			Clock:     clock,
			Random:    entropy.NewSource(seed + 7),
			Notifier:  logNotifier{},
		},
		Tuning: cfg,
		Seed:   seed,
		Fields: fields,
	})

	// ── Load or populate ──────────────────────────────────────────────
	rec, err := db.LoadState()
	switch {
	case err == nil:
		if minute, ok := rec.Minute(); ok {
			clock.SetMinutes(float64(minute))
		}
		if err := sim.RestoreState(rec); err != nil {
			slog.Error("failed to restore state", "error", err)
			os.Exit(1)
		}
	case errors.Is(err, persistence.ErrNoState):
		slog.Info("no saved state found, populating village", "agents", agentCount)
		populate(sim, m, agentCount)
	default:
		slog.Error("failed to load state", "error", err)
		os.Exit(1)
	}

	eng := engine.NewEngine(sim, clock)

	// ── Saving ────────────────────────────────────────────────────────
	var (
		saveMu  sync.Mutex
		lastSeq uint64
	)
	save := func() error {
		saveMu.Lock()
		defer saveMu.Unlock()

		var (
			rec    engine.StateRecord
			events []engine.Event
			seq    uint64
		)
		eng.Locked(func(sim *engine.Simulation) {
			rec = sim.SerializeState()
			events = sim.EventsSince(lastSeq)
			seq = sim.LastSeq()
		})
		if err := db.SaveWorldState(rec, events); err != nil {
			return err
		}
		lastSeq = seq

		if archiveDir != "" {
			minute, _ := rec.Minute()
			if _, err := persistence.WriteArchive(persistence.ArchiveName(archiveDir, rec.RunID(), minute), rec); err != nil {
				slog.Error("archive failed", "error", err)
			}
		}
		return nil
	}
	eng.OnDay = func(day int) {
		slog.Info("new day", "day", day)
		if err := save(); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}
	if err := save(); err != nil {
		slog.Error("initial save failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Weather ───────────────────────────────────────────────────────
	if wc := weather.NewClient(os.Getenv("OPENWEATHER_API_KEY"), os.Getenv("NPCSIM_WEATHER_LOCATION")); wc != nil {
		feed := &weather.Feed{Client: wc, Sink: clock}
		go feed.Run(ctx)
		slog.Info("real weather feed enabled")
	} else {
		slog.Info("OPENWEATHER_API_KEY not set, using procedural weather")
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("NPCSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("NPCSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Eng:      eng,
		DB:       db,
		Port:     apiPort,
		AdminKey: adminKey,
		OnSave:   save,
	}
	apiServer.Start()
	defer apiServer.Close()

	// ── Start ─────────────────────────────────────────────────────────
	var n int
	eng.Locked(func(sim *engine.Simulation) { n = len(sim.Agents) })
	fmt.Printf("\nThe village is awake: %s villagers, %d fields.\n", humanize.Comma(int64(n)), len(fields))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	slog.Info("final save...")
	if err := save(); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. State saved.")
}

// populate spawns villagers beside the generated buildings, one per
// building in turn.
func populate(sim *engine.Simulation, m *world.Map, n int) {
	if len(m.Buildings) == 0 {
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			sim.SpawnAgent(world.Vec3{X: 20 * math.Sin(a), Z: 20 * math.Cos(a)}, nil)
		}
		return
	}
	for i := 0; i < n; i++ {
		b := m.Buildings[i%len(m.Buildings)]
		a := 2 * math.Pi * float64(i/len(m.Buildings)) / 4
		off := b.Radius + 2
		sim.SpawnAgent(world.Vec3{
			X: b.Center.X + off*math.Sin(a),
			Z: b.Center.Z + off*math.Cos(a),
		}, nil)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
