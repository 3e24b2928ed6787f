package server

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"duelnet/internal/config"
	"duelnet/internal/observability"
	"duelnet/internal/protocol"
	"duelnet/internal/simulation"
	"duelnet/internal/world"
)

// Server ties the world, simulation driver, protocol layer, and HTTP/
// WebSocket transport together into one process. Grounded on
// internal/api/server.go's "construction does not start goroutines;
// Start() does" discipline, so the whole stack stays testable with
// httptest without a live tick loop or network listener.
type Server struct {
	cfg     config.AppConfig
	world   *world.World
	driver  *simulation.Driver
	proto   *ServerProtocol
	hub     *Hub
	router  *chi.Mux
	cancel  context.CancelFunc
}

// New constructs the full server stack. Background workers (the tick
// loop, the HTTP listener) do not start until Start is called.
func New(cfg config.AppConfig) *Server {
	w := world.NewWorld(cfg.Spatial.ChunkSize)
	interest := world.NewInterestManager(w.ChunkIndex(), cfg.Spatial.ChunkSize, cfg.Spatial.InterestRadius, cfg.Spatial.MaxEntitiesPerSnapshot, cfg.Spatial.HysteresisBonus)
	lagComp := simulation.NewLagComp(cfg.History.LagCompHistoryTicks)
	physics := world.NewDefaultPhysicsEngine()
	driver := simulation.NewDriver(cfg.Simulation, w, physics, lagComp)

	rateLimiter := NewInputRateLimiter(float64(cfg.Network.InputSendRate), cfg.Network.InputSendRate*2)
	proto := NewServerProtocol(w, interest, driver, cfg.History.HistorySize, rateLimiter)

	driver.OnSnapshotTick(func(tick uint64) {
		proto.BuildAndSendSnapshots(driver.ElapsedWallClockMs())
		observability.SetEntityCount(w.Len())
	})

	hub := NewHub(proto, randomSpawnPoint)

	s := &Server{cfg: cfg, world: w, driver: driver, proto: proto, hub: hub}
	s.router = s.newRouter()
	return s
}

// randomSpawnPoint picks an arbitrary point inside the world bounds for
// a newly connected player. Grounded on the teacher's engine.go spawning
// players at randomized positions within world bounds rather than a
// fixed origin, to avoid every new player overlapping at (0,0).
func randomSpawnPoint() protocol.Vec2 {
	span := protocol.WorldMax - protocol.WorldMin
	return protocol.Vec2{
		X: protocol.WorldMin + rand.Float64()*span*0.25,
		Y: protocol.WorldMin + rand.Float64()*span*0.25,
	}
}

func (s *Server) newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET"},
		AllowCredentials: true,
	}))

	r.Get("/ws", s.hub.ServeWS)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

// Router returns the HTTP handler, for use with httptest in integration
// tests instead of calling Start.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins the tick loop and the HTTP listener on addr. Blocks until
// the HTTP server returns (normally on Stop/shutdown signal).
func (s *Server) Start(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.driver.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			observability.SetConnectionsActive(s.proto.PeerCount())
		}
	}()

	log.Printf("🎮 duelnet server starting on %s (tick=%dHz snapshot=%dHz)", addr, s.cfg.Simulation.TickRate, s.cfg.Simulation.SnapshotRate)
	return http.ListenAndServe(addr, s.router)
}

// Stop halts the tick loop. The HTTP listener has no graceful shutdown
// path here since http.ListenAndServe blocks Start; process-level
// termination closes the listener.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}
