// Package config provides centralized configuration management for the
// simulation, network, and spatial tunables of the protocol core. This
// is the SINGLE SOURCE OF TRUTH for these settings.
//
// IMPORTANT: When changing values, only modify this file. All other
// packages reference the structs returned from here; none re-declare
// defaults of their own.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig controls the authoritative tick loop.
type SimulationConfig struct {
	TickRate     int     // simulation frequency in Hz (20-30 recommended)
	SnapshotRate int     // snapshots per second per peer; must divide TickRate
	PlayerSpeed  float64 // world units/sec applied to normalized input direction
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:     30,
		SnapshotRate: 10,
		PlayerSpeed:  200.0,
	}
}

// SimulationFromEnv overlays environment variables on the defaults.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()
	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("SNAPSHOT_RATE", 0); v > 0 {
		cfg.SnapshotRate = v
	}
	if v := getEnvFloat("PLAYER_SPEED", -1); v >= 0 {
		cfg.PlayerSpeed = v
	}
	return cfg
}

// =============================================================================
// NETWORK / CLIENT-SIDE TIMING CONFIGURATION
// =============================================================================

// NetworkConfig controls client-facing timing: interpolation delay, clock
// sync cadence, input rate, and reconciliation tolerance.
type NetworkConfig struct {
	InterpolationDelayMs  int
	JitterBufferMs        int
	ClockSyncIntervalMs   int
	InputSendRate         int // Hz, also the ServerProtocol token-bucket rate
	ReconcileThreshold    float64
	ConnectionTimeoutSec  int
	SnapshotStarvationSec int
}

// TotalClientDelayMs is InterpolationDelayMs + JitterBufferMs, the render
// clock's lag behind server time (spec.md §4.8).
func (n NetworkConfig) TotalClientDelayMs() int {
	return n.InterpolationDelayMs + n.JitterBufferMs
}

// DefaultNetwork returns the default network configuration.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		InterpolationDelayMs:  100,
		JitterBufferMs:        50,
		ClockSyncIntervalMs:   1000,
		InputSendRate:         20,
		ReconcileThreshold:    2.0,
		ConnectionTimeoutSec:  10,
		SnapshotStarvationSec: 5,
	}
}

// NetworkFromEnv overlays environment variables on the defaults.
func NetworkFromEnv() NetworkConfig {
	cfg := DefaultNetwork()
	if v := getEnvInt("INTERPOLATION_DELAY_MS", 0); v > 0 {
		cfg.InterpolationDelayMs = v
	}
	if v := getEnvInt("JITTER_BUFFER_MS", 0); v > 0 {
		cfg.JitterBufferMs = v
	}
	if v := getEnvInt("CLOCK_SYNC_INTERVAL_MS", 0); v > 0 {
		cfg.ClockSyncIntervalMs = v
	}
	if v := getEnvInt("INPUT_SEND_RATE", 0); v > 0 {
		cfg.InputSendRate = v
	}
	if v := getEnvFloat("RECONCILE_THRESHOLD", -1); v >= 0 {
		cfg.ReconcileThreshold = v
	}
	if v := getEnvInt("CONNECTION_TIMEOUT_SEC", 0); v > 0 {
		cfg.ConnectionTimeoutSec = v
	}
	if v := getEnvInt("SNAPSHOT_STARVATION_SEC", 0); v > 0 {
		cfg.SnapshotStarvationSec = v
	}
	return cfg
}

// =============================================================================
// SPATIAL / INTEREST MANAGEMENT CONFIGURATION
// =============================================================================

// SpatialConfig controls the chunk index and interest budget.
type SpatialConfig struct {
	ChunkSize              float64
	InterestRadius         int32
	MaxEntitiesPerSnapshot int
	HysteresisBonus        float64
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		ChunkSize:              64.0,
		InterestRadius:         2,
		MaxEntitiesPerSnapshot: 100,
		HysteresisBonus:        10000.0,
	}
}

// =============================================================================
// HISTORY / LAG COMPENSATION CONFIGURATION
// =============================================================================

// HistoryConfig bounds the server-side rings.
type HistoryConfig struct {
	HistorySize         int // per-peer snapshot history ring
	LagCompHistoryTicks int
}

// DefaultHistory returns the default history configuration.
func DefaultHistory() HistoryConfig {
	return HistoryConfig{
		HistorySize:         60,
		LagCompHistoryTicks: 40,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds process-level server settings.
type ServerConfig struct {
	Port       int
	MaxPlayers int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:       8080,
		MaxPlayers: 100,
	}
}

// ServerFromEnv overlays environment variables on the defaults.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	return cfg
}

// =============================================================================
// COMPLETE APPLICATION CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation SimulationConfig
	Network    NetworkConfig
	Spatial    SpatialConfig
	History    HistoryConfig
	Server     ServerConfig
}

// Load returns the complete configuration with environment overrides,
// validated against the invariants spec.md calls out explicitly:
// TickRate must be a multiple of SnapshotRate, and TotalClientDelay must
// be able to bridge at least one snapshot period plus the jitter buffer.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		Simulation: SimulationFromEnv(),
		Network:    NetworkFromEnv(),
		Spatial:    DefaultSpatial(),
		History:    DefaultHistory(),
		Server:     ServerFromEnv(),
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field invariants spec.md §6 and §9 require.
// A config that fails these checks is rejected outright rather than
// silently clamped — the §9 design notes flag exactly this class of
// misconfiguration (a 75ms TOTAL_CLIENT_DELAY at 10Hz, which would
// guarantee buffer under-run) as a defect to refuse, not to tolerate.
func (c AppConfig) Validate() error {
	if c.Simulation.SnapshotRate <= 0 || c.Simulation.TickRate <= 0 {
		return fmt.Errorf("config: TickRate and SnapshotRate must be positive")
	}
	if c.Simulation.TickRate%c.Simulation.SnapshotRate != 0 {
		return fmt.Errorf("config: TICK_RATE (%d) must be an integer multiple of SNAPSHOT_RATE (%d)",
			c.Simulation.TickRate, c.Simulation.SnapshotRate)
	}
	snapshotPeriodMs := 1000.0 / float64(c.Simulation.SnapshotRate)
	minDelay := snapshotPeriodMs + float64(c.Network.JitterBufferMs)
	if float64(c.Network.TotalClientDelayMs()) < minDelay {
		return fmt.Errorf("config: TOTAL_CLIENT_DELAY (%dms) must be >= 1/SNAPSHOT_RATE + JITTER_BUFFER (%.1fms)",
			c.Network.TotalClientDelayMs(), minDelay)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
