// Package capconfig holds the immutable configuration for the
// capabilities subsystem: feature flags, gas costs, queue limits,
// result retention, and security caps. The DefaultConfig/Load/Validate
// triad mirrors the teacher's node.Config / node.DefaultConfig /
// node.ValidateConfig shape (see DESIGN.md); the environment-override
// pattern (os.Getenv with a typed fallback) mirrors
// crypto.HSMConfigFromEnv, adapted from the RUBIN_HSM_ prefix to
// ANIMICA_CAP_ as spec.md §6 requires.
package capconfig

import (
	"os"
	"strconv"
	"strings"

	"animica.dev/capabilities/caperrors"
)

// EnvPrefix is the environment variable prefix recognized for
// overrides, per spec.md §6.
const EnvPrefix = "ANIMICA_CAP_"

type Features struct {
	Blob    bool
	AI      bool
	Quantum bool
	ZK      bool
	Random  bool
}

type GasCosts struct {
	AIBase      uint64
	AIPerUnit   uint64
	QuantumBase uint64
	QuantumPerUnit uint64
	BlobBase    uint64
	BlobPerByte uint64
	ZKBase      uint64
	ZKPerUnit   uint64
}

type QueueLimits struct {
	MaxInflight         int
	MaxPerCaller        int
	MaxAttempts         int
	EnqueueTimeoutMs    int
	ResultReadTimeoutMs int
	BackpressureTarget  float64
}

type ResultPolicy struct {
	TTLBlocks     uint64
	MaxResultBytes int
}

type SecurityLimits struct {
	MaxPayloadBytes   int
	MaxBlobBytes      int
	MaxModelNameBytes int
	MaxPromptBytes    int
	MaxCircuitBytes   int
	MaxReasonBytes    int
	MaxRandomBytes    int
	MaxDebitPerTx     uint64
	MaxCreditPerTx    uint64

	// ZK-specific per-field caps for zk.verify, spec.md §4.6. Distinct
	// from MaxCircuitBytes above, which bounds compute.quantum.enqueue's
	// circuit payload at enqueue time.
	MaxZKCircuitBytes     int
	MaxZKProofBytes       int
	MaxZKPublicInputBytes int
	MaxZKTotalBytes       int
}

// Config is the fully-resolved, immutable configuration. Callers treat
// values returned by Load as read-only; nothing in this subsystem
// mutates a Config after construction.
type Config struct {
	Features Features
	Gas      GasCosts
	Queue    QueueLimits
	Results  ResultPolicy
	Limits   SecurityLimits
}

// DefaultConfig returns the baseline configuration used when no
// explicit map or environment overrides are supplied.
func DefaultConfig() Config {
	return Config{
		Features: Features{Blob: true, AI: true, Quantum: true, ZK: true, Random: true},
		Gas: GasCosts{
			AIBase: 50_000, AIPerUnit: 10,
			QuantumBase: 75_000, QuantumPerUnit: 25,
			BlobBase: 5_000, BlobPerByte: 2,
			ZKBase: 100_000, ZKPerUnit: 50,
		},
		Queue: QueueLimits{
			MaxInflight:         4096,
			MaxPerCaller:        64,
			MaxAttempts:         5,
			EnqueueTimeoutMs:    5_000,
			ResultReadTimeoutMs: 5_000,
			BackpressureTarget:  0.85,
		},
		Results: ResultPolicy{
			TTLBlocks:      100_000,
			MaxResultBytes: 1 << 20,
		},
		Limits: SecurityLimits{
			MaxPayloadBytes:   1 << 20,
			MaxBlobBytes:      8 << 20,
			MaxModelNameBytes: 256,
			MaxPromptBytes:    1 << 20,
			MaxCircuitBytes:   1 << 20,
			MaxReasonBytes:    128,
			MaxRandomBytes:    4096,
			MaxDebitPerTx:     1_000_000_000,
			MaxCreditPerTx:    1_000_000_000,

			MaxZKCircuitBytes:     1 << 20,
			MaxZKProofBytes:       256 << 10,
			MaxZKPublicInputBytes: 64 << 10,
			MaxZKTotalBytes:       2 << 20,
		},
	}
}

// Load resolves Config from an explicit map (typically decoded from a
// genesis/chain config document) layered under DefaultConfig, then
// applies ANIMICA_CAP_*-prefixed environment overrides, then clamps
// the fields Clamp covers to a safe range.
func Load(explicit map[string]any) (Config, error) {
	cfg := DefaultConfig()
	applyExplicit(&cfg, explicit)
	applyEnv(&cfg)
	cfg.Clamp()
	return cfg, nil
}

func applyExplicit(cfg *Config, m map[string]any) {
	if m == nil {
		return
	}
	if v, ok := boolField(m, "features.blob"); ok {
		cfg.Features.Blob = v
	}
	if v, ok := boolField(m, "features.ai"); ok {
		cfg.Features.AI = v
	}
	if v, ok := boolField(m, "features.quantum"); ok {
		cfg.Features.Quantum = v
	}
	if v, ok := boolField(m, "features.zk"); ok {
		cfg.Features.ZK = v
	}
	if v, ok := boolField(m, "features.random"); ok {
		cfg.Features.Random = v
	}
	if v, ok := intField(m, "queue.max_inflight"); ok {
		cfg.Queue.MaxInflight = v
	}
	if v, ok := intField(m, "queue.max_per_caller"); ok {
		cfg.Queue.MaxPerCaller = v
	}
	if v, ok := floatField(m, "queue.backpressure_target"); ok {
		cfg.Queue.BackpressureTarget = v
	}
	if v, ok := intField(m, "limits.max_payload_bytes"); ok {
		cfg.Limits.MaxPayloadBytes = v
	}
	if v, ok := intField(m, "results.max_result_bytes"); ok {
		cfg.Results.MaxResultBytes = v
	}
	if v, ok := intField(m, "results.ttl_blocks"); ok {
		cfg.Results.TTLBlocks = uint64(v)
	}
}

func boolField(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func intField(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func floatField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// applyEnv mirrors crypto.HSMConfigFromEnv's os.Getenv-with-fallback
// idiom, scoped to the ANIMICA_CAP_ prefix.
func applyEnv(cfg *Config) {
	if v, ok := envBool("FEATURE_BLOB"); ok {
		cfg.Features.Blob = v
	}
	if v, ok := envBool("FEATURE_AI"); ok {
		cfg.Features.AI = v
	}
	if v, ok := envBool("FEATURE_QUANTUM"); ok {
		cfg.Features.Quantum = v
	}
	if v, ok := envBool("FEATURE_ZK"); ok {
		cfg.Features.ZK = v
	}
	if v, ok := envBool("FEATURE_RANDOM"); ok {
		cfg.Features.Random = v
	}
	if v, ok := envInt("QUEUE_MAX_INFLIGHT"); ok {
		cfg.Queue.MaxInflight = v
	}
	if v, ok := envInt("QUEUE_MAX_PER_CALLER"); ok {
		cfg.Queue.MaxPerCaller = v
	}
	if v, ok := envFloat("QUEUE_BACKPRESSURE_TARGET"); ok {
		cfg.Queue.BackpressureTarget = v
	}
	if v, ok := envInt("LIMITS_MAX_PAYLOAD_BYTES"); ok {
		cfg.Limits.MaxPayloadBytes = v
	}
}

func envBool(suffix string) (bool, bool) {
	v := os.Getenv(EnvPrefix + suffix)
	if v == "" {
		return false, false
	}
	return v == "1" || strings.EqualFold(v, "true"), true
}

func envInt(suffix string) (int, bool) {
	v := os.Getenv(EnvPrefix + suffix)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(suffix string) (float64, bool) {
	v := os.Getenv(EnvPrefix + suffix)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Clamp forces the queue limits, the result size cap and the payload,
// blob, random and ZK size caps into a safe range, run once at the end
// of Load. Gas costs, TTLBlocks and the model, prompt, circuit, reason
// and per-tx treasury caps are left as given. It never fails:
// out-of-range inputs are pulled back into range rather than rejected,
// since genesis/chain configuration must never brick the subsystem.
func (cfg *Config) Clamp() {
	if cfg.Queue.MaxInflight <= 0 {
		cfg.Queue.MaxInflight = 1
	}
	if cfg.Queue.MaxPerCaller <= 0 {
		cfg.Queue.MaxPerCaller = 1
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 1
	}
	if cfg.Queue.BackpressureTarget < 0.1 {
		cfg.Queue.BackpressureTarget = 0.1
	}
	if cfg.Queue.BackpressureTarget > 0.99 {
		cfg.Queue.BackpressureTarget = 0.99
	}
	if cfg.Queue.EnqueueTimeoutMs <= 0 {
		cfg.Queue.EnqueueTimeoutMs = 1000
	}
	if cfg.Queue.ResultReadTimeoutMs <= 0 {
		cfg.Queue.ResultReadTimeoutMs = 1000
	}
	if cfg.Results.MaxResultBytes <= 0 {
		cfg.Results.MaxResultBytes = 1 << 16
	}
	if cfg.Limits.MaxPayloadBytes <= 0 {
		cfg.Limits.MaxPayloadBytes = 1 << 16
	}
	if cfg.Limits.MaxBlobBytes <= 0 {
		cfg.Limits.MaxBlobBytes = 1 << 16
	}
	if cfg.Limits.MaxRandomBytes <= 0 {
		cfg.Limits.MaxRandomBytes = 32
	}
	if cfg.Limits.MaxZKCircuitBytes <= 0 {
		cfg.Limits.MaxZKCircuitBytes = 1 << 16
	}
	if cfg.Limits.MaxZKProofBytes <= 0 {
		cfg.Limits.MaxZKProofBytes = 1 << 16
	}
	if cfg.Limits.MaxZKPublicInputBytes <= 0 {
		cfg.Limits.MaxZKPublicInputBytes = 1 << 16
	}
	if cfg.Limits.MaxZKTotalBytes <= 0 {
		cfg.Limits.MaxZKTotalBytes = 1 << 17
	}
}

// Validate rejects configurations that, despite clamping, are
// internally inconsistent (used by tests and by operators validating a
// hand-written config document before it is used to build a chain
// config).
func Validate(cfg Config) error {
	if cfg.Queue.BackpressureTarget < 0.1 || cfg.Queue.BackpressureTarget > 0.99 {
		return caperrors.New(caperrors.InvalidInput, "queue.backpressure_target out of [0.1, 0.99]")
	}
	if cfg.Queue.MaxInflight <= 0 {
		return caperrors.New(caperrors.InvalidInput, "queue.max_inflight must be > 0")
	}
	if cfg.Limits.MaxPayloadBytes <= 0 {
		return caperrors.New(caperrors.InvalidInput, "limits.max_payload_bytes must be > 0")
	}
	return nil
}
