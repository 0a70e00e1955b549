package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
	Port           string

	Engine EngineConfig
}

// EngineConfig carries every tunable the decision engine reads. Values are
// loaded once at startup; nothing reads the environment afterwards.
type EngineConfig struct {
	// Scoring thresholds (inclusive lower bounds).
	SuspiciousThreshold float64
	FailThreshold       float64

	// Structuring.
	ReportingThreshold    float64
	StructuringWindow     time.Duration
	StructuringConfidence float64

	// Velocity.
	VelocityBaseline time.Duration
	VelocitySigma    float64

	// Jurisdictional concentration.
	HighRiskCountries     []string
	ConcentrationFraction float64
	ConcentrationCount    int

	// Round-tripping and layering graph search.
	RoundTripMaxHops          int
	RoundTripWindow           time.Duration
	RoundTripConfidence       float64
	LayeringMinIntermediaries int
	LayeringWindow            time.Duration
	LayeringAmountTolerance   float64

	// Per-pattern risk multipliers, [0,10].
	Multipliers map[string]float64

	// Pipeline budgets.
	BranchTimeout   time.Duration
	PipelineTimeout time.Duration
	MaxAttempts     int
	DedupWindow     time.Duration

	// Narrative enrichment.
	EnrichmentTimeout  time.Duration
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration

	CatalogueRefresh time.Duration
}

func Load() *Config {
	return &Config{
		DatabaseURL:    getenv("DATABASE_URL", ""),
		RedisURL:       getenv("REDIS_URL", "localhost:6379"),
		KafkaBrokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
		NatsURL:        getenv("NATS_URL", "nats://localhost:4222"),
		JaegerEndpoint: getenv("JAEGER_ENDPOINT", "jaeger:4318"),
		Port:           getenv("PORT", "8084"),
		Engine:         loadEngine(),
	}
}

func loadEngine() EngineConfig {
	return EngineConfig{
		SuspiciousThreshold: getfloat("SUSPICIOUS_THRESHOLD", 30),
		FailThreshold:       getfloat("FAIL_THRESHOLD", 70),

		ReportingThreshold:    getfloat("REPORTING_THRESHOLD", 10000),
		StructuringWindow:     getduration("STRUCTURING_WINDOW", 24*time.Hour),
		StructuringConfidence: getfloat("STRUCTURING_CONFIDENCE", 0.9),

		VelocityBaseline: getduration("VELOCITY_BASELINE", 90*24*time.Hour),
		VelocitySigma:    getfloat("VELOCITY_SIGMA", 5),

		HighRiskCountries:     getlist("HIGH_RISK_COUNTRIES", "IR,KP,SY,CU,MM"),
		ConcentrationFraction: getfloat("CONCENTRATION_FRACTION", 0.3),
		ConcentrationCount:    getint("CONCENTRATION_COUNT", 5),

		RoundTripMaxHops:          getint("ROUNDTRIP_MAX_HOPS", 3),
		RoundTripWindow:           getduration("ROUNDTRIP_WINDOW", 7*24*time.Hour),
		RoundTripConfidence:       getfloat("ROUNDTRIP_CONFIDENCE", 0.85),
		LayeringMinIntermediaries: getint("LAYERING_MIN_INTERMEDIARIES", 3),
		LayeringWindow:            getduration("LAYERING_WINDOW", 7*24*time.Hour),
		LayeringAmountTolerance:   getfloat("LAYERING_AMOUNT_TOLERANCE", 0.1),

		Multipliers: map[string]float64{
			"structuring":    getfloat("MULTIPLIER_STRUCTURING", 8),
			"velocity":       getfloat("MULTIPLIER_VELOCITY", 6),
			"jurisdictional": getfloat("MULTIPLIER_JURISDICTIONAL", 5),
			"round_tripping": getfloat("MULTIPLIER_ROUND_TRIPPING", 9),
			"layering":       getfloat("MULTIPLIER_LAYERING", 9),
		},

		BranchTimeout:   getduration("BRANCH_TIMEOUT", 2*time.Second),
		PipelineTimeout: getduration("PIPELINE_TIMEOUT", 10*time.Second),
		MaxAttempts:     getint("MAX_ATTEMPTS", 3),
		DedupWindow:     getduration("DEDUP_WINDOW", 24*time.Hour),

		EnrichmentTimeout:  getduration("ENRICHMENT_TIMEOUT", 3*time.Second),
		BreakerMaxFailures: uint32(getint("BREAKER_MAX_FAILURES", 5)),
		BreakerCooldown:    getduration("BREAKER_COOLDOWN", 30*time.Second),

		CatalogueRefresh: getduration("CATALOGUE_REFRESH", 5*time.Minute),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getlist(key, def string) []string {
	raw := getenv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
