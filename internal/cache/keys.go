package cache

import (
	"strconv"
	"strings"
	"time"

	"wattline/internal/config"
)

// Namespace is the Redis key prefix for the wattline application.
const Namespace = "wattline"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// --- Query Keys -------------------------------------------------------------

// QueryEnergyKey identifies one aggregated energy response by its full
// request shape. Every rolled-up minute can shift any of these payloads,
// so invalidation goes through QueryPattern rather than single keys.
func QueryEnergyKey(channel, granularity string, from, to int64) string {
	return formatKey("query", "energy", channel, granularity,
		strconv.FormatInt(from, 10), strconv.FormatInt(to, 10))
}

// QueryPattern matches every cached query payload for coarse invalidation.
func QueryPattern() string {
	return formatKey("query", "*")
}

// --- Aggregator Keys --------------------------------------------------------

// AggregatorLockKey is the single-flight lease taken around a rollup run.
func AggregatorLockKey() string {
	return formatKey("lock", "aggregator")
}

// --- TTL Helpers ------------------------------------------------------------

// QueryTTL returns the TTL for aggregated energy payloads.
func QueryTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// AggregatorLockSeconds bounds a rollup lease; a crashed run frees the
// lock after this many seconds.
func AggregatorLockSeconds() int {
	return 120
}
