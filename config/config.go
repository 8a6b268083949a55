package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"regioncache/errs"
)

// ReadAttributes loads region Attributes from the environment (prefixed
// REGIONCACHE_) and, if present, a YAML file named after the active
// Profile() under cfgDirPath — the same two-source pattern the teacher's
// env.Read used (AutomaticEnv + a YAML file), adapted to return attributes
// instead of panicking via log.Fatalf: configuration errors here are a
// caller concern, not a process-exit concern, since a library cannot assume
// it owns main().
func ReadAttributes(cfgDirPath string) (Attributes, error) {
	v := newViper()
	if cfgDirPath != "" {
		v.SetConfigName(Profile())
		v.SetConfigType("yaml")
		v.AddConfigPath(cfgDirPath)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return Attributes{}, errors.Wrap(err, "read region attributes config")
			}
		}
	}
	return attributesFromViper(v)
}

// ReadAttributesFromEnv loads Attributes from environment variables only,
// applying DefaultAttributes() first so unset knobs keep sane values.
func ReadAttributesFromEnv() (Attributes, error) {
	return attributesFromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("REGIONCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultAttributes()
	v.SetDefault("caching_enabled", d.CachingEnabled)
	v.SetDefault("concurrency_checks_enabled", d.ConcurrencyChecksEnabled)
	v.SetDefault("concurrency_level", d.ConcurrencyLevel)
	v.SetDefault("initial_capacity", d.InitialCapacity)
	v.SetDefault("lru_entries_limit", d.LRUEntriesLimit)
	v.SetDefault("cloning_enabled", d.CloningEnabled)
	v.SetDefault("heap_lru_enabled", d.HeapLRUEnabled)
	v.SetDefault("heap_lru_delta_pct", d.HeapLRUDeltaPct)
	v.SetDefault("tombstone_timeout", d.TombstoneTimeout)
	return v
}

func attributesFromViper(v *viper.Viper) (Attributes, error) {
	a := Attributes{
		CachingEnabled:           v.GetBool("caching_enabled"),
		ConcurrencyChecksEnabled: v.GetBool("concurrency_checks_enabled"),
		ConcurrencyLevel:         v.GetInt("concurrency_level"),
		InitialCapacity:          v.GetInt("initial_capacity"),
		LRUEntriesLimit:          v.GetInt("lru_entries_limit"),
		LRUEvictionAction:        LRUEvictionAction(v.GetInt("lru_eviction_action")),
		CloningEnabled:           v.GetBool("cloning_enabled"),
		HeapLRUEnabled:           v.GetBool("heap_lru_enabled"),
		HeapLRUDeltaPct:          v.GetFloat64("heap_lru_delta_pct"),
		TombstoneTimeout:         v.GetDuration("tombstone_timeout"),
		EntryTimeToLive: Expiration{
			Timeout: v.GetDuration("entry_ttl"),
			Action:  ExpirationAction(v.GetInt("entry_ttl_action")),
		},
		EntryIdleTimeout: Expiration{
			Timeout: v.GetDuration("entry_idle_timeout"),
			Action:  ExpirationAction(v.GetInt("entry_idle_action")),
		},
		RegionTimeToLive: Expiration{
			Timeout: v.GetDuration("region_ttl"),
			Action:  ExpirationAction(v.GetInt("region_ttl_action")),
		},
		RegionIdleTimeout: Expiration{
			Timeout: v.GetDuration("region_idle_timeout"),
			Action:  ExpirationAction(v.GetInt("region_idle_action")),
		},
	}
	if err := a.Validate(); err != nil {
		return Attributes{}, err
	}
	return a, nil
}

// RemoteTuning holds the backoff/timeout knobs for the remote collaborator
// (spec §5 "remote operations honor a caller-supplied timeout bounded by the
// engine"), loaded the same way the teacher's RedisConfig struct is built
// from env vars.
type RemoteTuning struct {
	MinTimeout          time.Duration
	MaxTimeout           time.Duration
	DefaultTimeout        time.Duration
	DialInitialInterval   time.Duration
	DialMaxRetries        uint
	NotificationQueueSize int
}

// DefaultRemoteTuning mirrors the teacher's RedisConfig defaults in spirit:
// generous pool/timeout values safe for a local dev Redis.
func DefaultRemoteTuning() RemoteTuning {
	return RemoteTuning{
		MinTimeout:            100 * time.Millisecond,
		MaxTimeout:            30 * time.Second,
		DefaultTimeout:        5 * time.Second,
		DialInitialInterval:   200 * time.Millisecond,
		DialMaxRetries:        5,
		NotificationQueueSize: 1024,
	}
}

// ReadRemoteTuning loads RemoteTuning from REGIONCACHE_REMOTE_* env vars.
func ReadRemoteTuning() RemoteTuning {
	v := viper.New()
	v.SetEnvPrefix("REGIONCACHE_REMOTE")
	v.AutomaticEnv()

	d := DefaultRemoteTuning()
	v.SetDefault("min_timeout", d.MinTimeout)
	v.SetDefault("max_timeout", d.MaxTimeout)
	v.SetDefault("default_timeout", d.DefaultTimeout)
	v.SetDefault("dial_initial_interval", d.DialInitialInterval)
	v.SetDefault("dial_max_retries", d.DialMaxRetries)
	v.SetDefault("notification_queue_size", d.NotificationQueueSize)

	return RemoteTuning{
		MinTimeout:            v.GetDuration("min_timeout"),
		MaxTimeout:            v.GetDuration("max_timeout"),
		DefaultTimeout:        v.GetDuration("default_timeout"),
		DialInitialInterval:   v.GetDuration("dial_initial_interval"),
		DialMaxRetries:        uint(v.GetInt("dial_max_retries")),
		NotificationQueueSize: v.GetInt("notification_queue_size"),
	}
}

// ClampTimeout bounds a caller-supplied remote-operation timeout to
// [MinTimeout, MaxTimeout], returning an argument error outside that range
// rather than silently clamping — spec §5 says out-of-range timeouts are
// "rejected with an argument error".
func (t RemoteTuning) ClampTimeout(requested time.Duration) (time.Duration, error) {
	if requested <= 0 {
		return t.DefaultTimeout, nil
	}
	if requested < t.MinTimeout || requested > t.MaxTimeout {
		return 0, errs.Newf(errs.KindArgument, "remote timeout %s outside allowed range [%s, %s]", requested, t.MinTimeout, t.MaxTimeout)
	}
	return requested, nil
}
