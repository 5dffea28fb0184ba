package core

import (
	"fmt"
	"strings"
	"time"
)

type VerificationConfig struct {
	// DefaultLeaseSeconds applies when a subscribe callback omits hub.lease_seconds.
	// Zero leaves the subscription without an expiry.
	DefaultLeaseSeconds int `koanf:"default_lease_seconds" mapstructure:"default_lease_seconds"`
	// MaxLeaseSeconds clamps hub.lease_seconds; zero disables the clamp.
	MaxLeaseSeconds int `koanf:"max_lease_seconds" mapstructure:"max_lease_seconds"`
	LockTTLSeconds  int `koanf:"lock_ttl_seconds" mapstructure:"lock_ttl_seconds"`
}

type LeaseConfig struct {
	RenewWithinSeconds int `koanf:"renew_within_seconds" mapstructure:"renew_within_seconds"`
	PruneBatchSize     int `koanf:"prune_batch_size" mapstructure:"prune_batch_size"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Verification VerificationConfig `koanf:"verification" mapstructure:"verification"`
	Leases       LeaseConfig        `koanf:"leases" mapstructure:"leases"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "websub",
		Verification: VerificationConfig{
			LockTTLSeconds: 30,
		},
		Leases: LeaseConfig{
			RenewWithinSeconds: 3600,
			PruneBatchSize:     100,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Verification.DefaultLeaseSeconds < 0 {
		return fmt.Errorf("core: verification.default_lease_seconds must not be negative")
	}
	if c.Verification.MaxLeaseSeconds < 0 {
		return fmt.Errorf("core: verification.max_lease_seconds must not be negative")
	}
	if c.Verification.LockTTLSeconds <= 0 {
		return fmt.Errorf("core: verification.lock_ttl_seconds must be positive")
	}
	if c.Leases.RenewWithinSeconds < 0 {
		return fmt.Errorf("core: leases.renew_within_seconds must not be negative")
	}
	if c.Leases.PruneBatchSize <= 0 {
		return fmt.Errorf("core: leases.prune_batch_size must be positive")
	}
	return nil
}

func (c VerificationConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LeaseFor resolves the lease applied to a subscribe verification.
func (c VerificationConfig) LeaseFor(requested *int) (time.Duration, bool) {
	seconds := c.DefaultLeaseSeconds
	if requested != nil {
		seconds = *requested
	} else if seconds == 0 {
		return 0, false
	}
	if c.MaxLeaseSeconds > 0 && seconds > c.MaxLeaseSeconds {
		seconds = c.MaxLeaseSeconds
	}
	return time.Duration(seconds) * time.Second, true
}

func (c LeaseConfig) RenewWithin() time.Duration {
	return time.Duration(c.RenewWithinSeconds) * time.Second
}
