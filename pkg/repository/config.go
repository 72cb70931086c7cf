package repository

import (
	"go.uber.org/zap"

	"github.com/leafsii/repokit/pkg/metadata"
)

// Config tunes a Context.
type Config struct {
	// DefaultFactory creates repositories that have no per-type factory.
	// When nil the first factory added with AddFactory is used.
	DefaultFactory Factory

	// NamingStrategy derives table and column names. Defaults to
	// metadata.DefaultNaming.
	NamingStrategy metadata.NamingStrategy

	Logger *zap.SugaredLogger

	// StrictRegistration turns a second registration of the same
	// repository type into a RegistrationError instead of a no-op.
	StrictRegistration bool

	Observer Observer
}

// DefaultConfig returns a Config that builds repositories with
// ProxyFactory.
func DefaultConfig() Config {
	return Config{DefaultFactory: ProxyFactory{}}
}

func (c Config) withDefaults() Config {
	if c.NamingStrategy == nil {
		c.NamingStrategy = metadata.DefaultNaming{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}
