package state

import "time"

type Config struct {
	// Clock returns the timestamp given to every operation. Defaults to time.Now.
	Clock func() time.Time
}

func (cfg *Config) now() time.Time {
	if cfg == nil || cfg.Clock == nil {
		return time.Now()
	}
	return cfg.Clock()
}
