package orclient

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config tunes the submission saga and the proposal builder.
type Config struct {
	// PropConfirms is how many confirmations a proposal transaction needs
	// before its content is pushed to the node.
	PropConfirms   uint64        `envconfig:"PROP_CONFIRMS" default:"3"`
	ConfirmTimeout time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"10m"`
	PutTimeout     time.Duration `envconfig:"PUT_TIMEOUT" default:"30s"`

	OrecAddress    string `envconfig:"OREC_ADDRESS"`
	RespectAddress string `envconfig:"RESPECT_ADDRESS"`
}

// DefaultConfig returns the settings used when no environment is set.
func DefaultConfig() Config {
	return Config{
		PropConfirms:   3,
		ConfirmTimeout: 10 * time.Minute,
		PutTimeout:     30 * time.Second,
	}
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("orclient config: %w", err)
	}
	return cfg, nil
}
