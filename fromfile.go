// ABOUTME: Adapter construction from an on-disk configuration file
// ABOUTME: Bridges config.Load into the in-process Options struct

package turso

import (
	"fmt"

	"github.com/conneroisu/better-auth-turso-sub001/config"
	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// NewFromFile builds an adapter from a YAML or TOML configuration file. The
// model descriptors still come from the host framework; only connection and
// policy settings live in the file.
func NewFromFile(path string, models []model.Model) (*Adapter, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading adapter config: %w", err)
	}

	return New(Options{
		Config: &Config{
			URL:          cfg.URL,
			AuthToken:    cfg.AuthToken,
			SyncURL:      cfg.SyncURL,
			SyncInterval: cfg.SyncInterval,
		},
		Models:       models,
		UsePlural:    cfg.UsePlural,
		IntIDs:       cfg.IntIDs,
		NumericDates: cfg.NumericDates,
		DebugLogs:    DebugLogs{All: cfg.DebugAll, Ops: cfg.DebugOps},
	})
}
