// Package bridge provides the public API for embedding the hand-off
// bridge. This is the stable API for external consumers.
package bridge

import (
	"github.com/tjfontaine/gchat-bridge/internal/bootstrap"
	"github.com/tjfontaine/gchat-bridge/internal/config"
)

// Bridge is the assembled hand-off stack.
// See internal/bootstrap.Bridge for full documentation.
type Bridge = bootstrap.Bridge

// Config is the bridge configuration.
type Config = config.Config

// New assembles a Bridge from configuration.
// Example:
//
//	cfg, _ := bridge.LoadConfig("config.yaml")
//	b, err := bridge.New(ctx, cfg, nil)
var New = bootstrap.New

// LoadConfig reads configuration from an optional YAML file and
// CHATBRIDGE_-prefixed environment variables.
var LoadConfig = config.Load
