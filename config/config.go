// Package config holds the BASP broker's configuration options (spec
// §6) and loads them from a JSON document, following
// rockstar-0000-aistore's use of github.com/json-iterator/go as a
// drop-in encoding/json replacement for config/stat decoding
// (stats/common_statsd.go).
package config

import (
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options are the broker's tunables (spec §6 "Configuration options").
type Options struct {
	// EnableAutomaticConnections turns on the connection-helper mesh
	// formation procedure (spec §4.6). Default: false.
	EnableAutomaticConnections bool `json:"enable-automatic-connections"`
	// HeartbeatInterval is how often the broker emits a heartbeat on
	// every connection. Zero disables heartbeats. Default: 0.
	HeartbeatInterval time.Duration `json:"heartbeat-interval"`
	// ConnectionTimeout is how long a connection may go without a
	// received frame before it is closed with connection_timeout.
	// Zero means "derive from HeartbeatInterval" (3x, per spec's
	// "implementation-defined, e.g. 3x heartbeat").
	ConnectionTimeout time.Duration `json:"connection-timeout"`
	// AttachUtilityActors is loaded and stored but not read by the
	// broker: helper goroutines (the connection helper, spawn-server
	// probe) always run detached, and Broker.Shutdown does not wait for
	// them, whatever this option says.
	AttachUtilityActors bool `json:"attach-utility-actors"`
}

// Default returns the spec's documented defaults.
func Default() Options {
	return Options{
		EnableAutomaticConnections: false,
		HeartbeatInterval:          0,
		ConnectionTimeout:          0,
		AttachUtilityActors:        false,
	}
}

// EffectiveConnectionTimeout resolves the "implementation-defined"
// default: 3x the heartbeat interval when one is configured, or 0 (no
// connection timeout) when heartbeats are disabled entirely.
func (o Options) EffectiveConnectionTimeout() time.Duration {
	if o.ConnectionTimeout > 0 {
		return o.ConnectionTimeout
	}
	if o.HeartbeatInterval > 0 {
		return 3 * o.HeartbeatInterval
	}
	return 0
}

// Load decodes Options from r, starting from Default() so a partial
// document only overrides what it mentions.
func Load(r io.Reader) (Options, error) {
	opts := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, err
	}
	return opts, nil
}
