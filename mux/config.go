// Package mux implements the multiplexer: the public connection
// object a caller obtains from Connect, routing every Send through a
// RoutingStrategy (standalone, primary/replica,
// cluster, or sentinel-aware) onto the right bridge.Bridge, per §4.F.
package mux

import (
	"crypto/tls"
	"time"

	"github.com/redikit/redikit/bridge"
	"github.com/redikit/redikit/redis"
	"github.com/redikit/redikit/resp"
)

// Config configures a Multiplexer. Field names and defaults mirror
// §6's configuration surface verbatim.
type Config struct {
	// Endpoints is the seed address list: one standalone server, a
	// primary/replica pair, a set of sentinels, or a set of cluster
	// nodes, depending on Topology.
	Endpoints []string
	Topology  Topology

	Protocol   resp.Protocol
	User       string
	Password   string
	ClientName string

	DefaultDatabase int
	AbortConnect    bool
	AllowAdmin      bool

	ConnectTimeout time.Duration
	SyncTimeout    time.Duration
	AsyncTimeout   time.Duration
	KeepAlive      time.Duration

	SSL                       bool
	SSLHost                   string
	SSLProtocols              []string
	CheckCertificateRevocation bool
	TLSConfig                 *tls.Config

	// Tiebreaker names the tiebreaker key, default
	// "__Booksleeve_TieBreak". It is defaulted but never read: no
	// RoutingStrategy here resolves competing primaries by it, and the
	// standalone/primary-replica strategy takes Endpoints[0] as primary.
	Tiebreaker string
	// ConfigChannel names the reconfiguration-notice channel, default
	// "__Booksleeve_MasterChanged". It is defaulted but nothing
	// publishes or subscribes to it.
	ConfigChannel string
	// ServiceName identifies the sentinel-monitored master name.
	ServiceName string

	ConnectRetry          int
	ReconnectRetryPolicy  bridge.RetryPolicy
	BacklogPolicy         bridge.BacklogPolicy
	IncludeDetailInErrors bool

	HeartbeatInterval time.Duration
	// ConfigCheckSeconds is the period of the background topology
	// refresh (CLUSTER NODES re-fetch, sentinel primary re-probe),
	// default 60s.
	ConfigCheckSeconds int

	Logger bridge.Logger

	// Scripts caches EVAL script bodies by SHA1 digest so a NOSCRIPT
	// reply to an EVALSHA can be repaired with SCRIPT LOAD and retried,
	// per §7's propagation policy. Defaulted to a fresh *redis.ScriptCache
	// if nil.
	Scripts *redis.ScriptCache
}

// Topology selects which RoutingStrategy Connect builds.
type Topology int

const (
	Standalone Topology = iota
	PrimaryReplica
	Sentinel
	Cluster
)

func (c *Config) setDefaults() {
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = c.SyncTimeout
	}
	if c.AsyncTimeout <= 0 {
		c.AsyncTimeout = 10 * time.Second
	}
	if c.Tiebreaker == "" {
		c.Tiebreaker = "__Booksleeve_TieBreak"
	}
	if c.ConfigChannel == "" {
		c.ConfigChannel = "__Booksleeve_MasterChanged"
	}
	if c.ConnectRetry <= 0 {
		c.ConnectRetry = 3
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = time.Second
	}
	if c.ConfigCheckSeconds <= 0 {
		c.ConfigCheckSeconds = 60
	}
	if c.Scripts == nil {
		c.Scripts = redis.NewScriptCache()
	}
}

// bridgeOptions derives bridge.Options shared by every endpoint this
// config creates, per role.
func (c *Config) bridgeOptions(role bridge.Role) bridge.Options {
	tlsConfig := c.TLSConfig
	if c.SSL && tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: c.SSLHost}
	}
	return bridge.Options{
		Role:                 role,
		Protocol:             c.Protocol,
		User:                 c.User,
		Password:             c.Password,
		ClientName:           c.ClientName,
		DB:                   c.DefaultDatabase,
		TLSConfig:            tlsConfig,
		ConnectTimeout:       c.ConnectTimeout,
		SyncTimeout:          c.SyncTimeout,
		HeartbeatInterval:    c.HeartbeatInterval,
		KeepAlive:            c.KeepAlive,
		BacklogPolicy:        c.BacklogPolicy,
		ReconnectRetryPolicy: c.ReconnectRetryPolicy,
		Logger:               c.Logger,
	}
}
