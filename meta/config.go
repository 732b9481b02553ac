package meta

import (
	"sync/atomic"
	"time"
)

// BrokerConfig is the broker's tunable runtime configuration: failure
// quorum/ttl, migration concurrency, persistence and replication targets.
// It is swapped as a whole, never mutated in place, so readers never need a
// lock to observe a consistent set of values.
type BrokerConfig struct {
	FailureQuorum    int           `json:"failure_quorum"`
	FailureTTL       time.Duration `json:"failure_ttl"`
	MigrationLimit   int           `json:"migration_limit"`
	ReplicaAddresses []string      `json:"replica_addresses"`
	MetaFilePath     string        `json:"meta_file_path"`
	MetaSyncInterval time.Duration `json:"meta_sync_interval"`
	// ClearFreeNodesOnCommit controls whether CommitMigration releases the
	// source master's chunk back to the free pool once every node on both of
	// its proxies holds no slots and no tag (true), or leaves emptied nodes
	// parked, still bound to the cluster's chunk, for reuse by a later
	// expand of the same cluster (false, the original behavior).
	ClearFreeNodesOnCommit bool `json:"clear_free_nodes_on_commit"`
}

// DefaultBrokerConfig returns conservative defaults for a freshly started
// broker with no config file supplied.
func DefaultBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		FailureQuorum:          2,
		FailureTTL:             60 * time.Second,
		MigrationLimit:         4,
		MetaSyncInterval:       10 * time.Minute,
		ClearFreeNodesOnCommit: false,
	}
}

// globalConfigOwner holds the live BrokerConfig behind an atomic pointer, so
// readers pay no lock and PUT /config installs a new config with a single
// atomic store.
type globalConfigOwner struct {
	cur atomic.Pointer[BrokerConfig]
}

// GCO is the process-wide broker configuration owner.
var GCO = &globalConfigOwner{}

func init() {
	GCO.Put(DefaultBrokerConfig())
}

// Get returns the current config. Never returns nil once init has run.
func (g *globalConfigOwner) Get() *BrokerConfig {
	return g.cur.Load()
}

// Put atomically installs a new config, replacing whatever was live.
func (g *globalConfigOwner) Put(c *BrokerConfig) {
	g.cur.Store(c)
}

// Update builds a new config from the current one by applying mutate, then
// installs it atomically. Used for partial updates, such as the broker
// applying its command-line flags at startup.
func (g *globalConfigOwner) Update(mutate func(*BrokerConfig)) *BrokerConfig {
	cur := g.Get()
	next := *cur
	next.ReplicaAddresses = append([]string(nil), cur.ReplicaAddresses...)
	mutate(&next)
	g.Put(&next)
	return &next
}
