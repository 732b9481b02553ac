package coordinator

import (
	"context"

	"github.com/clustermeta/broker/meta"
	"github.com/clustermeta/broker/migration"
)

// ProxyClient is the coordinator's view of a proxy. The on-wire protocol
// (UMCTL-equivalent GETEPOCH/SETCLUSTER/SETREPL/TMPSWITCH framing) is out of
// scope here, same as broker.Server.ProxyClient and epochgossip.ProxyClient
// — this interface is the extension point a real transport implements.
// GetEpoch's signature matches epochgossip.ProxyClient so a ProxyClient can
// be passed straight into epochgossip.FetchMaxEpoch/WaitForProxyEpoch.
type ProxyClient interface {
	// Ping checks liveness; a non-nil error counts as a failure witness.
	Ping(ctx context.Context, proxyAddr string) error

	// GetEpoch returns the epoch the proxy last observed.
	GetEpoch(ctx context.Context, proxyAddr string) (int64, error)

	// PushClusterState sends SETCLUSTER+SETREPL as a single atomic batch:
	// the cluster's shard map and every node's replication role.
	PushClusterState(ctx context.Context, proxyAddr string, cluster *meta.Cluster, nodes []*meta.Node) error

	// MigrationState polls the proxy for the state of the migration task
	// identified by mm, as observed on the side (source or destination)
	// bound to proxyAddr.
	MigrationState(ctx context.Context, proxyAddr string, mm meta.MigrationMeta) (migration.State, error)
}
