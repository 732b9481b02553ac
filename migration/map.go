package migration

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/clustermeta/broker/meta"
)

// ErrSlotNotFound is the fast-path response when a proxy's migration map is
// empty, or has nothing covering the command's slot: the caller falls back
// to the cluster's non-migration routing.
var ErrSlotNotFound = errors.New("migration: no task owns this slot")

// ErrMissingKey is returned for a command with no key to derive a slot from.
var ErrMissingKey = errors.New("migration: command carries no key")

// CopyFunc performs the scan-and-copy of existing keys from source to
// destination for one task; it must observe ctx cancellation. Production
// wiring plugs in the real key-space scanner; tests plug in a stub.
type CopyFunc func(ctx context.Context, t *Task) error

// Command is the minimal shape ProxyMigrationMap.Send needs: which cluster
// and slot it targets, sufficient to route without depending on ais's
// client wire protocol.
type Command struct {
	Cluster string
	Slot    int
	HasKey  bool
}

// ProxyMigrationMap holds every migration task currently live on one proxy,
// keyed by cluster then by the task's identifying MigrationMeta (which
// includes epoch, so a retried migration of the same range is never
// confused with the original).
type ProxyMigrationMap struct {
	mu    sync.RWMutex
	tasks map[string]map[meta.MigrationMeta]*Task
	copy  CopyFunc
}

// NewProxyMigrationMap constructs an empty map. copy may be nil in tests
// that don't exercise the scan phase.
func NewProxyMigrationMap(copy CopyFunc) *ProxyMigrationMap {
	return &ProxyMigrationMap{tasks: make(map[string]map[meta.MigrationMeta]*Task), copy: copy}
}

// TaggedRange is one entry of a cluster map's migration tags, as pushed by
// the coordinator's metadata-sync loop.
type TaggedRange struct {
	Meta  meta.MigrationMeta
	Role  Role
	Start int
	End   int
}

// UpdateFromNewClusterMap reconciles the map for one cluster against the
// latest set of tagged ranges. A meta with an epoch identical to one
// already tracked keeps its running task untouched (same migration,
// possibly mid-flight); anything new spawns a fresh task; anything
// previously tracked but absent now has its task stopped and dropped —
// Stop's cancellation fires at the task's next suspension point, never
// relying on garbage collection to end the activity.
func (m *ProxyMigrationMap) UpdateFromNewClusterMap(cluster string, ranges []TaggedRange) {
	m.mu.Lock()
	cur, ok := m.tasks[cluster]
	if !ok {
		cur = make(map[meta.MigrationMeta]*Task)
		m.tasks[cluster] = cur
	}

	seen := make(map[meta.MigrationMeta]bool, len(ranges))
	var toStop []*Task
	for _, tr := range ranges {
		seen[tr.Meta] = true
		if _, exists := cur[tr.Meta]; exists {
			continue
		}
		id := newTaskID()
		cur[tr.Meta] = newTask(id, tr.Meta, tr.Role, tr.Start, tr.End, m.copy)
		glog.Infof("migration: spawned task %s for cluster %s range [%d,%d) role %s", id, cluster, tr.Start, tr.End, tr.Role)
	}
	for mm, task := range cur {
		if !seen[mm] {
			toStop = append(toStop, task)
			delete(cur, mm)
		}
	}
	if len(cur) == 0 {
		delete(m.tasks, cluster)
	}
	m.mu.Unlock()

	for _, task := range toStop {
		glog.Infof("migration: dropping task %s, no longer present in cluster map", task.ID)
		task.Stop()
	}
}

// Send routes cmd to whichever task owns its slot. Returns ErrSlotNotFound
// on the fast path (map empty, or no task covers the slot) so the caller
// falls back to ordinary routing, and ErrMissingKey for a keyless command.
func (m *ProxyMigrationMap) Send(cmd Command) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.tasks) == 0 {
		return nil, ErrSlotNotFound
	}
	if !cmd.HasKey {
		return nil, ErrMissingKey
	}
	cluster, ok := m.tasks[cmd.Cluster]
	if !ok {
		return nil, ErrSlotNotFound
	}
	for _, t := range cluster {
		if t.Contains(cmd.Slot) {
			return t, nil
		}
	}
	return nil, ErrSlotNotFound
}

// Task looks up a specific task by cluster and meta, such as the
// destination task a switch request names.
func (m *ProxyMigrationMap) Task(cluster string, mm meta.MigrationMeta) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cl, ok := m.tasks[cluster]
	if !ok {
		return nil, false
	}
	t, ok := cl[mm]
	return t, ok
}

// Stop cancels every live task across every cluster, used on proxy
// shutdown to await clean completion of all activities.
func (m *ProxyMigrationMap) Stop() {
	m.mu.Lock()
	var all []*Task
	for _, cl := range m.tasks {
		for _, t := range cl {
			all = append(all, t)
		}
	}
	m.tasks = make(map[string]map[meta.MigrationMeta]*Task)
	m.mu.Unlock()

	for _, t := range all {
		t.Stop()
	}
}
