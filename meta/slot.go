package meta

// SlotMax is the size of the logical slot space, partitioned across a
// cluster's master nodes. 16384 matches the conventional Redis Cluster
// slot count the original protocol this store backs was built against.
const SlotMax = 16384

// CHUNKHalfNodeNum is the number of nodes a single proxy contributes to a
// chunk. A chunk pairs two proxies, so it always carries 2*CHUNKHalfNodeNum
// nodes: half masters, half replicas.
const CHUNKHalfNodeNum = 2

// TaskKind distinguishes which side of a handoff a SlotRange tag describes.
type TaskKind int

const (
	// TagNone marks a range with no migration in flight.
	TagNone TaskKind = iota
	// TagMigrating marks the range on its current (source) master.
	TagMigrating
	// TagImporting marks the mirror range on the destination master.
	TagImporting
)

func (t TaskKind) String() string {
	switch t {
	case TagMigrating:
		return "Migrating"
	case TagImporting:
		return "Importing"
	default:
		return "None"
	}
}

// MigrationMeta identifies a single slot-range handoff. Epoch is the task's
// identity: two metas differing only by epoch are different tasks even if
// every other field matches, which is how ProxyMigrationMap tells a retried
// migration from a stale one.
type MigrationMeta struct {
	Epoch    int64  `json:"epoch"`
	SrcProxy string `json:"src_proxy"`
	SrcNode  string `json:"src_node"`
	DstProxy string `json:"dst_proxy"`
	DstNode  string `json:"dst_node"`
}

// Equal compares two metas field-by-field, including epoch.
func (m MigrationMeta) Equal(o MigrationMeta) bool {
	return m == o
}

// SlotRange is a half-open interval [Start, End) of the slot space, tagged
// with whatever migration (if any) currently touches it.
type SlotRange struct {
	Start int           `json:"start"`
	End   int           `json:"end"` // exclusive
	Tag   TaskKind      `json:"tag"`
	Meta  MigrationMeta `json:"meta,omitempty"`
}

// Count returns the number of slots covered.
func (r SlotRange) Count() int { return r.End - r.Start }

// Contains reports whether slot falls inside the range.
func (r SlotRange) Contains(slot int) bool { return slot >= r.Start && slot < r.End }

// Overlaps reports whether two ranges share any slot.
func (r SlotRange) Overlaps(o SlotRange) bool {
	return r.Start < o.End && o.Start < r.End
}
