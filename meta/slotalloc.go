package meta

import "sort"

// EvenPartition splits SlotMax contiguously across n identities so that no
// two shares differ by more than one slot, with the earlier identities
// absorbing the remainder. Ranges are ordered by identity.
func EvenPartition(n int) []SlotRange {
	if n <= 0 {
		return nil
	}
	out := make([]SlotRange, n)
	base := SlotMax / n
	rem := SlotMax % n
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out[i] = SlotRange{Start: start, End: start + size}
		start += size
	}
	return out
}

// PlanItem is a single migration task in a scale plan: move slots [Start,
// End) from the master identified by SrcOwner to the one identified by
// DstOwner.
type PlanItem struct {
	SrcOwner int
	DstOwner int
	Start    int
	End      int
}

// planDiff computes the minimum set of contiguous-range moves needed to go
// from (oldRanges, oldOwner) to (newRanges, newOwner). Both range slices
// must already partition [0, SlotMax). Overlaps where the owning identity
// is unchanged are not emitted.
func planDiff(oldRanges []SlotRange, oldOwner []int, newRanges []SlotRange, newOwner []int) []PlanItem {
	var items []PlanItem
	i, j := 0, 0
	for i < len(oldRanges) && j < len(newRanges) {
		os, oe := oldRanges[i].Start, oldRanges[i].End
		ns, ne := newRanges[j].Start, newRanges[j].End
		s := max(os, ns)
		e := min(oe, ne)
		if s < e && oldOwner[i] != newOwner[j] {
			items = append(items, PlanItem{SrcOwner: oldOwner[i], DstOwner: newOwner[j], Start: s, End: e})
		}
		if oe < ne {
			i++
		} else if ne < oe {
			j++
		} else {
			i++
			j++
		}
	}
	return items
}

// sizeByOwner sums the slots each owner holds across ranges, used to order
// tasks by "largest current holder first".
func sizeByOwner(ranges []SlotRange, owner []int) map[int]int {
	out := make(map[int]int)
	for i, r := range ranges {
		out[owner[i]] += r.Count()
	}
	return out
}

func sortPlan(items []PlanItem, srcSize map[int]int) {
	sort.SliceStable(items, func(a, b int) bool {
		if srcSize[items[a].SrcOwner] != srcSize[items[b].SrcOwner] {
			return srcSize[items[a].SrcOwner] > srcSize[items[b].SrcOwner]
		}
		if items[a].SrcOwner != items[b].SrcOwner {
			return items[a].SrcOwner < items[b].SrcOwner
		}
		return items[a].DstOwner < items[b].DstOwner
	})
}

// PlanExpand computes the migration plan for growing a cluster's master
// count from oldN to newN (newN > oldN). Master identities [0, oldN) are
// preserved; identities [oldN, newN) are freshly introduced. The plan moves
// the cluster from EvenPartition(oldN) to EvenPartition(newN) laid over the
// identities in order, so existing masters may also pass slots to one
// another: a task's destination is not necessarily a new master.
func PlanExpand(oldN, newN int) ([]PlanItem, error) {
	if newN <= oldN {
		return nil, NewErr(InvalidNodeNum, "expand requires newN(%d) > oldN(%d)", newN, oldN)
	}
	oldRanges := EvenPartition(oldN)
	newRanges := EvenPartition(newN)
	oldOwner := identity(oldN)
	newOwner := identity(newN)
	items := planDiff(oldRanges, oldOwner, newRanges, newOwner)
	if len(items) == 0 {
		return nil, NewErr(SlotsAlreadyEven, "partition already optimal for %d masters", newN)
	}
	sortPlan(items, sizeByOwner(oldRanges, oldOwner))
	return items, nil
}

// PlanShrink computes the migration plan for removing the masters in
// removeOwners from a cluster of oldN masters, redistributing their slots
// across the survivors. Survivor identities are unchanged; only their range
// boundaries move. The result is EvenPartition(len(survivors)) laid over
// the survivors in order, so survivors may also pass slots to one another:
// not every task's source is a removed master.
func PlanShrink(oldN int, removeOwners []int) ([]PlanItem, error) {
	remove := make(map[int]bool, len(removeOwners))
	for _, o := range removeOwners {
		remove[o] = true
	}
	var survivors []int
	for i := 0; i < oldN; i++ {
		if !remove[i] {
			survivors = append(survivors, i)
		}
	}
	if len(survivors) == 0 {
		return nil, NewErr(InvalidNodeNum, "shrink would remove every master")
	}
	oldRanges := EvenPartition(oldN)
	oldOwner := identity(oldN)
	newRanges := EvenPartition(len(survivors))
	newOwner := survivors
	items := planDiff(oldRanges, oldOwner, newRanges, newOwner)
	if len(items) == 0 {
		return nil, NewErr(SlotsAlreadyEven, "nothing to migrate for this shrink")
	}
	sortPlan(items, sizeByOwner(oldRanges, oldOwner))
	return items, nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BalanceMasters evens out a chunk whose two proxies hold an unequal number
// of master nodes by swapping master/replica roles of paired nodes, one
// pair at a time, until both proxies hold the same count. Returns
// ResourceNotBalance if the chunk's total master count is odd, since no
// split across exactly two proxies can then be equal.
func BalanceMasters(chunk *Chunk, proxies map[string]*Proxy, nodes map[string]*Node) error {
	p0, p1 := proxies[chunk.ProxyAddrs[0]], proxies[chunk.ProxyAddrs[1]]
	if p0 == nil || p1 == nil {
		return NewErr(ProxyNotFound, "chunk references unknown proxy")
	}
	n := len(p0.Nodes)
	if n != len(p1.Nodes) {
		return NewErr(ResourceNotBalance, "chunk proxies have mismatched node counts")
	}
	totalMasters := 0
	for i := 0; i < n; i++ {
		if nodes[p0.Nodes[i]].Role == RoleMaster {
			totalMasters++
		}
		if nodes[p1.Nodes[i]].Role == RoleMaster {
			totalMasters++
		}
	}
	if totalMasters%2 != 0 {
		return NewErr(ResourceNotBalance, "chunk has an odd number of masters (%d), cannot split evenly", totalMasters)
	}
	target := totalMasters / 2
	countMasters := func(p *Proxy) int {
		c := 0
		for _, addr := range p.Nodes {
			if nodes[addr].Role == RoleMaster {
				c++
			}
		}
		return c
	}
	for countMasters(p0) > target {
		if !flipOnePair(p0, p1, nodes, true) {
			return NewErr(ResourceNotBalance, "no eligible pair to rebalance chunk")
		}
	}
	for countMasters(p1) > target {
		if !flipOnePair(p0, p1, nodes, false) {
			return NewErr(ResourceNotBalance, "no eligible pair to rebalance chunk")
		}
	}
	return nil
}

// flipOnePair finds a node-pair (p0.Nodes[i], p1.Nodes[i]) where fromP0 side
// is master and the other is replica, and swaps their roles. Returns false
// if no such pair exists.
func flipOnePair(p0, p1 *Proxy, nodes map[string]*Node, fromP0 bool) bool {
	for i := 0; i < len(p0.Nodes) && i < len(p1.Nodes); i++ {
		na, nb := nodes[p0.Nodes[i]], nodes[p1.Nodes[i]]
		if fromP0 && na.Role == RoleMaster && nb.Role == RoleReplica {
			na.Role, nb.Role = RoleReplica, RoleMaster
			na.ReplicaOf, nb.ReplicaOf = nb.Address, ""
			return true
		}
		if !fromP0 && nb.Role == RoleMaster && na.Role == RoleReplica {
			nb.Role, na.Role = RoleReplica, RoleMaster
			nb.ReplicaOf, na.ReplicaOf = na.Address, ""
			return true
		}
	}
	return false
}
