package meta

import "github.com/golang/glog"

// ForceBumpAllEpoch sets GlobalEpoch and every cluster's epoch to e. Used
// for operator-driven recovery when the store's own monotone counter needs
// to be pushed ahead of whatever proxies already believe. Refuses to move
// the epoch backwards or leave it unchanged.
func (s *MetaStore) ForceBumpAllEpoch(e int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e <= s.globalEpoch {
		return NewErr(SmallEpoch, "%d <= current global epoch %d", e, s.globalEpoch)
	}
	s.globalEpoch = e
	for _, c := range s.clusters {
		c.Epoch = e
	}
	glog.Warningf("meta: force-bumped global epoch to %d", e)
	return nil
}

// RecoverEpoch unconditionally advances GlobalEpoch to max(current, e). It
// never fails and never regresses — used after a broker restart once live
// proxies have been polled for their own epoch via epochgossip, so the
// fresh broker process never re-issues an epoch a proxy has already seen.
func (s *MetaStore) RecoverEpoch(e int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e > s.globalEpoch {
		s.globalEpoch = e
		glog.Infof("meta: recovered global epoch to %d", e)
	}
	return s.globalEpoch
}
