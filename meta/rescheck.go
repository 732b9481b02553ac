package meta

// CheckHostTolerance answers, for every host currently contributing a proxy
// to some cluster, "if this host's proxies all failed at once, could the
// free pool still produce a replacement chunk for every chunk that host
// touches?" (bounded by migrationLimit simultaneous replacements, since
// replace_failed_proxy is invoked one chunk at a time by the coordinator).
// It returns the hosts that would NOT be tolerated.
func (s *MetaStore) CheckHostTolerance(migrationLimit int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hostsInUse := make(map[string]bool)
	for _, p := range s.allProxies {
		if !p.Free() {
			hostsInUse[p.Host] = true
		}
	}

	var violating []string
	for host := range hostsInUse {
		affected := affectedChunkCount(s.clusters, s.allProxies, host)
		if affected == 0 {
			continue
		}
		need := affected
		if need > migrationLimit {
			need = migrationLimit
		}
		free := freeProxiesExcludingHost(s.allProxies, host)
		if _, err := AllocateChunks(free, need, s.enableOrderedProxy); err != nil {
			violating = append(violating, host)
		}
	}
	return sortedStrings(violating)
}

func affectedChunkCount(clusters map[string]*Cluster, proxies map[string]*Proxy, host string) int {
	count := 0
	for _, c := range clusters {
		for _, chunk := range c.Chunks {
			for _, addr := range chunk.ProxyAddrs {
				if p := proxies[addr]; p != nil && p.Host == host {
					count++
					break
				}
			}
		}
	}
	return count
}

func freeProxiesExcludingHost(proxies map[string]*Proxy, host string) []*Proxy {
	var out []*Proxy
	for _, p := range proxies {
		if p.Free() && p.Host != host {
			out = append(out, p)
		}
	}
	return out
}
