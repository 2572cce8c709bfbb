package iterative

import (
	"net/netip"
	"strings"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/cache"
	"github.com/hydraresolve/hydraresolve/internal/dns"
)

// DelegationPoint is a cached NS RRset for a zone cut plus any glue
// addresses learned alongside it.
type DelegationPoint struct {
	Zone string              // owner name of the NS records, e.g. "test."
	NS   []string            // nameserver hostnames
	Glue map[string][]netip.Addr // in-bailiwick NS name -> addresses, if known
}

// delegationWeight sizes a DelegationPoint for the weighted cache mode,
// reusing cache.WireBytes so delegation and answer caches share one formula.
func delegationWeight(key string, d DelegationPoint) int {
	total := 0
	for _, ns := range d.NS {
		total += cache.WireBytes(ns, 0)
	}
	for name, addrs := range d.Glue {
		total += cache.WireBytes(name, 16*len(addrs))
	}
	return total + cache.WireBytes(key, 0)
}

// newDelegationCache builds the cache backing ChooseNS lookups. Counted mode
// by default; callers wanting byte-budgeted delegation storage can swap in a
// Weighted Config using delegationWeight.
func newDelegationCache(cfg cache.Config[DelegationPoint]) *cache.Cache[DelegationPoint] {
	if cfg.Weight == nil {
		cfg.Weight = delegationWeight
	}
	return cache.New(cfg)
}

// chooseNS picks the deepest cached delegation whose zone is a suffix of (or
// equal to) qname. Returns ok=false when nothing beats the root hints, in
// which case the caller should start from Resolver.roots.
func (r *Resolver) chooseNS(qname string) (DelegationPoint, bool) {
	// candidateZones is ordered most-specific first, so the first cache hit
	// is the deepest delegation covering qname.
	for _, candidate := range r.candidateZones(dns.NormalizeName(qname)) {
		d, state, _, _ := r.delegations.Probe(candidate)
		if state != cache.Miss {
			return d, true
		}
	}
	return DelegationPoint{}, false
}

// candidateZones enumerates qname and each of its parent zones, root last,
// e.g. "www.example.com." -> ["www.example.com.", "example.com.", "com.", "."].
func (r *Resolver) candidateZones(qname string) []string {
	qname = strings.TrimSuffix(qname, ".")
	if qname == "" {
		return []string{"."}
	}
	labels := strings.Split(qname, ".")
	zones := make([]string, 0, len(labels)+1)
	for i := range labels {
		zones = append(zones, strings.Join(labels[i:], ".")+".")
	}
	zones = append(zones, ".")
	return zones
}

// admitDelegation stores a delegation point with a fixed TTL. Real NS TTLs
// come off the wire record; the caller passes that through.
func (r *Resolver) admitDelegation(zone string, ns []string, glue map[string][]netip.Addr, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	// Keyed fully-qualified ("test."), the form candidateZones produces.
	r.delegations.Set(dns.NormalizeName(zone)+".", DelegationPoint{Zone: zone, NS: ns, Glue: glue}, ttl, cache.Positive)
}

// inBailiwick reports whether name is equal to or a subdomain of zone.
func inBailiwick(name, zone string) bool {
	name = dns.NormalizeName(name)
	zone = dns.NormalizeName(zone)
	if zone == "." {
		return true
	}
	return name == zone || strings.HasSuffix(name, "."+zone)
}
