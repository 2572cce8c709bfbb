// Package iterative implements the recursive/iterative DNS resolution state
// machine: Start -> ChooseNS -> Query -> Classify -> (Answer | CNAMEChase |
// Delegate | Retry | Fail). It walks the delegation chain from the
// configured root hints down to an authoritative answer, chasing CNAMEs and
// caching delegation points as it goes, without embedding the logic inside a
// third-party DNS library the way the original resolution engines in this
// space typically do.
//
// The state machine itself is a pure function of an injected nsProbe
// interface so it can be unit tested without opening real sockets, mirroring
// the nsSet/queryIterator split used by reference iterative resolvers.
package iterative

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/cache"
	"github.com/hydraresolve/hydraresolve/internal/dns"
	"github.com/hydraresolve/hydraresolve/internal/resolvers"
	"github.com/hydraresolve/hydraresolve/internal/singleflight"
)

const (
	// MaxCNAMEChain bounds CNAME chase depth; exceeding it is SERVFAIL.
	MaxCNAMEChain = 16
	// MaxOutboundQueries bounds total queries sent for one client query,
	// across both the main resolution and any NS-address sub-resolutions.
	MaxOutboundQueries = 64

	defaultQueryTimeout = 1500 * time.Millisecond
)

var (
	errChainTooDeep   = errors.New("iterative: cname chain exceeds maximum depth")
	errQueryBudget    = errors.New("iterative: outbound query budget exhausted")
	errNoUsableServer = errors.New("iterative: no reachable nameserver")
)

// nsProbe sends one query to one server and returns its parsed response.
// Implementations own transaction-ID and source-port randomization and
// discard responses that don't match what they sent.
type nsProbe interface {
	Query(ctx context.Context, server netip.Addr, q dns.Question) (dns.Packet, error)
}

// Config configures a Resolver.
type Config struct {
	Logger          *slog.Logger
	Roots           []netip.Addr // root hints; used when no cached delegation matches
	Probe           nsProbe      // nil selects the real UDP/TCP prober
	QueryTimeout    time.Duration
	AllowOtherTypes bool // stored but not consulted: every query type is resolved iteratively and none is forwarded
	Delegations     cache.Config[DelegationPoint]
}

// Resolver implements resolvers.Resolver by walking the delegation chain
// iteratively instead of forwarding to a fixed upstream.
type Resolver struct {
	logger          *slog.Logger
	roots           []netip.Addr
	probe           nsProbe
	queryTimeout    time.Duration
	allowOtherTypes bool

	delegations *cache.Cache[DelegationPoint]
	nsAddrSF    *singleflight.Group[string, []netip.Addr]
}

// New creates an iterative Resolver. If cfg.Probe is nil, a real UDP/TCP
// prober with randomized transaction IDs and source ports is constructed.
func New(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	probe := cfg.Probe
	if probe == nil {
		probe = newUDPTCPProbe(cfg.QueryTimeout)
	}
	if cfg.Delegations.MaxEntries <= 0 && cfg.Delegations.MaxBytes <= 0 {
		cfg.Delegations.Mode = cache.Counted
		cfg.Delegations.MaxEntries = 10000
	}
	cfg.Delegations.MaxTTL = 24 * time.Hour

	return &Resolver{
		logger:          cfg.Logger,
		roots:           cfg.Roots,
		probe:           probe,
		queryTimeout:    cfg.QueryTimeout,
		allowOtherTypes: cfg.AllowOtherTypes,
		delegations:     newDelegationCache(cfg.Delegations),
		nsAddrSF:        singleflight.New[string, []netip.Addr](),
	}
}

// Close is a no-op; the resolver holds no long-lived connections.
func (r *Resolver) Close() error { return nil }

// Delegations returns a bounded, read-only snapshot of cached delegation
// points, for the admin surface's GET /delegations introspection endpoint.
func (r *Resolver) Delegations(limit int) []cache.SnapshotEntry[DelegationPoint] {
	return r.delegations.Snapshot(limit)
}

// DelegationCache exposes the underlying delegation cache so it can be
// registered as an rescontrol.Controller target. Memory pressure shrinks its
// byte budget only when it was configured in cache.Weighted mode; the
// default (Counted, 10000 entries) ignores MaxBytes.
func (r *Resolver) DelegationCache() *cache.Cache[DelegationPoint] {
	return r.delegations
}

var _ resolvers.Resolver = (*Resolver)(nil)

// Resolve answers a DNS query by iterative resolution starting from the
// deepest matching cached delegation, or the root hints if none matches.
func (r *Resolver) Resolve(ctx context.Context, req dns.Packet, _ []byte) (resolvers.Result, error) {
	if len(req.Questions) == 0 {
		return resolvers.Result{}, errors.New("iterative: no question in request")
	}
	q := req.Questions[0]

	budget := MaxOutboundQueries
	answers, rcode, soa, err := r.resolveChain(ctx, q.Name, q.Type, q.Class, &budget)
	if err != nil {
		return resolvers.Result{}, err
	}

	resp := dns.Packet{
		Header: dns.Header{
			ID:    req.Header.ID,
			Flags: buildIterativeFlags(req.Header.Flags, uint16(rcode)),
		},
		Questions: []dns.Question{q},
		Answers:   answers,
	}
	if soa != nil {
		resp.Authorities = append(resp.Authorities, *soa)
	}

	b, err := resp.Marshal()
	if err != nil {
		return resolvers.Result{}, err
	}
	return resolvers.Result{ResponseBytes: b, Source: "iterative"}, nil
}

// buildIterativeFlags builds response flags: QR=1, RA=1, AA=0, AD=0, RD
// echoed from the request, RCODE set from the resolution outcome. Per
// SPEC_FULL.md §4.I the dispatcher owns final flag shaping for the reply it
// sends to the client; this resolver's output already conforms so the
// dispatcher has nothing left to rewrite on this path.
func buildIterativeFlags(reqFlags uint16, rcode uint16) uint16 {
	flags := dns.QRFlag | dns.RAFlag
	flags |= reqFlags & dns.RDFlag
	flags |= reqFlags & dns.CDFlag // CD is echoed, never acted on (no DNSSEC validation)
	flags = (flags &^ dns.RCodeMask) | (rcode & dns.RCodeMask)
	return flags
}

// resolveChain runs the CNAME-chasing outer loop around chooseNS/query/classify.
func (r *Resolver) resolveChain(
	ctx context.Context,
	qname string,
	qtype, qclass uint16,
	budget *int,
) ([]dns.Record, dns.RCode, *dns.Record, error) {
	var chain []dns.Record
	cur := qname

	for depth := 0; ; depth++ {
		if depth > MaxCNAMEChain {
			return nil, dns.RCodeServFail, nil, errChainTooDeep
		}

		answers, rcode, soa, cnameTarget, err := r.resolveOne(ctx, cur, qtype, qclass, budget)
		if err != nil {
			return nil, dns.RCodeServFail, nil, err
		}
		chain = append(chain, answers...)

		if cnameTarget == "" {
			return chain, rcode, soa, nil
		}
		cur = cnameTarget
	}
}

// resolveOne runs ChooseNS -> Query -> Classify to completion for a single
// name, either producing a final answer/NXDOMAIN/NODATA/SERVFAIL, or a CNAME
// target to chase next.
func (r *Resolver) resolveOne(
	ctx context.Context,
	qname string,
	qtype, qclass uint16,
	budget *int,
) (answers []dns.Record, rcode dns.RCode, soa *dns.Record, cnameTarget string, err error) {
	zone, servers, err := r.initialNSSet(ctx, qname, budget)
	if err != nil {
		return nil, dns.RCodeServFail, nil, "", err
	}

	for {
		if len(servers) == 0 {
			return nil, dns.RCodeServFail, nil, "", errNoUsableServer
		}

		resp, server, queryErr := r.queryServers(ctx, servers, qname, qtype, qclass, budget)
		if queryErr != nil {
			return nil, dns.RCodeServFail, nil, "", queryErr
		}

		outcome := classify(zone, qname, qtype, resp)
		switch outcome.kind {
		case outcomeRetry:
			servers = removeServer(servers, server)
			continue

		case outcomeServFail:
			return nil, dns.RCodeServFail, nil, "", nil

		case outcomeNXDomain:
			return nil, dns.RCodeNXDomain, outcome.soa, "", nil

		case outcomeNoData:
			return nil, dns.RCodeNoError, outcome.soa, "", nil

		case outcomeAnswer:
			return outcome.answers, dns.RCodeNoError, nil, "", nil

		case outcomeCNAME:
			return outcome.answers, dns.RCodeNoError, nil, outcome.cnameTarget, nil

		case outcomeDelegate:
			r.admitDelegation(outcome.delegZone, outcome.delegNS, outcome.glue, outcome.delegTTL)
			newZone, newServers, err := r.serversForDelegation(ctx, outcome.delegZone, outcome.delegNS, outcome.glue, budget)
			if err != nil || len(newServers) == 0 {
				return nil, dns.RCodeServFail, nil, "", nil
			}
			zone, servers = newZone, newServers
			continue
		}
	}
}

// initialNSSet picks the starting nameserver set for qname: the deepest
// cached delegation, or the root hints.
func (r *Resolver) initialNSSet(ctx context.Context, qname string, budget *int) (string, []netip.Addr, error) {
	if d, ok := r.chooseNS(qname); ok {
		servers := flattenGlue(d.Glue)
		if len(servers) > 0 {
			return d.Zone, servers, nil
		}
		// Cached delegation with no known glue: resolve NS addresses.
		servers, err := r.resolveNSAddresses(ctx, d.NS, budget)
		if err != nil {
			return d.Zone, nil, err
		}
		return d.Zone, servers, nil
	}
	return ".", r.roots, nil
}

// serversForDelegation resolves the server set to query next after a
// Delegate classification, using glue where present and falling back to
// recursive NS-address sub-resolution (through the shared single-flight
// group) where absent.
func (r *Resolver) serversForDelegation(
	ctx context.Context,
	zone string,
	ns []string,
	glue map[string][]netip.Addr,
	budget *int,
) (string, []netip.Addr, error) {
	servers := flattenGlue(glue)
	if len(servers) > 0 {
		return zone, servers, nil
	}
	servers, err := r.resolveNSAddresses(ctx, ns, budget)
	return zone, servers, err
}

// resolveNSAddresses resolves addresses for out-of-bailiwick or glueless NS
// names by recursively calling back into this resolver, coalesced through
// nsAddrSF so concurrent client queries needing the same NS name don't cause
// a resolution stampede.
func (r *Resolver) resolveNSAddresses(ctx context.Context, names []string, budget *int) ([]netip.Addr, error) {
	var out []netip.Addr
	for _, name := range names {
		if len(out) > 0 {
			// One working NS address is enough to make progress; resolving
			// every sibling NS name would burn outbound-query budget for no
			// benefit.
			break
		}
		if *budget <= 0 {
			return nil, errQueryBudget
		}
		// Budget accounting is approximate for coalesced callers: only the
		// caller that actually drives the sub-resolution (the singleflight
		// owner) spends from its own budget; a waiter joining an in-flight
		// NS-address resolution pays nothing extra, which is the point of
		// coalescing in the first place.
		addrs, _, _ := r.nsAddrSF.Do(ctx, dns.NormalizeName(name), func(ctx context.Context) ([]netip.Addr, error) {
			budgetCopy := *budget
			answers, rcode, _, err := r.resolveChain(ctx, name, uint16(dns.TypeA), uint16(dns.ClassIN), &budgetCopy)
			*budget = budgetCopy
			if err != nil || rcode != dns.RCodeNoError {
				return nil, err
			}
			return extractAddrs(answers), nil
		})
		out = append(out, addrs...)
	}
	return out, nil
}

// queryServers tries each server in order, stopping at the first usable
// response. Consumes from budget and returns errQueryBudget if exhausted
// before any server answers.
func (r *Resolver) queryServers(
	ctx context.Context,
	servers []netip.Addr,
	qname string,
	qtype, qclass uint16,
	budget *int,
) (dns.Packet, netip.Addr, error) {
	q := dns.Question{Name: qname, Type: qtype, Class: qclass}
	for _, server := range servers {
		if *budget <= 0 {
			return dns.Packet{}, netip.Addr{}, errQueryBudget
		}
		*budget--

		resp, err := r.probe.Query(ctx, server, q)
		if err != nil {
			r.logger.Debug("iterative: query failed", "server", server, "qname", qname, "error", err)
			continue
		}
		return resp, server, nil
	}
	return dns.Packet{}, netip.Addr{}, errNoUsableServer
}

func removeServer(servers []netip.Addr, remove netip.Addr) []netip.Addr {
	out := servers[:0:0]
	for _, s := range servers {
		if s != remove {
			out = append(out, s)
		}
	}
	return out
}

func flattenGlue(glue map[string][]netip.Addr) []netip.Addr {
	var out []netip.Addr
	for _, addrs := range glue {
		out = append(out, addrs...)
	}
	return out
}

func extractAddrs(answers []dns.Record) []netip.Addr {
	var out []netip.Addr
	for _, a := range answers {
		b, ok := a.Data.([]byte)
		if !ok {
			continue
		}
		switch dns.RecordType(a.Type) {
		case dns.TypeA:
			if len(b) == 4 {
				out = append(out, netip.AddrFrom4([4]byte(b)))
			}
		case dns.TypeAAAA:
			if len(b) == 16 {
				out = append(out, netip.AddrFrom16([16]byte(b)))
			}
		}
	}
	return out
}
