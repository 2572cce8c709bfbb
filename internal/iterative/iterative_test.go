package iterative

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydraresolve/hydraresolve/internal/dns"
)

// fakeProbe scripts responses keyed by (server, qname, qtype) so tests can
// drive delegation/CNAME scenarios without real sockets.
type fakeProbe struct {
	responses map[string]dns.Packet
	calls     int
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{responses: map[string]dns.Packet{}}
}

func probeKey(server netip.Addr, q dns.Question) string {
	return server.String() + "|" + dns.NormalizeName(q.Name) + "|" + itoa(q.Type)
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	digits := ""
	for v > 0 {
		digits = string(rune('0'+v%10)) + digits
		v /= 10
	}
	return digits
}

func (f *fakeProbe) set(server netip.Addr, name string, qtype uint16, resp dns.Packet) {
	f.responses[probeKey(server, dns.Question{Name: name, Type: qtype})] = resp
}

func (f *fakeProbe) Query(_ context.Context, server netip.Addr, q dns.Question) (dns.Packet, error) {
	f.calls++
	resp, ok := f.responses[probeKey(server, q)]
	if !ok {
		return dns.Packet{Header: dns.Header{Flags: dns.QRFlag | uint16(dns.RCodeServFail)}}, nil
	}
	return resp, nil
}

func nsFlags(rcode dns.RCode) uint16 {
	return dns.QRFlag | dns.AAFlag | (uint16(rcode) & dns.RCodeMask)
}

var root1 = netip.MustParseAddr("198.41.0.4")
var tld1 = netip.MustParseAddr("192.5.6.30")
var auth1 = netip.MustParseAddr("198.51.100.53")

func aRecord(name string, ip netip.Addr) dns.Record {
	return dns.Record{Name: name, Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN), TTL: 300, Data: ip.AsSlice()}
}

func nsRecord(zone, ns string) dns.Record {
	return dns.Record{Name: zone, Type: uint16(dns.TypeNS), Class: uint16(dns.ClassIN), TTL: 86400, Data: ns}
}

func TestResolveDelegationChain(t *testing.T) {
	probe := newFakeProbe()

	// Root refers "www.test." down to the .test TLD.
	probe.set(root1, "www.test.", uint16(dns.TypeA), dns.Packet{
		Header:      dns.Header{Flags: nsFlags(dns.RCodeNoError) &^ dns.AAFlag},
		Authorities: []dns.Record{nsRecord("test.", "ns1.test.")},
		Additionals: []dns.Record{aRecord("ns1.test.", tld1)},
	})

	// TLD server answers authoritatively.
	probe.set(tld1, "www.test.", uint16(dns.TypeA), dns.Packet{
		Header:  dns.Header{Flags: nsFlags(dns.RCodeNoError)},
		Answers: []dns.Record{aRecord("www.test.", auth1)},
	})

	r := New(Config{Roots: []netip.Addr{root1}, Probe: probe})
	req := dns.Packet{Header: dns.Header{ID: 7, Flags: dns.RDFlag}, Questions: []dns.Question{{Name: "www.test.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}}}

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, dns.RCodeNoError, dns.RCodeFromFlags(resp.Header.Flags))
	require.Len(t, resp.Answers, 1)
	ip, ok := resp.Answers[0].IPv4()
	require.True(t, ok)
	assert.Equal(t, auth1.String(), ip)
}

func TestResolveCNAMEChase(t *testing.T) {
	probe := newFakeProbe()

	probe.set(root1, "www.test.", uint16(dns.TypeA), dns.Packet{
		Header:  dns.Header{Flags: nsFlags(dns.RCodeNoError)},
		Answers: []dns.Record{{Name: "www.test.", Type: uint16(dns.TypeCNAME), Class: uint16(dns.ClassIN), TTL: 300, Data: "alias.test."}},
	})
	probe.set(root1, "alias.test.", uint16(dns.TypeA), dns.Packet{
		Header:  dns.Header{Flags: nsFlags(dns.RCodeNoError)},
		Answers: []dns.Record{aRecord("alias.test.", auth1)},
	})

	r := New(Config{Roots: []netip.Addr{root1}, Probe: probe})
	req := dns.Packet{Header: dns.Header{ID: 1, Flags: dns.RDFlag}, Questions: []dns.Question{{Name: "www.test.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}}}

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 2)
	assert.Equal(t, uint16(dns.TypeCNAME), resp.Answers[0].Type)
	assert.Equal(t, uint16(dns.TypeA), resp.Answers[1].Type)
}

func TestResolveNXDomain(t *testing.T) {
	probe := newFakeProbe()
	probe.set(root1, "nope.test.", uint16(dns.TypeA), dns.Packet{
		Header: dns.Header{Flags: nsFlags(dns.RCodeNXDomain)},
	})

	r := New(Config{Roots: []netip.Addr{root1}, Probe: probe})
	req := dns.Packet{Header: dns.Header{ID: 1}, Questions: []dns.Question{{Name: "nope.test.", Type: uint16(dns.TypeA), Class: uint16(dns.ClassIN)}}}

	result, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	resp, err := dns.ParsePacket(result.ResponseBytes)
	require.NoError(t, err)
	assert.Equal(t, dns.RCodeNXDomain, dns.RCodeFromFlags(resp.Header.Flags))
}

func TestBailiwickDropsOutOfZoneGlue(t *testing.T) {
	// A malicious/broken root response tries to inject glue for an
	// unrelated, out-of-bailiwick name; it must be dropped.
	records := []dns.Record{
		nsRecord("test.", "ns1.test."),
	}
	additionals := []dns.Record{
		aRecord("evil.attacker.example.", tld1),
		aRecord("ns1.test.", tld1),
	}
	zone, ns, _, ok := extractDelegation(".", records)
	require.True(t, ok)
	glue := extractGlue(zone, ns, additionals)
	assert.Contains(t, glue, "ns1.test.")
	assert.NotContains(t, glue, "evil.attacker.example.")
}

func TestOutboundQueryBudgetExhausted(t *testing.T) {
	probe := newFakeProbe() // no responses configured: every query returns SERVFAIL from fakeProbe's default

	// root1's SERVFAIL spends the only budgeted query, so tld1 is never asked.
	r := New(Config{Roots: []netip.Addr{root1, tld1}, Probe: probe})
	budget := 1
	_, rcode, _, err := r.resolveChain(context.Background(), "www.test.", uint16(dns.TypeA), uint16(dns.ClassIN), &budget)
	assert.ErrorIs(t, err, errQueryBudget)
	assert.Equal(t, dns.RCodeServFail, rcode)
}

func TestChooseNSUsesCachedDelegation(t *testing.T) {
	r := New(Config{Roots: []netip.Addr{root1}, Probe: newFakeProbe()})
	r.admitDelegation("test.", []string{"ns1.test."}, map[string][]netip.Addr{"ns1.test.": {tld1}}, time.Minute)

	d, ok := r.chooseNS("www.test.")
	require.True(t, ok)
	assert.Equal(t, "test.", d.Zone)
}

func TestDelegationsReturnsCachedEntries(t *testing.T) {
	r := New(Config{Roots: []netip.Addr{root1}, Probe: newFakeProbe()})
	r.admitDelegation("test.", []string{"ns1.test."}, map[string][]netip.Addr{"ns1.test.": {tld1}}, time.Minute)
	r.admitDelegation("example.", []string{"ns1.example."}, map[string][]netip.Addr{"ns1.example.": {auth1}}, time.Minute)

	entries := r.Delegations(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "test.", entries[0].Key)
	assert.Equal(t, []string{"ns1.test."}, entries[0].Value.NS)
}

func TestDelegationsRespectsLimit(t *testing.T) {
	r := New(Config{Roots: []netip.Addr{root1}, Probe: newFakeProbe()})
	r.admitDelegation("test.", []string{"ns1.test."}, map[string][]netip.Addr{"ns1.test.": {tld1}}, time.Minute)
	r.admitDelegation("example.", []string{"ns1.example."}, map[string][]netip.Addr{"ns1.example.": {auth1}}, time.Minute)

	entries := r.Delegations(1)
	assert.Len(t, entries, 1)
}

func TestDelegationCache(t *testing.T) {
	r := New(Config{Roots: []netip.Addr{root1}, Probe: newFakeProbe()})
	r.admitDelegation("test.", []string{"ns1.test."}, map[string][]netip.Addr{"ns1.test.": {tld1}}, time.Minute)

	dc := r.DelegationCache()
	require.NotNil(t, dc)
	assert.Same(t, r.delegations, dc)
}
