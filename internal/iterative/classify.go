package iterative

import (
	"net/netip"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/dns"
)

type outcomeKind int

const (
	outcomeRetry outcomeKind = iota
	outcomeServFail
	outcomeNXDomain
	outcomeNoData
	outcomeAnswer
	outcomeCNAME
	outcomeDelegate
)

type classification struct {
	kind        outcomeKind
	answers     []dns.Record
	soa         *dns.Record
	cnameTarget string

	delegZone string
	delegNS   []string
	delegTTL  time.Duration
	glue      map[string][]netip.Addr
}

// classify implements the §4.H Classify rules in order. zone is the
// zone-cut currently being queried (for the bailiwick check); qname/qtype
// are the question actually sent to the server (which may differ from the
// client's original qname after a CNAME chase).
func classify(zone, qname string, qtype uint16, resp dns.Packet) classification {
	rcode := dns.RCodeFromFlags(resp.Header.Flags)
	aa := resp.Header.Flags&dns.AAFlag != 0

	switch rcode {
	case dns.RCodeFormErr, dns.RCodeRefused:
		return classification{kind: outcomeRetry}
	case dns.RCodeServFail:
		return classification{kind: outcomeRetry}
	case dns.RCodeNXDomain:
		if aa {
			return classification{kind: outcomeNXDomain, soa: extractSOA(zone, resp.Authorities)}
		}
		return classification{kind: outcomeRetry}
	case dns.RCodeNoError:
		// fall through to the structural rules below
	default:
		return classification{kind: outcomeRetry}
	}

	name := dns.NormalizeName(qname)
	answers := bailiwickFilter(zone, resp.Answers)

	for _, a := range answers {
		if dns.NormalizeName(a.Name) == name && a.Type == qtype {
			return classification{kind: outcomeAnswer, answers: matchingAnswers(name, qtype, answers)}
		}
	}
	for _, a := range answers {
		if dns.NormalizeName(a.Name) == name && dns.RecordType(a.Type) == dns.TypeCNAME {
			target, _ := a.Data.(string)
			return classification{kind: outcomeCNAME, answers: []dns.Record{a}, cnameTarget: target}
		}
	}

	if len(answers) == 0 {
		if nsZone, ns, ttl, ok := extractDelegation(zone, resp.Authorities); ok {
			glue := extractGlue(nsZone, ns, resp.Additionals)
			return classification{kind: outcomeDelegate, delegZone: nsZone, delegNS: ns, delegTTL: ttl, glue: glue}
		}
		if aa {
			return classification{kind: outcomeNoData, soa: extractSOA(zone, resp.Authorities)}
		}
	}

	return classification{kind: outcomeRetry}
}

// matchingAnswers returns every answer RR matching name+type, following the
// convention that a positive response may legally carry multiple RRs of the
// same RRset (e.g. several A records).
func matchingAnswers(name string, qtype uint16, answers []dns.Record) []dns.Record {
	var out []dns.Record
	for _, a := range answers {
		if dns.NormalizeName(a.Name) == name && a.Type == qtype {
			out = append(out, a)
		}
	}
	return out
}

// bailiwickFilter drops RRs whose owner name is not at or below zone,
// defending against off-path answers injecting out-of-bailiwick data.
func bailiwickFilter(zone string, records []dns.Record) []dns.Record {
	out := make([]dns.Record, 0, len(records))
	for _, r := range records {
		if inBailiwick(r.Name, zone) {
			out = append(out, r)
		}
	}
	return out
}

// extractDelegation finds an NS RRset in the authority section whose owner
// is in-bailiwick and strictly more specific than (or equal to) zone,
// returning the new zone cut and nameserver names.
func extractDelegation(zone string, authorities []dns.Record) (string, []string, time.Duration, bool) {
	var nsZone string
	var ns []string
	var ttl uint32

	for _, r := range authorities {
		if dns.RecordType(r.Type) != dns.TypeNS {
			continue
		}
		if !inBailiwick(r.Name, zone) {
			continue
		}
		name, ok := r.Data.(string)
		if !ok {
			continue
		}
		if nsZone == "" {
			nsZone = r.Name
		}
		if dns.NormalizeName(r.Name) != dns.NormalizeName(nsZone) {
			continue
		}
		ns = append(ns, name)
		if r.TTL > ttl {
			ttl = r.TTL
		}
	}
	if len(ns) == 0 {
		return "", nil, 0, false
	}
	return nsZone, ns, time.Duration(ttl) * time.Second, true
}

// extractGlue pulls A/AAAA addresses for in-bailiwick NS names out of the
// additional section.
func extractGlue(zone string, nsNames []string, additionals []dns.Record) map[string][]netip.Addr {
	wanted := map[string]bool{}
	for _, n := range nsNames {
		wanted[dns.NormalizeName(n)] = true
	}

	glue := map[string][]netip.Addr{}
	for _, r := range additionals {
		name := dns.NormalizeName(r.Name)
		if !wanted[name] || !inBailiwick(r.Name, zone) {
			continue
		}
		b, ok := r.Data.([]byte)
		if !ok {
			continue
		}
		key := name + "." // glue is keyed by fully-qualified NS name
		switch dns.RecordType(r.Type) {
		case dns.TypeA:
			if len(b) == 4 {
				glue[key] = append(glue[key], netip.AddrFrom4([4]byte(b)))
			}
		case dns.TypeAAAA:
			if len(b) == 16 {
				glue[key] = append(glue[key], netip.AddrFrom16([16]byte(b)))
			}
		}
	}
	return glue
}

// extractSOA returns the first in-bailiwick SOA record in authorities, used
// to derive negative-cache TTL per RFC 2308.
func extractSOA(zone string, authorities []dns.Record) *dns.Record {
	for i := range authorities {
		r := authorities[i]
		if dns.RecordType(r.Type) == dns.TypeSOA && inBailiwick(r.Name, zone) {
			return &r
		}
	}
	return nil
}
