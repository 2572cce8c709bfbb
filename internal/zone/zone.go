// Package zone loads local zone overrides from TOML files into an
// in-memory, indexed record store consulted by internal/resolvers before
// any cache or network lookup (§4.C of the engine's design: local overrides
// are authoritative-style answers that never expire and are never cached
// separately).
package zone

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hydraresolve/hydraresolve/internal/dns"
)

// Record is one zone-override resource record, bridged to dns.Record by
// zone_resolver.go the same way the teacher's zone_resolver.go already
// bridges this type.
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	// RData depends on Type:
	// - A/AAAA: string (ip)
	// - CNAME/NS/PTR: string (fqdn)
	// - MX: MX
	// - SOA: []byte (wire format)
	// - TXT/SRV/CAA: string/SRV/CAA as appropriate
	RData any
}

type MX struct {
	Preference uint16
	Exchange   string
}

// Zone holds every override record for one origin, plus lookup indexes.
type Zone struct {
	Origin     string
	DefaultTTL uint32
	Records    []Record

	indexBuilt  bool
	nameIndex   map[string][]int
	originLower string
}

// fileSchema is the on-disk TOML shape: `origin = "..."`, optional
// `default_ttl`, and one or more `[[record]]` tables with
// `{ name, type, ttl, data }` (spec §6, "Local zone file format").
type fileSchema struct {
	Origin     string         `toml:"origin"`
	DefaultTTL int64          `toml:"default_ttl"`
	Records    []recordSchema `toml:"record"`
}

type recordSchema struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
	TTL  int64  `toml:"ttl"`
	Data any    `toml:"data"`
}

// LoadFile parses one TOML zone-override file. If the file omits `origin`,
// the origin is taken from the file's base name (sans extension), per "bare
// names are qualified against the file name."
func LoadFile(path string) (*Zone, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fallbackOrigin := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parseTOML(b, fallbackOrigin)
}

// ParseTOML parses zone-override TOML from raw bytes. fallbackOrigin is
// used when the file defines no `origin` key.
func ParseTOML(data []byte, fallbackOrigin string) (*Zone, error) {
	return parseTOML(data, fallbackOrigin)
}

func parseTOML(data []byte, fallbackOrigin string) (*Zone, error) {
	var fs fileSchema
	if err := toml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("zone: invalid TOML: %w", err)
	}

	origin := normalizeFQDN(fs.Origin, "")
	if origin == "" {
		origin = normalizeFQDN(fallbackOrigin, "")
	}
	if origin == "" {
		return nil, errors.New("zone: file defines no origin and no fallback was given")
	}

	defaultTTL := uint32(3600)
	if fs.DefaultTTL > 0 {
		defaultTTL = uint32(fs.DefaultTTL)
	}

	recs := make([]Record, 0, len(fs.Records))
	for i, rs := range fs.Records {
		rec, err := convertRecord(rs, origin, defaultTTL)
		if err != nil {
			return nil, fmt.Errorf("zone: record %d: %w", i, err)
		}
		recs = append(recs, rec)
	}

	z := &Zone{Origin: origin, DefaultTTL: defaultTTL, Records: recs}
	z.buildIndex()
	return z, nil
}

func convertRecord(rs recordSchema, origin string, defaultTTL uint32) (Record, error) {
	if rs.Name == "" {
		return Record{}, errors.New("missing name")
	}
	if rs.Type == "" {
		return Record{}, errors.New("missing type")
	}
	typeCode, ok := rrTypeToCode(rs.Type)
	if !ok {
		return Record{}, fmt.Errorf("unsupported record type %q", rs.Type)
	}
	ttl := defaultTTL
	if rs.TTL > 0 {
		ttl = uint32(rs.TTL)
	}
	name := normalizeFQDN(rs.Name, origin)
	rdata, err := transformRData(typeCode, rs.Data, origin)
	if err != nil {
		return Record{}, err
	}
	return Record{Name: name, Type: typeCode, Class: uint16(dns.ClassIN), TTL: ttl, RData: rdata}, nil
}

// buildIndex creates lookup indexes for fast record queries.
func (z *Zone) buildIndex() {
	if z.indexBuilt {
		return
	}
	z.originLower = strings.ToLower(strings.TrimSuffix(z.Origin, "."))
	z.nameIndex = make(map[string][]int, len(z.Records))

	for i, rr := range z.Records {
		key := strings.ToLower(strings.TrimSuffix(rr.Name, "."))
		z.nameIndex[key] = append(z.nameIndex[key], i)
	}
	z.indexBuilt = true
}

func (z *Zone) ContainsName(qname string) bool {
	q := strings.ToLower(strings.TrimSuffix(qname, "."))
	return q == z.originLower || strings.HasSuffix(q, "."+z.originLower)
}

// NameExists checks if any records exist for the given name.
func (z *Zone) NameExists(qname string, qclass uint16) bool {
	q := strings.ToLower(strings.TrimSuffix(qname, "."))
	for _, idx := range z.nameIndex[q] {
		if z.Records[idx].Class == qclass {
			return true
		}
	}
	return false
}

// Lookup retrieves records matching the given name, type, and class.
func (z *Zone) Lookup(qname string, qtype uint16, qclass uint16) []Record {
	q := strings.ToLower(strings.TrimSuffix(qname, "."))
	indices := z.nameIndex[q]
	if len(indices) == 0 {
		return nil
	}
	out := make([]Record, 0, len(indices))
	for _, idx := range indices {
		rr := z.Records[idx]
		if rr.Class == qclass && rr.Type == qtype {
			out = append(out, rr)
		}
	}
	return out
}

// SOA returns the SOA record for this zone, or nil if not found.
func (z *Zone) SOA(qclass uint16) *Record {
	for _, idx := range z.nameIndex[z.originLower] {
		rr := &z.Records[idx]
		if rr.Class == qclass && rr.Type == uint16(dns.TypeSOA) {
			return rr
		}
	}
	return nil
}

func normalizeFQDN(name string, origin string) string {
	name = strings.TrimSpace(name)
	if name == "@" {
		return strings.TrimSuffix(origin, ".")
	}
	name = strings.TrimSuffix(name, ".")
	if origin == "" {
		return name
	}
	if strings.HasSuffix(name, origin) {
		return strings.TrimSuffix(name, ".")
	}
	if name == "" {
		return ""
	}
	return strings.TrimSuffix(name+"."+strings.TrimSuffix(origin, "."), ".")
}

func rrTypeToCode(typ string) (uint16, bool) {
	switch strings.ToUpper(typ) {
	case "A":
		return uint16(dns.TypeA), true
	case "AAAA":
		return uint16(dns.TypeAAAA), true
	case "CNAME":
		return uint16(dns.TypeCNAME), true
	case "NS":
		return uint16(dns.TypeNS), true
	case "MX":
		return uint16(dns.TypeMX), true
	case "TXT":
		return uint16(dns.TypeTXT), true
	case "PTR":
		return uint16(dns.TypePTR), true
	case "SOA":
		return uint16(dns.TypeSOA), true
	case "SRV":
		return uint16(dns.TypeSRV), true
	case "CAA":
		return uint16(dns.TypeCAA), true
	default:
		return 0, false
	}
}

// transformRData converts the TOML-decoded `data` value (string, or table
// decoded to map[string]any) into the Go value zone_resolver.go expects for
// each record type.
func transformRData(typeCode uint16, data any, origin string) (any, error) {
	switch dns.RecordType(typeCode) {
	case dns.TypeA, dns.TypeAAAA:
		s, ok := data.(string)
		if !ok {
			return nil, errors.New("data must be a string IP address")
		}
		if _, err := netip.ParseAddr(strings.TrimSpace(s)); err != nil {
			return nil, fmt.Errorf("invalid IP address %q", s)
		}
		return strings.TrimSpace(s), nil
	case dns.TypePTR, dns.TypeCNAME, dns.TypeNS:
		s, ok := data.(string)
		if !ok {
			return nil, errors.New("data must be a string name")
		}
		return normalizeFQDN(s, origin), nil
	case dns.TypeTXT:
		s, ok := data.(string)
		if !ok {
			return nil, errors.New("data must be a string")
		}
		return s, nil
	case dns.TypeMX:
		m, ok := data.(map[string]any)
		if !ok {
			return nil, errors.New("MX data must be a table { preference, exchange }")
		}
		pref, err := tableInt(m, "preference")
		if err != nil {
			return nil, err
		}
		exchange, err := tableString(m, "exchange")
		if err != nil {
			return nil, err
		}
		return MX{Preference: uint16(pref), Exchange: normalizeFQDN(exchange, origin)}, nil
	case dns.TypeSRV:
		m, ok := data.(map[string]any)
		if !ok {
			return nil, errors.New("SRV data must be a table { priority, weight, port, target }")
		}
		priority, err := tableInt(m, "priority")
		if err != nil {
			return nil, err
		}
		weight, err := tableInt(m, "weight")
		if err != nil {
			return nil, err
		}
		port, err := tableInt(m, "port")
		if err != nil {
			return nil, err
		}
		target, err := tableString(m, "target")
		if err != nil {
			return nil, err
		}
		return dns.SRVData{
			Priority: uint16(priority),
			Weight:   uint16(weight),
			Port:     uint16(port),
			Target:   normalizeFQDN(target, origin),
		}, nil
	case dns.TypeCAA:
		m, ok := data.(map[string]any)
		if !ok {
			return nil, errors.New("CAA data must be a table { flag, tag, value }")
		}
		flag, err := tableInt(m, "flag")
		if err != nil {
			return nil, err
		}
		tag, err := tableString(m, "tag")
		if err != nil {
			return nil, err
		}
		value, err := tableString(m, "value")
		if err != nil {
			return nil, err
		}
		return dns.CAAData{Flag: uint8(flag), Tag: tag, Value: value}, nil
	case dns.TypeSOA:
		m, ok := data.(map[string]any)
		if !ok {
			return nil, errors.New("SOA data must be a table { mname, rname, serial, refresh, retry, expire, minimum }")
		}
		return soaWireFromTable(m, origin)
	default:
		return data, nil
	}
}

func soaWireFromTable(m map[string]any, origin string) ([]byte, error) {
	mname, err := tableString(m, "mname")
	if err != nil {
		return nil, err
	}
	rname, err := tableString(m, "rname")
	if err != nil {
		return nil, err
	}
	serial, err := tableInt(m, "serial")
	if err != nil {
		return nil, err
	}
	refresh, err := tableInt(m, "refresh")
	if err != nil {
		return nil, err
	}
	retryV, err := tableInt(m, "retry")
	if err != nil {
		return nil, err
	}
	expire, err := tableInt(m, "expire")
	if err != nil {
		return nil, err
	}
	minimum, err := tableInt(m, "minimum")
	if err != nil {
		return nil, err
	}

	mwire, err := dns.EncodeName(normalizeFQDN(mname, origin))
	if err != nil {
		return nil, err
	}
	rwire, err := dns.EncodeName(normalizeFQDN(rname, origin))
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(mwire)+len(rwire)+20)
	buf = append(buf, mwire...)
	buf = append(buf, rwire...)
	w := make([]byte, 20)
	binaryPutU32(w[0:4], uint32(serial))
	binaryPutU32(w[4:8], uint32(refresh))
	binaryPutU32(w[8:12], uint32(retryV))
	binaryPutU32(w[12:16], uint32(expire))
	binaryPutU32(w[16:20], uint32(minimum))
	buf = append(buf, w...)
	return buf, nil
}

func tableString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string", key)
	}
	return s, nil
}

// tableInt accepts any TOML integer decoding (go-toml/v2 decodes bare
// integers into int64 when the target is `any`).
func tableInt(m map[string]any, key string) (int64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q must be an integer", key)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%q must be an integer", key)
	}
}

func binaryPutU32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// DiscoverZoneFiles returns a sorted list of files in dir (zones_dir).
func DiscoverZoneFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadDir loads every TOML file in dir into a slice of Zones, sorted by
// origin length descending so zone_resolver.go's most-specific-match rule
// keeps working unchanged.
func LoadDir(dir string) ([]*Zone, error) {
	files, err := DiscoverZoneFiles(dir)
	if err != nil {
		return nil, err
	}
	zones := make([]*Zone, 0, len(files))
	for _, f := range files {
		z, err := LoadFile(f)
		if err != nil {
			return nil, fmt.Errorf("zone: %s: %w", f, err)
		}
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return len(zones[i].Origin) > len(zones[j].Origin) })
	return zones, nil
}
