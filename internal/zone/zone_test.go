package zone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hydraresolve/hydraresolve/internal/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZoneBasic(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"
default_ttl = 3600

[[record]]
name = "@"
type = "A"
data = "1.2.3.4"
`), "")
	require.NoError(t, err)
	assert.Equal(t, "example.com", z.Origin)

	rrs := z.Lookup("example.com", uint16(dns.TypeA), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1)
}

func TestParseZoneMultipleRecords(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"
default_ttl = 3600

[[record]]
name = "@"
type = "A"
data = "192.0.2.1"

[[record]]
name = "@"
type = "A"
data = "192.0.2.2"

[[record]]
name = "www"
type = "A"
data = "192.0.2.3"

[[record]]
name = "mail"
type = "MX"
data = { preference = 10, exchange = "mail.example.com." }
`), "")
	require.NoError(t, err)

	rrs := z.Lookup("example.com", uint16(dns.TypeA), uint16(dns.ClassIN))
	assert.Len(t, rrs, 2, "expected 2 A records at apex")

	rrs = z.Lookup("www.example.com", uint16(dns.TypeA), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 A record for www")

	rrs = z.Lookup("mail.example.com", uint16(dns.TypeMX), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 MX record")
}

func TestParseZoneWithCNAME(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "A"
data = "192.0.2.1"

[[record]]
name = "www"
type = "CNAME"
data = "example.com."
`), "")
	require.NoError(t, err)

	rrs := z.Lookup("www.example.com", uint16(dns.TypeCNAME), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 CNAME record")
}

func TestParseZoneWithNS(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "NS"
data = "ns1.example.com."

[[record]]
name = "@"
type = "NS"
data = "ns2.example.com."
`), "")
	require.NoError(t, err)

	rrs := z.Lookup("example.com", uint16(dns.TypeNS), uint16(dns.ClassIN))
	assert.Len(t, rrs, 2, "expected 2 NS records")
}

func TestParseZoneWithSOA(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "SOA"
data = { mname = "ns1.example.com.", rname = "admin.example.com.", serial = 2024010101, refresh = 3600, retry = 900, expire = 604800, minimum = 86400 }
`), "")
	require.NoError(t, err)

	soa := z.SOA(uint16(dns.ClassIN))
	require.NotNil(t, soa, "expected SOA record")
}

func TestParseZoneWithAAAA(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "AAAA"
data = "2001:db8::1"
`), "")
	require.NoError(t, err)

	rrs := z.Lookup("example.com", uint16(dns.TypeAAAA), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 AAAA record")
}

func TestParseZoneWithTXT(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "TXT"
data = "v=spf1 include:_spf.example.com ~all"
`), "")
	require.NoError(t, err)

	rrs := z.Lookup("example.com", uint16(dns.TypeTXT), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 TXT record")
}

func TestZoneContainsName(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "A"
data = "192.0.2.1"
`), "")
	require.NoError(t, err)

	assert.True(t, z.ContainsName("example.com"), "expected ContainsName to return true for apex")
	assert.True(t, z.ContainsName("www.example.com"), "expected ContainsName to return true for subdomain")
	assert.False(t, z.ContainsName("other.net"), "expected ContainsName to return false for other domain")
}

func TestZoneNameExists(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "@"
type = "A"
data = "192.0.2.1"

[[record]]
name = "www"
type = "A"
data = "192.0.2.2"
`), "")
	require.NoError(t, err)

	assert.True(t, z.NameExists("example.com", uint16(dns.ClassIN)), "expected NameExists to return true for apex")
	assert.True(t, z.NameExists("www.example.com", uint16(dns.ClassIN)), "expected NameExists to return true for www")
	assert.False(t, z.NameExists("nonexistent.example.com", uint16(dns.ClassIN)), "expected NameExists to return false for nonexistent")
}

func TestLoadFile(t *testing.T) {
	content := `
default_ttl = 300

[[record]]
name = "@"
type = "A"
data = "10.0.0.1"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "test.local.toml")
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err, "failed to write test file")

	z, err := LoadFile(path)
	require.NoError(t, err, "LoadFile failed")
	assert.Equal(t, "test.local", z.Origin)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/to/zone.toml")
	assert.Error(t, err, "expected error for nonexistent file")
}

func TestParseZoneNoOrigin(t *testing.T) {
	_, err := ParseTOML([]byte(`
[[record]]
name = "@"
type = "A"
data = "192.0.2.1"
`), "")
	assert.Error(t, err, "expected error for zone without origin and no fallback")
}

func TestParseZoneRelativeNames(t *testing.T) {
	z, err := ParseTOML([]byte(`
origin = "example.com"

[[record]]
name = "www"
type = "A"
data = "192.0.2.1"

[[record]]
name = "mail"
type = "A"
data = "192.0.2.2"
`), "")
	require.NoError(t, err)

	rrs := z.Lookup("www.example.com", uint16(dns.TypeA), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 record for www")

	rrs = z.Lookup("mail.example.com", uint16(dns.TypeA), uint16(dns.ClassIN))
	assert.Len(t, rrs, 1, "expected 1 record for mail")
}

func TestDiscoverZoneFiles(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "example.com.toml"), []byte("test"), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "test.local.toml"), []byte("test"), 0644)
	require.NoError(t, err)

	files, err := DiscoverZoneFiles(dir)
	require.NoError(t, err, "DiscoverZoneFiles failed")

	assert.GreaterOrEqual(t, len(files), 2, "expected at least 2 files")
}

func TestDiscoverZoneFilesNonexistentDir(t *testing.T) {
	files, err := DiscoverZoneFiles("/nonexistent/directory")
	assert.Error(t, err, "expected error for nonexistent directory")
	assert.Empty(t, files, "expected 0 files")
}
