// Package roothints parses standard BIND-style named.root zone files
// (https://www.internic.net/domain/named.root) into the root server
// addresses the iterative resolver seeds its first queries with.
//
// Only A and AAAA records are consumed; NS records are skipped since the
// resolver only needs addresses to bootstrap from, not the NS ownership
// names attached to them.
package roothints

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
)

// Load reads a named.root file and returns every root server address found
// in its A/AAAA records.
func Load(path string) ([]netip.Addr, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads named.root-format text and returns every A/AAAA address found.
func Parse(r io.Reader) ([]netip.Addr, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	addrs := make([]netip.Addr, 0, 32)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if strings.HasPrefix(fields[0], "$") {
			// $ORIGIN / $TTL directives: irrelevant to address extraction.
			continue
		}

		typ, rdata, ok := findTypeAndRData(fields)
		if !ok {
			continue
		}
		switch strings.ToUpper(typ) {
		case "A", "AAAA":
			addr, err := netip.ParseAddr(rdata)
			if err != nil {
				continue
			}
			addrs = append(addrs, addr)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("roothints: %w", err)
	}
	return addrs, nil
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	return line
}

// findTypeAndRData scans a BIND resource-record line's fields for a
// recognized type token and returns it with everything after it joined as
// the rdata. Root-hints lines have the shape:
//
//	<name> [ttl] [class] <type> <rdata...>
func findTypeAndRData(fields []string) (typ string, rdata string, ok bool) {
	for i := 1; i < len(fields); i++ {
		switch strings.ToUpper(fields[i]) {
		case "A", "AAAA", "NS":
			if i+1 < len(fields) {
				return fields[i], strings.Join(fields[i+1:], " "), true
			}
			return fields[i], "", false
		}
	}
	return "", "", false
}
