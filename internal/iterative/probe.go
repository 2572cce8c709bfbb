package iterative

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/netip"
	"time"

	"github.com/hydraresolve/hydraresolve/internal/dns"
	"github.com/hydraresolve/hydraresolve/internal/helpers"
)

// udpTCPProbe is the real nsProbe: one UDP query per call, with TCP retry on
// a truncated response. Each call dials a fresh, randomly-assigned local
// port and uses a random transaction ID; responses failing either check are
// discarded rather than trusted, per §4.H's query-ID and port randomization
// requirement.
type udpTCPProbe struct {
	timeout time.Duration
}

func newUDPTCPProbe(timeout time.Duration) *udpTCPProbe {
	return &udpTCPProbe{timeout: timeout}
}

func (p *udpTCPProbe) Query(ctx context.Context, server netip.Addr, q dns.Question) (dns.Packet, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	txid := uint16(rand.Uint32())
	reqBytes, err := buildQuery(txid, q)
	if err != nil {
		return dns.Packet{}, err
	}

	respBytes, err := p.queryUDP(ctx, server, reqBytes)
	if err != nil {
		return dns.Packet{}, err
	}

	resp, err := dns.ParsePacket(respBytes)
	if err != nil {
		return dns.Packet{}, err
	}
	if resp.Header.ID != txid {
		return dns.Packet{}, fmt.Errorf("iterative: transaction ID mismatch from %s", server)
	}

	if resp.Header.Flags&dns.TCFlag != 0 {
		tcpBytes, err := p.queryTCP(ctx, server, reqBytes)
		if err != nil {
			// Truncated UDP answer is still usable if TCP retry fails.
			return resp, nil
		}
		tcpResp, err := dns.ParsePacket(tcpBytes)
		if err != nil || tcpResp.Header.ID != txid {
			return resp, nil
		}
		return tcpResp, nil
	}

	return resp, nil
}

func buildQuery(txid uint16, q dns.Question) ([]byte, error) {
	pkt := dns.Packet{
		Header:    dns.Header{ID: txid}, // RD=0: iterative queries are non-recursive
		Questions: []dns.Question{q},
	}
	return pkt.Marshal()
}

func (p *udpTCPProbe) queryUDP(ctx context.Context, server netip.Addr, req []byte) ([]byte, error) {
	addr := &net.UDPAddr{IP: server.AsSlice(), Port: 53}
	conn, err := net.DialUDP("udp", nil, addr) // local port 0: kernel assigns a random ephemeral port
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	buf := make([]byte, dns.MaxIncomingDNSMessageSize)
	n, raddr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	if !net.IP(server.AsSlice()).Equal(raddr.IP) {
		return nil, fmt.Errorf("iterative: response from unexpected address %s (wanted %s)", raddr.IP, server)
	}
	return buf[:n], nil
}

func (p *udpTCPProbe) queryTCP(ctx context.Context, server netip.Addr, req []byte) ([]byte, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(server.String(), "53"))
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], helpers.ClampIntToUint16(len(req)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return nil, err
	}
	if _, err := conn.Write(req); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	respLen := int(binary.BigEndian.Uint16(prefix[:]))
	if respLen <= 0 || respLen > 65535 {
		return nil, fmt.Errorf("iterative: TCP response length invalid: %d", respLen)
	}
	resp := make([]byte, respLen)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
