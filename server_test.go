package quic

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/jvanbruegge/quic/transport"
)

// putTestVarint encodes n as a QUIC variable-length integer (RFC9000 §16),
// wide enough for anything this test needs (tokens well under 2^14).
func putTestVarint(n int) []byte {
	if n < 64 {
		return []byte{byte(n)}
	}
	return []byte{0x40 | byte(n>>8), byte(n)}
}

// buildRawInitial hand-encodes just enough of a long-header Initial packet
// for the server's pre-connection demux (endpoint.dispatch, Server.accept)
// to recognise it and extract a token: version, DCID, SCID and a token
// length/body. It carries no packet number or payload, which is fine since
// neither is consulted before a connection exists.
func buildRawInitial(dcid, scid, token []byte) []byte {
	b := []byte{0xc3}
	var v [4]byte
	v[0] = byte(transport.DraftVersion1 >> 24)
	v[1] = byte(transport.DraftVersion1 >> 16)
	v[2] = byte(transport.DraftVersion1 >> 8)
	v[3] = byte(transport.DraftVersion1)
	b = append(b, v[:]...)
	b = append(b, byte(len(dcid)))
	b = append(b, dcid...)
	b = append(b, byte(len(scid)))
	b = append(b, scid...)
	b = append(b, putTestVarint(len(token))...)
	b = append(b, token...)
	return b
}

func newTestServer(t *testing.T, requireRetry bool) (*Server, net.Addr) {
	t.Helper()
	config := transport.NewConfig(nil)
	srv := NewServer(config)
	srv.RequireRetry = requireRetry
	if err := srv.ListenAndServe("127.0.0.1:0"); err != nil {
		t.Fatalf("ListenAndServe: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv, srv.ep.socket.LocalAddr()
}

func TestServerRequireRetrySendsRetryForTokenlessInitial(t *testing.T) {
	srv, addr := newTestServer(t, true)

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("client listen: %v", err)
	}
	defer client.Close()

	clientDCID := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	clientSCID := []byte{8, 7, 6, 5, 4, 3, 2, 1}
	pkt := buildRawInitial(clientDCID, clientSCID, nil)
	if _, err := client.WriteTo(pkt, addr); err != nil {
		t.Fatalf("write initial: %v", err)
	}

	buf := make([]byte, transport.MaxPacketSize)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("reading retry: %v", err)
	}
	resp := buf[:n]

	// Long header, fixed bit set, type bits == Retry (0b11).
	if resp[0]&0xf0 != 0xf0 {
		t.Fatalf("response flag byte = %#x, want long-header Retry", resp[0])
	}
	gotDCIDLen := int(resp[5])
	gotDCID := resp[6 : 6+gotDCIDLen]
	if !bytes.Equal(gotDCID, clientSCID) {
		t.Fatalf("retry dcid = %x, want client scid %x", gotDCID, clientSCID)
	}

	srv.ep.mu.Lock()
	n2 := len(srv.ep.conns)
	srv.ep.mu.Unlock()
	if n2 != 0 {
		t.Fatalf("server created connection state before address validation, conns = %d", n2)
	}
}

func TestServerRequireRetryAcceptsValidatedInitial(t *testing.T) {
	srv, _ := newTestServer(t, true)

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 55555}
	clientDCID := []byte{1, 1, 1, 1, 1, 1, 1, 1}
	retrySCID := []byte{2, 2, 2, 2, 2, 2, 2, 2}
	token, err := srv.tok.seal(tokenPurposeRetry, addr, clientDCID, retrySCID)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	pkt := buildRawInitial(retrySCID, []byte{3, 3, 3, 3, 3, 3, 3, 3}, token)
	srv.accept(nil, pkt, addr, retrySCID)

	srv.ep.mu.Lock()
	n := len(srv.ep.conns)
	_, keyed := srv.ep.conns[string(retrySCID)]
	srv.ep.mu.Unlock()
	if n != 1 {
		t.Fatalf("conns = %d, want 1 after a validated retry token", n)
	}
	if !keyed {
		t.Fatalf("connection not keyed by the token's retry SCID")
	}
}

func TestServerWithoutRequireRetryAcceptsImmediately(t *testing.T) {
	srv, addr := newTestServer(t, false)

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("client listen: %v", err)
	}
	defer client.Close()

	clientDCID := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	clientSCID := []byte{4, 4, 4, 4, 4, 4, 4, 4}
	pkt := buildRawInitial(clientDCID, clientSCID, nil)
	if _, err := client.WriteTo(pkt, addr); err != nil {
		t.Fatalf("write initial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.ep.mu.Lock()
		n := len(srv.ep.conns)
		srv.ep.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never created connection state for a plain initial")
}
