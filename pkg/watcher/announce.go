package watcher

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"
	"unicode/utf16"
)

// Endpoint is one version-announcement TCP probe target.
type Endpoint struct {
	Name string
	Addr string
}

// DefaultEndpoints are the two fixed game patch-server announcement
// sockets this service polls every tick.
var DefaultEndpoints = []Endpoint{
	{Name: "poe1", Addr: "patch.pathofexile.com:12995"},
	{Name: "poe2", Addr: "patch.pathofexile2.com:13060"},
}

const announcePreambleSkip = 34

var announceHandshake = []byte{0x01, 0x07}

// ProbeVersions connects to addr, performs the fixed handshake, and decodes
// the returned version URL list. Any failure (dial, write, read, short
// preamble, malformed record) is returned to the caller to log and ignore
// for that tick.
func ProbeVersions(ctx context.Context, addr string, timeout time.Duration) ([]string, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline for %s: %w", addr, err)
	}

	if _, err := conn.Write(announceHandshake); err != nil {
		return nil, fmt.Errorf("handshake write to %s: %w", addr, err)
	}

	buf := make([]byte, 1000)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", addr, err)
	}
	buf = buf[:n]

	return decodeAnnouncement(buf)
}

func decodeAnnouncement(buf []byte) ([]string, error) {
	if len(buf) < announcePreambleSkip {
		return nil, fmt.Errorf("watcher: announcement body too short (%d bytes)", len(buf))
	}
	body := buf[announcePreambleSkip:]

	var urls []string
	for len(body) > 0 {
		length := int(body[0])
		body = body[1:]
		if length == 0 {
			continue
		}
		byteLen := 2 * length
		if byteLen > len(body) {
			return nil, fmt.Errorf("watcher: record length %d exceeds remaining buffer (%d bytes)", length, len(body))
		}

		units := make([]uint16, length)
		for i := 0; i < length; i++ {
			units[i] = binary.LittleEndian.Uint16(body[2*i : 2*i+2])
		}
		urls = append(urls, string(utf16.Decode(units)))
		body = body[byteLen:]
	}
	return urls, nil
}
