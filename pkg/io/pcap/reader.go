// Package pcap aggregates HTTP traffic found in packet captures into
// per-client request counters.
package pcap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/rs/zerolog/log"

	"github.com/hed1ad/logsentry/pkg/features"
	logio "github.com/hed1ad/logsentry/pkg/io"
)

// ErrNotInitialized is returned when reading from a closed or zero Reader.
var ErrNotInitialized = errors.New("reader not initialized")

const pcapngMagic = 0x0A0D0D0A

var methods = [][]byte{
	[]byte("GET "), []byte("POST "), []byte("PUT "), []byte("DELETE "), []byte("HEAD "),
	[]byte("OPTIONS "), []byte("PATCH "), []byte("CONNECT "), []byte("TRACE "),
}

var _ logio.Reader = (*Reader)(nil)

type packetSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// Reader reads packets from pcap or pcapng captures.
type Reader struct {
	closer     io.Closer
	source     packetSource
	trackPaths bool
	stats      Stats
}

// Stats describes the last Read.
type Stats struct {
	Packets   int
	Requests  int
	Responses int
}

// Option configures a Reader.
type Option func(*Reader)

// WithPaths records the distinct request paths of every client.
func WithPaths(track bool) Option {
	return func(r *Reader) {
		r.trackPaths = track
	}
}

// NewFileReader opens a capture file. The format is detected from its magic number.
func NewFileReader(filename string, opts ...Option) (*Reader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	r, err := NewStreamReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewStreamReader reads a capture from an open stream.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	buffered := bufio.NewReader(src)
	magic, err := buffered.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}

	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		ng, err := pcapgo.NewNgReader(buffered, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("read pcapng header: %w", err)
		}
		r.source = ng
		return r, nil
	}

	classic, err := pcapgo.NewReader(buffered)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}
	r.source = classic
	return r, nil
}

// Read decodes every packet. A TCP payload that starts with an HTTP method
// counts a request for its source address. A payload that starts with an
// HTTP/1.x status line charges 4xx and 5xx responses to its destination.
// Clients never have fewer requests than responses.
func (r *Reader) Read() (map[string]features.Counters, error) {
	if r.source == nil {
		return nil, ErrNotInitialized
	}

	r.stats = Stats{}
	counters := make(map[string]features.Counters)
	responses := make(map[string]int)
	packetSource := gopacket.NewPacketSource(r.source, r.source.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	for {
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet %d: %w", r.stats.Packets+1, err)
		}
		r.stats.Packets++
		r.observe(packet, counters, responses)
	}

	// A response implies a request even when the capture missed it.
	for id, n := range responses {
		if c := counters[id]; c.Total < n {
			c.Total = n
			counters[id] = c
		}
	}

	log.Debug().
		Int("packets", r.stats.Packets).
		Int("requests", r.stats.Requests).
		Int("responses", r.stats.Responses).
		Msg("capture decoded")

	return counters, nil
}

func (r *Reader) observe(packet gopacket.Packet, counters map[string]features.Counters, responses map[string]int) {
	network := packet.NetworkLayer()
	if network == nil || packet.Layer(layers.LayerTypeTCP) == nil {
		return
	}
	app := packet.ApplicationLayer()
	if app == nil {
		return
	}
	payload := app.Payload()
	flow := network.NetworkFlow()

	if path, ok := parseRequest(payload); ok {
		r.stats.Requests++
		id := flow.Src().String()
		c := counters[id]
		c.Total++
		if r.trackPaths && path != "" {
			c.AddPath(path)
		}
		counters[id] = c
		return
	}

	if status, ok := parseStatus(payload); ok {
		r.stats.Responses++
		id := flow.Dst().String()
		responses[id]++
		c := counters[id]
		if status >= 400 && status < 600 {
			c.Errors++
		}
		counters[id] = c
	}
}

// Stats returns the counts of the last Read.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Close releases resources.
func (r *Reader) Close() error {
	r.source = nil
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

func parseRequest(payload []byte) (string, bool) {
	for _, m := range methods {
		if !bytes.HasPrefix(payload, m) {
			continue
		}
		rest := payload[len(m):]
		if end := bytes.IndexAny(rest, " \r\n"); end >= 0 {
			rest = rest[:end]
		}
		return string(rest), true
	}
	return "", false
}

func parseStatus(payload []byte) (int, bool) {
	// "HTTP/1.1 404 Not Found"
	if len(payload) < 12 || !bytes.HasPrefix(payload, []byte("HTTP/1.")) || payload[8] != ' ' {
		return 0, false
	}
	status, err := strconv.Atoi(string(payload[9:12]))
	if err != nil {
		return 0, false
	}
	return status, true
}
