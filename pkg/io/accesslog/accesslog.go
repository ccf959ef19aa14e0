// Package accesslog aggregates Apache/NCSA access logs into per-client
// request counters.
package accesslog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/hed1ad/logsentry/pkg/features"
	logio "github.com/hed1ad/logsentry/pkg/io"
)

var (
	linePattern    = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3})\s.*"\s*(\d{3})\s`)
	requestPattern = regexp.MustCompile(`"[A-Z]+ ([^ "]+)`)
)

const maxLineSize = 1 << 20

var _ logio.Reader = (*Parser)(nil)

// Entry is the part of a log line the detector needs.
type Entry struct {
	IP     string
	Status int
	Path   string
}

// IsError reports whether the status is a 4xx or 5xx response.
func (e Entry) IsError() bool {
	return e.Status >= 400 && e.Status < 600
}

// ParseLine extracts the client address and status from a log line.
// Path is empty when the request line cannot be read.
func ParseLine(line string) (Entry, bool) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, false
	}
	status, err := strconv.Atoi(m[2])
	if err != nil {
		return Entry{}, false
	}
	e := Entry{IP: m[1], Status: status}
	if r := requestPattern.FindStringSubmatch(line); r != nil {
		e.Path = r[1]
	}
	return e, true
}

// Stats describes the last Read.
type Stats struct {
	Lines   int
	Matched int
	Skipped int
}

// Option configures a Parser.
type Option func(*Parser)

// WithPaths records the distinct request paths of every client.
func WithPaths(track bool) Option {
	return func(p *Parser) {
		p.trackPaths = track
	}
}

// Parser reads an access log.
type Parser struct {
	src        io.Reader
	closer     io.Closer
	trackPaths bool
	stats      Stats
}

// Open opens an access log file.
func Open(path string, opts ...Option) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open access log: %w", err)
	}
	p := NewParser(f, opts...)
	p.closer = f
	return p, nil
}

// NewParser reads from an open stream. Close does not close src.
func NewParser(src io.Reader, opts ...Option) *Parser {
	p := &Parser{src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Read aggregates every line of the log. Lines that do not match the
// expected format are skipped and counted.
func (p *Parser) Read() (map[string]features.Counters, error) {
	p.stats = Stats{}
	counters := make(map[string]features.Counters)

	scanner := bufio.NewScanner(p.src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		p.stats.Lines++
		entry, ok := ParseLine(scanner.Text())
		if !ok {
			p.stats.Skipped++
			log.Debug().Int("line", p.stats.Lines).Msg("skipping unparseable log line")
			continue
		}
		p.stats.Matched++

		c := counters[entry.IP]
		c.Total++
		if entry.IsError() {
			c.Errors++
		}
		if p.trackPaths && entry.Path != "" {
			c.AddPath(entry.Path)
		}
		counters[entry.IP] = c
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read access log line %d: %w", p.stats.Lines+1, err)
	}

	return counters, nil
}

// Stats returns the counts of the last Read.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Close releases the underlying file, if any.
func (p *Parser) Close() error {
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// ParseFile opens, reads and closes an access log in one call.
func ParseFile(path string, opts ...Option) (map[string]features.Counters, Stats, error) {
	p, err := Open(path, opts...)
	if err != nil {
		return nil, Stats{}, err
	}
	defer p.Close()

	counters, err := p.Read()
	if err != nil {
		return nil, p.Stats(), err
	}
	return counters, p.Stats(), nil
}
