package accesslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logsentry/pkg/features"
)

const sampleLog = `127.0.0.1 - - [10/Oct/2025:13:55:36 +0000] "GET /index.html HTTP/1.1" 200 2326
192.168.1.1 - - [10/Oct/2025:13:56:12 +0000] "GET /login.php HTTP/1.1" 404 123
127.0.0.1 - - [10/Oct/2025:13:57:01 +0000] "GET /style.css HTTP/1.1" 200 584
192.168.1.1 - - [10/Oct/2025:13:58:22 +0000] "POST /submit HTTP/1.1" 500 0
`

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_access.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o600))

	counters, stats, err := ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, map[string]features.Counters{
		"127.0.0.1":   {Total: 2, Errors: 0},
		"192.168.1.1": {Total: 2, Errors: 2},
	}, counters)
	assert.Equal(t, Stats{Lines: 4, Matched: 4}, stats)
}

func TestParseFileMissing(t *testing.T) {
	_, _, err := ParseFile(filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadWithPaths(t *testing.T) {
	src := sampleLog + `127.0.0.1 - - [10/Oct/2025:13:59:01 +0000] "GET /index.html HTTP/1.1" 304 0` + "\n"
	p := NewParser(strings.NewReader(src), WithPaths(true))

	counters, err := p.Read()
	require.NoError(t, err)

	local := counters["127.0.0.1"]
	assert.Equal(t, 3, local.Total)
	assert.Len(t, local.Paths, 2)
	assert.Contains(t, local.Paths, "/index.html")
	assert.Contains(t, local.Paths, "/style.css")

	remote := counters["192.168.1.1"]
	assert.Len(t, remote.Paths, 2)
	assert.Contains(t, remote.Paths, "/submit")
}

func TestReadSkipsMalformed(t *testing.T) {
	src := strings.Join([]string{
		"not a log line",
		"",
		`10.0.0.1 - - [10/Oct/2025:13:55:36 +0000] "GET / HTTP/1.1" 200 1`,
		`host.example - - [10/Oct/2025:13:55:36 +0000] "GET / HTTP/1.1" 200 1`,
		`10.0.0.1 - - [10/Oct/2025:13:55:36 +0000] "GET / HTTP/1.1" - 1`,
	}, "\n")
	p := NewParser(strings.NewReader(src))

	counters, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, map[string]features.Counters{"10.0.0.1": {Total: 1}}, counters)
	assert.Equal(t, Stats{Lines: 5, Matched: 1, Skipped: 4}, p.Stats())
	assert.NoError(t, p.Close())
}

func TestReadEmpty(t *testing.T) {
	counters, err := NewParser(strings.NewReader("")).Read()
	require.NoError(t, err)
	assert.NotNil(t, counters)
	assert.Empty(t, counters)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   Entry
		ok     bool
		errors bool
	}{
		{
			name: "success",
			line: `203.45.12.78 - - [10/Oct/2025:13:55:36 +0000] "POST /wp-login.php HTTP/1.1" 200 512`,
			want: Entry{IP: "203.45.12.78", Status: 200, Path: "/wp-login.php"},
			ok:   true,
		},
		{
			name:   "client error",
			line:   `198.51.100.42 - - [10/Oct/2025:13:55:36 +0000] "GET /.env HTTP/1.1" 403 0`,
			want:   Entry{IP: "198.51.100.42", Status: 403, Path: "/.env"},
			ok:     true,
			errors: true,
		},
		{
			name:   "server error",
			line:   `10.1.1.1 - - [10/Oct/2025:13:55:36 +0000] "GET /api HTTP/1.1" 503 0`,
			want:   Entry{IP: "10.1.1.1", Status: 503, Path: "/api"},
			ok:     true,
			errors: true,
		},
		{
			name: "redirect is not an error",
			line: `10.1.1.1 - - [10/Oct/2025:13:55:36 +0000] "GET /old HTTP/1.1" 302 0`,
			want: Entry{IP: "10.1.1.1", Status: 302, Path: "/old"},
			ok:   true,
		},
		{
			name: "ipv6 not matched",
			line: `::1 - - [10/Oct/2025:13:55:36 +0000] "GET / HTTP/1.1" 200 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.errors, got.IsError())
		})
	}
}
