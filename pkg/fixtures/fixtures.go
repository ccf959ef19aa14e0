// Package fixtures generates labelled synthetic access logs for exercising
// the detector: credential stuffing, reconnaissance scanning and ordinary
// browsing. Output is fully determined by the seed.
package fixtures

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/hed1ad/logsentry/pkg/evaluation"
	"github.com/hed1ad/logsentry/pkg/io/pcap"
)

const timeLayout = "02/Jan/2006:15:04:05 -0700"

// ServerIP is the address that answers every request in generated captures.
var ServerIP = net.IPv4(10, 0, 0, 80)

var (
	// AttackerIPs are two credential stuffers followed by a recon scanner.
	AttackerIPs = []string{"203.45.12.78", "198.51.100.42", "185.199.108.15"}

	// LegitIPs are handed out to benign clients in order.
	LegitIPs = []string{
		"192.168.1.50", "10.0.0.15", "172.16.0.20", "192.168.1.100", "10.0.0.25",
		"172.16.10.30", "192.168.0.12", "10.0.5.88", "172.17.0.101", "192.168.1.204",
		"10.1.1.5", "172.18.50.2", "192.168.100.10", "10.50.20.30", "172.19.1.1",
		"192.168.2.111", "10.10.10.10", "172.20.15.5", "192.168.0.75", "10.0.0.199",
	}
)

var (
	loginPaths = []string{"/login", "/signin", "/auth/login"}

	scanPaths = []string{
		"/.env", "/.git/config", "/.aws/credentials", "/.htpasswd", "/.bash_history", "/.ssh/id_rsa",
		"/admin", "/administrator/", "/phpmyadmin/", "/cpanel", "/dashboard/", "/manage/", "/portal/",
		"/wp-admin/", "/wp-login.php", "/wp-config.php", "/xmlrpc.php", "/config.php", "/web.config",
		"/appsettings.json", "/database.yml", "/local.xml", "/secrets.yml", "/credentials.json",
		"/backup.sql", "/dump.sql", "/db.sql", "/data.sql", "/backup.zip", "/site.zip", "/backup.tar.gz",
		"/access.log", "/error.log", "/debug.log", "/app.log", "/old/", "/temp/", "/tmp/", "/test/",
		"/.svn/entries", "/Jenkinsfile", "/.gitlab-ci.yml", "/.travis.yml", "/Dockerfile",
		"/api/", "/api/v1/", "/swagger-ui.html", "/api-docs/", "/graphql", "/swagger.json", "/redoc",
		"/info.php", "/phpinfo.php", "/test.php", "/shell.php", "/crossdomain.xml", "/robots.txt",
		"/server-status", "/actuator/env", "/actuator/health", "/WEB-INF/web.xml", "/etc/passwd",
		"/uploads/", "/images/", "/assets/", "/files/", "/docs/", "/public/", "/static/", "/media/",
	}

	browsePaths = []string{
		"/", "/index.html", "/home", "/about", "/about-us", "/contact", "/contact.html", "/services",
		"/products", "/products/laptops", "/products/phones", "/products/item-123", "/category/electronics",
		"/blog", "/blog/post-1", "/blog/category/lifestyle", "/blog/archive/2023", "/author/jane-doe",
		"/pricing", "/faq", "/help", "/support/ticket/54321", "/privacy-policy", "/terms-of-service",
		"/login", "/logout", "/register", "/forgot-password", "/account", "/profile", "/account/settings",
		"/account/orders", "/account/orders/9876", "/cart", "/checkout", "/checkout/success", "/wishlist",
		"/search?q=gaming+mouse", "/portfolio", "/gallery", "/forum", "/forum/thread/101", "/careers",
		"/static/style.css", "/assets/js/vendor.js", "/images/logo.png", "/favicon.ico",
		"/downloads/whitepaper.pdf", "/api/products?id=123", "/api/user/profile",
	}
)

// Entry is one request.
type Entry struct {
	Time   time.Time
	IP     string
	Method string
	Path   string
	Status int
	Bytes  int
}

// String formats the entry as an Apache common log line.
func (e Entry) String() string {
	return fmt.Sprintf(`%s - - [%s] "%s %s HTTP/1.1" %d %d`,
		e.IP, e.Time.Format(timeLayout), e.Method, e.Path, e.Status, e.Bytes)
}

// Client is a labelled source address.
type Client struct {
	IP    string
	Label evaluation.Label
}

// Dataset is a shuffled log with its ground truth.
type Dataset struct {
	Entries []Entry
	Clients []Client
}

// Config controls generation.
type Config struct {
	Seed  int64
	Start time.Time
	// HighVolumeUsers defaults to 2.
	HighVolumeUsers int
	// NormalUsers is drawn from 8..13 when zero.
	NormalUsers int
}

// DefaultConfig returns the historical dataset shape with a fixed start time.
func DefaultConfig() Config {
	return Config{
		Seed:            42,
		Start:           time.Date(2025, 10, 10, 13, 55, 36, 0, time.UTC),
		HighVolumeUsers: 2,
	}
}

type generator struct {
	rng *rand.Rand
}

// Generate builds a dataset.
func Generate(cfg Config) (*Dataset, error) {
	g := &generator{rng: rand.New(rand.NewSource(cfg.Seed))}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultConfig().Start
	}
	if cfg.HighVolumeUsers <= 0 {
		cfg.HighVolumeUsers = 2
	}
	if cfg.NormalUsers <= 0 {
		cfg.NormalUsers = 8 + g.rng.Intn(6)
	}
	if n := cfg.HighVolumeUsers + cfg.NormalUsers; n > len(LegitIPs) {
		return nil, fmt.Errorf("requested %d benign users, only %d addresses available", n, len(LegitIPs))
	}

	d := &Dataset{}
	add := func(ip string, label evaluation.Label, entries []Entry) {
		d.Entries = append(d.Entries, entries...)
		d.Clients = append(d.Clients, Client{IP: ip, Label: label})
	}

	add(AttackerIPs[0], evaluation.Attack, g.credentialStuffing(AttackerIPs[0], cfg.Start))
	add(AttackerIPs[1], evaluation.Attack, g.credentialStuffing(AttackerIPs[1], cfg.Start.Add(10*time.Minute)))
	add(AttackerIPs[2], evaluation.Attack, g.reconScan(AttackerIPs[2], cfg.Start.Add(20*time.Minute)))

	next := 0
	for i := 0; i < cfg.HighVolumeUsers; i++ {
		ip := LegitIPs[next]
		next++
		add(ip, evaluation.Benign, g.browsing(ip, cfg.Start.Add(time.Duration(10+i*10)*time.Minute), true))
	}
	for i := 0; i < cfg.NormalUsers; i++ {
		ip := LegitIPs[next]
		next++
		add(ip, evaluation.Benign, g.browsing(ip, cfg.Start.Add(time.Duration(40+i*5)*time.Minute), false))
	}

	g.rng.Shuffle(len(d.Entries), func(i, j int) {
		d.Entries[i], d.Entries[j] = d.Entries[j], d.Entries[i]
	})
	return d, nil
}

func (g *generator) credentialStuffing(ip string, t time.Time) []Entry {
	entries := make([]Entry, 1000)
	for i := range entries {
		status := 200
		if g.rng.Float64() < 0.95 {
			status = 401 + 2*g.rng.Intn(2)
		}
		t = t.Add(time.Duration(1+g.rng.Intn(3)) * time.Second)
		entries[i] = Entry{
			Time:   t,
			IP:     ip,
			Method: http.MethodPost,
			Path:   loginPaths[g.rng.Intn(len(loginPaths))],
			Status: status,
			Bytes:  100 + g.rng.Intn(401),
		}
	}
	return entries
}

func (g *generator) reconScan(ip string, t time.Time) []Entry {
	paths := append([]string(nil), scanPaths...)
	g.rng.Shuffle(len(paths), func(i, j int) { paths[i], paths[j] = paths[j], paths[i] })

	entries := make([]Entry, 100+g.rng.Intn(51))
	for i := range entries {
		status := 200
		if g.rng.Float64() < 0.98 {
			status = 404
			if g.rng.Intn(10) == 0 {
				status = 403
			}
		}
		t = t.Add(time.Duration(1+g.rng.Intn(3)) * time.Second)
		entries[i] = Entry{
			Time:   t,
			IP:     ip,
			Method: http.MethodGet,
			Path:   paths[i%len(paths)],
			Status: status,
			Bytes:  100 + g.rng.Intn(401),
		}
	}
	return entries
}

func (g *generator) browsing(ip string, t time.Time, high bool) []Entry {
	requests, unique := 15+g.rng.Intn(36), 12+g.rng.Intn(14)
	if high {
		requests, unique = 150+g.rng.Intn(51), 30+g.rng.Intn(21)
	}
	errorRate := g.rng.Float64() * 0.05

	perm := g.rng.Perm(len(browsePaths))[:min(unique, len(browsePaths))]
	okStatuses := []int{200, 302, 304}

	entries := make([]Entry, requests)
	for i := range entries {
		status := okStatuses[g.rng.Intn(len(okStatuses))]
		if g.rng.Float64() < errorRate {
			status = 401 + 2*g.rng.Intn(2)
		}
		t = t.Add(time.Duration(10+g.rng.Intn(51)) * time.Second)
		entries[i] = Entry{
			Time:   t,
			IP:     ip,
			Method: http.MethodGet,
			Path:   browsePaths[perm[g.rng.Intn(len(perm))]],
			Status: status,
			Bytes:  500 + g.rng.Intn(4501),
		}
	}
	return entries
}

// Truth returns the labels as a ground truth map.
func (d *Dataset) Truth() evaluation.GroundTruth {
	truth := make(evaluation.GroundTruth, len(d.Clients))
	for _, c := range d.Clients {
		truth[c.IP] = c.Label
	}
	return truth
}

// WriteLog writes one line per entry, in shuffled order.
func (d *Dataset) WriteLog(w io.Writer) error {
	for _, e := range d.Entries {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
	}
	return nil
}

// WriteTruth writes the ground truth table in generation order.
func (d *Dataset) WriteTruth(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{evaluation.IDColumn, evaluation.LabelColumn}); err != nil {
		return fmt.Errorf("write ground truth: %w", err)
	}
	for _, c := range d.Clients {
		if err := cw.Write([]string{c.IP, c.Label.String()}); err != nil {
			return fmt.Errorf("write ground truth: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write ground truth: %w", err)
	}
	return nil
}

// WriteCapture writes every entry as an HTTP exchange in time order.
func (d *Dataset) WriteCapture(w io.Writer) error {
	pw, err := pcap.NewWriter(w)
	if err != nil {
		return err
	}

	entries := append([]Entry(nil), d.Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time.Before(entries[j].Time) })

	for _, e := range entries {
		req := fmt.Sprintf("%s %s HTTP/1.1\r\nHost: example.com\r\n\r\n", e.Method, e.Path)
		resp := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\n\r\n", e.Status, http.StatusText(e.Status), e.Bytes)
		if err := pw.WriteExchange(e.Time, net.ParseIP(e.IP), ServerIP, []byte(req), []byte(resp)); err != nil {
			return fmt.Errorf("write capture: %w", err)
		}
	}
	return nil
}

// WriteFiles writes the log and ground truth to disk.
func (d *Dataset) WriteFiles(logPath, truthPath string) error {
	if err := writeFile(logPath, d.WriteLog); err != nil {
		return err
	}
	return writeFile(truthPath, d.WriteTruth)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCaptureFile writes the capture to path.
func (d *Dataset) WriteCaptureFile(path string) error {
	return writeFile(path, d.WriteCapture)
}
