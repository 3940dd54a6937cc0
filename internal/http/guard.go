package http

import (
	"math"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Write budgets. Withdrawals and deposits move money and get their own,
// tighter bucket per user on top of the per-address write bucket.
const (
	writesPerMinute = 60
	writeBurst      = 20
	movesPerMinute  = 10
	moveBurst       = 3

	limiterIdle  = 10 * time.Minute
	sweepEvery   = time.Minute
	maxURILength = 2048
)

var moneyRoutes = map[string]bool{
	"/api/withdrawals": true,
	"/api/payments":    true,
}

// guardStats is reported by /readyz.
type guardStats struct {
	WriteLimited int64 `json:"write_limited"`
	MoveLimited  int64 `json:"move_limited"`
	Suspicious   int64 `json:"suspicious"`
}

// guard throttles state-changing calls and flags probing traffic. Flagged
// requests are logged, not rejected.
type guard struct {
	writes *buckets
	moves  *buckets

	writeLimited atomic.Int64
	moveLimited  atomic.Int64
	suspicious   atomic.Int64
}

func newGuard(now func() time.Time) *guard {
	return &guard{
		writes: newBuckets(perMinute(writesPerMinute), writeBurst, now),
		moves:  newBuckets(perMinute(movesPerMinute), moveBurst, now),
	}
}

func perMinute(n int) rate.Limit { return rate.Limit(float64(n) / 60) }

// admit reports how long the caller must wait before r is accepted; zero
// admits it. GETs are never throttled.
func (g *guard) admit(r *http.Request, clientIP, userID string) time.Duration {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return 0
	}
	if wait := g.writes.take("ip:" + clientIP); wait > 0 {
		g.writeLimited.Add(1)
		return wait
	}
	if moneyRoutes[r.URL.Path] {
		key := "ip:" + clientIP
		if userID != "" {
			key = "user:" + userID
		}
		if wait := g.moves.take(key); wait > 0 {
			g.moveLimited.Add(1)
			return wait
		}
	}
	return 0
}

func (g *guard) stats() guardStats {
	return guardStats{
		WriteLimited: g.writeLimited.Load(),
		MoveLimited:  g.moveLimited.Load(),
		Suspicious:   g.suspicious.Load(),
	}
}

// buckets keeps one token bucket per key and forgets keys idle for
// limiterIdle, sweeping at most once per sweepEvery.
type buckets struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	now       func() time.Time
	entries   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newBuckets(limit rate.Limit, burst int, now func() time.Time) *buckets {
	if now == nil {
		now = time.Now
	}
	return &buckets{limit: limit, burst: burst, now: now, entries: make(map[string]*bucket)}
}

// take consumes a token for key, or returns the delay until one is free.
func (b *buckets) take(key string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= sweepEvery {
		b.sweep(now)
	}
	e, ok := b.entries[key]
	if !ok {
		e = &bucket{lim: rate.NewLimiter(b.limit, b.burst)}
		b.entries[key] = e
	}
	e.seen = now

	res := e.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay
	}
	return 0
}

func (b *buckets) sweep(now time.Time) {
	for k, e := range b.entries {
		if now.Sub(e.seen) > limiterIdle {
			delete(b.entries, k)
		}
	}
	b.lastSweep = now
}

func (b *buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// retryAfter renders a wait as whole seconds, at least one.
func retryAfter(wait time.Duration) int {
	return int(math.Max(1, math.Ceil(wait.Seconds())))
}

var scanMarkers = []string{
	"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
	".php", "etc/passwd", "cmd.exe", "<script", "javascript:", "union select", "eval(",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}

// scanReason names why r looks like scanning, or returns "".
func scanReason(r *http.Request) string {
	if len(r.URL.RequestURI()) > maxURILength {
		return "oversized uri"
	}
	switch r.Method {
	case http.MethodTrace, http.MethodConnect, "TRACK", "DEBUG":
		return "method " + r.Method
	}
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, m := range scanMarkers {
		if strings.Contains(target, m) {
			return "marker " + m
		}
	}
	ua := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			return "scanner " + a
		}
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		return "forwarding chain"
	}
	return ""
}

var trustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
}

// clientIP is the peer address, or the first forwarded address when the
// peer is a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !fromProxy(peer) {
		return host
	}
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
		return a.String()
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.String()
	}
	return host
}

func fromProxy(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range trustedProxies {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
