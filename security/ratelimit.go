package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults for the registration limiter.
const (
	// DefaultRegistrationRate is registrations per second allowed per IP.
	DefaultRegistrationRate = 1

	// DefaultRegistrationBurst is the burst size allowed per IP.
	DefaultRegistrationBurst = 5

	// defaultMaxTrackedIPs bounds the number of IPs tracked simultaneously.
	defaultMaxTrackedIPs = 10000

	// limiterIdleTimeout is how long an IP's limiter may sit unused before
	// the cleanup loop discards it.
	limiterIdleTimeout = 30 * time.Minute
)

// limiterEntry pairs a token-bucket limiter with its last access time.
type limiterEntry struct {
	ip         string
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RegistrationLimiter rate-limits dynamic client registration per source
// IP using a token bucket per IP, with LRU eviction so the tracked set
// cannot grow without bound.
type RegistrationLimiter struct {
	mu       sync.Mutex
	limiters map[string]*list.Element
	lru      *list.List // front = most recently used

	rps        int
	burst      int
	maxEntries int
	logger     *slog.Logger

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRegistrationLimiter creates a limiter allowing rps registrations per
// second with the given burst per IP. Zero or negative values fall back
// to the defaults.
func NewRegistrationLimiter(rps, burst int, logger *slog.Logger) *RegistrationLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if rps <= 0 {
		rps = DefaultRegistrationRate
	}
	if burst <= 0 {
		burst = DefaultRegistrationBurst
	}

	l := &RegistrationLimiter{
		limiters:    make(map[string]*list.Element),
		lru:         list.New(),
		rps:         rps,
		burst:       burst,
		maxEntries:  defaultMaxTrackedIPs,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow reports whether a registration from ip may proceed. A nil limiter
// allows everything, so callers can treat the limiter as optional.
func (l *RegistrationLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.limiters[ip]; ok {
		l.lru.MoveToFront(elem)
		entry := elem.Value.(*limiterEntry)
		entry.lastAccess = now
		return entry.limiter.Allow()
	}

	if len(l.limiters) >= l.maxEntries {
		l.evictOldest()
	}

	entry := &limiterEntry{
		ip:         ip,
		limiter:    rate.NewLimiter(rate.Limit(l.rps), l.burst),
		lastAccess: now,
	}
	l.limiters[ip] = l.lru.PushFront(entry)

	return entry.limiter.Allow()
}

// evictOldest removes the least recently used entry. Caller holds l.mu.
func (l *RegistrationLimiter) evictOldest() {
	elem := l.lru.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*limiterEntry)
	delete(l.limiters, entry.ip)
	l.lru.Remove(elem)

	l.logger.Debug("Registration limiter evicted IP",
		"ip", entry.ip,
		"tracked", len(l.limiters))
}

func (l *RegistrationLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(limiterIdleTimeout)
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanup drops limiters that have been idle longer than maxIdle.
func (l *RegistrationLimiter) cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var next *list.Element
	for elem := l.lru.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*limiterEntry)
		if now.Sub(entry.lastAccess) > maxIdle {
			delete(l.limiters, entry.ip)
			l.lru.Remove(elem)
		}
	}
}

// Stop terminates the background cleanup goroutine.
func (l *RegistrationLimiter) Stop() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}
