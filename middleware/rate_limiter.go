package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"rescuehub/utils"
)

// In-memory sliding-window limiters: per IP for unauthenticated traffic and
// per user for authenticated calls, with progressive penalties on writes.

type timestamps []int64 // unix nanos

// slide drops timestamps older than cutoff and appends now.
func (ts timestamps) slide(cutoff, now int64) timestamps {
	var filtered timestamps
	for _, t := range ts {
		if t >= cutoff {
			filtered = append(filtered, t)
		}
	}
	return append(filtered, now)
}

// IPRateLimiter limits requests per client IP.
type IPRateLimiter struct {
	max         int
	window      time.Duration
	mu          sync.Mutex
	state       map[string]timestamps
	trustedCIDR []string
	now         func() time.Time
}

// NewIPRateLimiter allows max requests per window for each client IP.
// trusted lists proxy IPs or CIDRs whose X-Forwarded-For is honored.
func NewIPRateLimiter(max int, window time.Duration, trusted []string) *IPRateLimiter {
	l := &IPRateLimiter{
		max:         max,
		window:      window,
		state:       make(map[string]timestamps),
		trustedCIDR: trusted,
		now:         time.Now,
	}
	go l.cleanupLoop(time.Minute)
	return l
}

// clientIPGeneric returns the caller's IP. Forwarding headers are honored
// only when the direct peer is one of the trusted proxies (IPs or CIDRs).
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !isTrustedProxy(net.ParseIP(peer), trustedCIDR) {
		return peer
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	return peer
}

func isTrustedProxy(ip net.IP, trusted []string) bool {
	if ip == nil {
		return false
	}
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			if ipnet.Contains(ip) {
				return true
			}
			continue
		}
		if t := net.ParseIP(entry); t != nil && t.Equal(ip) {
			return true
		}
	}
	return false
}

// Middleware applies per-IP limits and sets rate-limit headers.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		now := l.now().UnixNano()
		windowNs := int64(l.window)

		l.mu.Lock()
		filtered := l.state[ip].slide(now-windowNs, now)
		l.state[ip] = filtered
		count := len(filtered)
		l.mu.Unlock()

		setLimitHeaders(w, l.max, count)
		if count > l.max {
			// oldest request in the window expires first
			retryAfter := int((filtered[0] + windowNs - now) / int64(time.Second))
			if retryAfter < 1 {
				retryAfter = 1
			}
			tooManyRequests(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPRateLimiter) cleanupLoop(every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for range tick.C {
		l.mu.Lock()
		now := l.now().UnixNano()
		cutoff := now - int64(l.window)
		for k, arr := range l.state {
			if len(arr) == 0 || arr[len(arr)-1] < cutoff {
				delete(l.state, k)
			}
		}
		l.mu.Unlock()
	}
}

// UserRateLimiter applies separate read and write budgets per user, with
// progressive penalties when the write budget is exceeded.
type UserRateLimiter struct {
	mu       sync.Mutex
	state    map[string]timestamps // key = u:<id>:<category>
	penalty  map[string]penaltyInfo
	window   time.Duration
	maxRead  int
	maxWrite int
	now      func() time.Time
}

type penaltyInfo struct {
	Level int
	Until int64 // unix nanos
}

func NewUserRateLimiter(maxRead, maxWrite int, window time.Duration) *UserRateLimiter {
	l := &UserRateLimiter{
		state:    make(map[string]timestamps),
		penalty:  make(map[string]penaltyInfo),
		window:   window,
		maxRead:  maxRead,
		maxWrite: maxWrite,
		now:      time.Now,
	}
	go l.cleanupLoop(time.Minute)
	return l
}

func methodCategory(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read"
	default:
		return "write"
	}
}

// penaltyFor returns the lockout after the level-th consecutive breach:
// 1, 5, 15 and then 30 minutes.
func penaltyFor(level int) time.Duration {
	switch level {
	case 1:
		return time.Minute
	case 2:
		return 5 * time.Minute
	case 3:
		return 15 * time.Minute
	default:
		return 30 * time.Minute
	}
}

func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := utils.GetUserID(r)
		if !ok {
			// unauthenticated traffic is covered by the IP limiter
			next.ServeHTTP(w, r)
			return
		}
		cat := methodCategory(r.Method)
		limit := l.maxRead
		if cat == "write" {
			limit = l.maxWrite
		}
		key := fmt.Sprintf("u:%d:%s", uid, cat)
		now := l.now().UnixNano()

		l.mu.Lock()
		pi := l.penalty[key]
		if pi.Until > now {
			l.mu.Unlock()
			tooManyRequests(w, int(time.Duration(pi.Until-now).Seconds())+1)
			return
		}
		filtered := l.state[key].slide(now-int64(l.window), now)
		l.state[key] = filtered
		count := len(filtered)

		setLimitHeaders(w, limit, count)
		if count > limit {
			level := pi.Level + 1
			d := penaltyFor(level)
			l.penalty[key] = penaltyInfo{Level: level, Until: now + int64(d)}
			l.mu.Unlock()
			tooManyRequests(w, int(d.Seconds()))
			return
		}
		l.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (l *UserRateLimiter) cleanupLoop(every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for range tick.C {
		l.mu.Lock()
		now := l.now().UnixNano()
		cutoff := now - int64(l.window)
		for k, arr := range l.state {
			if len(arr) == 0 || arr[len(arr)-1] < cutoff {
				delete(l.state, k)
			}
		}
		for k, p := range l.penalty {
			if p.Until < now {
				delete(l.penalty, k)
			}
		}
		l.mu.Unlock()
	}
}

func setLimitHeaders(w http.ResponseWriter, limit, count int) {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
}

func tooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
		Success: false,
		Message: "Too many requests, try again later",
		Code:    "rate_limited",
		Data:    map[string]interface{}{"retry_after_seconds": retryAfter},
	})
}
