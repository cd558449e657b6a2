package service

import (
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter cuenta logins fallidos por clave. Un login exitoso limpia la clave.
type LoginRateLimiter interface {
	Blocked(key string) bool
	Fail(key string)
	Reset(key string)
}

// LoginKey combina email normalizado e IP de origen: un tercero que conoce el email
// no puede bloquear a la creadora desde otra direccion.
func LoginKey(email, clientIP string) string {
	return normalizeEmail(email) + "|" + strings.TrimSpace(clientIP)
}

type memoryLoginRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	failures  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewLoginRateLimiter crea un limiter en memoria de ventana deslizante sobre fallos.
func NewLoginRateLimiter(window time.Duration, max int) LoginRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryLoginRateLimiter{
		window:   window,
		max:      max,
		failures: make(map[string][]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryLoginRateLimiter) Blocked(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key, l.now())) >= l.max
}

func (l *memoryLoginRateLimiter) Fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.failures[key] = append(l.prune(key, now), now)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}
}

func (l *memoryLoginRateLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.failures, key)
	l.mu.Unlock()
}

// prune descarta fallos fuera de la ventana y borra la clave si queda vacia.
func (l *memoryLoginRateLimiter) prune(key string, now time.Time) []time.Time {
	entries, ok := l.failures[key]
	if !ok {
		return nil
	}
	cutoff := now.Add(-l.window)
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = kept
	return kept
}

func (l *memoryLoginRateLimiter) sweep(now time.Time) {
	for key := range l.failures {
		l.prune(key, now)
	}
	l.lastSweep = now
}
