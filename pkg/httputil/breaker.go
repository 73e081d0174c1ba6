package httputil

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrCircuitOpen is returned by [Breakers.Do] when the breaker for a host has
// tripped and is not yet ready to let a trial request through.
var ErrCircuitOpen = errors.New("circuit breaker open")

// DefaultTripThreshold is the number of consecutive failures that trips a
// host's breaker.
const DefaultTripThreshold = 5

// Breakers keeps one circuit breaker per upstream host.
// The zero value is not usable; call [NewBreakers].
type Breakers struct {
	threshold int64
	cooldown  time.Duration

	// IsFailure decides which errors count toward tripping. When nil every
	// error counts. Set it before first use.
	IsFailure func(error) bool

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// NewBreakers creates a breaker set that trips a host after threshold
// consecutive failures and waits cooldown before the first trial request.
// Non-positive values select the defaults (5 failures, 30 seconds).
func NewBreakers(threshold int, cooldown time.Duration) *Breakers {
	if threshold <= 0 {
		threshold = DefaultTripThreshold
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breakers{
		threshold: int64(threshold),
		cooldown:  cooldown,
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (b *Breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	br, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[host]; ok {
		return br
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.cooldown
	eb.MaxInterval = 5 * time.Minute
	eb.Multiplier = 2.0
	eb.Reset()

	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    eb,
		ShouldTrip: circuit.ThresholdTripFunc(b.threshold),
	})
	b.breakers[host] = br
	return br
}

// Do runs fn through the breaker for the host of rawURL.
// It returns an error wrapping [ErrCircuitOpen] without calling fn when the
// breaker is open. Errors rejected by IsFailure are returned to the caller
// but recorded as successes.
func (b *Breakers) Do(rawURL string, fn func() error) error {
	host := HostOf(rawURL)
	br := b.get(host)

	// Call checks readiness itself; a second check would use up the
	// half-open trial before fn runs.
	var fnErr error
	err := br.Call(func() error {
		fnErr = fn()
		if fnErr != nil && b.IsFailure != nil && !b.IsFailure(fnErr) {
			return nil
		}
		return fnErr
	}, 0)
	if fnErr != nil {
		return fnErr
	}
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return fmt.Errorf("%s: %w", host, ErrCircuitOpen)
	}
	return err
}

// State reports "open" or "closed" for every host seen so far.
func (b *Breakers) State() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, br := range b.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

// Hosts returns the hosts with a breaker, sorted.
func (b *Breakers) Hosts() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hosts := make([]string, 0, len(b.breakers))
	for h := range b.breakers {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// HostOf returns the host of rawURL, used to group requests per upstream.
// Unparseable URLs fall back to the raw string truncated to 50 bytes.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}
