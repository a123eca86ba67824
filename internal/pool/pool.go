// Package pool maintains bounded sets of reusable agent connections, one
// set per remote address. Callers never hold a connection directly; they
// hold a Lease that guarantees the connection returns to the pool on every
// exit path.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akalogirou/weft/internal/config"
	"github.com/akalogirou/weft/internal/natsbus"
	"github.com/akalogirou/weft/internal/retry"
)

// ErrUnavailable means no connection could be produced for an address:
// either every slot stayed busy past the acquire timeout or dialing failed
// after all retries.
var ErrUnavailable = errors.New("connection unavailable")

// Pool hands out leased connections per agent address.
type Pool struct {
	dial  natsbus.Dialer
	cfg   config.PoolConfig
	retry retry.Policy

	mu    sync.Mutex
	addrs map[string]*addrPool

	created atomic.Int64
	reused  atomic.Int64
}

type addrPool struct {
	slots chan struct{} // one token per live-or-leasable connection slot

	mu   sync.Mutex
	idle []*pooledConn
}

type pooledConn struct {
	conn     natsbus.Conn
	lastUsed time.Time
}

func New(dial natsbus.Dialer, cfg config.PoolConfig, policy retry.Policy) *Pool {
	if cfg.MaxPerAddress <= 0 {
		cfg.MaxPerAddress = 1
	}
	return &Pool{
		dial:  dial,
		cfg:   cfg,
		retry: policy,
		addrs: make(map[string]*addrPool),
	}
}

// Acquire returns a lease on a connection to address, blocking up to the
// configured acquire timeout when every slot for that address is in use.
func (p *Pool) Acquire(ctx context.Context, address string) (*Lease, error) {
	ap := p.addrPool(address)

	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	select {
	case ap.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s slots busy: %v", ErrUnavailable, address, ctx.Err())
	}

	// Slot held from here on; every failure path must give it back.
	if pc := p.takeIdle(ap); pc != nil {
		p.reused.Add(1)
		return p.newLease(address, ap, pc), nil
	}

	conn, err := p.dialWithRetry(ctx, address)
	if err != nil {
		<-ap.slots
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, address, err)
	}

	p.created.Add(1)
	return p.newLease(address, ap, &pooledConn{conn: conn}), nil
}

// takeIdle pops idle connections until it finds a usable one. Connections
// idle past the recycle interval are probed first; a failed probe discards
// the connection transparently.
func (p *Pool) takeIdle(ap *addrPool) *pooledConn {
	for {
		ap.mu.Lock()
		if len(ap.idle) == 0 {
			ap.mu.Unlock()
			return nil
		}
		pc := ap.idle[len(ap.idle)-1]
		ap.idle = ap.idle[:len(ap.idle)-1]
		ap.mu.Unlock()

		if p.cfg.RecycleAfter > 0 && time.Since(pc.lastUsed) > p.cfg.RecycleAfter {
			if !pc.conn.Healthy() {
				slog.Debug("recycling stale connection")
				pc.conn.Close()
				continue
			}
		}
		return pc
	}
}

func (p *Pool) dialWithRetry(ctx context.Context, address string) (natsbus.Conn, error) {
	var conn natsbus.Conn
	err := p.retry.Do(ctx, func(attempt int) (bool, error) {
		var dialErr error
		conn, dialErr = p.dial(address)
		if dialErr != nil {
			slog.Debug("dial failed", "address", address, "attempt", attempt, "error", dialErr)
			return true, dialErr
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (p *Pool) addrPool(address string) *addrPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ap, ok := p.addrs[address]
	if !ok {
		ap = &addrPool{slots: make(chan struct{}, p.cfg.MaxPerAddress)}
		p.addrs[address] = ap
	}
	return ap
}

func (p *Pool) newLease(address string, ap *addrPool, pc *pooledConn) *Lease {
	return &Lease{address: address, ap: ap, pc: pc}
}

// Stats reports how many connections were dialed versus reused. Reporting
// only; nothing reads these to make decisions.
func (p *Pool) Stats() (created, reused int64) {
	return p.created.Load(), p.reused.Load()
}

// Close discards every idle connection. Leased connections are closed when
// their leases are discarded.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ap := range p.addrs {
		ap.mu.Lock()
		for _, pc := range ap.idle {
			pc.conn.Close()
		}
		ap.idle = nil
		ap.mu.Unlock()
	}
}

// Lease is a scoped handle on one pooled connection. Exactly one of
// Release or Discard takes effect; calling either again is a no-op, so
// deferring Release after an explicit Discard is safe.
type Lease struct {
	address string
	ap      *addrPool
	pc      *pooledConn
	once    sync.Once
}

// Conn exposes the leased connection for the duration of the lease.
func (l *Lease) Conn() natsbus.Conn {
	return l.pc.conn
}

// Release returns the connection to the pool for reuse.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.pc.lastUsed = time.Now()
		l.ap.mu.Lock()
		l.ap.idle = append(l.ap.idle, l.pc)
		l.ap.mu.Unlock()
		<-l.ap.slots
	})
}

// Discard closes the connection instead of returning it, freeing the slot
// for a fresh dial. Use after transport-level failures.
func (l *Lease) Discard() {
	l.once.Do(func() {
		l.pc.conn.Close()
		<-l.ap.slots
	})
}
