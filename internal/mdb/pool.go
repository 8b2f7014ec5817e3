package mdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/corebooks/erp-core/pkg/merrors"
	"github.com/corebooks/erp-core/pkg/mlog"
	"github.com/corebooks/erp-core/pkg/mmetrics"
)

// PoolState is the lifecycle of a ConnectionPool.
type PoolState int32

const (
	Uninitialised PoolState = iota
	Ready
	ShuttingDown
	Drained
)

// Config configures a ConnectionPool. DSN is pre-built by the hosting
// application (host/port/username/password/database folded together);
// the pool itself is engine-agnostic beyond the pgx driver Connection
// uses.
type Config struct {
	DSN                      string
	MaxConnections           int
	ConnectionTimeoutSeconds int
}

// ConnectionPool is a process-wide bounded pool of Connections. All
// state transitions and queue edits happen under mu, paired with cond;
// waiters are woken exactly when a Connection becomes available or on
// shutdown. Constructed once in the composition root and passed by
// shared reference — never a singleton.
type ConnectionPool struct {
	mu   sync.Mutex
	cond *sync.Cond

	state PoolState
	cfg   Config

	idle    []*Connection
	all     []*Connection
	waiters int

	log     mlog.Logger
	metrics *mmetrics.Registry
}

// New constructs an uninitialised pool. log and metrics may be nil.
func New(log mlog.Logger, metrics *mmetrics.Registry) *ConnectionPool {
	if log == nil {
		log = mlog.Nop{}
	}

	p := &ConnectionPool{
		state:   Uninitialised,
		log:     log,
		metrics: metrics,
	}
	p.cond = sync.NewCond(&p.mu)

	return p
}

// NewPoolForTest builds a Ready pool around already-open connections
// (typically sqlmock-backed, via NewForTest), bypassing Initialise's
// real-DSN dial. For use by other packages' tests only.
func NewPoolForTest(conns ...*Connection) *ConnectionPool {
	p := New(nil, nil)
	p.cfg = Config{MaxConnections: len(conns), ConnectionTimeoutSeconds: 1}
	p.state = Ready
	p.idle = append(p.idle, conns...)
	p.all = append(p.all, conns...)

	return p
}

// Initialise is valid only from Uninitialised. It attempts to create and
// open MaxConnections Connections; if zero succeed, it fails with
// DatabaseError. Partially filled pools proceed with whatever opened.
func (p *ConnectionPool) Initialise(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Uninitialised {
		return merrors.New(merrors.ServerError, "mdb: pool already initialised")
	}

	p.cfg = cfg

	for i := 0; i < cfg.MaxConnections; i++ {
		conn := newConnection(cfg.DSN)

		if err := conn.Open(ctx); err != nil {
			p.log.Warnf("mdb: pool: failed to open connection %d/%d: %v", i+1, cfg.MaxConnections, err)
			continue
		}

		p.idle = append(p.idle, conn)
		p.all = append(p.all, conn)
	}

	if len(p.idle) == 0 {
		return merrors.New(merrors.DatabaseError, "mdb: pool: failed to open any connection")
	}

	p.state = Ready
	p.reportGauges()

	p.log.Infof("mdb: pool ready with %d/%d connections", len(p.idle), cfg.MaxConnections)

	return nil
}

// Acquire pops an idle connection, waiting on the condition variable up
// to ConnectionTimeoutSeconds if none are available. Valid from Ready
// only.
func (p *ConnectionPool) Acquire(ctx context.Context) (*Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Ready {
		return nil, merrors.New(merrors.DatabaseError, "mdb: pool not ready")
	}

	if len(p.idle) == 0 {
		p.waiters++
		p.reportGauges()

		done := make(chan struct{})

		timer := time.AfterFunc(time.Duration(p.cfg.ConnectionTimeoutSeconds)*time.Second, func() {
			p.mu.Lock()
			close(done)
			p.cond.Broadcast()
			p.mu.Unlock()
		})
		defer timer.Stop()

		for len(p.idle) == 0 && p.state == Ready {
			select {
			case <-done:
				p.waiters--
				p.reportGauges()

				if p.metrics != nil {
					p.metrics.PoolTimeouts.Inc()
				}

				return nil, merrors.New(merrors.DatabaseError, "mdb: pool: acquire timed out")
			default:
			}

			p.cond.Wait()
		}

		p.waiters--
		p.reportGauges()

		select {
		case <-done:
		default:
		}
	}

	if p.state != Ready {
		return nil, merrors.New(merrors.DatabaseError, "mdb: pool: shutting down")
	}

	if len(p.idle) == 0 {
		return nil, merrors.New(merrors.DatabaseError, "mdb: pool: acquire timed out")
	}

	conn := p.idle[len(p.idle)-1]
	p.idle = p.idle[:len(p.idle)-1]
	p.reportGauges()

	return conn, nil
}

// Release returns conn to the idle queue and resets it. If the pool is
// shutting down, it closes conn instead. A nil handle is a no-op,
// logged as a warning.
func (p *ConnectionPool) Release(conn *Connection) {
	if conn == nil {
		p.log.Warnf("mdb: pool: release called with nil connection")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Ready {
		_ = conn.Close()
		return
	}

	conn.Reset()
	p.idle = append(p.idle, conn)
	p.reportGauges()
	p.cond.Broadcast()
}

// Shutdown sets ShuttingDown, wakes all waiters, closes every idle
// connection, then closes every tracked connection even if currently
// checked out, and transitions to Drained.
func (p *ConnectionPool) Shutdown() {
	p.mu.Lock()

	if p.state == Drained {
		p.mu.Unlock()
		return
	}

	p.state = ShuttingDown
	p.cond.Broadcast()

	for _, conn := range p.idle {
		_ = conn.Close()
	}
	p.idle = nil

	for _, conn := range p.all {
		if conn.isOpen() {
			_ = conn.Close()
		}
	}

	p.state = Drained
	p.reportGauges()

	p.mu.Unlock()

	p.log.Infof("mdb: pool shutdown complete")
}

// reportGauges updates the Prometheus gauges. Caller must hold p.mu.
func (p *ConnectionPool) reportGauges() {
	if p.metrics == nil {
		return
	}

	p.metrics.PoolIdle.Set(float64(len(p.idle)))
	p.metrics.PoolInUse.Set(float64(len(p.all) - len(p.idle)))
	p.metrics.PoolWaiters.Set(float64(p.waiters))
}

// String renders the pool state for logging.
func (s PoolState) String() string {
	switch s {
	case Uninitialised:
		return "Uninitialised"
	case Ready:
		return "Ready"
	case ShuttingDown:
		return "ShuttingDown"
	case Drained:
		return "Drained"
	default:
		return fmt.Sprintf("PoolState(%d)", int32(s))
	}
}
