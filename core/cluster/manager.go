package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	pingTimeout    = 5 * time.Second
	publishTimeout = 5 * time.Second
	joinTimeout    = 5 * time.Second
)

// Manager fans mutation notifications out to peer processes sharing one
// database and receives theirs. Sync is best-effort: the database stays
// authoritative, so every failure here degrades to a logged no-op
// instead of surfacing into the caller's data path.
type Manager struct {
	cfg       Config
	log       *zap.Logger
	processID string

	client  *redis.Client
	enabled atomic.Bool

	mu        sync.RWMutex
	listeners []registration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewManager creates a manager with a fresh process id. Initialize must
// be called before it does anything.
func NewManager(cfg Config, log *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       log,
		processID: uuid.NewString(),
	}
}

// ProcessID returns this process's identity used for self-filtering.
func (m *Manager) ProcessID() string { return m.processID }

// Initialize builds the Redis connection pool, verifies liveness with a
// ping and starts the background subscriber. Returns false on any
// failure, leaving the manager permanently disabled: publishes become
// no-ops and no subscriber runs.
func (m *Manager) Initialize() bool {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
		Password: m.cfg.Password,
		DB:       m.cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	err := client.Ping(ctx).Err()
	cancel()
	if err != nil {
		m.log.Warn("Cluster sync disabled, Redis unreachable",
			zap.String("host", m.cfg.Host),
			zap.Int("port", m.cfg.Port),
			zap.Error(err))
		_ = client.Close()
		return false
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	m.client = client
	m.cancel = subCancel
	m.done = make(chan struct{})
	m.enabled.Store(true)

	go m.subscribe(subCtx)

	m.log.Info("Cluster sync initialized",
		zap.String("channel", m.cfg.Channel),
		zap.String("process_id", m.processID))
	return true
}

// subscribe runs on a dedicated goroutine and re-subscribes with a
// fixed backoff whenever the subscription drops, until shutdown.
func (m *Manager) subscribe(ctx context.Context) {
	defer close(m.done)

	backoff := time.Duration(m.cfg.RetryBackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = 3 * time.Second
	}

	for {
		pubsub := m.client.Subscribe(ctx, m.cfg.Channel)
		for msg := range pubsub.Channel() {
			m.dispatch(msg.Payload)
		}
		_ = pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			m.log.Warn("Cluster subscription dropped, re-subscribing",
				zap.String("channel", m.cfg.Channel))
		}
	}
}

// dispatch parses one inbound message and hands it to every matching
// listener. Events from the local process are discarded; a failing
// listener is logged and the rest still run.
func (m *Manager) dispatch(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		m.log.Warn("Discarding malformed sync event", zap.Error(err))
		return
	}
	if ev.ProcessID == m.processID {
		return
	}

	m.mu.RLock()
	regs := make([]registration, len(m.listeners))
	copy(regs, m.listeners)
	m.mu.RUnlock()

	for _, reg := range regs {
		if !reg.matches(ev) {
			continue
		}
		m.invoke(reg.listener, ev)
	}
}

func (m *Manager) invoke(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Sync listener panicked",
				zap.String("table", ev.Table),
				zap.Any("panic", r))
		}
	}()
	if err := l(ev); err != nil {
		m.log.Error("Sync listener failed",
			zap.String("table", ev.Table),
			zap.Error(err))
	}
}

// Subscribe registers a listener, optionally narrowed to one table or
// prefix. Registration is allowed before Initialize.
func (m *Manager) Subscribe(l Listener, opts ...SubscribeOption) {
	reg := registration{listener: l}
	for _, opt := range opts {
		opt(&reg)
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, reg)
	m.mu.Unlock()
}

// PublishEvent broadcasts a mutation notification. Fire-and-forget: it
// returns immediately, never blocks the caller's transaction, and logs
// rather than surfaces publish failures. No-op while disabled.
func (m *Manager) PublishEvent(table, prefix string, payload any) {
	if !m.enabled.Load() {
		return
	}

	go func() {
		var raw json.RawMessage
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				m.log.Warn("Failed to encode sync payload",
					zap.String("table", table), zap.Error(err))
				return
			}
			raw = b
		}

		body, err := json.Marshal(Event{
			ProcessID: m.processID,
			Table:     table,
			Prefix:    prefix,
			Payload:   raw,
		})
		if err != nil {
			m.log.Warn("Failed to encode sync event", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := m.client.Publish(ctx, m.cfg.Channel, body).Err(); err != nil {
			m.log.Warn("Failed to publish sync event",
				zap.String("table", table), zap.Error(err))
		}
	}()
}

// client access for the lock manager, which shares this pool.
func (m *Manager) redisClient() *redis.Client {
	if !m.enabled.Load() {
		return nil
	}
	return m.client
}

// Shutdown stops the subscriber with a bounded join, closes the pool
// and disables the manager. Safe to call multiple times and on a
// manager that never initialized. The enabled check runs before the
// once so a premature call does not consume the one teardown of a
// manager initialized later.
func (m *Manager) Shutdown() {
	if !m.enabled.Load() {
		return
	}
	m.once.Do(func() {
		m.enabled.Store(false)
		m.cancel()
		// Closing the client unblocks the subscriber's channel range;
		// cancellation alone would not.
		_ = m.client.Close()
		select {
		case <-m.done:
		case <-time.After(joinTimeout):
			m.log.Warn("Cluster subscriber did not stop in time")
		}
		m.log.Info("Cluster sync shut down")
	})
}
