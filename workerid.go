// Package uid - workerid.go provides worker identity acquisition.
//
// A worker ID must be unique across concurrently producing instances for the
// generated IDs to be globally unique. Three sources are provided: a host
// derivation (IPv4 + port), a Redis lease pool, and a disposable
// insert-a-row database assignment. All of them return raw values; the
// generator truncates to the layout's worker width.

package uid

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WorkerIDSource supplies a stable worker ID for this process instance.
//
// AssignWorkerID is called once at startup and again when the clock
// regresses beyond the tolerant window, in which case a fresh identity lets
// the minter continue without waiting for the clock to catch up. The
// returned value may exceed the layout's worker width; the generator
// truncates it with TruncateWorkerID.
type WorkerIDSource interface {
	AssignWorkerID(ctx context.Context) (int64, error)
}

// WorkerIDSourceFunc adapts a plain function to the WorkerIDSource interface.
type WorkerIDSourceFunc func(ctx context.Context) (int64, error)

// AssignWorkerID implements WorkerIDSource.
func (f WorkerIDSourceFunc) AssignWorkerID(ctx context.Context) (int64, error) {
	return f(ctx)
}

// FixedWorkerIDSource always yields the same worker ID. Intended for
// single-node deployments and tests.
func FixedWorkerIDSource(workerID int64) WorkerIDSource {
	return WorkerIDSourceFunc(func(context.Context) (int64, error) {
		return workerID, nil
	})
}

// TruncateWorkerID folds a raw worker value into workerBits bits by
// discarding the high bits: (x << (64-W)) >> (64-W) on the unsigned
// representation. The result is always non-negative for any W < 64.
func TruncateWorkerID(raw int64, workerBits int) int64 {
	shift := uint(64 - workerBits)
	return int64(uint64(raw) << shift >> shift)
}

// HostWorkerIDSource derives a worker ID from the local IPv4 address and the
// bound service port: the 32 address bits concatenated with the 16 port
// bits, a 48-bit value. Two instances on the same host must bind different
// ports to stay distinct.
type HostWorkerIDSource struct {
	// Port is the service port mixed into the low 16 bits.
	Port int
}

// AssignWorkerID implements WorkerIDSource. It returns 0 when no
// non-loopback IPv4 address is available.
func (s *HostWorkerIDSource) AssignWorkerID(ctx context.Context) (int64, error) {
	ip := localIPv4()
	if ip == nil {
		return 0, nil
	}
	return int64(binary.BigEndian.Uint32(ip))<<16 | int64(uint16(s.Port)), nil
}

// localIPv4 returns the first non-loopback IPv4 address of this host, or nil.
func localIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4
		}
	}
	return nil
}

// RedisWorkerIDSource leases a worker ID from a bounded pool coordinated
// through Redis. Slot i is held by key "<prefix>:<i>" with a TTL; a
// background goroutine renews the lease and Release drops it on shutdown.
// The lease value is a per-process token so a slot can only be renewed or
// released by its owner.
type RedisWorkerIDSource struct {
	client    *redis.Client
	keyPrefix string
	poolSize  int64
	leaseTTL  time.Duration
	renewEach time.Duration
	token     string
	log       *zap.Logger

	workerID int64
	stopCh   chan struct{}
}

// NewRedisWorkerIDSource builds a lease source over client. poolSize bounds
// the slot range and would normally be maxWorkerID+1 for the active layout.
func NewRedisWorkerIDSource(client *redis.Client, keyPrefix string, poolSize int64, logger *zap.Logger) *RedisWorkerIDSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisWorkerIDSource{
		client:    client,
		keyPrefix: keyPrefix,
		poolSize:  poolSize,
		leaseTTL:  30 * time.Second,
		renewEach: 10 * time.Second,
		token:     uuid.NewString(),
		log:       logger,
		workerID:  -1,
		stopCh:    make(chan struct{}),
	}
}

// AssignWorkerID implements WorkerIDSource. It claims the first free slot
// with SETNX and starts lease renewal in the background.
func (s *RedisWorkerIDSource) AssignWorkerID(ctx context.Context) (int64, error) {
	for id := int64(0); id < s.poolSize; id++ {
		key := s.key(id)
		acquired, err := s.client.SetNX(ctx, key, s.token, s.leaseTTL).Result()
		if err != nil {
			return 0, fmt.Errorf("lease worker id: %w", err)
		}
		if acquired {
			s.workerID = id
			s.log.Info("leased worker id", zap.Int64("worker", id))
			go s.renewLease(key)
			return id, nil
		}
	}
	return 0, fmt.Errorf("lease worker id: no free slot in pool of %d", s.poolSize)
}

// renewLease extends the slot TTL until Release is called or the lease is
// observed under another owner's token.
func (s *RedisWorkerIDSource) renewLease(key string) {
	ticker := time.NewTicker(s.renewEach)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			val, err := s.client.Get(ctx, key).Result()
			if err != nil || val != s.token {
				cancel()
				s.log.Warn("worker id lease lost", zap.Int64("worker", s.workerID), zap.Error(err))
				return
			}
			if err := s.client.Expire(ctx, key, s.leaseTTL).Err(); err != nil {
				s.log.Warn("worker id lease renewal failed", zap.Int64("worker", s.workerID), zap.Error(err))
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

// Release stops renewal and frees the slot if this process still owns it.
func (s *RedisWorkerIDSource) Release(ctx context.Context) error {
	close(s.stopCh)
	if s.workerID < 0 {
		return nil
	}
	key := s.key(s.workerID)
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	if val != s.token {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisWorkerIDSource) key(id int64) string {
	return fmt.Sprintf("%s:%d", s.keyPrefix, id)
}

// DatabaseWorkerIDSource assigns a disposable worker ID by inserting a row
// into a registry table and using the auto-generated row ID. Every process
// start consumes a fresh row, so restarts never reuse a live identity. The
// raw row ID grows without bound and is truncated to the worker width by the
// generator, which wraps around the ID space; the registry must be large
// enough relative to process churn for wrapped IDs to have expired.
type DatabaseWorkerIDSource struct {
	db    *sql.DB
	table string
	host  string
	port  int
}

// NewDatabaseWorkerIDSource builds a registry source over db. table is the
// registry table name; host and port describe this instance for audit.
func NewDatabaseWorkerIDSource(db *sql.DB, table, host string, port int) *DatabaseWorkerIDSource {
	return &DatabaseWorkerIDSource{db: db, table: table, host: host, port: port}
}

// EnsureSchema creates the registry table when absent. The DDL targets
// SQLite; for other engines create an equivalent table with an
// auto-increment primary key up front.
func (s *DatabaseWorkerIDSource) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			host_name TEXT NOT NULL,
			port INTEGER NOT NULL,
			created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, s.table))
	return err
}

// AssignWorkerID implements WorkerIDSource.
func (s *DatabaseWorkerIDSource) AssignWorkerID(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (host_name, port) VALUES (?, ?)", s.table),
		s.host, s.port)
	if err != nil {
		return 0, fmt.Errorf("register worker node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("register worker node: %w", err)
	}
	return id, nil
}
