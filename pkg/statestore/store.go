// Package statestore keeps the last upgrade status read from each network
// element in Redis, and an advisory per-device lock so that two operators
// cannot drive the same upgrade at once.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/trungdtbk/pss1830/pkg/parser"
)

// Key tables
const (
	StatusTable = "PSS_UPGRADE_STATUS"
	LockTable   = "PSS_UPGRADE_LOCK"
)

// Non-status hash fields
const (
	fieldRaw     = "raw"
	fieldUpdated = "updated"
)

// ErrDeviceLocked is returned when another holder owns the device lock.
var ErrDeviceLocked = errors.New("device is locked by another holder")

// Snapshot is a stored status and the time it was recorded.
type Snapshot struct {
	Device  string
	Status  *parser.UpgradeStatus
	Updated time.Time
}

// Store wraps a Redis client.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// New creates a store for the Redis server at addr.
func New(addr string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		now:    time.Now,
	}
}

// Ping tests the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func statusKey(device string) string { return StatusTable + "|" + device }
func lockKey(device string) string   { return LockTable + "|" + device }

// Record replaces the stored snapshot for device. Fields absent from the
// status are absent from the hash.
func (s *Store) Record(ctx context.Context, device string, status *parser.UpgradeStatus) error {
	key := statusKey(device)
	values := encode(status, s.now())
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording status for %s: %w", device, err)
	}
	return nil
}

// Latest returns the stored snapshot, or (nil, nil) if none exists.
func (s *Store) Latest(ctx context.Context, device string) (*Snapshot, error) {
	vals, err := s.client.HGetAll(ctx, statusKey(device)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading status for %s: %w", device, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return decode(device, vals), nil
}

// Devices lists the devices that have a stored snapshot.
func (s *Store) Devices(ctx context.Context) ([]string, error) {
	keys, err := scanKeys(ctx, s.client, StatusTable+"|*", 100)
	if err != nil {
		return nil, err
	}
	devices := make([]string, 0, len(keys))
	for _, k := range keys {
		devices = append(devices, strings.TrimPrefix(k, StatusTable+"|"))
	}
	return devices, nil
}

func encode(status *parser.UpgradeStatus, now time.Time) map[string]interface{} {
	values := map[string]interface{}{
		fieldRaw:     status.Raw(),
		fieldUpdated: now.UTC().Format(time.RFC3339),
	}
	for _, f := range status.Present() {
		values[string(f)] = status.Value(f)
	}
	return values
}

func decode(device string, vals map[string]string) *Snapshot {
	snap := &Snapshot{Device: device}
	if ts, ok := vals[fieldUpdated]; ok {
		snap.Updated, _ = time.Parse(time.RFC3339, ts)
	}
	if raw := vals[fieldRaw]; raw != "" {
		snap.Status = parser.ParseUpgradeStatus(raw)
		return snap
	}
	fields := make(map[parser.Field]string)
	for name, v := range vals {
		if f, ok := parser.ParseField(name); ok {
			fields[f] = v
		}
	}
	snap.Status = parser.NewUpgradeStatus(fields)
	return snap
}

// scanKeys collects keys matching pattern with cursor-based SCAN.
func scanKeys(ctx context.Context, client *redis.Client, pattern string, count int64) ([]string, error) {
	var all []string
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		all = append(all, keys...)
		cursor = next
		if cursor == 0 {
			return all, nil
		}
	}
}
