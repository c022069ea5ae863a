package redis

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Value encoding markers, stored as the first byte of every cached value
const (
	encodingPlain byte = 0x00
	encodingGzip  byte = 0x01
)

const scanBatchSize = 100

// Manager manages Redis connections and cache operations
type Manager struct {
	config  *Config
	client  redis.UniversalClient
	metrics tierMetrics
}

// NewManager creates a new Redis cache manager
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	manager := &Manager{config: config}

	manager.initializeClient()
	return manager, nil
}

// initializeClient sets up the Redis client based on configuration
func (m *Manager) initializeClient() {
	if !m.config.Enabled {
		return // Skip initialization if cache is disabled
	}

	if m.config.IsClusterMode() {
		m.client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           m.config.Cluster.Addresses,
			Username:        m.config.Cluster.Username,
			Password:        m.config.Cluster.Password,
			PoolSize:        m.config.PoolSize,
			MinIdleConns:    m.config.MinIdleConns,
			ConnMaxLifetime: m.config.MaxConnAge,
			PoolTimeout:     m.config.PoolTimeout,
			ConnMaxIdleTime: m.config.IdleTimeout,
			ReadTimeout:     m.config.ReadTimeout,
			WriteTimeout:    m.config.WriteTimeout,
			DialTimeout:     m.config.DialTimeout,
		})
		return
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:            m.config.GetAddr(),
		Password:        m.config.Password,
		DB:              m.config.Database,
		PoolSize:        m.config.PoolSize,
		MinIdleConns:    m.config.MinIdleConns,
		ConnMaxLifetime: m.config.MaxConnAge,
		PoolTimeout:     m.config.PoolTimeout,
		ConnMaxIdleTime: m.config.IdleTimeout,
		ReadTimeout:     m.config.ReadTimeout,
		WriteTimeout:    m.config.WriteTimeout,
		DialTimeout:     m.config.DialTimeout,
	})
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Enabled reports whether the shared cache tier is active
func (m *Manager) Enabled() bool {
	return m != nil && m.config.Enabled && m.client != nil
}

// Close closes the Redis connection
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Ping tests the Redis connection
// Returns nil if cache is disabled (not an error condition)
func (m *Manager) Ping(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// checkClient validates that cache is enabled and client is initialized
func (m *Manager) checkClient() error {
	if !m.config.Enabled {
		return ErrCacheDisabled
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// Get retrieves a raw value from cache
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.checkClient(); err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		m.metrics.read(time.Since(start), false, nil)
		return nil, ErrKeyNotFound
	}
	m.metrics.read(time.Since(start), true, err)
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return data, nil
}

// SetWithTTL stores a raw value in cache with custom TTL
func (m *Manager) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	start := time.Now()
	err := m.client.Set(ctx, key, value, ttl).Err()
	m.metrics.write(time.Since(start), err)
	if err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// InvalidatePattern removes keys matching a pattern using SCAN instead of KEYS
// SCAN is non-blocking and production-safe, unlike KEYS which blocks the Redis server
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	if err := m.checkClient(); err != nil {
		return 0, err
	}

	var cursor uint64
	deleted := 0
	for {
		batch, next, err := m.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys with pattern %s: %w", pattern, err)
		}

		// Delete keys in batches to avoid large atomic operations
		if len(batch) > 0 {
			if err := m.client.Del(ctx, batch...).Err(); err != nil {
				return deleted, fmt.Errorf("failed to delete batch: %w", err)
			}
			deleted += len(batch)
			m.metrics.invalidatedKeys.Add(uint64(len(batch)))
		}

		// cursor == 0 means we've iterated through all keys
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// SetValue encodes value with msgpack (compressing when large) and stores it
func (m *Manager) SetValue(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	data, saved, err := EncodeValue(value, m.config.Compression)
	if err != nil {
		return err
	}
	if saved > 0 {
		m.metrics.bytesSaved.Add(uint64(saved))
	}

	if ttl <= 0 {
		ttl = m.config.DefaultTTL
	}
	return m.SetWithTTL(ctx, key, data, ttl)
}

// GetValue retrieves and decodes a value stored by SetValue
func (m *Manager) GetValue(ctx context.Context, key string, target interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return DecodeValue(data, target)
}

// EncodeValue serializes value with msgpack and gzips it above the threshold.
// It returns the encoded bytes and the number of bytes saved by compression.
func EncodeValue(value interface{}, cfg CompressionConfig) ([]byte, int, error) {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}

	if cfg.MaxValueSize > 0 && len(raw) > cfg.MaxValueSize {
		return nil, 0, fmt.Errorf("%w: %d bytes exceeds maximum %d bytes", ErrValueTooLarge, len(raw), cfg.MaxValueSize)
	}

	if cfg.Enabled && len(raw) > cfg.Threshold {
		compressed, err := compressData(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to compress value: %w", err)
		}
		// Use compressed version only if it's smaller
		if len(compressed) < len(raw) {
			return append([]byte{encodingGzip}, compressed...), len(raw) - len(compressed), nil
		}
	}

	return append([]byte{encodingPlain}, raw...), 0, nil
}

// DecodeValue reverses EncodeValue into target
func DecodeValue(data []byte, target interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrSerializationFailed)
	}

	payload := data[1:]
	switch data[0] {
	case encodingPlain:
	case encodingGzip:
		decompressed, err := decompressData(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
		}
		payload = decompressed
	default:
		return fmt.Errorf("%w: unknown encoding marker %#x", ErrSerializationFailed, data[0])
	}

	// Loose decoding keeps integers as int64/uint64 and floats as float64 inside maps
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return nil
}

// compressData compresses data using gzip
func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressData decompresses gzip data
func decompressData(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Stats returns shared tier traffic counters; zero when metrics are disabled
func (m *Manager) Stats() TierStats {
	if m == nil || !m.config.EnableMetrics {
		return TierStats{}
	}
	return m.metrics.snapshot()
}
