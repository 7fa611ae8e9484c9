package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"airq-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const recentListKey = "analyses:recent"

type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long each analysis stays readable.
	TTL time.Duration
	// MaxRecent caps the recent-analyses list.
	MaxRecent int64
}

type RedisClient struct {
	client    *redis.Client
	ttl       time.Duration
	maxRecent int64
}

func NewRedisClient(ctx context.Context, opts Options) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach Redis at %s: %w", opts.Addr, err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	maxRecent := opts.MaxRecent
	if maxRecent <= 0 {
		maxRecent = 1000
	}

	return &RedisClient{
		client:    client,
		ttl:       ttl,
		maxRecent: maxRecent,
	}, nil
}

func analysisKey(rec models.AnalysisRecord) string {
	return fmt.Sprintf("analysis:%s:%d", rec.ID, rec.Timestamp.UnixNano())
}

func (r *RedisClient) StoreAnalysis(ctx context.Context, rec models.AnalysisRecord) error {
	key := analysisKey(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, r.ttl)
		pipe.LPush(ctx, recentListKey, key)
		pipe.LTrim(ctx, recentListKey, 0, r.maxRecent-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store analysis in Redis: %w", err)
	}
	return nil
}

// RecentAnalyses returns up to count records, newest first. Entries whose
// payload has expired are skipped.
func (r *RedisClient) RecentAnalyses(ctx context.Context, count int64) ([]models.AnalysisRecord, error) {
	if count <= 0 {
		return []models.AnalysisRecord{}, nil
	}

	keys, err := r.client.LRange(ctx, recentListKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent analysis keys: %w", err)
	}

	records := make([]models.AnalysisRecord, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var rec models.AnalysisRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
