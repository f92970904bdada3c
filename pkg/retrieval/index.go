// Package retrieval provides the similarity index over past form schemas,
// backed by the RediSearch vector type.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrDimensionMismatch indicates a vector whose length disagrees with the
	// configured index size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrRecordNotFound indicates no entry exists for the conversation.
	ErrRecordNotFound = errors.New("retrieval record not found")
)

// Record is one similarity-index entry. At most one exists per conversation.
type Record struct {
	ConversationID string
	Score          float64
	Snapshot       map[string]any
}

// Index is the similarity-search capability the planner consumes.
type Index interface {
	Upsert(ctx context.Context, conversationID string, vector []float32, snapshot map[string]any) error
	QuerySimilar(ctx context.Context, vector []float32, limit int, threshold float64) ([]Record, error)
	GetByConversation(ctx context.Context, conversationID string) (*Record, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// RedisIndex implements Index on RediSearch. The index is provisioned lazily
// on first use.
type RedisIndex struct {
	client     *redis.Client
	logger     *slog.Logger
	indexName  string
	keyPrefix  string
	dimensions int

	mu          sync.Mutex
	provisioned bool
}

// NewRedisIndex connects to Redis and returns the index wrapper.
func NewRedisIndex(ctx context.Context, logger *slog.Logger, addr, password string, dimensions int) (*RedisIndex, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIndex{
		client:     client,
		logger:     logger,
		indexName:  "formagent:snapshots",
		keyPrefix:  "formagent:snapshot:",
		dimensions: dimensions,
	}, nil
}

// Close releases the Redis connection.
func (i *RedisIndex) Close() error {
	return i.client.Close()
}

func (i *RedisIndex) dimensionKey() string {
	return i.indexName + ":dim"
}

func (i *RedisIndex) recordKey(conversationID string) string {
	return i.keyPrefix + conversationID
}

// ensureIndex provisions the vector index on first use. Callers run on
// concurrent request handlers, so the flag and the provisioning sequence sit
// behind a mutex; exactly one caller provisions, the rest wait. A stored
// dimension marker is compared against the configured size; on mismatch the
// index and its documents are dropped and recreated empty. That recovery path
// is lossy, which is why it logs at warning level.
func (i *RedisIndex) ensureIndex(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.provisioned {
		return nil
	}

	stored, err := i.client.Get(ctx, i.dimensionKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read index dimension marker: %w", err)
	}

	if stored != "" && stored != strconv.Itoa(i.dimensions) {
		i.logger.WarnContext(ctx, "Stored index dimension disagrees with configuration, dropping index and all records",
			"stored", stored, "configured", i.dimensions)

		err = i.client.FTDropIndexWithArgs(ctx, i.indexName, &redis.FTDropIndexOptions{DeleteDocs: true}).Err()
		if err != nil && !isUnknownIndexErr(err) {
			return fmt.Errorf("failed to drop mismatched index: %w", err)
		}
	}

	err = i.client.FTCreate(ctx, i.indexName,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{i.keyPrefix},
		},
		&redis.FieldSchema{
			FieldName: "conversation_id",
			FieldType: redis.SearchFieldTypeTag,
		},
		&redis.FieldSchema{
			FieldName: "vector",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				FlatOptions: &redis.FTFlatOptions{
					Type:           "FLOAT32",
					Dim:            i.dimensions,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Err()
	if err != nil && !isIndexExistsErr(err) {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = i.client.Set(ctx, i.dimensionKey(), strconv.Itoa(i.dimensions), 0).Err()
	if err != nil {
		return fmt.Errorf("failed to store index dimension marker: %w", err)
	}

	i.provisioned = true

	return nil
}

// Upsert replaces any existing entry for the conversation.
func (i *RedisIndex) Upsert(ctx context.Context, conversationID string, vector []float32, snapshot map[string]any) error {
	if len(vector) != i.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), i.dimensions)
	}

	err := i.ensureIndex(ctx)
	if err != nil {
		return err
	}

	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot payload: %w", err)
	}

	err = i.client.HSet(ctx, i.recordKey(conversationID), map[string]any{
		"conversation_id": conversationID,
		"vector":          encodeVector(vector),
		"snapshot":        snapshotJSON,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to upsert retrieval record: %w", err)
	}

	return nil
}

// QuerySimilar returns up to limit records with similarity >= threshold,
// ordered by descending similarity. Similarity is 1 minus cosine distance,
// normalized to [0,1]. An empty index yields an empty slice, not an error.
func (i *RedisIndex) QuerySimilar(ctx context.Context, vector []float32, limit int, threshold float64) ([]Record, error) {
	if len(vector) != i.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), i.dimensions)
	}

	err := i.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("*=>[KNN %d @vector $vec AS distance]", limit)

	result, err := i.client.FTSearchWithArgs(ctx, i.indexName, query, &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: "conversation_id"},
			{FieldName: "snapshot"},
			{FieldName: "distance"},
		},
		SortBy: []redis.FTSearchSortBy{
			{FieldName: "distance", Asc: true},
		},
		DialectVersion: 2,
		Params: map[string]any{
			"vec": encodeVector(vector),
		},
		LimitOffset: 0,
		Limit:       limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query similar snapshots: %w", err)
	}

	records := make([]Record, 0, len(result.Docs))

	for _, doc := range result.Docs {
		record, err := recordFromFields(doc.Fields)
		if err != nil {
			i.logger.WarnContext(ctx, "Skipping unreadable retrieval record", "key", doc.ID, "error", err)

			continue
		}

		if record.Score < threshold {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}

// GetByConversation is a point lookup by conversation id.
func (i *RedisIndex) GetByConversation(ctx context.Context, conversationID string) (*Record, error) {
	fields, err := i.client.HGetAll(ctx, i.recordKey(conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read retrieval record: %w", err)
	}

	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}

	record := Record{ConversationID: conversationID}

	if snapshotJSON, ok := fields["snapshot"]; ok {
		err = json.Unmarshal([]byte(snapshotJSON), &record.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot payload: %w", err)
		}
	}

	return &record, nil
}

// DeleteByConversation removes the conversation's entry. Deleting a missing
// entry is not an error.
func (i *RedisIndex) DeleteByConversation(ctx context.Context, conversationID string) error {
	err := i.client.Del(ctx, i.recordKey(conversationID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete retrieval record: %w", err)
	}

	return nil
}

func recordFromFields(fields map[string]string) (Record, error) {
	record := Record{
		ConversationID: fields["conversation_id"],
	}

	distance, err := strconv.ParseFloat(fields["distance"], 64)
	if err != nil {
		return Record{}, fmt.Errorf("unreadable distance %q: %w", fields["distance"], err)
	}

	record.Score = 1 - distance
	if record.Score < 0 {
		record.Score = 0
	}

	if snapshotJSON := fields["snapshot"]; snapshotJSON != "" {
		err = json.Unmarshal([]byte(snapshotJSON), &record.Snapshot)
		if err != nil {
			return Record{}, fmt.Errorf("unreadable snapshot payload: %w", err)
		}
	}

	return record, nil
}

func isIndexExistsErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "index already exists")
}

func isUnknownIndexErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unknown index")
}

var _ Index = (*RedisIndex)(nil)
