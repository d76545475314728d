// Package db keeps a Redis journal of recorded marks and the per-cell write
// locks used while grading and registering.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/CMPEQ0/lab-mark-api/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix    = "labmark:"
	lockPrefix   = keyPrefix + "lock:"   // String: lock:{key} -> owner token
	gradesPrefix = keyPrefix + "grades:" // List: grades:{spreadsheet}:{group} -> JSON grade records
	groupsPrefix = keyPrefix + "groups:" // Set: groups:{spreadsheet} -> groups with records

	lockTTL    = 30 * time.Second
	maxHistory = 10000
)

// Deletes the lock only while it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisService handles operations with the Redis database
type RedisService struct {
	Client *redis.Client
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{Client: client}
}

func getLockKey(key string) string {
	return lockPrefix + key
}

func getGradesKey(spreadsheet, group string) string {
	return gradesPrefix + spreadsheet + ":" + group
}

func getGroupsKey(spreadsheet string) string {
	return groupsPrefix + spreadsheet
}

// Ping checks the connection.
func (s *RedisService) Ping(ctx context.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Lock takes an exclusive lock on key for at most lockTTL. It fails with
// Conflict while somebody else holds it.
func (s *RedisService) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := getLockKey(key)

	ok, err := s.Client.SetNX(ctx, lockKey, token, lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to take lock %s: %w", key, err)
	}
	if !ok {
		return nil, apperr.Conflict("another request is updating %s, try again later", key)
	}

	return func() {
		if err := unlockScript.Run(context.Background(), s.Client, []string{lockKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}

// Journal scopes the service to one course spreadsheet.
func (s *RedisService) Journal(spreadsheet string) *Journal {
	return &Journal{service: s, spreadsheet: spreadsheet}
}

// Journal records marks written to one spreadsheet.
type Journal struct {
	service     *RedisService
	spreadsheet string
}

func (j *Journal) Lock(ctx context.Context, key string) (func(), error) {
	return j.service.Lock(ctx, key)
}

// Record appends rec to its group's history.
func (j *Journal) Record(ctx context.Context, rec models.GradeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode grade record %s: %w", rec.ID, err)
	}
	gradesKey := getGradesKey(j.spreadsheet, rec.Group)

	pipe := j.service.Client.Pipeline()
	pipe.SAdd(ctx, getGroupsKey(j.spreadsheet), rec.Group)
	pipe.RPush(ctx, gradesKey, data)
	pipe.LTrim(ctx, gradesKey, -maxHistory, -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record grade %s: %w", rec.ID, err)
	}
	return nil
}

// History returns the recorded marks of a group, oldest first.
func (j *Journal) History(ctx context.Context, group string) ([]models.GradeRecord, error) {
	items, err := j.service.Client.LRange(ctx, getGradesKey(j.spreadsheet, group), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read grade history for %s: %w", group, err)
	}

	records := make([]models.GradeRecord, 0, len(items))
	for _, item := range items {
		var rec models.GradeRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			log.Warn().Err(err).Str("group", group).Msg("Skipping unreadable grade record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Groups lists the groups that have at least one record.
func (j *Journal) Groups(ctx context.Context) ([]string, error) {
	groups, err := j.service.Client.SMembers(ctx, getGroupsKey(j.spreadsheet)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to list journaled groups: %w", err)
	}
	return groups, nil
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Int("db", db).Msg("Connected to Redis")
	return rdb, nil
}
