package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/redis/go-redis/v9"
)

type redisRecordStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisRecordStore keeps every record for ttl; ttl <= 0 keeps them forever.
func NewRedisRecordStore(rdb redis.Cmdable, ttl time.Duration) *redisRecordStore {
	return &redisRecordStore{rdb: rdb, ttl: ttl}
}

func (s *redisRecordStore) Save(ctx context.Context, rec domain.UploadRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("save record: empty id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if s.ttl > 0 && rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.CreatedAt.Add(s.ttl)
	}

	files, err := json.Marshal(rec.Files)
	if err != nil {
		return fmt.Errorf("save record %s: marshal files: %w", rec.ID, err)
	}

	hk := recordKey(rec.ID)
	fields := map[string]any{
		"files":      files,
		"succeeded":  rec.Succeeded,
		"failed":     rec.Failed,
		"created_at": rec.CreatedAt.UnixNano(),
	}
	if !rec.ExpiresAt.IsZero() {
		fields["expires_at"] = rec.ExpiresAt.UnixNano()
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, hk, fields)
	if !rec.ExpiresAt.IsZero() {
		pipe.ExpireAt(ctx, hk, rec.ExpiresAt)
	}
	pipe.ZAdd(ctx, recordsByCreatedKey(), redis.Z{
		Score:  float64(rec.CreatedAt.Unix()),
		Member: rec.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *redisRecordStore) Get(ctx context.Context, id string) (domain.UploadRecord, error) {
	res, err := s.rdb.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return domain.UploadRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	if len(res) == 0 {
		return domain.UploadRecord{}, domain.ErrRecordNotFound
	}

	rec := domain.UploadRecord{
		ID:        id,
		Succeeded: int(parseInt(res["succeeded"])),
		Failed:    int(parseInt(res["failed"])),
		CreatedAt: parseTime(res["created_at"]),
		ExpiresAt: parseTime(res["expires_at"]),
	}

	if v := res["files"]; v != "" {
		if err := json.Unmarshal([]byte(v), &rec.Files); err != nil {
			return domain.UploadRecord{}, fmt.Errorf("get record %s: decode files: %w", id, err)
		}
	}

	return rec, nil
}

// Prune drops index entries for records created before now minus the ttl. The
// record hashes themselves expire on their own.
func (s *redisRecordStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	n, err := s.rdb.ZRemRangeByScore(ctx, recordsByCreatedKey(),
		"-inf", strconv.FormatInt(now.Add(-s.ttl).Unix(), 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return n, nil
}

func parseInt(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func recordKey(id string) string {
	return "upload:" + id
}

func recordsByCreatedKey() string {
	return "uploads:by_created"
}
