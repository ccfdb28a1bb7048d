package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"membership/internal/membership/models"
	id "membership/pkg/domain"
	"membership/pkg/platform/sentinel"
)

// Keys share the {members} hash tag so the script's keys land in one slot.
const (
	recordKeyPrefix = "{members}:record:"
	recordTypeIndex = "{members}:idx:recordType:" + models.RecordTypeMember
)

// putIfAbsent writes the record and indexes it only when the key is unused.
// KEYS[1] record key, KEYS[2] index; ARGV[1] record JSON, ARGV[2] score,
// ARGV[3] member id.
var putIfAbsent = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 1
`)

// Table stores records as JSON strings and keeps a sorted set of member ids
// scored by counter for the latest id lookup.
type Table struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Table {
	return &Table{client: client}
}

func (t *Table) LatestMemberID(ctx context.Context) (id.MemberID, error) {
	ids, err := t.client.ZRevRange(ctx, recordTypeIndex, 0, 0).Result()
	if err != nil {
		return "", fmt.Errorf("read member index: %w", err)
	}
	if len(ids) == 0 {
		return "", sentinel.ErrNotFound
	}
	return id.ParseMemberID(ids[0])
}

func (t *Table) PutIfAbsent(ctx context.Context, record models.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode member %s: %w", record.PK, err)
	}
	memberID := record.MemberID()
	created, err := putIfAbsent.Run(ctx, t.client,
		[]string{recordKeyPrefix + record.PK, recordTypeIndex},
		payload, memberID.Counter(), record.PK,
	).Int()
	if err != nil {
		return fmt.Errorf("put member %s: %w", record.PK, err)
	}
	if created == 0 {
		return fmt.Errorf("member %s: %w", record.PK, sentinel.ErrConflict)
	}
	return nil
}

func (t *Table) Get(ctx context.Context, memberID id.MemberID) (models.Record, error) {
	raw, err := t.client.Get(ctx, recordKeyPrefix+memberID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Record{}, fmt.Errorf("member %s: %w", memberID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("get member %s: %w", memberID, err)
	}
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return models.Record{}, fmt.Errorf("decode member %s: %w", memberID, err)
	}
	return record, nil
}
