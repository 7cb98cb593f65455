package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"parley/internal/verification"
	"parley/pkg/domain"
	"parley/pkg/platform/sentinel"
)

const (
	requestKeyPrefix = "verifreq:"
	indexKey         = "verifreq:index"
)

// resolveScript is the atomic check-then-write behind ResolveIfPending. Two
// moderator sessions racing on one request see exactly one winner; the loser
// gets invalid_state.
//
// The script round-trips the value through cjson, which holds every number
// as a Lua double. The wire format therefore carries no JSON numbers: see
// requestWire.RequestedAt.
var resolveScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return redis.error_reply('not_found')
end
local req = cjson.decode(raw)
if req.status ~= 'pending' then
  return redis.error_reply('invalid_state')
end
local before = raw
req.status = ARGV[1]
req.resolvedAt = ARGV[2]
redis.call('SET', KEYS[1], cjson.encode(req))
return before
`)

// enqueueScript stores the request and its time index entry atomically, so a
// stored request can never be invisible to List.
var enqueueScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.error_reply('conflict')
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
return 'OK'
`)

// RedisQueue is the shared request queue for distributed deployments where
// multiple moderator sessions work the same backlog.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue constructs a Redis-backed request queue.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// requestWire is all strings. RequestedAt is decimal unix nanos: resolveScript
// re-encodes the value with cjson, whose doubles cannot represent an int64
// nano timestamp exactly.
type requestWire struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Platform    string  `json:"platform"`
	ProfileURL  string  `json:"profileUrl"`
	Code        string  `json:"code"`
	Status      string  `json:"status"`
	RequestedAt string  `json:"requestedAt"`
	ResolvedAt  *string `json:"resolvedAt,omitempty"`
}

func (q *RedisQueue) Enqueue(ctx context.Context, request *verification.Request) error {
	raw, err := json.Marshal(toWire(request))
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	id := request.ID.String()

	err = enqueueScript.Run(ctx, q.client,
		[]string{requestKeyPrefix + id, indexKey},
		raw, float64(request.RequestedAt.UnixNano()), id).Err()
	if err != nil {
		if strings.Contains(err.Error(), "conflict") {
			return fmt.Errorf("request %s exists: %w", request.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("store request: %w", err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id domain.RequestID) (*verification.Request, error) {
	raw, err := q.client.Get(ctx, requestKeyPrefix+id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	return fromWireBytes(raw)
}

// List returns entries ordered most recent first, driven by the time index.
func (q *RedisQueue) List(ctx context.Context) ([]*verification.Request, error) {
	ids, err := q.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read request index: %w", err)
	}
	out := make([]*verification.Request, 0, len(ids))
	for _, id := range ids {
		raw, err := q.client.Get(ctx, requestKeyPrefix+id).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // index lag after delete; harmless
		}
		if err != nil {
			return nil, fmt.Errorf("fetch request %s: %w", id, err)
		}
		request, err := fromWireBytes(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	return out, nil
}

func (q *RedisQueue) ResolveIfPending(ctx context.Context, id domain.RequestID, next verification.RequestStatus) (*verification.Request, error) {
	resolvedAt := time.Now().UTC().Format(time.RFC3339Nano)
	raw, err := resolveScript.Run(ctx, q.client,
		[]string{requestKeyPrefix + id.String()},
		string(next), resolvedAt).Text()
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "not_found"):
			return nil, fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
		case strings.Contains(err.Error(), "invalid_state"):
			return nil, fmt.Errorf("request %s already resolved: %w", id, sentinel.ErrInvalidState)
		default:
			return nil, fmt.Errorf("resolve request: %w", err)
		}
	}
	return fromWireBytes([]byte(raw))
}

func (q *RedisQueue) Reopen(ctx context.Context, id domain.RequestID) error {
	request, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	request.Status = verification.RequestPending
	request.ResolvedAt = nil
	raw, err := json.Marshal(toWire(request))
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := q.client.Set(ctx, requestKeyPrefix+id.String(), raw, 0).Err(); err != nil {
		return fmt.Errorf("store request: %w", err)
	}
	return nil
}

func (q *RedisQueue) Delete(ctx context.Context, id domain.RequestID) error {
	deleted, err := q.client.Del(ctx, requestKeyPrefix+id.String()).Result()
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("request %s: %w", id, sentinel.ErrNotFound)
	}
	if err := q.client.ZRem(ctx, indexKey, id.String()).Err(); err != nil {
		return fmt.Errorf("unindex request: %w", err)
	}
	return nil
}

func toWire(request *verification.Request) requestWire {
	w := requestWire{
		ID:          request.ID.String(),
		UserID:      request.UserID.String(),
		Platform:    request.Platform.String(),
		ProfileURL:  request.ProfileURL,
		Code:        request.Code,
		Status:      string(request.Status),
		RequestedAt: strconv.FormatInt(request.RequestedAt.UnixNano(), 10),
	}
	if request.ResolvedAt != nil {
		s := request.ResolvedAt.UTC().Format(time.RFC3339Nano)
		w.ResolvedAt = &s
	}
	return w
}

func fromWireBytes(raw []byte) (*verification.Request, error) {
	var w requestWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	id, err := domain.ParseRequestID(w.ID)
	if err != nil {
		return nil, fmt.Errorf("stored request id: %w", err)
	}
	userID, err := domain.ParseUserID(w.UserID)
	if err != nil {
		return nil, fmt.Errorf("stored user id: %w", err)
	}
	nanos, err := strconv.ParseInt(w.RequestedAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored request time: %w", err)
	}
	request := &verification.Request{
		ID:          id,
		UserID:      userID,
		Platform:    domain.SocialPlatform(w.Platform),
		ProfileURL:  w.ProfileURL,
		Code:        w.Code,
		Status:      verification.RequestStatus(w.Status),
		RequestedAt: time.Unix(0, nanos),
	}
	if w.ResolvedAt != nil {
		t, err := time.Parse(time.RFC3339Nano, *w.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("stored resolved time: %w", err)
		}
		request.ResolvedAt = &t
	}
	return request, nil
}
