package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "busboxd:blob:"
	redisLogLength = 100
)

// Redis keeps each blob in a string key. The commit messages of the most
// recent writes are kept in a capped list next to it.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Fetch(ctx context.Context, name string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, redisKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &RemoteError{Op: "fetch", Name: name, Err: err}
	}
	return data, nil
}

func (r *Redis) Commit(ctx context.Context, name string, data []byte, message string) error {
	ok, err := r.rdb.SetXX(ctx, redisKey(name), data, 0).Result()
	if err != nil {
		return &RemoteError{Op: "commit", Name: name, Err: err}
	}
	if !ok {
		return ErrNotFound
	}
	return r.appendLog(ctx, "commit", name, message)
}

func (r *Redis) Create(ctx context.Context, name string, data []byte, message string) error {
	ok, err := r.rdb.SetNX(ctx, redisKey(name), data, 0).Result()
	if err != nil {
		return &RemoteError{Op: "create", Name: name, Err: err}
	}
	if !ok {
		return ErrExists
	}
	return r.appendLog(ctx, "create", name, message)
}

// Log returns the recorded commit messages for name, newest first.
func (r *Redis) Log(ctx context.Context, name string) ([]string, error) {
	msgs, err := r.rdb.LRange(ctx, redisLogKey(name), 0, -1).Result()
	if err != nil {
		return nil, &RemoteError{Op: "log", Name: name, Err: err}
	}
	return msgs, nil
}

func (r *Redis) appendLog(ctx context.Context, op, name, message string) error {
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, redisLogKey(name), message)
		p.LTrim(ctx, redisLogKey(name), 0, redisLogLength-1)
		return nil
	})
	if err != nil {
		return &RemoteError{Op: op, Name: name, Err: err}
	}
	return nil
}

func redisKey(name string) string {
	return redisKeyPrefix + name
}

func redisLogKey(name string) string {
	return redisKeyPrefix + name + ":log"
}
