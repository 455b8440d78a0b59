package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annel0/voxelcore/internal/vec"
	"github.com/go-redis/redis/v8"
)

// RedisAnchorRepo хранит якоря в одном хеше Redis: <prefix>anchors -> id -> JSON позиции
type RedisAnchorRepo struct {
	client *redis.Client
	key    string
}

// NewRedisAnchorRepo подключается к Redis по адресу host:port
func NewRedisAnchorRepo(addr, prefix string) (*RedisAnchorRepo, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if prefix == "" {
		prefix = "voxel:"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisAnchorRepo{client: client, key: prefix + "anchors"}, nil
}

func (r *RedisAnchorRepo) Save(ctx context.Context, id string, pos vec.Vec3) error {
	if err := validateAnchorID(id); err != nil {
		return err
	}
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, id, data).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения якоря %s: %w", id, err)
	}
	return nil
}

func (r *RedisAnchorRepo) Load(ctx context.Context, id string) (vec.Vec3, bool, error) {
	if err := validateAnchorID(id); err != nil {
		return vec.Vec3{}, false, err
	}
	data, err := r.client.HGet(ctx, r.key, id).Bytes()
	if err == redis.Nil {
		return vec.Vec3{}, false, nil
	}
	if err != nil {
		return vec.Vec3{}, false, fmt.Errorf("ошибка загрузки якоря %s: %w", id, err)
	}

	var pos vec.Vec3
	if err := json.Unmarshal(data, &pos); err != nil {
		return vec.Vec3{}, false, fmt.Errorf("повреждённая запись якоря %s: %w", id, err)
	}
	return pos, true, nil
}

func (r *RedisAnchorRepo) Delete(ctx context.Context, id string) error {
	if err := validateAnchorID(id); err != nil {
		return err
	}
	n, err := r.client.HDel(ctx, r.key, id).Result()
	if err != nil {
		return fmt.Errorf("ошибка удаления якоря %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAnchorNotFound, id)
	}
	return nil
}

// BatchSave пишет все якоря одним pipeline
func (r *RedisAnchorRepo) BatchSave(ctx context.Context, anchors map[string]vec.Vec3) error {
	if len(anchors) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for id, pos := range anchors {
		if err := validateAnchorID(id); err != nil {
			return err
		}
		data, err := json.Marshal(pos)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.key, id, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func (r *RedisAnchorRepo) All(ctx context.Context) (map[string]vec.Vec3, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения якорей: %w", err)
	}
	out := make(map[string]vec.Vec3, len(raw))
	for id, data := range raw {
		var pos vec.Vec3
		if err := json.Unmarshal([]byte(data), &pos); err != nil {
			return nil, fmt.Errorf("повреждённая запись якоря %s: %w", id, err)
		}
		out[id] = pos
	}
	return out, nil
}

func (r *RedisAnchorRepo) Close() error {
	return r.client.Close()
}
