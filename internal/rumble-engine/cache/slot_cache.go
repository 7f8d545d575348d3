package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/dto"
	"github.com/BLE77/lobsta-fights-sub000/internal/rumble-engine/orchestrator"
)

const keySlots = "rumble:slots"

func keySlot(index int) string { return "rumble:slot:" + strconv.Itoa(index) }

// SlotCache guarda a última foto dos slots para o spectator-service.
// Client: cliente Redis
// TTL: expira a foto se o motor parar de atualizar
type SlotCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSlotCache(c *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{Client: c, TTL: ttl}
}

// SetSnapshot grava a foto completa e, em pipeline, uma chave por slot.
func (c *SlotCache) SetSnapshot(ctx context.Context, snapshot any, slots map[int]any) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	pipe := c.Client.TxPipeline()
	pipe.Set(ctx, keySlots, b, c.TTL)
	for i, s := range slots {
		sb, err := json.Marshal(s)
		if err != nil {
			return err
		}
		pipe.Set(ctx, keySlot(i), sb, c.TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// GetSnapshot devolve false quando não há foto (motor parado ou TTL vencido).
func (c *SlotCache) GetSnapshot(ctx context.Context, dst any) (bool, error) {
	return c.get(ctx, keySlots, dst)
}

func (c *SlotCache) GetSlot(ctx context.Context, index int, dst any) (bool, error) {
	return c.get(ctx, keySlot(index), dst)
}

func (c *SlotCache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

// StoreSnapshot grava a foto do orquestrador no formato da API pública.
func (c *SlotCache) StoreSnapshot(ctx context.Context, snap orchestrator.Snapshot) error {
	slots := make(map[int]any, len(snap.Slots))
	for i, s := range snap.Slots {
		slots[i] = dto.NewSlotResponse(s)
	}
	return c.SetSnapshot(ctx, dto.NewSlotsResponse(snap), slots)
}
