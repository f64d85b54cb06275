package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ghost-swarm/ghost_swarm/internal/settings"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "ghost-swarm-idem:"
	pendingMarker        = "__pending__"
	storeTimeout         = 2 * time.Second
)

// replay is the part of a response a repeated request gets back.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// Idempotency makes a route run at most once per caller and Idempotency-Key. The
// first request reserves the key atomically; a concurrent duplicate gets 409 and a
// later one gets the stored response. Failed attempts release the key so the client
// can retry.
func Idempotency(store settings.Store, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		uid, _ := c.Locals("user_id").(string)
		storeKey := idempotencyPrefix + uid + ":" + key
		log := logger.With(slog.String("idempotency_key", key), slog.String("user_id", uid))

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		reserved, err := store.SetIfAbsent(ctx, storeKey, pendingMarker, ttl)
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store unavailable")
		}
		if !reserved {
			return replayStored(ctx, c, store, storeKey, log)
		}

		cancel()
		err = c.Next()

		ctx, cancel = context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		release := func() {
			if err := store.Delete(ctx, storeKey); err != nil {
				log.Warn("idempotency release failed", slog.Any("error", err))
			}
		}

		if err != nil {
			release()
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			release()
			return nil
		}

		payload, err := json.Marshal(replay{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        string(c.Response().Body()),
		})
		if err == nil {
			err = store.Set(ctx, storeKey, string(payload), ttl)
		}
		if err != nil {
			// the handler already ran; keep the reservation so it cannot run twice
			log.Error("idempotent response not stored", slog.Any("error", err))
		}
		return nil
	}
}

func replayStored(ctx context.Context, c *fiber.Ctx, store settings.Store, storeKey string, log *slog.Logger) error {
	raw, ok, err := store.Get(ctx, storeKey)
	if err != nil {
		log.Error("idempotency lookup failed", slog.Any("error", err))
		return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store unavailable")
	}
	if !ok || raw == pendingMarker {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}
	var stored replay
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		log.Warn("stored idempotent response unreadable", slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	c.Set("Idempotent-Replay", "true")
	return c.Status(stored.Status).SendString(stored.Body)
}
