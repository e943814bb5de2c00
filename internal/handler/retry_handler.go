package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/FriendsOfREDAXO/mail-tools/internal/maillog"
	"github.com/FriendsOfREDAXO/mail-tools/internal/queue"
	"github.com/FriendsOfREDAXO/mail-tools/internal/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// StatsSource provides failure statistics for the stats endpoint.
type StatsSource interface {
	Statistics(ctx context.Context, now time.Time) (maillog.Statistics, error)
}

// RetryHandler exposes the operational surface: manual retry requests,
// failure statistics, and the bounce registry. Manual retries are not
// executed inline; they are published to the retry queue and funnel through
// the same serialized executor as the scheduled batch.
type RetryHandler struct {
	publisher queue.Publisher
	stats     StatsSource
	bounces   repository.BounceRegistry
}

func NewRetryHandler(publisher queue.Publisher, stats StatsSource, bounces repository.BounceRegistry) (*RetryHandler, error) {
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats source is required")
	}
	if bounces == nil {
		return nil, fmt.Errorf("bounce registry is required")
	}
	return &RetryHandler{
		publisher: publisher,
		stats:     stats,
		bounces:   bounces,
	}, nil
}

func RegisterRetryRoutes(router fiber.Router, publisher queue.Publisher, stats StatsSource, bounces repository.BounceRegistry) error {
	h, err := NewRetryHandler(publisher, stats, bounces)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/retries/:fingerprint", h.EnqueueRetry)
	v1.Get("/stats", h.GetStats)
	v1.Get("/bounces", h.ListBounces)
	v1.Get("/bounces/:email", h.GetBounce)

	return nil
}

type enqueueRetryResponse struct {
	Fingerprint   string `json:"fingerprint"`
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
}

func (h *RetryHandler) EnqueueRetry(c *fiber.Ctx) error {
	fingerprint := strings.ToLower(strings.TrimSpace(c.Params("fingerprint")))

	msg := queue.RetryMessage{
		Fingerprint:   fingerprint,
		CorrelationID: uuid.NewString(),
		RequestedBy:   strings.TrimSpace(c.Get("X-Requested-By")),
	}
	if err := msg.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.publisher.Publish(c.Context(), queue.ManualRetryQueue, msg); err != nil {
		return fmt.Errorf("failed to enqueue manual retry: %w", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(enqueueRetryResponse{
		Fingerprint:   fingerprint,
		CorrelationID: msg.CorrelationID,
		Status:        "queued",
	})
}

func (h *RetryHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.stats.Statistics(c.Context(), time.Now())
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

type bounceResponse struct {
	Email       string    `json:"email"`
	BounceType  string    `json:"bounceType"`
	Count       int       `json:"count"`
	LastMessage string    `json:"lastMessage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type listBouncesResponse struct {
	Data  []bounceResponse `json:"data"`
	Total int64            `json:"total"`
}

func (h *RetryHandler) ListBounces(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := c.QueryInt("offset", 0)

	records, total, err := h.bounces.List(c.Context(), limit, offset)
	if err != nil {
		return fmt.Errorf("failed to list bounces: %w", err)
	}

	data := make([]bounceResponse, 0, len(records))
	for _, record := range records {
		data = append(data, bounceResponse{
			Email:       record.Email,
			BounceType:  record.BounceType.String(),
			Count:       record.Count,
			LastMessage: record.LastMessage,
			UpdatedAt:   record.UpdatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(listBouncesResponse{
		Data:  data,
		Total: total,
	})
}

// GetBounce looks up one address in the bounce registry.
func (h *RetryHandler) GetBounce(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Params("email"))

	record, err := h.bounces.GetByEmail(c.Context(), email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("no bounce record for %s", email))
		}
		return fmt.Errorf("failed to load bounce record: %w", err)
	}

	return c.Status(fiber.StatusOK).JSON(bounceResponse{
		Email:       record.Email,
		BounceType:  record.BounceType.String(),
		Count:       record.Count,
		LastMessage: record.LastMessage,
		UpdatedAt:   record.UpdatedAt,
	})
}
