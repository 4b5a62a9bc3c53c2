package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/notification"
	"github.com/sakashimaa/food-order/internal/transport/http/middleware"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type StreamRunner interface {
	Run(ctx context.Context, actor domain.Actor, sink notification.Sink) error
}

type NotificationHandler struct {
	stream StreamRunner
	// baseCtx outlives the request; it ends on shutdown.
	baseCtx context.Context
	logger  *zap.Logger
}

func NewNotificationHandler(baseCtx context.Context, stream StreamRunner, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		stream:  stream,
		baseCtx: baseCtx,
		logger:  logger,
	}
}

// Stream keeps the connection open as text/event-stream and writes one
// "data:" frame per notification for the caller.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(h.baseCtx)
		defer cancel()

		sink := &sseSink{w: w}
		if err := h.stream.Run(ctx, actor, sink); err != nil {
			mylogger.Warn(ctx, h.logger, "Notification stream failed",
				zap.String("actor", actor.String()),
				zap.Error(err),
			)
			sink.fail(err)
		}
	}))

	return nil
}

type sseSink struct {
	w *bufio.Writer
}

func (s *sseSink) Send(env domain.NotificationEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *sseSink) Heartbeat() error {
	if _, err := s.w.WriteString(": ping\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *sseSink) fail(err error) {
	kind := "Internal"
	if k := domain.Kind(err); k != nil {
		kind = kinds[k].name
	}

	data, _ := json.Marshal(fiber.Map{"error": kind, "message": "notification stream unavailable"})
	_, _ = fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", data)
	_ = s.w.Flush()
}
