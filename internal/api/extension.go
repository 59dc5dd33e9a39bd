package api

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bridge"
)

func (s *Server) extensionStatus(c fiber.Ctx) error {
	return s.ok(c, fiber.StatusOK, s.prober.Last())
}

// extensionEvents is the companion's inbound webhook. The body is one
// bridge envelope; the reply is an envelope too, so the companion sees
// the same protocol in both directions.
func (s *Server) extensionEvents(c fiber.Ctx) error {
	var env bridge.Envelope
	if err := c.Bind().JSON(&env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(bridge.Envelope{Type: bridge.MsgError})
	}

	ctx, cancel := requestContext()
	defer cancel()
	if err := s.listener.Handle(ctx, env); err != nil {
		s.logger.Warn("companion event rejected",
			zap.String("type", string(env.Type)), zap.Error(err))
		reply, _ := bridge.NewEnvelope(bridge.MsgError, bridge.ErrorPayload{Message: err.Error()})
		return c.Status(fiber.StatusOK).JSON(reply)
	}

	reply, _ := bridge.NewEnvelope(bridge.MsgAck, bridge.AckPayload{OK: true})
	return c.Status(fiber.StatusOK).JSON(reply)
}

// extensionSync forces a full push of all collections, regardless of
// what changed recently.
func (s *Server) extensionSync(c fiber.Ctx) error {
	if !s.prober.Last().Connected {
		return s.fail(c, fiber.StatusServiceUnavailable, "EXTENSION_NOT_CONNECTED", "companion is not connected", nil)
	}
	ctx, cancel := requestContext()
	defer cancel()
	s.syncer.PushAll(ctx)
	return s.ok(c, fiber.StatusOK, fiber.Map{"pushed": true})
}
