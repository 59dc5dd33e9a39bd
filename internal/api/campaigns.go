package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Umareee/messenger-crm/internal/bridge"
	"github.com/Umareee/messenger-crm/internal/campaign"
	"github.com/Umareee/messenger-crm/internal/store"
)

func (s *Server) listCampaigns(c fiber.Ctx) error {
	campaigns, err := s.db.ListCampaigns(s.userID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to list campaigns", nil)
	}
	return s.ok(c, fiber.StatusOK, campaigns)
}

func (s *Server) createCampaign(c fiber.Ctx) error {
	var req CampaignRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	status := campaign.Pending
	if req.ScheduledAt > 0 {
		status = campaign.Scheduled
	}
	cmp := &store.Campaign{
		ID:           uuid.NewString(),
		UserID:       s.userID,
		Name:         req.Name,
		Message:      req.Message,
		DelaySeconds: req.DelaySeconds,
		TagIDs:       req.TagIDs,
		RecipientIDs: req.RecipientIDs,
		Status:       string(status),
		ScheduledAt:  req.ScheduledAt,
	}
	if err := s.db.CreateCampaign(cmp); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to create campaign", nil)
	}
	return s.ok(c, fiber.StatusCreated, cmp)
}

func (s *Server) getCampaign(c fiber.Ctx) error {
	cmp, err := s.db.GetCampaign(s.userID, c.Params("id"))
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load campaign", nil)
	}
	if cmp == nil {
		return s.fail(c, fiber.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
	}
	return s.ok(c, fiber.StatusOK, cmp)
}

func (s *Server) deleteCampaign(c fiber.Ctx) error {
	id := c.Params("id")
	cmp, err := s.db.GetCampaign(s.userID, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load campaign", nil)
	}
	if cmp == nil {
		return s.fail(c, fiber.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
	}
	if cmp.Status == string(campaign.InProgress) {
		return s.fail(c, fiber.StatusConflict, "CAMPAIGN_RUNNING", "cancel the campaign before deleting it", nil)
	}
	if err := s.db.DeleteCampaign(s.userID, id); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to delete campaign", nil)
	}
	return s.ok(c, fiber.StatusOK, fiber.Map{"deleted": 1})
}

func (s *Server) listCampaignErrors(c fiber.Ctx) error {
	id := c.Params("id")
	cmp, err := s.db.GetCampaign(s.userID, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load campaign", nil)
	}
	if cmp == nil {
		return s.fail(c, fiber.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
	}
	errs, err := s.db.ListCampaignErrors(id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to list campaign errors", nil)
	}
	return s.ok(c, fiber.StatusOK, errs)
}

func (s *Server) startCampaign(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	id := c.Params("id")
	if err := s.reconciler.Start(ctx, id); err != nil {
		return s.bridgeError(c, err, "failed to start campaign")
	}
	return s.campaignState(c, id)
}

func (s *Server) pauseCampaign(c fiber.Ctx) error {
	if err := s.reconciler.Pause(c.Params("id")); err != nil {
		return s.fail(c, fiber.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	}
	return s.campaignState(c, c.Params("id"))
}

func (s *Server) resumeCampaign(c fiber.Ctx) error {
	if err := s.reconciler.Resume(c.Params("id")); err != nil {
		return s.fail(c, fiber.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	}
	return s.campaignState(c, c.Params("id"))
}

func (s *Server) cancelCampaign(c fiber.Ctx) error {
	ctx, cancel := requestContext()
	defer cancel()

	id := c.Params("id")
	if err := s.reconciler.Cancel(ctx, id); err != nil {
		return s.bridgeError(c, err, "failed to cancel campaign")
	}
	return s.campaignState(c, id)
}

func (s *Server) campaignState(c fiber.Ctx, id string) error {
	cmp, err := s.db.GetCampaign(s.userID, id)
	if err != nil || cmp == nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load campaign", nil)
	}
	return s.ok(c, fiber.StatusOK, cmp)
}

// bridgeError maps bridge failure categories onto HTTP statuses the
// dashboard can present distinctly.
func (s *Server) bridgeError(c fiber.Ctx, err error, message string) error {
	var companionErr *bridge.CompanionError
	switch {
	case errors.Is(err, bridge.ErrNotInstalled):
		return s.fail(c, fiber.StatusServiceUnavailable, "EXTENSION_NOT_INSTALLED", err.Error(), nil)
	case errors.Is(err, bridge.ErrNotConnected):
		return s.fail(c, fiber.StatusServiceUnavailable, "EXTENSION_NOT_CONNECTED", err.Error(), nil)
	case errors.Is(err, bridge.ErrTimeout):
		return s.fail(c, fiber.StatusGatewayTimeout, "EXTENSION_TIMEOUT", err.Error(), nil)
	case errors.As(err, &companionErr):
		return s.fail(c, fiber.StatusBadGateway, "EXTENSION_ERROR", companionErr.Message, nil)
	default:
		return s.fail(c, fiber.StatusConflict, "CAMPAIGN_ERROR", err.Error(), nil)
	}
}

func (s *Server) listFriendRequests(c fiber.Ctx) error {
	reqs, err := s.db.ListFriendRequests(s.userID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to list friend requests", nil)
	}
	return s.ok(c, fiber.StatusOK, reqs)
}
