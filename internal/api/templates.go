package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/store"
)

func (s *Server) listTemplates(c fiber.Ctx) error {
	templates, err := s.db.ListTemplates(s.userID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to list templates", nil)
	}
	return s.ok(c, fiber.StatusOK, templates)
}

func (s *Server) createTemplate(c fiber.Ctx) error {
	var req TemplateRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	tpl := &store.Template{
		ID:     uuid.NewString(),
		UserID: s.userID,
		Name:   req.Name,
		Body:   req.Body,
	}
	if err := s.db.UpsertTemplate(tpl); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to create template", nil)
	}
	s.templatesChanged()
	return s.ok(c, fiber.StatusCreated, tpl)
}

func (s *Server) updateTemplate(c fiber.Ctx) error {
	var req TemplateRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	id := c.Params("id")
	existing, err := s.db.GetTemplate(s.userID, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load template", nil)
	}
	if existing == nil {
		return s.fail(c, fiber.StatusNotFound, "NOT_FOUND", "template not found", nil)
	}

	existing.Name = req.Name
	existing.Body = req.Body
	if err := s.db.UpsertTemplate(existing); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to update template", nil)
	}
	s.templatesChanged()
	return s.ok(c, fiber.StatusOK, existing)
}

func (s *Server) deleteTemplate(c fiber.Ctx) error {
	if err := s.db.DeleteTemplate(s.userID, c.Params("id")); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to delete template", nil)
	}
	s.templatesChanged()
	return s.ok(c, fiber.StatusOK, fiber.Map{"deleted": 1})
}

func (s *Server) templatesChanged() {
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedTemplates, Payload: store.CollectionTemplates})
}
