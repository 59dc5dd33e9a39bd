package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/store"
)

func (s *Server) listTags(c fiber.Ctx) error {
	tags, err := s.db.ListTags(s.userID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to list tags", nil)
	}
	return s.ok(c, fiber.StatusOK, tags)
}

func (s *Server) createTag(c fiber.Ctx) error {
	var req TagRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	tag := &store.Tag{
		ID:     uuid.NewString(),
		UserID: s.userID,
		Name:   req.Name,
		Color:  req.Color,
	}
	if err := s.db.UpsertTag(tag); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to create tag", nil)
	}
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedTags, Payload: store.CollectionTags})
	return s.ok(c, fiber.StatusCreated, tag)
}

func (s *Server) updateTag(c fiber.Ctx) error {
	var req TagRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	id := c.Params("id")
	existing, err := s.db.GetTag(s.userID, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load tag", nil)
	}
	if existing == nil {
		return s.fail(c, fiber.StatusNotFound, "NOT_FOUND", "tag not found", nil)
	}

	existing.Name = req.Name
	existing.Color = req.Color
	if err := s.db.UpsertTag(existing); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to update tag", nil)
	}
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedTags, Payload: store.CollectionTags})
	return s.ok(c, fiber.StatusOK, existing)
}

func (s *Server) deleteTag(c fiber.Ctx) error {
	return s.deleteTagsByIDs(c, []string{c.Params("id")})
}

func (s *Server) bulkDeleteTags(c fiber.Ctx) error {
	var req BulkIDsRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}
	return s.deleteTagsByIDs(c, req.IDs)
}

// deleteTagsByIDs removes tags and their contact links in one
// transaction. Contacts referencing a deleted tag keep their other tags.
func (s *Server) deleteTagsByIDs(c fiber.Ctx, ids []string) error {
	if err := s.db.DeleteTags(s.userID, ids); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to delete tags", nil)
	}
	// Detaching links changes contacts too, so both collections re-sync.
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedTags, Payload: store.CollectionTags})
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedContacts, Payload: store.CollectionContacts})
	return s.ok(c, fiber.StatusOK, fiber.Map{"deleted": len(ids)})
}
