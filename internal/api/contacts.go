package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/store"
)

func (s *Server) listContacts(c fiber.Ctx) error {
	contacts, err := s.db.ListContacts(s.userID)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to list contacts", nil)
	}
	return s.ok(c, fiber.StatusOK, contacts)
}

func (s *Server) createContact(c fiber.Ctx) error {
	var req ContactRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	source := req.Source
	if source == "" {
		source = store.SourceManual
	}
	contact := &store.Contact{
		ID:             uuid.NewString(),
		UserID:         s.userID,
		Name:           req.Name,
		AvatarURL:      req.AvatarURL,
		PlatformUserID: req.PlatformUserID,
		Source:         source,
		SourceGroupID:  req.SourceGroupID,
		TagIDs:         req.TagIDs,
	}
	if err := s.db.UpsertContact(contact); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to create contact", nil)
	}
	s.contactsChanged()
	return s.ok(c, fiber.StatusCreated, contact)
}

func (s *Server) updateContact(c fiber.Ctx) error {
	var req ContactRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	id := c.Params("id")
	existing, err := s.db.GetContact(s.userID, id)
	if err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to load contact", nil)
	}
	if existing == nil {
		return s.fail(c, fiber.StatusNotFound, "NOT_FOUND", "contact not found", nil)
	}

	existing.Name = req.Name
	existing.AvatarURL = req.AvatarURL
	existing.PlatformUserID = req.PlatformUserID
	existing.SourceGroupID = req.SourceGroupID
	existing.TagIDs = req.TagIDs
	if req.Source != "" {
		existing.Source = req.Source
	}
	if err := s.db.UpsertContact(existing); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to update contact", nil)
	}
	s.contactsChanged()
	return s.ok(c, fiber.StatusOK, existing)
}

func (s *Server) deleteContact(c fiber.Ctx) error {
	return s.deleteContactsByIDs(c, []string{c.Params("id")})
}

func (s *Server) bulkDeleteContacts(c fiber.Ctx) error {
	var req BulkIDsRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}
	return s.deleteContactsByIDs(c, req.IDs)
}

func (s *Server) deleteContactsByIDs(c fiber.Ctx, ids []string) error {
	if err := s.db.DeleteContacts(s.userID, ids); err != nil {
		return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to delete contacts", nil)
	}
	s.contactsChanged()
	return s.ok(c, fiber.StatusOK, fiber.Map{"deleted": len(ids)})
}

func (s *Server) bulkTagContacts(c fiber.Ctx) error {
	return s.retagContacts(c, true)
}

func (s *Server) bulkUntagContacts(c fiber.Ctx) error {
	return s.retagContacts(c, false)
}

func (s *Server) retagContacts(c fiber.Ctx, attach bool) error {
	var req BulkTagRequest
	if ok, err := s.decode(c, &req); !ok {
		return err
	}

	for _, tagID := range req.TagIDs {
		var err error
		if attach {
			err = s.db.TagContacts(s.userID, tagID, req.ContactIDs)
		} else {
			err = s.db.UntagContacts(s.userID, tagID, req.ContactIDs)
		}
		if err != nil {
			return s.fail(c, fiber.StatusInternalServerError, "STORE_ERROR", "failed to update contact tags", nil)
		}
	}
	s.contactsChanged()
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedTags, Payload: store.CollectionTags})
	return s.ok(c, fiber.StatusOK, fiber.Map{"contacts": len(req.ContactIDs), "tags": len(req.TagIDs)})
}

func (s *Server) contactsChanged() {
	s.bus.Publish(bus.Event{Kind: bus.KindStoreChangedContacts, Payload: store.CollectionContacts})
}
