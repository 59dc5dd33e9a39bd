package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"go.uber.org/zap"

	"github.com/Umareee/messenger-crm/internal/bridge"
	"github.com/Umareee/messenger-crm/internal/bus"
	"github.com/Umareee/messenger-crm/internal/campaign"
	"github.com/Umareee/messenger-crm/internal/store"
)

// Server serves the dashboard REST API and the companion event webhook
// on the daemon's loopback listen address.
type Server struct {
	app        *fiber.App
	db         *store.DB
	bus        *bus.Bus
	logger     *zap.Logger
	validate   *validator.Validate
	reconciler *campaign.Reconciler
	prober     *bridge.Prober
	syncer     *bridge.Syncer
	listener   *bridge.Listener
	userID     string
}

// NewServer builds the fiber app and wires all routes.
func NewServer(db *store.DB, b *bus.Bus, logger *zap.Logger, reconciler *campaign.Reconciler,
	prober *bridge.Prober, syncer *bridge.Syncer, listener *bridge.Listener,
	auth AuthConfig, userID string) *Server {

	app := fiber.New(fiber.Config{
		AppName:      "messenger-crm daemon",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	s := &Server{
		app:        app,
		db:         db,
		bus:        b,
		logger:     logger,
		validate:   validator.New(),
		reconciler: reconciler,
		prober:     prober,
		syncer:     syncer,
		listener:   listener,
		userID:     userID,
	}
	s.setupRoutes(auth)
	return s
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving the API on addr.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) setupRoutes(auth AuthConfig) {
	s.app.Use(requestid.New())
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	api := s.app.Group("/api/v1")
	api.Get("/health", s.health)

	api.Use(auth.Authenticate())

	api.Get("/tags", s.listTags)
	api.Post("/tags", s.createTag)
	api.Put("/tags/:id", s.updateTag)
	api.Delete("/tags/:id", s.deleteTag)
	api.Post("/tags/bulk-delete", s.bulkDeleteTags)

	api.Get("/contacts", s.listContacts)
	api.Post("/contacts", s.createContact)
	api.Put("/contacts/:id", s.updateContact)
	api.Delete("/contacts/:id", s.deleteContact)
	api.Post("/contacts/bulk-delete", s.bulkDeleteContacts)
	api.Post("/contacts/bulk-tag", s.bulkTagContacts)
	api.Post("/contacts/bulk-untag", s.bulkUntagContacts)

	api.Get("/templates", s.listTemplates)
	api.Post("/templates", s.createTemplate)
	api.Put("/templates/:id", s.updateTemplate)
	api.Delete("/templates/:id", s.deleteTemplate)

	api.Get("/campaigns", s.listCampaigns)
	api.Post("/campaigns", s.createCampaign)
	api.Get("/campaigns/:id", s.getCampaign)
	api.Delete("/campaigns/:id", s.deleteCampaign)
	api.Get("/campaigns/:id/errors", s.listCampaignErrors)
	api.Post("/campaigns/:id/start", s.startCampaign)
	api.Post("/campaigns/:id/pause", s.pauseCampaign)
	api.Post("/campaigns/:id/resume", s.resumeCampaign)
	api.Post("/campaigns/:id/cancel", s.cancelCampaign)

	api.Get("/friend-requests", s.listFriendRequests)

	api.Get("/extension/status", s.extensionStatus)
	api.Post("/extension/events", s.extensionEvents)
	api.Post("/extension/sync", s.extensionSync)
}

func (s *Server) logRequests(c fiber.Ctx) error {
	err := c.Next()
	s.logger.Debug("http request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()))
	return err
}

func (s *Server) health(c fiber.Ctx) error {
	return s.ok(c, fiber.StatusOK, fiber.Map{"status": "ok"})
}

func (s *Server) ok(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{Success: true, Data: data})
}

func (s *Server) fail(c fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Message: message,
		Error:   &ErrorDetail{Code: code, Details: details},
	})
}

// decode binds and validates a JSON request body. When it returns false
// the failure response has already been written.
func (s *Server) decode(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, s.fail(c, fiber.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
	}
	if err := s.validate.Struct(req); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fe.Field()+" failed "+fe.Tag())
			}
		}
		return false, s.fail(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "validation failed", details)
	}
	return true, nil
}

// requestContext bounds the work a handler hands off to the bridge. The
// command timeout dominates, plus headroom for store writes.
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), bridge.CommandTimeout+5*time.Second)
}
