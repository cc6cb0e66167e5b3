package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// RequestsHandler manages requester-facing endpoints.
type RequestsHandler struct {
	requests *service.RequestService
	sla      *service.SLAService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(requests *service.RequestService, sla *service.SLAService) *RequestsHandler {
	return &RequestsHandler{requests: requests, sla: sla}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateRequestPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.RequestCreateInput{
		CategoryID:       req.CategoryID,
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		RequiresApproval: req.RequiresApproval,
	}
	request, err := h.requests.CreateRequest(c.UserContext(), principal.UserID, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// List GET /requests. Requesters see only their own requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseRequestFilter(c)
	filter.RequesterID = &principal.UserID

	requests, err := h.requests.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, dto.FromRequest(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	request, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	tracking, _ := h.sla.TrackingForRequest(c.UserContext(), request.ID)
	return c.JSON(fiber.Map{"data": dto.FromRequestDetail(request, tracking)})
}

// GetByCode GET /requests/code/:code.
func (h *RequestsHandler) GetByCode(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.requests.GetByTicketCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	if request.RequesterID != principal.UserID && principal.Role == domain.RoleUser {
		return apperrors.NewForbidden("not your request")
	}
	tracking, _ := h.sla.TrackingForRequest(c.UserContext(), request.ID)
	return c.JSON(fiber.Map{"data": dto.FromRequestDetail(request, tracking)})
}

// Timeline GET /requests/:id/timeline.
func (h *RequestsHandler) Timeline(c *fiber.Ctx) error {
	request, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	page := parseIntQuery(c.Query("page"), 1)
	pageSize := parseIntQuery(c.Query("page_size"), 50)
	entries, err := h.requests.Timeline(c.UserContext(), request.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.ActivityEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.FromActivity(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Cancel POST /requests/:id/cancel.
func (h *RequestsHandler) Cancel(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	request, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req dto.ApprovalPayload
	_ = c.BodyParser(&req)

	updated, err := h.requests.Transition(c.UserContext(), request.ID, domain.StatusCancelled, actorFrom(principal), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(updated)})
}

// Close POST /requests/:id/close. Requesters confirm resolution.
func (h *RequestsHandler) Close(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	request, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req dto.ApprovalPayload
	_ = c.BodyParser(&req)

	updated, err := h.requests.Transition(c.UserContext(), request.ID, domain.StatusClosed, actorFrom(principal), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(updated)})
}

// loadOwned fetches the request and enforces requester ownership for
// non-staff callers.
func (h *RequestsHandler) loadOwned(c *fiber.Ctx) (*domain.Request, error) {
	principal := auth.CurrentPrincipal(c)
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.requests.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if request.RequesterID != principal.UserID && principal.Role == domain.RoleUser {
		return nil, apperrors.NewForbidden("not your request")
	}
	return request, nil
}

func actorFrom(principal *auth.Principal) service.Actor {
	return service.Actor{ID: principal.UserID, Role: principal.Role}
}

func parseRequestFilter(c *fiber.Ctx) repository.RequestFilter {
	filter := repository.RequestFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.RequestStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.RequestPriority(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTimeQuery(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTimeQuery(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseIntQuery(c.Query("page"), 1)
	pageSize := parseIntQuery(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTimeQuery(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseIntQuery(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
