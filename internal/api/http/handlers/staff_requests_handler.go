package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// StaffRequestsHandler manages agent/manager/admin endpoints.
type StaffRequestsHandler struct {
	requests    *service.RequestService
	assignments *service.AssignmentService
	escalations *service.EscalationService
	sla         *service.SLAService
}

// NewStaffRequestsHandler constructs handler.
func NewStaffRequestsHandler(
	requests *service.RequestService,
	assignments *service.AssignmentService,
	escalations *service.EscalationService,
	sla *service.SLAService,
) *StaffRequestsHandler {
	return &StaffRequestsHandler{
		requests:    requests,
		assignments: assignments,
		escalations: escalations,
		sla:         sla,
	}
}

// List GET /staff/requests. Agents see their department's queue unless
// they filter explicitly; managers and admins see everything.
func (h *StaffRequestsHandler) List(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	filter := parseRequestFilter(c)
	if principal.Role == domain.RoleAgent && filter.DepartmentID == nil && principal.DepartmentID != nil {
		filter.DepartmentID = principal.DepartmentID
	}
	if dept := c.Query("department_id"); dept != "" {
		filter.DepartmentID = &dept
	}
	if agent := c.Query("agent_id"); agent != "" {
		filter.AgentID = &agent
	}

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

// Get GET /staff/requests/:id.
func (h *StaffRequestsHandler) Get(c *fiber.Ctx) error {
	request, err := h.requests.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	tracking, _ := h.sla.TrackingForRequest(c.UserContext(), request.ID)
	return c.JSON(fiber.Map{"data": dto.FromRequestDetail(request, tracking)})
}

// UpdateStatus PATCH /staff/requests/:id/status.
func (h *StaffRequestsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.UpdateStatusPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status is required", nil)
	}

	request, err := h.requests.Transition(c.UserContext(), c.Params("id"), req.Status, actorFrom(principal), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// UpdatePriority PATCH /staff/requests/:id/priority.
func (h *StaffRequestsHandler) UpdatePriority(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.UpdatePriorityPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	request, err := h.requests.UpdatePriority(c.UserContext(), c.Params("id"), req.Priority, actorFrom(principal), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// Approve POST /staff/requests/:id/approve.
func (h *StaffRequestsHandler) Approve(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.ApprovalPayload
	_ = c.BodyParser(&req)

	request, err := h.requests.Approve(c.UserContext(), c.Params("id"), actorFrom(principal), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// Reject POST /staff/requests/:id/reject.
func (h *StaffRequestsHandler) Reject(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.ApprovalPayload
	_ = c.BodyParser(&req)

	request, err := h.requests.Reject(c.UserContext(), c.Params("id"), actorFrom(principal), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// AssignDepartment POST /staff/requests/:id/assign/department.
func (h *StaffRequestsHandler) AssignDepartment(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.AssignDepartmentPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.DepartmentID == "" {
		return apperrors.NewValidationError("department_id is required", nil)
	}

	request, err := h.assignments.AssignDepartment(c.UserContext(), c.Params("id"), req.DepartmentID, actorFrom(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// AssignAgent POST /staff/requests/:id/assign/agent.
func (h *StaffRequestsHandler) AssignAgent(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.AssignAgentPayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AgentID == "" {
		return apperrors.NewValidationError("agent_id is required", nil)
	}

	request, err := h.assignments.AssignAgent(c.UserContext(), c.Params("id"), req.AgentID, actorFrom(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// Escalate POST /staff/requests/:id/escalate.
func (h *StaffRequestsHandler) Escalate(c *fiber.Ctx) error {
	principal := auth.CurrentPrincipal(c)
	var req dto.EscalatePayload
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Reason == "" {
		return apperrors.NewValidationError("reason is required", nil)
	}

	input := service.EscalationInput{
		Reason:       req.Reason,
		DepartmentID: req.DepartmentID,
		AgentID:      req.AgentID,
		Notes:        req.Notes,
	}
	request, err := h.escalations.Escalate(c.UserContext(), c.Params("id"), input, actorFrom(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromRequest(request)})
}

// Delete DELETE /staff/requests/:id. Admin only; removes the request
// and its audit trail.
func (h *StaffRequestsHandler) Delete(c *fiber.Ctx) error {
	if err := h.requests.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SLAStatistics GET /staff/sla/statistics.
func (h *StaffRequestsHandler) SLAStatistics(c *fiber.Ctx) error {
	stats, err := h.sla.Statistics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAStatisticsResponse{
		TotalTracked:       stats.TotalTracked,
		ResponseBreaches:   stats.ResponseBreaches,
		ResolutionBreaches: stats.ResolutionBreaches,
	}})
}
