package mar

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emar/emar/internal/platform/auth"
	"github.com/emar/emar/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/medication-orders", h.ListOrders)
	readGroup.GET("/medication-orders/:id", h.GetOrder)
	readGroup.GET("/administrations", h.ListAdministrations)
	readGroup.GET("/administrations/:id", h.GetAdministration)

	scheduleGroup := api.Group("", auth.RequireRole("admin", "physician"))
	scheduleGroup.POST("/medication-orders", h.CreateOrder)
	scheduleGroup.PUT("/medication-orders/:id", h.UpdateOrder)

	// Administration itself is a nursing act.
	nurseGroup := api.Group("", auth.RequireRole("nurse"))
	nurseGroup.POST("/medication-orders/:id/verify-patient", h.VerifyPatient)
	nurseGroup.POST("/medication-orders/:id/administer", h.Administer)
}

// workflowError maps the engine's error taxonomy onto HTTP statuses.
// Every blocking error carries the specific unmet condition in its
// message.
func workflowError(err error) error {
	var identityErr *IdentityMismatchError
	var incompleteErr *IncompleteVerificationError
	var missingErr *MissingFieldError
	var credErr *CredentialError
	var submitErr *SubmissionError

	switch {
	case errors.Is(err, ErrAlreadyRecorded):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &identityErr),
		errors.As(err, &incompleteErr),
		errors.As(err, &missingErr),
		errors.As(err, &credErr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &submitErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) CreateOrder(c echo.Context) error {
	var o MedicationOrder
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOrder(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) UpdateOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var o MedicationOrder
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.ID = id
	if err := h.svc.UpdateOrder(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) GetOrder(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.GetOrder(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListOrders(c echo.Context) error {
	pg := pagination.FromContext(c)

	var filter OrderFilter
	if v := c.QueryParam("patient"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		filter.PatientID = &pid
	}
	filter.Status = c.QueryParam("status")
	if v := c.QueryParam("controlled"); v != "" {
		controlled, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid controlled filter")
		}
		filter.Controlled = &controlled
	}
	if v := c.QueryParam("due_before"); v != "" {
		due, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "due_before must be RFC 3339")
		}
		filter.DueBefore = &due
	}

	items, total, err := h.svc.ListOrders(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type verifyPatientRequest struct {
	Identifier string `json:"identifier"`
}

func (h *Handler) VerifyPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req verifyPatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.VerifyPatient(c.Request().Context(), id, req.Identifier)
	if err != nil {
		var identityErr *IdentityMismatchError
		if errors.As(err, &identityErr) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Administer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req AdministerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	administeredBy := auth.UserNameFromContext(ctx)
	if administeredBy == "" {
		administeredBy = auth.UserIDFromContext(ctx)
	}

	result, err := h.svc.Administer(ctx, id, req, administeredBy)
	if err != nil {
		return workflowError(err)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetAdministration(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetAdministration(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "administration record not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListAdministrations(c echo.Context) error {
	pg := pagination.FromContext(c)
	var patientID *uuid.UUID
	if v := c.QueryParam("patient"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		patientID = &pid
	}
	items, total, err := h.svc.ListAdministrations(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
