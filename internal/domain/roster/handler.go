package roster

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/platform/apperr"
	"github.com/medsched/medsched/internal/platform/auth"
	"github.com/medsched/medsched/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePlanner, auth.RoleSecretary))
	read.GET("/schedule-entries", h.ListEntries)
	read.GET("/schedule-entries/:id", h.GetEntry)
	read.GET("/leaves", h.ListLeaves)

	write := api.Group("", auth.RequireRole(auth.RolePlanner))
	write.POST("/staff", h.CreateStaff)
	write.POST("/schedule-entries", h.CreateEntry)
	write.DELETE("/schedule-entries/:id", h.DeleteEntry)
}

type staffRequest struct {
	Name   string    `json:"name" validate:"required,max=200"`
	Kind   StaffKind `json:"kind" validate:"required,oneof=DOCTOR CLINICAL SECRETARY"`
	Active *bool     `json:"active"`
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var req staffRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	st := &Staff{Name: req.Name, Kind: req.Kind, Active: req.Active == nil || *req.Active}
	if err := h.svc.CreateStaff(c.Request().Context(), st); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, st)
}

type entryRequest struct {
	StaffID      uuid.UUID  `json:"staff_id" validate:"required"`
	Kind         EntryKind  `json:"kind" validate:"required,oneof=RECURRING OVERRIDE ADDED"`
	DepartmentID *uuid.UUID `json:"department_id"`
	ActivityID   *uuid.UUID `json:"activity_id"`
	Period       Period     `json:"period" validate:"required,oneof=AM PM FULL_DAY"`
	Weekday      *int       `json:"weekday" validate:"omitempty,min=0,max=6"`
	CycleWeeks   int        `json:"cycle_weeks" validate:"omitempty,min=1"`
	WeekOffset   int        `json:"week_offset" validate:"min=0"`
	ActiveFrom   string     `json:"active_from" validate:"omitempty,datetime=2006-01-02"`
	ActiveUntil  string     `json:"active_until" validate:"omitempty,datetime=2006-01-02"`
	SpecificDate string     `json:"specific_date" validate:"omitempty,datetime=2006-01-02"`
	ParentID     *uuid.UUID `json:"parent_id"`
}

func (r *entryRequest) toEntry() *ScheduleEntry {
	e := &ScheduleEntry{
		StaffID:      r.StaffID,
		Kind:         r.Kind,
		DepartmentID: r.DepartmentID,
		ActivityID:   r.ActivityID,
		Period:       r.Period,
		CycleWeeks:   r.CycleWeeks,
		WeekOffset:   r.WeekOffset,
		ActiveFrom:   optionalDate(r.ActiveFrom),
		ActiveUntil:  optionalDate(r.ActiveUntil),
		SpecificDate: optionalDate(r.SpecificDate),
		ParentID:     r.ParentID,
	}
	if r.Weekday != nil {
		wd := time.Weekday(*r.Weekday)
		e.Weekday = &wd
	}
	return e
}

// optionalDate parses a date already checked by the validator.
func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func (h *Handler) CreateEntry(c echo.Context) error {
	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	e := req.toEntry()
	if err := h.svc.CreateEntry(c.Request().Context(), e); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteEntry(c.Request().Context(), id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListEntries(c echo.Context) error {
	staffID, err := uuid.Parse(c.QueryParam("staff_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "staff_id query parameter is required")
	}
	pg, err := pagination.FromContext(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	items, total, err := h.svc.ListEntriesByStaff(c.Request().Context(), staffID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListLeaves(c echo.Context) error {
	staffID, err := uuid.Parse(c.QueryParam("staff_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "staff_id query parameter is required")
	}
	pg, err := pagination.FromContext(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	items, total, err := h.svc.ListLeavesByStaff(c.Request().Context(), staffID, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
