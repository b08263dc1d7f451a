package staffing

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
	"github.com/medsched/medsched/internal/platform/auth"
	"github.com/medsched/medsched/pkg/pagination"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePlanner, auth.RoleSecretary))
	read.GET("/staffing", h.GetStaffing)
	read.GET("/staffing/export", h.ExportStaffing)
	read.GET("/assignments/:id", h.GetAssignment)
	read.GET("/issues", h.ListIssues)
	read.GET("/staff/:id/calendar.ics", h.StaffCalendar)
	// Secretaries may declare their own leaves; checked in the handler.
	read.POST("/leaves", h.DeclareLeave)

	write := api.Group("", auth.RequireRole(auth.RolePlanner))
	write.POST("/regenerations", h.Regenerate)
	write.POST("/assignments", h.CreateAssignment)
	write.POST("/assignments/swap", h.Swap)
	write.POST("/assignments/:id/move", h.Move)
	write.POST("/assignments/:id/cancel", h.Cancel)
	write.POST("/assignments/:id/status", h.Transition)
}

func queryRange(c echo.Context) (time.Time, time.Time, error) {
	from, err := calendar.ParseDate(c.QueryParam("from"))
	if err != nil {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "from: "+err.Error())
	}
	to, err := calendar.ParseDate(c.QueryParam("to"))
	if err != nil {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "to: "+err.Error())
	}
	return from, to, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type regenerateRequest struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) Regenerate(c echo.Context) error {
	var req regenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	if (req.From == "") != (req.To == "") {
		return echo.NewHTTPError(http.StatusBadRequest, "from and to must be given together")
	}
	var from, to time.Time
	if req.From != "" {
		from, _ = calendar.ParseDate(req.From)
		to, _ = calendar.ParseDate(req.To)
	}
	res, err := h.svc.Regenerate(c.Request().Context(), from, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetStaffing(c echo.Context) error {
	from, to, err := queryRange(c)
	if err != nil {
		return err
	}
	views, err := h.svc.Staffing(c.Request().Context(), from, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) ExportStaffing(c echo.Context) error {
	from, to, err := queryRange(c)
	if err != nil {
		return err
	}
	buf, err := h.svc.ExportXLSX(c.Request().Context(), from, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	name := fmt.Sprintf("staffing_%s_%s.xlsx", from.Format(calendar.DateLayout), to.Format(calendar.DateLayout))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *Handler) GetAssignment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAssignment(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAssignment(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.CreateAssignment(c.Request().Context(), req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, a)
}

type moveRequest struct {
	WorkUnitID uuid.UUID `json:"work_unit_id" validate:"required"`
}

func (h *Handler) Move(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.Move(c.Request().Context(), id, req.WorkUnitID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

type swapRequest struct {
	A uuid.UUID `json:"assignment_a" validate:"required"`
	B uuid.UUID `json:"assignment_b" validate:"required"`
}

func (h *Handler) Swap(c echo.Context) error {
	var req swapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	a, b, err := h.svc.Swap(c.Request().Context(), req.A, req.B)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, []*Assignment{a, b})
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status Status `json:"status" validate:"required,oneof=CONFIRMED PUBLISHED"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	a, err := h.svc.Transition(c.Request().Context(), id, req.Status)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, a)
}

type leaveRequest struct {
	StaffID   uuid.UUID `json:"staff_id" validate:"required"`
	StartDate string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string    `json:"end_date" validate:"required,datetime=2006-01-02"`
	Period    string    `json:"period" validate:"omitempty,oneof=AM PM FULL_DAY"`
	Reason    *string   `json:"reason" validate:"omitempty,max=500"`
}

func (h *Handler) DeclareLeave(c echo.Context) error {
	var req leaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	ctx := c.Request().Context()
	if !auth.HasAnyRole(ctx, auth.RolePlanner) && auth.StaffIDFromContext(ctx) != req.StaffID.String() {
		return echo.NewHTTPError(http.StatusForbidden, "secretaries may only declare their own leave")
	}

	start, _ := calendar.ParseDate(req.StartDate)
	end, _ := calendar.ParseDate(req.EndDate)
	l := &roster.Leave{StaffID: req.StaffID, StartDate: start, EndDate: end, Reason: req.Reason}
	if req.Period != "" {
		p := roster.Period(req.Period)
		l.Period = &p
	}
	res, err := h.svc.DeclareLeave(ctx, l)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListIssues(c echo.Context) error {
	var f IssueFilter
	if v := c.QueryParam("from"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from: "+err.Error())
		}
		f.From = &d
	}
	if v := c.QueryParam("to"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to: "+err.Error())
		}
		f.To = &d
	}
	if v := c.QueryParam("staff_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid staff_id")
		}
		f.StaffID = &id
	}
	switch t := IssueType(c.QueryParam("type")); t {
	case "", IssueAbsenceConflict, IssueOrphanedAssignment:
		f.Type = t
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown issue type")
	}

	pg, err := pagination.FromContext(c)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	items, total, err := h.svc.ListIssues(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) StaffCalendar(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var from, to time.Time
	if c.QueryParam("from") == "" && c.QueryParam("to") == "" {
		from, to = calendar.DefaultRange(time.Now())
	} else if from, to, err = queryRange(c); err != nil {
		return err
	}
	feed, err := h.svc.StaffCalendar(c.Request().Context(), id, from, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}
