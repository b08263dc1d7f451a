package optimizer

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/platform/apperr"
	"github.com/medsched/medsched/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	write := api.Group("", auth.RequireRole(auth.RolePlanner))
	write.POST("/optimizer/runs", h.Run)
}

type runRequest struct {
	From string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) Run(c echo.Context) error {
	var req runRequest
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
	res, err := h.svc.Run(c.Request().Context(), from, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}
