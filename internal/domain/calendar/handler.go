package calendar

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	read := api.Group("", auth.RequireRole(auth.RolePlanner, auth.RoleSecretary))
	read.GET("/calendar/days", h.ListDays)

	write := api.Group("", auth.RequireRole(auth.RolePlanner))
	write.POST("/calendar/generate", h.Generate)
	write.PUT("/calendar/days/:date/holiday", h.SetHoliday)
}

type generateRequest struct {
	Year int `json:"year" validate:"required,min=1900,max=2200"`
}

func (h *Handler) Generate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	n, err := h.svc.GenerateYear(c.Request().Context(), req.Year)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"year": req.Year, "days": n})
}

type holidayRequest struct {
	Holiday bool    `json:"holiday"`
	Name    *string `json:"name,omitempty"`
}

func (h *Handler) SetHoliday(c echo.Context) error {
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req holidayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	day, err := h.svc.SetHoliday(c.Request().Context(), date, req.Holiday, req.Name)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) ListDays(c echo.Context) error {
	from, err := ParseDate(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from: "+err.Error())
	}
	to, err := ParseDate(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to: "+err.Error())
	}
	days, err := h.svc.ListRange(c.Request().Context(), from, to)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, days)
}
