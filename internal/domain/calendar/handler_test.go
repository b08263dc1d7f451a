package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/platform/validate"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	e.Validator = validate.New()
	return h, e
}

func TestHandler_Generate(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"year":2026}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Generate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body map[string]int
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["days"] != 365 {
		t.Errorf("expected 365 days, got %v", body)
	}
}

func TestHandler_Generate_BadYear(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"year":0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Generate(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SetHoliday(t *testing.T) {
	h, e := newTestHandler()
	h.svc.GenerateYear(context.Background(), 2026)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"holiday":true,"name":"Staff day"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("date")
	c.SetParamValues("2026-06-15")

	if err := h.SetHoliday(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var day Day
	json.Unmarshal(rec.Body.Bytes(), &day)
	if !day.IsHoliday || day.HolidayName == nil || *day.HolidayName != "Staff day" {
		t.Errorf("unexpected day %+v", day)
	}
}

func TestHandler_SetHoliday_InvalidDate(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"holiday":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("date")
	c.SetParamValues("not-a-date")

	if err := h.SetHoliday(c); err == nil {
		t.Error("expected error for invalid date")
	}
}

func TestHandler_SetHoliday_NotGenerated(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"holiday":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("date")
	c.SetParamValues("2031-01-01")

	err := h.SetHoliday(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListDays(t *testing.T) {
	h, e := newTestHandler()
	h.svc.GenerateYear(context.Background(), 2026)

	req := httptest.NewRequest(http.MethodGet, "/?from=2026-02-01&to=2026-02-07", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDays(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var days []Day
	json.Unmarshal(rec.Body.Bytes(), &days)
	if len(days) != 7 {
		t.Errorf("expected 7 days, got %d", len(days))
	}
}

func TestHandler_ListDays_MissingRange(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h.ListDays(c); err == nil {
		t.Error("expected error without from/to")
	}
}
