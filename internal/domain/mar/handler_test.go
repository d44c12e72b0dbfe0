package mar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emar/emar/internal/platform/auth"
)

func newHandlerFixture() (*Handler, *marFixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.UserNameKey, "Nurse Kim")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_GetOrder(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())

	if err := h.GetOrder(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var detail OrderDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(detail.AllergyWarnings) != 1 {
		t.Errorf("expected allergy warnings in detail, got %v", detail.AllergyWarnings)
	}
}

func TestHandler_GetOrder_NotFound(t *testing.T) {
	h, _, e := newHandlerFixture()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	err := h.GetOrder(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_VerifyPatient_Mismatch(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)

	c, _ := jsonContext(e, http.MethodPost, `{"identifier":"MRN-2024-0099"}`)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())

	err := h.VerifyPatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}

func TestHandler_VerifyPatient_Match(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)

	c, rec := jsonContext(e, http.MethodPost, `{"identifier":"mrn-2024-0042"}`)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())

	if err := h.VerifyPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result VerificationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !result.Verified {
		t.Error("expected verified result")
	}
}

func TestHandler_Administer(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)

	body := `{"patient_identifier":"MRN-2024-0042","drug_verified":true,"dose_verified":true,
		"route_verified":true,"time_verified":true,"disposition":"give"}`
	c, rec := jsonContext(e, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())

	if err := h.Administer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var result AdministerResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.Record.AdministeredBy != "Nurse Kim" {
		t.Errorf("expected administered_by from auth context, got %q", result.Record.AdministeredBy)
	}
}

func TestHandler_Administer_ErrorMapping(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"incomplete verification", `{"disposition":"give"}`, http.StatusUnprocessableEntity},
		{"identity mismatch", `{"patient_identifier":"WRONG","disposition":"give"}`, http.StatusUnprocessableEntity},
		{"hold without reason", `{"disposition":"hold"}`, http.StatusUnprocessableEntity},
		{"unknown disposition", `{"disposition":"defer"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := jsonContext(e, http.MethodPost, tc.body)
			c.SetParamNames("id")
			c.SetParamValues(o.ID.String())

			err := h.Administer(c)
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != tc.want {
				t.Errorf("expected %d, got %v", tc.want, err)
			}
		})
	}
}

func TestHandler_Administer_ConflictOnSecondRecord(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)

	body := `{"drug_verified":true,"dose_verified":true,"route_verified":true,
		"time_verified":true,"disposition":"give"}`

	c, _ := jsonContext(e, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())
	if err := h.Administer(c); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}

	c, _ = jsonContext(e, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())
	err := h.Administer(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_Administer_SubmissionFailure(t *testing.T) {
	h, f, e := newHandlerFixture()
	o := f.addOrder(t, false, RouteOral)
	f.records.failing = true

	body := `{"drug_verified":true,"dose_verified":true,"route_verified":true,
		"time_verified":true,"disposition":"give"}`
	c, _ := jsonContext(e, http.MethodPost, body)
	c.SetParamNames("id")
	c.SetParamValues(o.ID.String())

	err := h.Administer(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestHandler_CreateOrder(t *testing.T) {
	h, f, e := newHandlerFixture()

	body := `{"patient_id":"` + f.patient.PatientID.String() + `","drug_name":"Metformin",
		"dose":"850mg","route":"oral","frequency":"BID","scheduled_time":"2026-09-01T08:00:00Z"}`
	c, rec := jsonContext(e, http.MethodPost, body)

	if err := h.CreateOrder(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_ListOrders_InvalidFilters(t *testing.T) {
	h, _, e := newHandlerFixture()

	req := httptest.NewRequest(http.MethodGet, "/?patient=not-a-uuid", nil)
	rec := httptest.NewRecorder()
	if err := h.ListOrders(e.NewContext(req, rec)); err == nil {
		t.Error("expected error for invalid patient filter")
	}

	req = httptest.NewRequest(http.MethodGet, "/?controlled=maybe", nil)
	rec = httptest.NewRecorder()
	if err := h.ListOrders(e.NewContext(req, rec)); err == nil {
		t.Error("expected error for invalid controlled filter")
	}
}
