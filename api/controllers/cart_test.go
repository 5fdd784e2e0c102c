package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoStans-Co/gostans-backend/api/middleware"
	cartsvc "github.com/GoStans-Co/gostans-backend/internal/cart"
	"github.com/GoStans-Co/gostans-backend/pkg/enums"
	pkgerrors "github.com/GoStans-Co/gostans-backend/pkg/errors"
)

type stubCartService struct {
	view      *cartsvc.View
	err       error
	lastInput cartsvc.AddInput
	lastKind  enums.GuestKind
	lastDelta int
	cleared   bool
}

func (s *stubCartService) View(context.Context, cartsvc.Owner) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) Add(_ context.Context, _ cartsvc.Owner, input cartsvc.AddInput) (*cartsvc.View, error) {
	s.lastInput = input
	return s.view, s.err
}

func (s *stubCartService) Remove(context.Context, cartsvc.Owner, string) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) SetQuantity(context.Context, cartsvc.Owner, string, int) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) AdjustGuestCount(_ context.Context, _ cartsvc.Owner, _ string, kind enums.GuestKind, delta int) (*cartsvc.View, error) {
	s.lastKind = kind
	s.lastDelta = delta
	return s.view, s.err
}

func (s *stubCartService) SetDate(context.Context, cartsvc.Owner, string, time.Time) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) SetPackageMode(context.Context, cartsvc.Owner, bool) (*cartsvc.View, error) {
	return s.view, s.err
}

func (s *stubCartService) Clear(context.Context, cartsvc.Owner) error {
	s.cleared = true
	return s.err
}

func guestRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithGuestSession(req.Context(), "guest-1"))
}

func TestCartViewSuccess(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{TotalGuests: 2}}
	handler := CartView(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartsvc.View `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalGuests != 2 {
		t.Fatalf("unexpected view: %+v", envelope.Data)
	}
}

func TestCartViewMissingOwner(t *testing.T) {
	handler := CartView(&stubCartService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddParsesPayload(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{}}
	handler := CartAdd(svc, nil)

	body := `{"tour_id":"t1","title":"Silk Road Classic","unit_price":"100","currency":"usd","quantity":2,"selected_date":"2026-09-14","guests":{"adults":2,"children":1}}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, "/api/v1/cart", body))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastInput.TourID != "t1" || svc.lastInput.Quantity != 2 {
		t.Fatalf("unexpected input: %+v", svc.lastInput)
	}
	if svc.lastInput.Snapshot.Currency != "USD" {
		t.Fatalf("expected uppercased currency, got %q", svc.lastInput.Snapshot.Currency)
	}
	if svc.lastInput.SelectedDate == nil || svc.lastInput.SelectedDate.Format("2006-01-02") != "2026-09-14" {
		t.Fatalf("expected parsed date, got %v", svc.lastInput.SelectedDate)
	}
	if svc.lastInput.Guests == nil || svc.lastInput.Guests.Adults != 2 {
		t.Fatalf("expected guest counts, got %+v", svc.lastInput.Guests)
	}
}

func TestCartAddRejectsBadDate(t *testing.T) {
	handler := CartAdd(&stubCartService{view: &cartsvc.View{}}, nil)

	body := `{"tour_id":"t1","title":"Silk Road Classic","unit_price":"100","currency":"USD","selected_date":"14/09/2026"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, "/api/v1/cart", body))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddRejectsMissingFields(t *testing.T) {
	handler := CartAdd(&stubCartService{view: &cartsvc.View{}}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPost, "/api/v1/cart", `{"tour_id":"t1"}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func withTourIDParam(req *http.Request, tourID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("tourID", tourID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCartAdjustGuestsParsesKind(t *testing.T) {
	svc := &stubCartService{view: &cartsvc.View{}}
	handler := CartAdjustGuests(svc, nil)

	req := withTourIDParam(guestRequest(http.MethodPatch, "/api/v1/cart/t1/guests", `{"kind":"children","delta":-1}`), "t1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastKind != enums.GuestChild || svc.lastDelta != -1 {
		t.Fatalf("unexpected adjustment: %s %d", svc.lastKind, svc.lastDelta)
	}
}

func TestCartAdjustGuestsRejectsUnknownKind(t *testing.T) {
	handler := CartAdjustGuests(&stubCartService{view: &cartsvc.View{}}, nil)

	req := withTourIDParam(guestRequest(http.MethodPatch, "/api/v1/cart/t1/guests", `{"kind":"pets","delta":1}`), "t1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartRemoveRequiresTourID(t *testing.T) {
	handler := CartRemove(&stubCartService{view: &cartsvc.View{}}, nil)

	req := withTourIDParam(guestRequest(http.MethodDelete, "/api/v1/cart/", ""), "")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartSetPackageModePropagatesConflict(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "family package covers at most 5 guests")}
	handler := CartSetPackageMode(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodPatch, "/api/v1/cart/package-mode", `{"enabled":true}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Message != "family package covers at most 5 guests" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	handler := CartClear(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, guestRequest(http.MethodDelete, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatal("expected clear call")
	}
}
