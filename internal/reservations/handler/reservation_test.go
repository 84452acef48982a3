package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	reservationserrors "campsite/internal/reservations/errors"
	"campsite/internal/reservations/repository"
	"campsite/internal/reservations/service"
	"campsite/internal/reservations/validator"
	"campsite/pkg/app"
	"campsite/pkg/client"
	"campsite/pkg/config"
	apperrors "campsite/pkg/errors"
	"campsite/pkg/logger"
	"campsite/pkg/middleware"
	"campsite/pkg/model"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/julienschmidt/httprouter"
)

type mockReservationService struct {
	availableFunc func(ctx context.Context, from, to civil.Date) ([]civil.Date, error)
	reserveFunc   func(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error)
	getAllFunc    func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	window        [2]civil.Date
}

func (m *mockReservationService) Reserve(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error) {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, start, end, contact)
	}
	return &model.Reservation{ID: "id", StartDate: start, EndDate: end}, nil
}

func (m *mockReservationService) Modify(ctx context.Context, id string, start, end civil.Date) (*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationService) Cancel(ctx context.Context, id string) error {
	return nil
}

func (m *mockReservationService) AvailableDates(ctx context.Context, from, to civil.Date) ([]civil.Date, error) {
	if m.availableFunc != nil {
		return m.availableFunc(ctx, from, to)
	}
	return []civil.Date{}, nil
}

func (m *mockReservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx, limit, offset)
	}
	return []*model.Reservation{}, 0, nil
}

func (m *mockReservationService) DefaultWindow() (civil.Date, civil.Date) {
	return m.window[0], m.window[1]
}

func today() civil.Date {
	return civil.DateOf(time.Now().UTC())
}

func newTestValidator() *validator.ReservationValidator {
	return validator.NewReservationValidator(validator.Policy{
		MaxStayDays:      3,
		MinLeadDays:      1,
		MaxAdvanceMonths: 1,
		Location:         time.UTC,
	}, logger.Discard())
}

func newMockRouter(svc service.ReservationService) *httprouter.Router {
	router := httprouter.New()
	NewReservationHandler(svc, newTestValidator(), logger.Discard()).RegisterRoutes(router)
	return router
}

func TestGetAll_InvalidQueryParameters(t *testing.T) {
	var receivedLimit int
	var receivedOffset int64
	mockService := &mockReservationService{
		getAllFunc: func(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
			receivedLimit = limit
			receivedOffset = offset
			return []*model.Reservation{}, 0, nil
		},
	}
	router := newMockRouter(mockService)

	tests := []struct {
		name           string
		queryString    string
		expectHTTPCode int
		wantLimit      int
		wantOffset     int64
	}{
		{"defaults", "", http.StatusOK, 10, 0},
		{"explicit values", "?limit=5&offset=20", http.StatusOK, 5, 20},
		{"limit capped", "?limit=100000", http.StatusOK, config.DefaultPaginationLimit, 0},
		{"negative offset normalized", "?offset=-7", http.StatusOK, 10, 0},
		{"non-numeric limit", "?limit=abc", http.StatusBadRequest, 0, 0},
		{"non-numeric offset", "?offset=1.5", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receivedLimit, receivedOffset = -1, -1
			req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations"+tt.queryString, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectHTTPCode {
				t.Fatalf("expected status %d, got %d: %s", tt.expectHTTPCode, w.Code, w.Body.String())
			}
			if tt.expectHTTPCode != http.StatusOK {
				if receivedLimit != -1 {
					t.Errorf("service should not be called on bad input")
				}
				return
			}
			if receivedLimit != tt.wantLimit || receivedOffset != tt.wantOffset {
				t.Errorf("service got limit=%d offset=%d, want %d/%d", receivedLimit, receivedOffset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestAvailable_Window(t *testing.T) {
	defaultFrom := civil.Date{Year: 2026, Month: 6, Day: 15}
	defaultTo := civil.Date{Year: 2026, Month: 7, Day: 15}

	var gotFrom, gotTo civil.Date
	mockService := &mockReservationService{
		window: [2]civil.Date{defaultFrom, defaultTo},
		availableFunc: func(ctx context.Context, from, to civil.Date) ([]civil.Date, error) {
			gotFrom, gotTo = from, to
			return []civil.Date{from}, nil
		},
	}
	router := newMockRouter(mockService)

	tests := []struct {
		name     string
		query    string
		wantFrom civil.Date
		wantTo   civil.Date
	}{
		{"server default", "", defaultFrom, defaultTo},
		{"from only", "?date_from=2026-08-10", civil.Date{Year: 2026, Month: 8, Day: 10}, civil.Date{Year: 2026, Month: 9, Day: 10}},
		{"to only", "?date_to=2026-06-20", defaultFrom, civil.Date{Year: 2026, Month: 6, Day: 20}},
		{"both", "?date_from=2026-08-01&date_to=2026-08-05", civil.Date{Year: 2026, Month: 8, Day: 1}, civil.Date{Year: 2026, Month: 8, Day: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/available"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if gotFrom != tt.wantFrom || gotTo != tt.wantTo {
				t.Errorf("window = [%s, %s), want [%s, %s)", gotFrom, gotTo, tt.wantFrom, tt.wantTo)
			}

			var body struct {
				Data []civil.Date `json:"data"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if len(body.Data) != 1 || body.Data[0] != tt.wantFrom {
				t.Errorf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestAvailable_BadDate(t *testing.T) {
	router := newMockRouter(&mockReservationService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations/available?date_from=15/06/2026", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCreate_RequestBodyErrors(t *testing.T) {
	called := false
	router := newMockRouter(&mockReservationService{
		reserveFunc: func(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error) {
			called = true
			return nil, nil
		},
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed JSON", `{"full_name":`, http.StatusBadRequest},
		{"bad date format", `{"full_name":"A","email":"a@b.co","start_date":"2026/07/01","end_date":"2026-07-02"}`, http.StatusBadRequest},
		{"missing fields", `{"full_name":"A"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	if called {
		t.Error("service must not be called for rejected requests")
	}
}

func TestCreate_BodyTooLarge(t *testing.T) {
	router := newMockRouter(&mockReservationService{})
	h := middleware.MaxRequestSize(32)(router)

	body := `{"full_name":"` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req.ContentLength = -1
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreate_SanitizesContact(t *testing.T) {
	var got model.Contact
	router := newMockRouter(&mockReservationService{
		reserveFunc: func(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error) {
			got = contact
			return &model.Reservation{ID: "abc", StartDate: start, EndDate: end}, nil
		},
	})

	start := today().AddDays(2)
	payload, _ := json.Marshal(model.ReservationRequest{
		FullName:  "  ana   pereira ",
		Email:     " Ana@Example.COM ",
		StartDate: start,
		EndDate:   start.AddDays(1),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/reservations/id/abc" {
		t.Errorf("unexpected Location %q", loc)
	}
	if got.Email != "ana@example.com" {
		t.Errorf("email not normalized: %q", got.Email)
	}
	if strings.HasPrefix(got.FullName, " ") || strings.Contains(got.FullName, "  ") {
		t.Errorf("name not normalized: %q", got.FullName)
	}
}

func TestCreate_ServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conflict", apperrors.Conflict("taken").WithCause(reservationserrors.ErrConflict), http.StatusConflict, apperrors.CodeConflict},
		{"timeout", apperrors.Timeout("slow"), http.StatusGatewayTimeout, apperrors.CodeTimeout},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	start := today().AddDays(2)
	payload, _ := json.Marshal(model.ReservationRequest{
		FullName:  "Ana Pereira",
		Email:     "ana@example.com",
		StartDate: start,
		EndDate:   start.AddDays(2),
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newMockRouter(&mockReservationService{
				reserveFunc: func(ctx context.Context, start, end civil.Date, contact model.Contact) (*model.Reservation, error) {
					return nil, tt.err
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader(payload))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var body struct {
				Code  string `json:"code"`
				Error string `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
			if strings.Contains(body.Error, "disk on fire") {
				t.Errorf("internal error details leaked: %s", body.Error)
			}
		})
	}
}

// newTestServer runs the full application stack over the in-memory store.
func newTestServer(t *testing.T) *client.ReservationClient {
	t.Helper()

	cfg := config.FromEnv("reservations-handler-test")
	cfg.Log = logger.Discard()
	cfg.Location = time.UTC
	cfg.RateLimitRequests = 1000

	repo := repository.NewMemoryReservationRepository()
	svc := service.NewReservationService(repo, service.NewLocalSerializer(), service.NewNoopEventPublisher(), cfg)

	application := app.NewApplication(cfg)
	application.SetApp(
		NewReservationHandler(svc, validator.NewReservationValidator(validator.PolicyFromConfig(cfg), cfg.Log), cfg.Log),
		NewHealthHandler(repo, cfg.Log),
	)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)

	return client.NewReservationClient(server.URL)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	return statusErr.StatusCode
}

func TestReservationLifecycle(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	start := today().AddDays(3)
	from, to := start, start.AddDays(5)

	before, err := c.Available(ctx, from, to)
	if err != nil {
		t.Fatalf("Available() error: %v", err)
	}
	if len(before) != 5 {
		t.Fatalf("expected 5 free dates, got %v", before)
	}

	created, err := c.Reserve(ctx, &model.ReservationRequest{
		FullName:  "Ana Pereira",
		Email:     "ana@example.com",
		StartDate: start,
		EndDate:   start.AddDays(2),
	})
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if created.ID == "" || created.StartDate != start || created.EndDate != start.AddDays(2) {
		t.Fatalf("unexpected reservation %+v", created)
	}

	after, err := c.Available(ctx, from, to)
	if err != nil {
		t.Fatalf("Available() error: %v", err)
	}
	want := []civil.Date{start.AddDays(2), start.AddDays(3), start.AddDays(4)}
	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("available dates mismatch (-want +got):\n%s", diff)
	}

	_, err = c.Reserve(ctx, &model.ReservationRequest{
		FullName:  "Bruno Costa",
		Email:     "bruno@example.com",
		StartDate: start.AddDays(1),
		EndDate:   start.AddDays(3),
	})
	if got := statusOf(t, err); got != http.StatusConflict {
		t.Errorf("overlapping reserve: expected 409, got %d", got)
	}

	// Checkout day of one stay is the arrival day of the next.
	adjacent, err := c.Reserve(ctx, &model.ReservationRequest{
		FullName:  "Bruno Costa",
		Email:     "bruno@example.com",
		StartDate: start.AddDays(2),
		EndDate:   start.AddDays(3),
	})
	if err != nil {
		t.Fatalf("adjacent reserve should succeed: %v", err)
	}

	modified, err := c.Modify(ctx, created.ID, &model.ReservationDatesRequest{
		StartDate: start.AddDays(-1),
		EndDate:   start.AddDays(2),
	})
	if err != nil {
		t.Fatalf("Modify() error: %v", err)
	}
	if modified.StartDate != start.AddDays(-1) || modified.Email != "ana@example.com" {
		t.Errorf("unexpected modified reservation %+v", modified)
	}

	_, err = c.Modify(ctx, created.ID, &model.ReservationDatesRequest{
		StartDate: start.AddDays(1),
		EndDate:   start.AddDays(3),
	})
	if got := statusOf(t, err); got != http.StatusConflict {
		t.Errorf("overlapping modify: expected 409, got %d", got)
	}

	fetched, err := c.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if fetched.StartDate != start.AddDays(-1) {
		t.Errorf("failed modify must not change the reservation, got %+v", fetched)
	}

	page, err := c.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if page.TotalCount != 2 || len(page.Data) != 2 {
		t.Errorf("expected 2 reservations, got %+v", page)
	}

	if err := c.Cancel(ctx, adjacent.ID); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if got := statusOf(t, c.Cancel(ctx, adjacent.ID)); got != http.StatusNotFound {
		t.Errorf("second cancel: expected 404, got %d", got)
	}
	_, err = c.Get(ctx, adjacent.ID)
	if got := statusOf(t, err); got != http.StatusNotFound {
		t.Errorf("get cancelled: expected 404, got %d", got)
	}
}

func TestReservationValidationOverHTTP(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	start := today().AddDays(3)

	tests := []struct {
		name       string
		req        *model.ReservationRequest
		wantStatus int
	}{
		{
			name:       "stay too long",
			req:        &model.ReservationRequest{FullName: "A", Email: "a@example.com", StartDate: start, EndDate: start.AddDays(4)},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "arrival today",
			req:        &model.ReservationRequest{FullName: "A", Email: "a@example.com", StartDate: today(), EndDate: today().AddDays(1)},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "too far ahead",
			req:        &model.ReservationRequest{FullName: "A", Email: "a@example.com", StartDate: today().AddDays(40), EndDate: today().AddDays(41)},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad email",
			req:        &model.ReservationRequest{FullName: "A", Email: "nope", StartDate: start, EndDate: start.AddDays(1)},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Reserve(ctx, tt.req)
			if got := statusOf(t, err); got != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, got)
			}
		})
	}

	_, err := c.Get(ctx, "not-a-uuid")
	if got := statusOf(t, err); got != http.StatusBadRequest {
		t.Errorf("invalid id: expected 400, got %d", got)
	}

	_, err = c.Available(ctx, start.AddDays(5), start)
	if got := statusOf(t, err); got != http.StatusBadRequest {
		t.Errorf("reversed window: expected 400, got %d", got)
	}
}

func TestIdempotentReserve(t *testing.T) {
	c := newTestServer(t)
	ctx := context.Background()

	start := today().AddDays(4)
	body := &model.ReservationRequest{FullName: "Ana", Email: "ana@example.com", StartDate: start, EndDate: start.AddDays(1)}
	headers := map[string]string{middleware.IdempotencyKeyHeader: "retry-1"}

	first, err := c.HTTP().Do(ctx, http.MethodPost, "/api/v1/reservations", body, headers)
	if err != nil || first.StatusCode != http.StatusCreated {
		t.Fatalf("first request failed: %v %v", err, first)
	}
	second, err := c.HTTP().Do(ctx, http.MethodPost, "/api/v1/reservations", body, headers)
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if second.StatusCode != http.StatusCreated || second.Header.Get("Idempotent-Replayed") != "true" {
		t.Errorf("expected replayed 201, got %s", second)
	}

	page, err := c.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if page.TotalCount != 1 {
		t.Errorf("retry must not create a second reservation, got %d", page.TotalCount)
	}
}
