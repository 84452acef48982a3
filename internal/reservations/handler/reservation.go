package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"campsite/internal/reservations/service"
	"campsite/internal/reservations/validator"
	apperrors "campsite/pkg/errors"
	httputil "campsite/pkg/http"
	"campsite/pkg/logger"
	"campsite/pkg/model"
	"campsite/pkg/sanitizer"

	"github.com/julienschmidt/httprouter"
)

const reservationsPath = "/api/v1/reservations"

type WelcomeResponse struct {
	Message string `json:"message"`
	Docs    string `json:"docs"`
}

type ReservationHandler struct {
	service   service.ReservationService
	validator *validator.ReservationValidator
	log       *logger.Logger
}

func NewReservationHandler(svc service.ReservationService, v *validator.ReservationValidator, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   svc,
		validator: v,
		log:       log,
	}
}

func (h *ReservationHandler) Welcome(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, WelcomeResponse{
		Message: "Welcome to the campsite reservations API",
		Docs:    reservationsPath,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Welcome", "operation", "WriteSuccess", "error", err)
	}
}

// Available lists the free dates in [date_from, date_to). Without
// date_from the window starts today in the campsite time zone; without
// date_to it ends one month after date_from.
func (h *ReservationHandler) Available(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from, err := httputil.ExtractDate(r, "date_from")
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}
	to, err := httputil.ExtractDate(r, "date_to")
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	start, end := h.service.DefaultWindow()
	if from != nil {
		start = *from
		end = model.AddMonths(start, 1)
	}
	if to != nil {
		end = *to
	}

	dates, err := h.service.AvailableDates(r.Context(), start, end)
	if err != nil {
		h.writeError(w, "Available", err)
		return
	}

	if err := httputil.WriteSuccess(w, dates); err != nil {
		h.log.Error("failed to write success response", "handler", "Available", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	sanitizer.SanitizeReservationRequest(&req)
	if err := h.validator.Validate(&req); err != nil {
		h.writeError(w, "Create", validator.ToAppError(err))
		return
	}

	reservation, err := h.service.Reserve(r.Context(), req.StartDate, req.EndDate, req.Contact())
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	w.Header().Set("Location", reservationsPath+"/id/"+reservation.ID)
	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	reservations, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ReservationDatesRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := h.validator.ValidateDates(&req); err != nil {
		h.writeError(w, "Update", validator.ToAppError(err))
		return
	}

	reservation, err := h.service.Modify(r.Context(), ps.ByName("id"), req.StartDate, req.EndDate)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Cancel(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/", h.Welcome)
	router.GET(reservationsPath+"/available", h.Available)
	router.POST(reservationsPath, h.Create)
	router.GET(reservationsPath, h.GetAll)
	router.GET(reservationsPath+"/id/:id", h.GetByID)
	router.PUT(reservationsPath+"/id/:id", h.Update)
	router.DELETE(reservationsPath+"/id/:id", h.Delete)
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func decodeBody(r *http.Request, target any) error {
	err := json.NewDecoder(r.Body).Decode(target)
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	var parseErr *time.ParseError
	switch {
	case errors.As(err, &maxBytesErr):
		return apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, io.EOF):
		return apperrors.InvalidInput("Request body is empty")
	case errors.As(err, &parseErr):
		return apperrors.InvalidInput("Dates must use the YYYY-MM-DD format")
	default:
		return apperrors.InvalidInput("Invalid request body")
	}
}
