package invoice

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler serves the invoice HTTP API.
type Handler struct {
	service *Service
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a handler. metricsHandler, when set, is mounted at /metrics.
func NewHandler(service *Service, metricsHandler http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, metrics: metricsHandler, logger: logger}
}

// Router builds the chi router with every route registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	h.Register(r)
	return r
}

// Register adds the invoice routes to r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	r.Get("/settings", h.handleGetSettings)
	r.Post("/settings", h.handleSaveSettings)
	r.Post("/invoices", h.handleCreateInvoice)
	r.Get("/invoices", h.handleListInvoices)
	r.Get("/invoices/{id}", h.handleGetInvoice)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Store().LoadSettings()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	settings := model.StoreSettings{
		StoreName:    r.PostForm.Get("store_name"),
		StoreAddress: r.PostForm.Get("store_address"),
		IssuerID:     r.PostForm.Get("issuer_id"),
	}
	if settings.StoreName == "" || settings.StoreAddress == "" {
		writeError(w, http.StatusBadRequest, "store_name and store_address are required")
		return
	}
	if err := h.service.Store().SaveSettings(settings); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// parseCreateRequest reads item_name[], item_cost[], gst and issuer_name.
func parseCreateRequest(r *http.Request) (CreateRequest, error) {
	if err := r.ParseForm(); err != nil {
		return CreateRequest{}, err
	}
	form := r.PostForm

	gst, err := strconv.ParseFloat(strings.TrimSpace(form.Get("gst")), 64)
	if err != nil {
		return CreateRequest{}, errors.New("gst must be a number")
	}

	names, costs := form["item_name[]"], form["item_cost[]"]
	if len(names) != len(costs) {
		return CreateRequest{}, errors.New("item_name[] and item_cost[] must have the same length")
	}
	items := make([]model.InvoiceItem, len(names))
	for i := range names {
		cost, err := strconv.ParseFloat(strings.TrimSpace(costs[i]), 64)
		if err != nil {
			return CreateRequest{}, errors.New("item_cost[] must be numbers")
		}
		items[i] = model.InvoiceItem{Name: names[i], Cost: cost}
	}

	return CreateRequest{IssuerName: form.Get("issuer_name"), Items: items, GST: gst}, nil
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	req, err := parseCreateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Create(r.Context(), req)
	switch {
	case errors.Is(err, ErrInvalidInvoice):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to create invoice", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create invoice")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.Store().ListInvoiceIDs()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list invoices", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list invoices")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Store().GetInvoice(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "invoice not found")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to read invoice", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read invoice")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
