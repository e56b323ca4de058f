package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/ledger"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/middleware"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	dateLayout = "2006-01-02"
	maxLimit   = 100
)

// ExpenseHandler serves the authenticated user's expense ledger.
type ExpenseHandler struct {
	ledger *ledger.Service
}

// NewExpenseHandler creates a new expense handler
func NewExpenseHandler(svc *ledger.Service) *ExpenseHandler {
	return &ExpenseHandler{ledger: svc}
}

// owner returns the caller's user id or writes 401.
func owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok || claims.UserID == "" {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return "", false
	}
	return claims.UserID, true
}

// Create handles POST /api/expenses
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var in models.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	in.UserID = ownerID
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.ledger.Create(r.Context(), ownerID, in)
	if err != nil {
		h.internalError(w, err, "Failed to create expense")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// List handles GET /api/expenses
func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	opts, err := parseQueryOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ledger.Query(r.Context(), ownerID, opts)
	if err != nil {
		h.internalError(w, err, "Failed to list expenses")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/expenses/stats
func (h *ExpenseHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	summary, err := h.ledger.Summarize(r.Context(), ownerID, ledger.SummaryOptions{
		CarID:  q.Get("carId"),
		Period: models.ParsePeriod(q.Get("period")),
	})
	if err != nil {
		h.internalError(w, err, "Failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Get handles GET /api/expenses/{id}
func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	e, found, err := h.ledger.Get(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		h.internalError(w, err, "Failed to load expense")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Update handles PUT /api/expenses/{id}
func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	var patch models.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, found, err := h.ledger.Update(r.Context(), ownerID, r.PathValue("id"), patch)
	if err != nil {
		h.internalError(w, err, "Failed to update expense")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Delete handles DELETE /api/expenses/{id}
func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := owner(w, r)
	if !ok {
		return
	}

	removed, err := h.ledger.Delete(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		h.internalError(w, err, "Failed to delete expense")
		return
	}
	status := http.StatusOK
	if !removed {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]bool{"success": removed})
}

func (h *ExpenseHandler) internalError(w http.ResponseWriter, err error, msg string) {
	log.WithError(err).Error(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

var errBadQuery = errors.New("invalid query parameter")

// parseQueryOptions reads carId, category, startDate, endDate, page and limit.
// endDate covers the whole named day.
func parseQueryOptions(r *http.Request) (ledger.QueryOptions, error) {
	q := r.URL.Query()
	opts := ledger.QueryOptions{CarID: q.Get("carId")}

	if raw := q.Get("category"); raw != "" {
		c, err := models.ParseCategory(raw)
		if err != nil {
			return opts, err
		}
		opts.Category = c
	}

	if raw := q.Get("startDate"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return opts, fmt.Errorf("%w: startDate must be YYYY-MM-DD", errBadQuery)
		}
		opts.StartDate = d
	}
	if raw := q.Get("endDate"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return opts, fmt.Errorf("%w: endDate must be YYYY-MM-DD", errBadQuery)
		}
		opts.EndDate = d.Add(24*time.Hour - time.Nanosecond)
	}

	var err error
	if opts.Page, err = intParam(q.Get("page"), ledger.DefaultPage); err != nil {
		return opts, fmt.Errorf("%w: page", errBadQuery)
	}
	if opts.Limit, err = intParam(q.Get("limit"), ledger.DefaultLimit); err != nil {
		return opts, fmt.Errorf("%w: limit", errBadQuery)
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}
	return opts, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return def, nil
	}
	return v, nil
}
