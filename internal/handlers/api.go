package handlers

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const cacheControl = "public, max-age=60"

var cacheHeaders = map[string]string{"Cache-Control": cacheControl}

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	data      config.DataConfig
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, data config.DataConfig) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		data:      data,
	}
}

// parseFilter reads the global month-range and category filters every
// analysis accepts: ?from=2024-01&to=2024-06&categories=A,B
func parseFilter(r *http.Request) services.Filter {
	f := services.Filter{
		FromMonth: r.URL.Query().Get("from"),
		ToMonth:   r.URL.Query().Get("to"),
	}
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				f.Categories = append(f.Categories, models.Category(c))
			}
		}
	}
	return f
}

func (h *APIHandlers) writeResult(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil {
		requestID := observability.GetRequestID(r.Context())
		if stderrors.Is(err, services.ErrEmptyResultSet) {
			errors.WriteError(w, h.logger, errors.UnprocessableWrap(err, "No records match the current filter"), requestID)
			return
		}
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	errors.WriteSuccessWithHeaders(w, data, cacheHeaders)
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.Summary(parseFilter(r))
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.TopProducts(parseFilter(r), h.topN(r), false)
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleBottomProducts(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.TopProducts(parseFilter(r), h.topN(r), true)
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleDeadstock(w http.ResponseWriter, r *http.Request) {
	threshold := h.data.DeadstockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			threshold = n
		}
	}
	data, err := h.analytics.Deadstock(parseFilter(r), threshold)
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleCitySegmentation(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.CityPivot(parseFilter(r))
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.MonthlyTrend(parseFilter(r))
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleABC(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.ABC(parseFilter(r))
	h.writeResult(w, r, data, err)
}

func (h *APIHandlers) HandleLoyalty(w http.ResponseWriter, r *http.Request) {
	metric := models.LoyaltyByDays
	if r.URL.Query().Get("metric") == string(models.LoyaltyByTransactions) {
		metric = models.LoyaltyByTransactions
	}
	data, err := h.analytics.Loyalty(parseFilter(r), metric)
	h.writeResult(w, r, data, err)
}

// HandleFilters serves the values the filter widgets offer: months present
// and categories present.
func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"months":     h.analytics.Months(),
		"categories": h.analytics.Categories(),
	})
}

// HandleUpload ingests one or more sales exports. Files that fail
// structurally contribute zero records and come back as warnings, not
// errors.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.data.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.data.MaxUploadBytes); err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Invalid multipart upload"), requestID)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		errors.WriteError(w, h.logger, errors.Validation("Upload at least one file under the \"files\" field"), requestID)
		return
	}

	format := r.FormValue("format")
	uploads := make([]services.UploadFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Unreadable upload "+header.Filename), requestID)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "Unreadable upload "+header.Filename), requestID)
			return
		}
		uploads = append(uploads, services.UploadFile{
			Name:   header.Filename,
			Format: format,
			Data:   data,
		})
	}

	added, warnings, err := h.analytics.IngestFiles(r.Context(), uploads)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "Ingestion failed"), requestID)
		return
	}

	errors.WriteSuccessWarnings(w, map[string]any{
		"files":         len(uploads),
		"records_added": added,
		"records_total": h.analytics.RecordCount(),
	}, warnings)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

// HandleClassifierReview lists category-table entries matching no observed
// product, so whitespace-damaged catalog entries can be reviewed instead of
// silently never firing.
func (h *APIHandlers) HandleClassifierReview(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"unmatched_table_entries": h.analytics.ClassifierReview(),
	})
}

func (h *APIHandlers) topN(r *http.Request) int {
	if raw := r.URL.Query().Get("n"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return h.data.TopN
}
