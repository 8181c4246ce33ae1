package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newSSEHandlers(t *testing.T) *SSEHandlers {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSSEHandlers(newTestAnalytics(t), logger, testDataConfig())
}

func TestSSESummary(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleSummary(rec, httptest.NewRequest(http.MethodGet, "/sse/summary", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `id="kpi-content"`) {
		t.Errorf("body missing kpi block: %s", body)
	}
	if !strings.Contains(body, "Total Revenue") || !strings.Contains(body, "17100") {
		t.Errorf("body missing revenue tile: %s", body)
	}
}

func TestSSESummary_EmptyFilter(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleSummary(rec, httptest.NewRequest(http.MethodGet, "/sse/summary?from=2030-01", nil))

	if !strings.Contains(rec.Body.String(), "No records match the current filter") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSSEAnalysis_DefaultsToTopProducts(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleAnalysis(rec, httptest.NewRequest(http.MethodGet, "/sse/analysis", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "Top Sellers per Category") {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(body, "PULPEN") || !strings.Contains(body, "RAK BESI") {
		t.Errorf("body missing product rows: %s", body)
	}
}

func TestSSEAnalysis_Menus(t *testing.T) {
	tests := []struct {
		menu string
		want string
	}{
		{MenuTopProducts, "Top Sellers per Category"},
		{MenuBottomProducts, "Slowest Sellers per Category"},
		{MenuDeadstock, "Deadstock Products"},
		{MenuCities, "Sales by City"},
		{MenuABC, "ABC Classification"},
		{MenuLoyalty, "Customer Loyalty"},
	}

	h := newSSEHandlers(t)
	for _, tt := range tests {
		t.Run(tt.menu, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleAnalysis(rec, httptest.NewRequest(http.MethodGet, "/sse/analysis?menu="+tt.menu, nil))

			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("menu %s body missing %q:\n%s", tt.menu, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSSEAnalysis_MonthlyTrendPatchesSignals(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleAnalysis(rec, httptest.NewRequest(http.MethodGet, "/sse/analysis?menu=monthly-trend", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "monthlyData") {
		t.Errorf("body missing trend signals: %s", body)
	}
	if !strings.Contains(body, "2024-05") || !strings.Contains(body, "2024-06") {
		t.Errorf("body missing months: %s", body)
	}
	if !strings.Contains(body, "Monthly Sales Trend") {
		t.Errorf("body missing chart panel: %s", body)
	}
}

func TestSSEAnalysis_LoyaltyRoster(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleAnalysis(rec, httptest.NewRequest(http.MethodGet, "/sse/analysis?menu=loyalty&metric=transactions", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "Toko A") || !strings.Contains(body, "Toko B") {
		t.Errorf("body missing customers: %s", body)
	}
	if !strings.Contains(body, "Potential Loyal") {
		t.Errorf("body missing tier heading: %s", body)
	}
}

func TestSSEAnalysis_EmptyFilter(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleAnalysis(rec, httptest.NewRequest(http.MethodGet, "/sse/analysis?menu=abc&from=2030-01", nil))

	if !strings.Contains(rec.Body.String(), "No records match the current filter") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSSEAnalysis_UnknownMenu(t *testing.T) {
	h := newSSEHandlers(t)

	rec := httptest.NewRecorder()
	h.HandleAnalysis(rec, httptest.NewRequest(http.MethodGet, "/sse/analysis?menu=bogus", nil))

	if !strings.Contains(rec.Body.String(), "Unknown analysis: bogus") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
