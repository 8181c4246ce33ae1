package handlers

import (
	"encoding/json"
	stderrors "errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

// Menu identifiers, one per analysis the dashboard offers.
const (
	MenuTopProducts    = "top-products"
	MenuBottomProducts = "bottom-products"
	MenuDeadstock      = "deadstock"
	MenuCities         = "cities"
	MenuMonthlyTrend   = "monthly-trend"
	MenuABC            = "abc"
	MenuLoyalty        = "loyalty"
)

var kpiTemplate = template.Must(template.New("kpi").Parse(`
<div id="kpi-content" class="kpi-row">
<div class="kpi-tile"><span class="kpi-label">Total Revenue</span><strong>Rp {{.TotalRevenue}}</strong></div>
<div class="kpi-tile"><span class="kpi-label">Transactions</span><strong>{{.Records}}</strong></div>
<div class="kpi-tile"><span class="kpi-label">Unique Customers</span><strong>{{.UniqueCustomers}}</strong></div>
<div class="kpi-tile"><span class="kpi-label">Products Sold</span><strong>{{.UniqueProducts}}</strong></div>
</div>`))

var productTableTemplate = template.Must(template.New("productTable").Parse(`
<div id="analysis-content">
<h2>{{.Title}}</h2>
<table class="modern-table">
<thead><tr><th>Category</th><th>Product</th><th>Quantity Sold</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td><span class="category-badge">{{.Category}}</span></td>
<td>{{.ProductName}}</td>
<td><strong>{{.Quantity}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var cityTableTemplate = template.Must(template.New("cityTable").Parse(`
<div id="analysis-content">
<h2>Sales by City</h2>
<table class="modern-table">
<thead><tr><th>Product</th>{{range .Cities}}<th>{{.}}</th>{{end}}<th>Total</th></tr></thead>
<tbody>
{{range $row := .Rows}}<tr>
<td>{{$row.ProductName}}</td>
{{range $city := $.Cities}}<td>{{index $row.Quantities $city}}</td>{{end}}
<td><strong>{{$row.Total}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var abcTemplate = template.Must(template.New("abc").Parse(`
<div id="analysis-content">
<h2>ABC Classification (Pareto 80/15/5)</h2>
<table class="modern-table">
<thead><tr><th>Class</th><th>Products</th><th>Revenue</th><th>Contribution</th></tr></thead>
<tbody>
{{range .Summaries}}<tr>
<td><span class="category-badge">{{.Class}}</span></td>
<td>{{.ProductCount}}</td>
<td>Rp {{.Revenue}}</td>
<td>{{printf "%.1f" .Contribution}}%</td>
</tr>{{end}}
</tbody>
</table>
<table class="modern-table">
<thead><tr><th>Product</th><th>Revenue</th><th>Share</th><th>Cumulative</th><th>Class</th></tr></thead>
<tbody>
{{range .Entries}}<tr>
<td>{{.ProductName}}</td>
<td>Rp {{.Revenue}}</td>
<td>{{printf "%.1f" .Percentage}}%</td>
<td>{{printf "%.1f" .Cumulative}}%</td>
<td><strong>{{.Class}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var loyaltyTemplate = template.Must(template.New("loyalty").Parse(`
<div id="analysis-content">
<h2>Customer Loyalty ({{.Metric}})</h2>
{{range .Tiers}}
<h3>{{.Tier}} ({{.CustomerCount}} customers)</h3>
<p class="customer-roster">{{.Roster}}</p>
{{end}}
<table class="modern-table">
<thead><tr><th>Customer</th><th>Transaction Days</th><th>Transactions</th><th>Revenue</th><th>Tier</th></tr></thead>
<tbody>
{{range .Customers}}<tr>
<td>{{.Customer}}</td>
<td>{{.TransactionDays}}</td>
<td>{{.Transactions}}</td>
<td>Rp {{.Revenue}}</td>
<td><span class="category-badge">{{.Tier}}</span></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var emptyTemplate = template.Must(template.New("empty").Parse(`
<div id="analysis-content"><p class="empty-note">{{.}}</p></div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	data      config.DataConfig
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, data config.DataConfig) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		data:      data,
	}
}

// HandleSummary patches the KPI tile block.
func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	summary, err := h.analytics.Summary(parseFilter(r))
	if err != nil {
		h.patchEmpty(sse, `<div id="kpi-content"><p class="empty-note">No records match the current filter</p></div>`)
		return
	}

	var buf strings.Builder
	if err := kpiTemplate.Execute(&buf, summary); err != nil {
		h.logger.Error("render kpi tiles", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleAnalysis renders the analysis panel selected by ?menu=, honoring the
// global month-range and category filters.
func (h *SSEHandlers) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	menu := r.URL.Query().Get("menu")
	if menu == "" {
		menu = MenuTopProducts
	}
	filter := parseFilter(r)

	html, signals, err := h.renderMenu(menu, filter, r)
	if stderrors.Is(err, services.ErrEmptyResultSet) {
		h.patchEmpty(sse, "")
		return
	}
	if err != nil {
		h.logger.Error("render analysis", "menu", menu, "error", err)
		return
	}

	if signals != nil {
		sse.PatchSignals(signals)
	}
	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *SSEHandlers) renderMenu(menu string, filter services.Filter, r *http.Request) (string, []byte, error) {
	switch menu {
	case MenuTopProducts:
		rows, err := h.analytics.TopProducts(filter, h.data.TopN, false)
		if err != nil {
			return "", nil, err
		}
		html, err := renderProductTable("Top Sellers per Category", rows)
		return html, nil, err

	case MenuBottomProducts:
		rows, err := h.analytics.TopProducts(filter, h.data.TopN, true)
		if err != nil {
			return "", nil, err
		}
		html, err := renderProductTable("Slowest Sellers per Category", rows)
		return html, nil, err

	case MenuDeadstock:
		rows, err := h.analytics.Deadstock(filter, h.data.DeadstockThreshold)
		if err != nil {
			return "", nil, err
		}
		html, err := renderProductTable("Deadstock Products", rows)
		return html, nil, err

	case MenuCities:
		pivot, err := h.analytics.CityPivot(filter)
		if err != nil {
			return "", nil, err
		}
		var buf strings.Builder
		if err := cityTableTemplate.Execute(&buf, pivot); err != nil {
			return "", nil, err
		}
		return buf.String(), nil, nil

	case MenuMonthlyTrend:
		trend, err := h.analytics.MonthlyTrend(filter)
		if err != nil {
			return "", nil, err
		}
		signals, err := json.Marshal(map[string]any{"monthlyData": trend})
		if err != nil {
			return "", nil, err
		}
		return `<div id="analysis-content"><h2>Monthly Sales Trend</h2><div id="monthly-chart"></div></div>`, signals, nil

	case MenuABC:
		report, err := h.analytics.ABC(filter)
		if err != nil {
			return "", nil, err
		}
		var buf strings.Builder
		if err := abcTemplate.Execute(&buf, report); err != nil {
			return "", nil, err
		}
		return buf.String(), nil, nil

	case MenuLoyalty:
		metric := models.LoyaltyByDays
		if r.URL.Query().Get("metric") == string(models.LoyaltyByTransactions) {
			metric = models.LoyaltyByTransactions
		}
		report, err := h.analytics.Loyalty(filter, metric)
		if err != nil {
			return "", nil, err
		}
		var buf strings.Builder
		if err := loyaltyTemplate.Execute(&buf, loyaltyView(report)); err != nil {
			return "", nil, err
		}
		return buf.String(), nil, nil
	}

	var buf strings.Builder
	if err := emptyTemplate.Execute(&buf, "Unknown analysis: "+menu); err != nil {
		return "", nil, err
	}
	return buf.String(), nil, nil
}

func renderProductTable(title string, rows []models.ProductSales) (string, error) {
	var buf strings.Builder
	err := productTableTemplate.Execute(&buf, struct {
		Title string
		Rows  []models.ProductSales
	}{title, rows})
	return buf.String(), err
}

func (h *SSEHandlers) patchEmpty(sse *datastar.ServerSentEventGenerator, html string) {
	if html == "" {
		var buf strings.Builder
		if err := emptyTemplate.Execute(&buf, "No records match the current filter"); err != nil {
			h.logger.Error("render empty panel", "error", err)
			return
		}
		html = buf.String()
	}
	sse.PatchElements(html)
}

// loyaltyView flattens the tier rosters into pre-joined strings so the
// template stays free of custom functions.
type loyaltyData struct {
	Metric    models.LoyaltyMetric
	Customers []models.CustomerLoyalty
	Tiers     []loyaltyTierView
}

type loyaltyTierView struct {
	Tier          string
	CustomerCount int
	Roster        string
}

func loyaltyView(report models.LoyaltyReport) loyaltyData {
	view := loyaltyData{
		Metric:    report.Metric,
		Customers: report.Customers,
	}
	for _, tier := range report.Tiers {
		view.Tiers = append(view.Tiers, loyaltyTierView{
			Tier:          tier.Tier,
			CustomerCount: tier.CustomerCount,
			Roster:        strings.Join(tier.Customers, "; "),
		})
	}
	return view
}
