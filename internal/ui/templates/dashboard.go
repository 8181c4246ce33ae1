// Package templates holds the dashboard page. The page is a static shell:
// every panel loads and reloads through the datastar SSE endpoints, so the
// component itself carries no per-request state.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Dashboard is the single page of the application.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardPage)
		return err
	})
}

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>Sales Dashboard</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f5f6f8; color: #1f2430; }
header { background: #1f2430; color: #fff; padding: 1rem 2rem; }
main { padding: 1.5rem 2rem; max-width: 1100px; margin: 0 auto; }
.kpi-row { display: flex; gap: 1rem; flex-wrap: wrap; margin-bottom: 1.5rem; }
.kpi-tile { background: #fff; border-radius: 8px; padding: 1rem 1.5rem; box-shadow: 0 1px 3px rgba(0,0,0,.1); display: flex; flex-direction: column; }
.kpi-label { font-size: .8rem; color: #6b7280; }
.controls { display: flex; gap: 1rem; flex-wrap: wrap; align-items: end; margin-bottom: 1.5rem; }
.controls label { display: flex; flex-direction: column; font-size: .8rem; color: #6b7280; gap: .25rem; }
.modern-table { width: 100%; border-collapse: collapse; background: #fff; border-radius: 8px; overflow: hidden; margin-bottom: 1.5rem; }
.modern-table th, .modern-table td { text-align: left; padding: .5rem .75rem; border-bottom: 1px solid #e5e7eb; }
.modern-table th { background: #eef1f5; font-size: .8rem; text-transform: uppercase; }
.category-badge { background: #e0e7ff; color: #3730a3; border-radius: 999px; padding: .1rem .6rem; font-size: .8rem; }
.customer-roster { background: #fff; border-radius: 8px; padding: .75rem 1rem; font-size: .85rem; }
.empty-note { color: #6b7280; font-style: italic; }
</style>
</head>
<body data-signals="{menu: 'top-products', metric: 'days', from: '', to: '', monthlyData: []}">
<header>
<h1>Sales Dashboard</h1>
</header>
<main>
<section id="kpi-content" data-on-load="@get('/sse/summary')"></section>

<section class="controls">
<label>Analysis
<select data-bind-menu data-on-change="@get('/sse/analysis?menu=' + $menu + '&from=' + $from + '&to=' + $to + '&metric=' + $metric)">
<option value="top-products">Top Sellers</option>
<option value="bottom-products">Slowest Sellers</option>
<option value="deadstock">Deadstock</option>
<option value="cities">City Segmentation</option>
<option value="monthly-trend">Monthly Trend</option>
<option value="abc">ABC Classification</option>
<option value="loyalty">Customer Loyalty</option>
</select>
</label>
<label>From month
<input type="month" data-bind-from data-on-change="@get('/sse/analysis?menu=' + $menu + '&from=' + $from + '&to=' + $to + '&metric=' + $metric)"/>
</label>
<label>To month
<input type="month" data-bind-to data-on-change="@get('/sse/analysis?menu=' + $menu + '&from=' + $from + '&to=' + $to + '&metric=' + $metric)"/>
</label>
<label>Loyalty metric
<select data-bind-metric data-on-change="@get('/sse/analysis?menu=' + $menu + '&from=' + $from + '&to=' + $to + '&metric=' + $metric)">
<option value="days">Distinct days</option>
<option value="transactions">Transaction count</option>
</select>
</label>
<form method="post" action="/api/upload" enctype="multipart/form-data">
<label>Upload exports
<input type="file" name="files" accept=".xlsx,.csv" multiple/>
</label>
<button type="submit">Ingest</button>
</form>
</section>

<section id="analysis-content" data-on-load="@get('/sse/analysis?menu=top-products')"></section>
</main>
</body>
</html>`
