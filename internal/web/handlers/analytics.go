package handlers

import (
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/good-yellow-bee/reportwatch/internal/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

// The chart pages load ECharts from the CDN.
const (
	ChartCDN        = "https://cdn.jsdelivr.net"
	ChartAssetsHost = ChartCDN + "/npm/echarts@5.4.3/dist/"
	chartHeight     = "360px"
)

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) (*analytics.Summary, bool) {
	sum, err := h.analytics.Summary(r.Context(), h.now())
	if err != nil {
		h.serverError(w, "analytics summary", err)
		return nil, false
	}
	return sum, true
}

// ShowAnalytics renders the summary counters around the chart frames.
func (h *Handler) ShowAnalytics(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.summary(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, pages.Analytics(h.base(r), pages.AnalyticsView{Summary: sum}))
}

func chartOptions(title string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  title,
			Width:      "100%",
			Height:     chartHeight,
			AssetsHost: ChartAssetsHost,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

// RunsChart renders runs, triggers and failures per day as a bar chart.
func (h *Handler) RunsChart(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.summary(w, r)
	if !ok {
		return
	}

	days := make([]string, len(sum.Daily))
	runs := make([]opts.BarData, len(sum.Daily))
	triggers := make([]opts.BarData, len(sum.Daily))
	failures := make([]opts.BarData, len(sum.Daily))
	for i, d := range sum.Daily {
		days[i] = d.Day.Format("Jan 2")
		runs[i] = opts.BarData{Name: days[i], Value: d.Runs}
		triggers[i] = opts.BarData{Name: days[i], Value: d.Triggers}
		failures[i] = opts.BarData{Name: days[i], Value: d.Failures}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(chartOptions("Runs per day")...)
	bar.SetXAxis(days).
		AddSeries("Runs", runs).
		AddSeries("Triggers", triggers).
		AddSeries("Failures", failures)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(w); err != nil {
		h.serverError(w, "render runs chart", err)
	}
}

// StatusChart renders the alert status distribution as a pie chart.
func (h *Handler) StatusChart(w http.ResponseWriter, r *http.Request) {
	sum, ok := h.summary(w, r)
	if !ok {
		return
	}

	data := make([]opts.PieData, 0, len(models.AlertStatuses))
	for _, st := range models.AlertStatuses {
		if n := sum.ByStatus[st]; n > 0 {
			data = append(data, opts.PieData{Name: string(st), Value: n})
		}
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(chartOptions("Alerts by status")...)
	pie.AddSeries("Alerts", data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pie.Render(w); err != nil {
		h.serverError(w, "render status chart", err)
	}
}
