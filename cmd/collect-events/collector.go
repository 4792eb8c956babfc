package main

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	requestEventName   = "taskweb.http.request"
	requestEventDomain = "app"

	attrRoute           = "http.route"
	attrStatusCode      = "http.status_code"
	attrTotalMillis     = "taskweb.request.total_ms"
	attrStoreMillis     = "taskweb.request.store_ms"
	attrGatewayMillis   = "taskweb.request.gateway_ms"
	attrRecordsReturned = "taskweb.request.records_returned"
	attrErrorStage      = "taskweb.request.error_stage"
)

var durationAttrs = map[string]string{
	"total":   attrTotalMillis,
	"store":   attrStoreMillis,
	"gateway": attrGatewayMillis,
}

type logRecord struct {
	EventName      string         `json:"event.name"`
	EventDomain    string         `json:"event.domain"`
	SeverityText   string         `json:"severity_text"`
	SeverityNumber int            `json:"severity_number"`
	Attributes     map[string]any `json:"attributes"`
}

type collector struct {
	eventName   string
	eventDomain string

	count       int
	severities  map[string]int
	statuses    map[int]int
	routes      map[string]int
	durations   map[string]*numericStats
	records     *numericStats
	errorStages map[string]int
	skipped     int
}

type numericStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

type numericSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

type summaryOutput struct {
	EventName       string                    `json:"event_name"`
	EventDomain     string                    `json:"event_domain"`
	TotalEvents     int                       `json:"total_events"`
	SeverityCounts  map[string]int            `json:"severity_counts"`
	StatusCounts    map[string]int            `json:"status_counts"`
	RouteCounts     map[string]int            `json:"route_counts"`
	DurationMs      map[string]numericSummary `json:"duration_ms"`
	RecordsReturned numericSummary            `json:"records_returned"`
	ErrorStages     map[string]int            `json:"error_stages,omitempty"`
	SkippedLines    int                       `json:"skipped_lines"`
}

func newCollector(eventName, eventDomain string) *collector {
	return &collector{
		eventName:   eventName,
		eventDomain: eventDomain,
		severities:  make(map[string]int),
		statuses:    make(map[int]int),
		routes:      make(map[string]int),
		durations:   make(map[string]*numericStats),
		errorStages: make(map[string]int),
	}
}

// ingest consumes one log line. Lines prefixed by a container name
// ("web-1 | {...}") are accepted.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	var rec logRecord
	if err := sonic.UnmarshalString(trimmed, &rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != c.eventName {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}
	c.add(rec)
}

func (c *collector) add(rec logRecord) {
	c.count++
	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	c.severities[severity]++

	attrs := rec.Attributes
	if attrs == nil {
		return
	}
	if status, ok := asFloat(attrs[attrStatusCode]); ok {
		c.statuses[int(status)]++
	}
	if route, ok := attrs[attrRoute].(string); ok && route != "" {
		c.routes[route]++
	}
	for name, attr := range durationAttrs {
		if v, ok := asFloat(attrs[attr]); ok {
			stat, exists := c.durations[name]
			if !exists {
				stat = newNumericStats()
				c.durations[name] = stat
			}
			stat.add(v)
		}
	}
	if v, ok := asFloat(attrs[attrRecordsReturned]); ok {
		if c.records == nil {
			c.records = newNumericStats()
		}
		c.records.add(v)
	}
	if stage, ok := attrs[attrErrorStage].(string); ok && stage != "" {
		c.errorStages[stage]++
	}
}

func newNumericStats() *numericStats {
	return &numericStats{Min: math.MaxFloat64}
}

func (n *numericStats) add(value float64) {
	n.Count++
	n.Sum += value
	if value < n.Min {
		n.Min = value
	}
	if value > n.Max {
		n.Max = value
	}
}

func (n *numericStats) summary() numericSummary {
	if n == nil || n.Count == 0 {
		return numericSummary{}
	}
	return numericSummary{Count: n.Count, Min: n.Min, Max: n.Max, Avg: n.Sum / float64(n.Count)}
}

func (c *collector) summary() summaryOutput {
	durations := make(map[string]numericSummary, len(c.durations))
	for name, stat := range c.durations {
		durations[name] = stat.summary()
	}
	statuses := make(map[string]int, len(c.statuses))
	for status, n := range c.statuses {
		statuses[strconv.Itoa(status)] = n
	}
	out := summaryOutput{
		EventName:       c.eventName,
		EventDomain:     c.eventDomain,
		TotalEvents:     c.count,
		SeverityCounts:  copyCounts(c.severities),
		StatusCounts:    statuses,
		RouteCounts:     copyCounts(c.routes),
		DurationMs:      durations,
		RecordsReturned: c.records.summary(),
		SkippedLines:    c.skipped,
	}
	if len(c.errorStages) > 0 {
		out.ErrorStages = copyCounts(c.errorStages)
	}
	return out
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ShortString is a one line digest for CI logs.
func (s summaryOutput) ShortString() string {
	total := s.DurationMs["total"]
	parts := []string{
		"event=" + s.EventName,
		"total=" + strconv.Itoa(s.TotalEvents),
		"info=" + strconv.Itoa(s.SeverityCounts["INFO"]),
		"warn=" + strconv.Itoa(s.SeverityCounts["WARN"]),
		"error=" + strconv.Itoa(s.SeverityCounts["ERROR"]),
		"avg_total_ms=" + formatFloat(total.Avg),
		"max_total_ms=" + formatFloat(total.Max),
	}
	stages := make([]string, 0, len(s.ErrorStages))
	for stage := range s.ErrorStages {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	if len(stages) > 0 {
		parts = append(parts, "error_stages="+strings.Join(stages, ","))
	}
	return strings.Join(parts, " ")
}

func formatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
