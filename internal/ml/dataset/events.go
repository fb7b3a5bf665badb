package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FeatureVersion is stamped on every cleaned row.
const FeatureVersion = "v1.1"

// EventColumns is the layout of the event dataset and of the export of finalized events.
var EventColumns = []string{
	"event_title", "category", "department", "target_year", "capacity", "location",
	"date", "time", "event_tags", "success_rate",
	"actual_attendees", "actual_engagement", "actual_sentiment",
}

// CleanedColumns is the layout of the cleaned event dataset.
var CleanedColumns = []string{
	"event_title", "category", "department", "target_year", "capacity", "location",
	"month", "day_of_week", "hour", "minute", "event_tags",
	"title_length", "title_word_count", "num_tags", "is_weekend", "time_of_day",
	"is_workshop", "dept_popularity", "feature_version", "success_rate",
}

var (
	mergeKey = []string{"event_title", "date", "time"}
	cleanKey = []string{"event_title", "date", "time", "location"}

	dateLayouts = []string{"2006-01-02", "2006/01/02", "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00", "01/02/2006"}
	timeLayouts = []string{"15:04", "15:04:05"}
)

// Merge appends update to main and keeps the last row per (event_title, date, time),
// preserving the position of each kept row.
func Merge(main, update *Table) *Table {
	all := Concat(main, update)
	last := make(map[string]int, len(all.Rows))
	for i, row := range all.Rows {
		last[all.key(row, mergeKey)] = i
	}
	out := NewTable(all.Header...)
	for i, row := range all.Rows {
		if last[all.key(row, mergeKey)] == i {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func (t *Table) key(row []string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = t.Value(row, c)
	}
	return strings.Join(parts, "\x1f")
}

// Metadata accompanies the cleaned dataset.
type Metadata struct {
	CreatedOn                 time.Time             `json:"created_on"`
	FeatureList               []string              `json:"feature_list"`
	RowCount                  int                   `json:"row_count"`
	NewestDate                string                `json:"newest_date,omitempty"`
	Stale                     bool                  `json:"stale"`
	Warnings                  []string              `json:"warnings"`
	ExpectedImportantFeatures []string              `json:"expected_important_features"`
	MonitoringMetrics         MonitoringMetrics     `json:"monitoring_metrics"`
	PerformanceBenchmark      map[string][2]float64 `json:"performance_benchmark"`
}

// MonitoringMetrics captures distribution checks of the cleaned data.
type MonitoringMetrics struct {
	MissingRate map[string]float64 `json:"missing_rate"`
	ValueRanges map[string][2]int  `json:"value_ranges"`
}

type cleanRow struct {
	title, category, department, location, tags string
	year, capacity, success                     float64
	date                                        time.Time
	clock                                       string
	clockOK                                     bool
}

// Clean turns the raw event dataset into training rows. now drives the
// staleness check. The returned lines describe each step.
func Clean(t *Table, now time.Time) (*Table, *Metadata, []string, error) {
	if err := t.Require("event_title", "capacity", "target_year", "success_rate", "date"); err != nil {
		return nil, nil, nil, err
	}
	var lines []string
	logf := func(format string, args ...any) { lines = append(lines, fmt.Sprintf(format, args...)) }
	logf("initial rows: %d", len(t.Rows))
	meta := &Metadata{
		CreatedOn:                 now.UTC(),
		Warnings:                  []string{},
		ExpectedImportantFeatures: []string{"capacity", "is_workshop", "dept_popularity", "month"},
		PerformanceBenchmark: map[string][2]float64{
			"expected_r2_range":  {0.25, 0.40},
			"expected_mae_range": {5.0, 7.0},
		},
	}

	// dates outside [1900, 2100] or unparseable
	var dated [][]string
	dates := make(map[int]time.Time)
	for _, row := range t.Rows {
		d, ok := parseDate(t.Value(row, "date"))
		if !ok || d.Year() < 1900 || d.Year() > 2100 {
			continue
		}
		dates[len(dated)] = d
		dated = append(dated, row)
	}
	logf("dropped %d rows with invalid dates", len(t.Rows)-len(dated))
	var newest time.Time
	for _, d := range dates {
		if d.After(newest) {
			newest = d
		}
	}
	if !newest.IsZero() {
		meta.NewestDate = newest.Format("2006-01-02")
		logf("newest event date: %s", meta.NewestDate)
		if now.Sub(newest) > 365*24*time.Hour {
			meta.Stale = true
			meta.Warnings = append(meta.Warnings, "data appears stale (>1 year old)")
			logf("warning: data appears stale (>1 year old)")
		}
	}

	// exact duplicates, then key duplicates, first occurrence wins
	seenExact := make(map[string]bool, len(dated))
	seenKey := make(map[string]bool, len(dated))
	var rows []cleanRow
	var keptDates []time.Time
	exactDups, keyDups, untitled := 0, 0, 0
	for i, row := range dated {
		exact := strings.Join(row, "\x1f")
		if seenExact[exact] {
			exactDups++
			continue
		}
		seenExact[exact] = true
		k := t.key(row, cleanKey)
		if seenKey[k] {
			keyDups++
			continue
		}
		seenKey[k] = true
		title := strings.TrimSpace(t.Value(row, "event_title"))
		if title == "" {
			untitled++
			continue
		}
		yearRaw := strings.TrimSpace(t.Value(row, "target_year"))
		if strings.EqualFold(yearRaw, "all") {
			yearRaw = "0"
		}
		clock, clockOK := parseClock(t.Value(row, "time"))
		rows = append(rows, cleanRow{
			title:      title,
			category:   strings.TrimSpace(t.Value(row, "category")),
			department: strings.TrimSpace(t.Value(row, "department")),
			location:   strings.TrimSpace(t.Value(row, "location")),
			tags:       t.Value(row, "event_tags"),
			year:       parseNumber(yearRaw),
			capacity:   parseNumber(t.Value(row, "capacity")),
			success:    parseNumber(t.Value(row, "success_rate")),
			date:       dates[i],
			clock:      clock,
			clockOK:    clockOK,
		})
		keptDates = append(keptDates, dates[i])
	}
	logf("dropped %d exact duplicates and %d key duplicates on %v", exactDups, keyDups, cleanKey)
	logf("dropped %d rows with missing event titles", untitled)
	if len(rows) == 0 {
		return nil, nil, lines, ErrEmpty
	}

	yearMedian := median(column(rows, func(r cleanRow) float64 { return r.year }))
	capMedian := median(column(rows, func(r cleanRow) float64 { return r.capacity }))
	successMedian := median(column(rows, func(r cleanRow) float64 { return r.success }))
	logf("medians: target_year=%g capacity=%g success_rate=%g", yearMedian, capMedian, successMedian)

	clockMode, invalidClocks := modeClock(rows)
	if invalidClocks > 0 {
		logf("warning: %d invalid times found - filling with %s", invalidClocks, clockMode)
	}

	title := cases.Title(language.Und)
	deptCounts := make(map[string]int)
	for i := range rows {
		r := &rows[i]
		r.year = fill(r.year, yearMedian)
		r.capacity = fill(r.capacity, capMedian)
		r.success = fill(r.success, successMedian)
		r.category = title.String(orUnknown(r.category))
		r.department = title.String(orUnknown(r.department))
		r.location = title.String(orUnknown(r.location))
		r.title = title.String(r.title)
		r.tags = strings.ToLower(strings.TrimSpace(r.tags))
		if !r.clockOK {
			r.clock = clockMode
		}
		deptCounts[r.department]++
	}

	out := NewTable(CleanedColumns...)
	capMin, capMax, srMin, srMax := math.MaxInt, math.MinInt, math.MaxInt, math.MinInt
	for _, r := range rows {
		year := int(clip(r.year, 1, 4))
		capacity := int(clip(r.capacity, 50, 400))
		success := int(clip(r.success, 30, 99))
		capMin, capMax = min(capMin, capacity), max(capMax, capacity)
		srMin, srMax = min(srMin, success), max(srMax, success)

		hh, mm := splitClock(r.clock)
		dow := (int(r.date.Weekday()) + 6) % 7
		out.AppendRecord(map[string]string{
			"event_title":      r.title,
			"category":         r.category,
			"department":       r.department,
			"target_year":      strconv.Itoa(year),
			"capacity":         strconv.Itoa(capacity),
			"location":         r.location,
			"month":            strconv.Itoa(int(r.date.Month())),
			"day_of_week":      strconv.Itoa(dow),
			"hour":             strconv.Itoa(hh),
			"minute":           strconv.Itoa(mm),
			"event_tags":       r.tags,
			"title_length":     strconv.Itoa(utf8.RuneCountInString(r.title)),
			"title_word_count": strconv.Itoa(len(strings.Fields(r.title))),
			"num_tags":         strconv.Itoa(TagCount(r.tags)),
			"is_weekend":       boolFlag(dow >= 5),
			"time_of_day":      timeOfDay(hh),
			"is_workshop":      boolFlag(strings.Contains(strings.ToLower(r.title), "workshop")),
			"dept_popularity":  strconv.FormatFloat(float64(deptCounts[r.department])/float64(len(rows)), 'f', -1, 64),
			"feature_version":  FeatureVersion,
			"success_rate":     strconv.Itoa(success),
		})
	}

	meta.FeatureList = append([]string(nil), CleanedColumns...)
	meta.RowCount = len(out.Rows)
	meta.MonitoringMetrics = MonitoringMetrics{
		MissingRate: missingRates(out),
		ValueRanges: map[string][2]int{"capacity": {capMin, capMax}, "success_rate": {srMin, srMax}},
	}
	logf("final rows: %d", len(out.Rows))
	return out, meta, lines, nil
}

// TagCount counts comma separated tags. An empty list has no tags.
func TagCount(tags string) int {
	if strings.TrimSpace(tags) == "" {
		return 0
	}
	return strings.Count(tags, ",") + 1
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseClock normalises a time cell to HH:MM.
func parseClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if c, err := time.Parse(layout, s); err == nil {
			return c.Format("15:04"), true
		}
	}
	return "", false
}

func splitClock(clock string) (int, int) {
	c, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, 0
	}
	return c.Hour(), c.Minute()
}

// modeClock returns the most common valid time (earliest on ties, midnight when
// there is none) and the number of rows without a valid time.
func modeClock(rows []cleanRow) (string, int) {
	counts := make(map[string]int)
	invalid := 0
	for _, r := range rows {
		if r.clockOK {
			counts[r.clock]++
		} else {
			invalid++
		}
	}
	best, bestCount := "00:00", 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best, invalid
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func column(rows []cleanRow, get func(cleanRow) float64) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, get(r))
	}
	return out
}

// median of the non-NaN values, averaging the middle pair; 0 when there are none.
func median(vals []float64) float64 {
	clean := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0
	}
	sort.Float64s(clean)
	mid := len(clean) / 2
	if len(clean)%2 == 1 {
		return clean[mid]
	}
	return (clean[mid-1] + clean[mid]) / 2
}

func fill(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return v
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func timeOfDay(hour int) string {
	switch {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

func missingRates(t *Table) map[string]float64 {
	out := make(map[string]float64, len(t.Header))
	for i, h := range t.Header {
		missing := 0
		for _, row := range t.Rows {
			if row[i] == "" {
				missing++
			}
		}
		out[h] = float64(missing) / float64(len(t.Rows))
	}
	return out
}
