package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// StudentColumns is the layout of the per-student export.
var StudentColumns = []string{
	"user_id", "username", "department", "year",
	"event_ids", "event_tags", "feedback_ratings", "feedback_sentiments",
}

// Columns of the feature table that identify or describe a student but are not
// clustering features.
const (
	ColUserID   = "user_id"
	ColUsername = "username"
	ColEvents   = "events"
	TagPrefix   = "tag_"
)

var sentimentColumns = []struct{ column, label string }{
	{"sentiment_positive", "positive"},
	{"sentiment_negative", "negative"},
	{"sentiment_neutral", "neutral"},
}

// StudentRecord is one student's activity summary.
type StudentRecord struct {
	UserID             uint
	Username           string
	Department         string
	Year               string
	EventIDs           []uint
	EventTags          []string
	FeedbackRatings    []int
	FeedbackSentiments []string
}

// StudentTable renders records in StudentColumns layout. Lists are joined with
// ";"; tags are de-duplicated and sorted.
func StudentTable(records []StudentRecord) *Table {
	t := NewTable(StudentColumns...)
	for _, r := range records {
		ids := make([]string, len(r.EventIDs))
		for i, id := range r.EventIDs {
			ids[i] = strconv.FormatUint(uint64(id), 10)
		}
		ratings := make([]string, len(r.FeedbackRatings))
		for i, v := range r.FeedbackRatings {
			ratings[i] = strconv.Itoa(v)
		}
		t.AppendRecord(map[string]string{
			"user_id":             strconv.FormatUint(uint64(r.UserID), 10),
			"username":            r.Username,
			"department":          r.Department,
			"year":                r.Year,
			"event_ids":           strings.Join(ids, ";"),
			"event_tags":          strings.Join(uniqueSorted(r.EventTags), ";"),
			"feedback_ratings":    strings.Join(ratings, ";"),
			"feedback_sentiments": strings.Join(nonEmpty(r.FeedbackSentiments), ";"),
		})
	}
	return t
}

// BuildFeatures expands the student export into the feature table: tag
// multi-hot columns, department and year one-hot columns (categories sorted),
// sentiment counts, then events, user_id and username. It also returns the
// clustering feature columns, i.e. everything except those last three.
func BuildFeatures(students *Table) (*Table, []string, error) {
	if err := students.Require("user_id", "username", "department", "year", "event_ids", "event_tags", "feedback_sentiments"); err != nil {
		return nil, nil, err
	}
	tagSet := make(map[string]bool)
	deptSet := make(map[string]bool)
	yearSet := make(map[string]bool)
	for _, row := range students.Rows {
		for _, tag := range splitList(students.Value(row, "event_tags")) {
			tagSet[tag] = true
		}
		deptSet[strings.TrimSpace(students.Value(row, "department"))] = true
		yearSet[strings.TrimSpace(students.Value(row, "year"))] = true
	}

	var features []string
	for _, tag := range sortedKeys(tagSet) {
		features = append(features, TagPrefix+tag)
	}
	for _, d := range sortedKeys(deptSet) {
		features = append(features, "department_"+d)
	}
	for _, y := range sortedKeys(yearSet) {
		features = append(features, "year_"+y)
	}
	for _, s := range sentimentColumns {
		features = append(features, s.column)
	}

	out := NewTable(append(append([]string(nil), features...), ColEvents, ColUserID, ColUsername)...)
	for _, row := range students.Rows {
		rec := make(map[string]string, len(out.Header))
		for _, f := range features {
			rec[f] = "0"
		}
		for _, tag := range splitList(students.Value(row, "event_tags")) {
			rec[TagPrefix+tag] = "1"
		}
		rec["department_"+strings.TrimSpace(students.Value(row, "department"))] = "1"
		rec["year_"+strings.TrimSpace(students.Value(row, "year"))] = "1"
		sentiments := splitList(students.Value(row, "feedback_sentiments"))
		for _, s := range sentimentColumns {
			n := 0
			for _, v := range sentiments {
				if v == s.label {
					n++
				}
			}
			rec[s.column] = strconv.Itoa(n)
		}
		rec[ColEvents] = strconv.Itoa(len(splitList(students.Value(row, "event_ids"))))
		rec[ColUserID] = students.Value(row, "user_id")
		rec[ColUsername] = students.Value(row, "username")
		out.AppendRecord(rec)
	}
	return out, features, nil
}

// StudentFeatures is one parsed row of the feature table.
type StudentFeatures struct {
	UserID   uint
	Username string
	Events   int
	Values   []float64
}

// FeatureTable is the parsed feature table. Columns lists the feature columns in
// file order; every row's Values follows it.
type FeatureTable struct {
	Columns []string
	Rows    []StudentFeatures
	byUser  map[uint]int
}

// LoadFeatureTable reads a feature CSV. Blank or non-numeric cells read as 0.
func LoadFeatureTable(path string) (*FeatureTable, error) {
	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	return ParseFeatureTable(t)
}

// ParseFeatureTable converts a feature Table.
func ParseFeatureTable(t *Table) (*FeatureTable, error) {
	if err := t.Require(ColUserID); err != nil {
		return nil, err
	}
	ft := &FeatureTable{byUser: make(map[uint]int, len(t.Rows))}
	var cols []int
	for i, h := range t.Header {
		if h == ColUserID || h == ColUsername || h == ColEvents {
			continue
		}
		ft.Columns = append(ft.Columns, h)
		cols = append(cols, i)
	}
	for n, row := range t.Rows {
		id, err := strconv.ParseFloat(strings.TrimSpace(t.Value(row, ColUserID)), 64)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("dataset: feature row %d: bad user_id %q", n+1, t.Value(row, ColUserID))
		}
		sf := StudentFeatures{
			UserID:   uint(id),
			Username: t.Value(row, ColUsername),
			Events:   int(cellValue(t.Value(row, ColEvents))),
			Values:   make([]float64, len(cols)),
		}
		for k, i := range cols {
			sf.Values[k] = cellValue(row[i])
		}
		if _, dup := ft.byUser[sf.UserID]; !dup {
			ft.byUser[sf.UserID] = len(ft.Rows)
		}
		ft.Rows = append(ft.Rows, sf)
	}
	return ft, nil
}

// Find returns the row index of userID.
func (ft *FeatureTable) Find(userID uint) (int, bool) {
	i, ok := ft.byUser[userID]
	return i, ok
}

// Align reorders every row to columns. Columns the table lacks read as 0.
func (ft *FeatureTable) Align(columns []string) [][]float64 {
	pos := make(map[string]int, len(ft.Columns))
	for i, c := range ft.Columns {
		pos[c] = i
	}
	out := make([][]float64, len(ft.Rows))
	for r, row := range ft.Rows {
		v := make([]float64, len(columns))
		for j, c := range columns {
			if i, ok := pos[c]; ok {
				v[j] = row.Values[i]
			}
		}
		out[r] = v
	}
	return out
}

// Interests lists the tag names set on row r, prefix stripped, in column order.
func (ft *FeatureTable) Interests(r int) []string {
	out := []string{}
	for i, c := range ft.Columns {
		if strings.HasPrefix(c, TagPrefix) && ft.Rows[r].Values[i] == 1 {
			out = append(out, strings.TrimPrefix(c, TagPrefix))
		}
	}
	return out
}

func cellValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func uniqueSorted(vals []string) []string {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = true
		}
	}
	return sortedKeys(set)
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
