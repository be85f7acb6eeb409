package google

import (
	"fmt"
	"strconv"
	"strings"
)

// Summary describes the rows currently in the mirror tab.
type Summary struct {
	Rows  int
	Total float64
}

func toValues(header []string, rows [][]any) [][]any {
	out := make([][]any, 0, len(rows)+1)
	h := make([]any, len(header))
	for i, v := range header {
		h[i] = v
	}
	out = append(out, h)
	return append(out, rows...)
}

// summarize counts data rows and sums the Cantidad column, located by
// header name.
func summarize(values [][]interface{}) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	col := indexOf(toStrings(values[0]), "Cantidad")
	var s Summary
	for _, raw := range values[1:] {
		row := toStrings(raw)
		if len(row) == 0 {
			continue
		}
		s.Rows++
		if v, ok := parseAmount(safeGet(row, col)); ok {
			s.Total += v
		}
	}
	return s
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Normalize decimal comma
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
