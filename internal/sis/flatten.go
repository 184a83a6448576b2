package sis

import (
	"strings"

	"github.com/tidwall/gjson"
)

// flatRecord is one query row with its nested tables merged away.
type flatRecord map[string]gjson.Result

// flatten merges a denormalized query row into a single flat record. Rows
// arrive as {"tables": {"students": {...}, "u_ext": {...}}}; the inner table
// dicts are merged in iteration order, later tables overwriting earlier keys.
// Rows without a tables wrapper are taken as already flat.
func flatten(row gjson.Result) flatRecord {
	flat := make(flatRecord)

	tables := row.Get("tables")
	if !tables.Exists() {
		row.ForEach(func(key, value gjson.Result) bool {
			flat[strings.ToLower(key.String())] = value
			return true
		})
		return flat
	}

	tables.ForEach(func(_, table gjson.Result) bool {
		table.ForEach(func(key, value gjson.Result) bool {
			flat[strings.ToLower(key.String())] = value
			return true
		})
		return true
	})
	return flat
}

// str returns the string value of a field, empty when absent.
func (r flatRecord) str(key string) string {
	return r[key].String()
}

// num returns the integer value of a field, tolerating numeric strings.
func (r flatRecord) num(key string) int {
	return int(r[key].Int())
}
