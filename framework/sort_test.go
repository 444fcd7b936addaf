package framework

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/stretchr/testify/assert"
)

func names(items []Record) []interface{} {
	var ret []interface{}
	for _, item := range items {
		ret = append(ret, item["Name"])
	}
	return ret
}

func TestSortByName(t *testing.T) {
	items := []Record{{"Name": "b"}, {"Name": "a"}, {"Name": "c"}}
	sorted := SortByName(items)
	assert.Equal(t, []interface{}{"a", "b", "c"}, names(sorted))
	assert.Equal(t, []interface{}{"b", "a", "c"}, names(items))
}

func TestSortByKeyIsStable(t *testing.T) {
	items := []Record{
		{"Name": "x", "Size": 2, "Order": 1},
		{"Name": "y", "Size": 1, "Order": 2},
		{"Name": "z", "Size": 2, "Order": 3},
		{"Name": "w", "Size": 1, "Order": 4},
	}
	sorted := SortByKey(items, "Size")
	assert.Equal(t, []interface{}{"y", "w", "x", "z"}, names(sorted))
}

func TestSortByKeyIsIdempotent(t *testing.T) {
	items := []Record{{"Name": "b"}, {"Name": "c"}, {"Name": "a"}}
	once := SortByName(items)
	twice := SortByName(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("sorting twice changed the order (-once +twice):\n%s", diff)
	}
}

func TestSortByKeyOrdersKindsBeforeValues(t *testing.T) {
	items := []Record{
		{"Name": "string", "V": "a"},
		{"Name": "number", "V": 10},
		{"Name": "true", "V": true},
		{"Name": "float", "V": 2.5},
		{"Name": "other", "V": []interface{}{1}},
		{"Name": "null", "V": nil},
		{"Name": "false", "V": false},
	}
	sorted := SortByKey(items, "V")
	assert.Equal(t,
		[]interface{}{"null", "false", "true", "float", "number", "string", "other"},
		names(sorted))
}

func TestSortByKeyComparesDecodedNumbers(t *testing.T) {
	var items []Record
	decoder := json.NewDecoder(strings.NewReader(`[{"Name":"big","Size":100},{"Name":"small","Size":9}]`))
	decoder.UseNumber()
	assert.NoError(t, decoder.Decode(&items))

	assert.Equal(t, []interface{}{"small", "big"}, names(SortByKey(items, "Size")))
}

func TestSortByKeyPanicsOnMissingKey(t *testing.T) {
	items := []Record{{"Name": "a", "Size": 1}, {"Name": "b"}}
	assert.PanicsWithValue(t, `SortByKey: item 1 has no "Size" key`, func() {
		SortByKey(items, "Size")
	})
	assert.Equal(t, []interface{}{"a", "b"}, names(items))
}

func TestSortByKeyEmptyInput(t *testing.T) {
	assert.Empty(t, SortByName(nil))
	assert.Empty(t, SortByName([]Record{}))
}

func TestSortBy(t *testing.T) {
	type entry struct {
		name string
		size int
	}
	entries := []entry{{"b", 2}, {"a", 2}, {"c", 1}}
	sorted := SortBy(entries, func(e entry) int { return e.size })
	assert.Equal(t, []entry{{"c", 1}, {"b", 2}, {"a", 2}}, sorted)
	assert.Equal(t, "b", entries[0].name)
}
