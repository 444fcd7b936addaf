package framework

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Record is a decoded JSON object, such as one entry of an ls or add response.
type Record = map[string]interface{}

// SortByName sorts records by their "Name" field; see SortByKey.
func SortByName(items []Record) []Record {
	return SortByKey(items, "Name")
}

// SortByKey returns a copy of items stably sorted in ascending order of the value under key.
// The input is not modified. It panics if an item has no such key; a null value is allowed.
//
// Values are ordered by kind first: null, then booleans, numbers, strings, and anything else.
// Within a kind the natural order applies (false before true, numbers by value, strings
// bytewise). Values of other kinds compare equal, so they keep their input order.
func SortByKey(items []Record, key string) []Record {
	for i, item := range items {
		if _, ok := item[key]; !ok {
			panic(fmt.Sprintf("SortByKey: item %d has no %q key", i, key))
		}
	}
	ret := slices.Clone(items)
	slices.SortStableFunc(ret, func(a, b Record) int {
		return compareValues(a[key], b[key])
	})
	return ret
}

// SortBy returns a copy of items stably sorted in ascending order of key(item).
func SortBy[T any, K cmp.Ordered](items []T, key func(T) K) []T {
	ret := slices.Clone(items)
	slices.SortStableFunc(ret, func(a, b T) int {
		return cmp.Compare(key(a), key(b))
	})
	return ret
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankOther
)

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case string:
		return rankString
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	return rankOther
}

func compareValues(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
