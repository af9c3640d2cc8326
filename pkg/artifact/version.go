package artifact

import (
	"slices"
	"strconv"
	"strings"
)

// Versions are compared with the Maven ordering: numeric segments compare
// numerically, qualifiers follow alpha < beta < milestone < rc < snapshot <
// release < sp, and unknown qualifiers sort after known ones lexically.

type itemKind int

const (
	intItem itemKind = iota
	stringItem
	listItem
)

type item struct {
	kind itemKind
	num  string // digits without leading zeros, "" for zero
	str  string
	list []*item
}

var qualifiers = []string{"alpha", "beta", "milestone", "rc", "snapshot", "", "sp"}

var qualifierAliases = map[string]string{
	"ga":      "",
	"final":   "",
	"release": "",
	"cr":      "rc",
}

var releaseRank = comparableQualifier("")

func comparableQualifier(q string) string {
	if i := slices.Index(qualifiers, q); i >= 0 {
		return strconv.Itoa(i)
	}
	return strconv.Itoa(len(qualifiers)) + "-" + q
}

func newIntItem(digits string) *item {
	return &item{kind: intItem, num: strings.TrimLeft(digits, "0")}
}

func newStringItem(s string, followedByDigit bool) *item {
	if followedByDigit && len(s) == 1 {
		switch s[0] {
		case 'a':
			s = "alpha"
		case 'b':
			s = "beta"
		case 'm':
			s = "milestone"
		}
	}
	if alias, ok := qualifierAliases[s]; ok {
		s = alias
	}
	return &item{kind: stringItem, str: s}
}

func parseItem(isDigit bool, s string) *item {
	if isDigit {
		return newIntItem(s)
	}
	return newStringItem(s, false)
}

func (it *item) isNull() bool {
	switch it.kind {
	case intItem:
		return it.num == ""
	case stringItem:
		return comparableQualifier(it.str) == releaseRank
	default:
		return len(it.list) == 0
	}
}

func (it *item) normalize() {
	for i := len(it.list) - 1; i >= 0; i-- {
		last := it.list[i]
		if last.isNull() {
			it.list = slices.Delete(it.list, i, i+1)
		} else if last.kind != listItem {
			break
		}
	}
}

func compareInts(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func compareItems(a, b *item) int {
	switch a.kind {
	case intItem:
		if b == nil {
			if a.num == "" {
				return 0
			}
			return 1
		}
		switch b.kind {
		case intItem:
			return compareInts(a.num, b.num)
		default:
			return 1
		}
	case stringItem:
		if b == nil {
			return strings.Compare(comparableQualifier(a.str), releaseRank)
		}
		switch b.kind {
		case intItem, listItem:
			return -1
		default:
			return strings.Compare(comparableQualifier(a.str), comparableQualifier(b.str))
		}
	default:
		if b == nil {
			for _, it := range a.list {
				if r := compareItems(it, nil); r != 0 {
					return r
				}
			}
			return 0
		}
		switch b.kind {
		case intItem:
			return -1
		case stringItem:
			return 1
		}
		n := max(len(a.list), len(b.list))
		for i := 0; i < n; i++ {
			var l, r *item
			if i < len(a.list) {
				l = a.list[i]
			}
			if i < len(b.list) {
				r = b.list[i]
			}
			var result int
			if l == nil {
				result = -compareItems(r, nil)
			} else {
				result = compareItems(l, r)
			}
			if result != 0 {
				return result
			}
		}
		return 0
	}
}

// ComparableVersion is a parsed version string
type ComparableVersion struct {
	raw   string
	items *item
}

// ParseVersion parses a version string for comparison
func ParseVersion(version string) *ComparableVersion {
	v := &ComparableVersion{raw: version}
	s := strings.ToLower(version)

	root := &item{kind: listItem}
	list := root
	stack := []*item{root}

	isDigit := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if i == start {
				list.list = append(list.list, newIntItem(""))
			} else {
				list.list = append(list.list, parseItem(isDigit, s[start:i]))
			}
			start = i + 1
		case c == '-':
			if i == start {
				list.list = append(list.list, newIntItem(""))
			} else {
				list.list = append(list.list, parseItem(isDigit, s[start:i]))
			}
			start = i + 1
			sub := &item{kind: listItem}
			list.list = append(list.list, sub)
			list = sub
			stack = append(stack, sub)
		case c >= '0' && c <= '9':
			if !isDigit && i > start {
				list.list = append(list.list, newStringItem(s[start:i], true))
				start = i
				sub := &item{kind: listItem}
				list.list = append(list.list, sub)
				list = sub
				stack = append(stack, sub)
			}
			isDigit = true
		default:
			if isDigit && i > start {
				list.list = append(list.list, parseItem(true, s[start:i]))
				start = i
				sub := &item{kind: listItem}
				list.list = append(list.list, sub)
				list = sub
				stack = append(stack, sub)
			}
			isDigit = false
		}
	}
	if len(s) > start {
		list.list = append(list.list, parseItem(isDigit, s[start:]))
	}
	for i := len(stack) - 1; i >= 0; i-- {
		stack[i].normalize()
	}

	v.items = root
	return v
}

// Compare returns -1, 0 or 1
func (v *ComparableVersion) Compare(o *ComparableVersion) int {
	return compareItems(v.items, o.items)
}

func (v *ComparableVersion) String() string {
	return v.raw
}

// CompareVersions compares two version strings
func CompareVersions(a, b string) int {
	return ParseVersion(a).Compare(ParseVersion(b))
}

// SortVersions sorts versions ascending in place
func SortVersions(versions []string) {
	slices.SortStableFunc(versions, CompareVersions)
}
