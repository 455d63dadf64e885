package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// attrValue is one slot of a control's attribute store: a tagged scalar
// (string, bool, int, float64 or time.Time) plus a dirty bit. Dirty marks
// the attribute as changed locally since the last successful sync.
type attrValue struct {
	val   any
	dirty bool
}

// SetAttr stores an attribute under the lower-cased name and marks it
// dirty. Passing nil clears the attribute: the cleared slot holds an empty
// string so the next sync tells the host to drop the value. Storing a value
// equal to the current one leaves the slot untouched, so no-op writes never
// produce wire traffic.
func (c *Control) SetAttr(name string, value any) {
	defer c.lock()()
	c.setAttr(name, value, true)
}

func (c *Control) setAttr(name string, value any, dirty bool) {
	name = strings.ToLower(name)
	cur, ok := c.attrs[name]

	if !ok && value == nil {
		return
	}
	if value == nil {
		value = ""
	}
	// compare by wire rendering: never panics on uncomparable values and
	// treats values the host cannot tell apart as equal
	if !ok || attrString(cur.val) != attrString(value) {
		c.attrs[name] = attrValue{val: value, dirty: dirty}
	}
}

// Attr returns the raw stored value and whether the attribute is present.
func (c *Control) Attr(name string) (any, bool) {
	defer c.lock()()
	v, ok := c.attrs[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return v.val, true
}

// StringAttr returns the attribute rendered as its wire string, or "" if
// absent.
func (c *Control) StringAttr(name string) string {
	v, ok := c.Attr(name)
	if !ok {
		return ""
	}
	return attrString(v)
}

// BoolAttr returns the attribute as a bool. String values parse
// case-insensitively, so host-applied "true"/"True" both read as true.
func (c *Control) BoolAttr(name string) bool {
	v, ok := c.Attr(name)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

// FloatAttr returns the attribute as a float64, parsing string values.
// Absent or unparsable attributes read as 0.
func (c *Control) FloatAttr(name string) float64 {
	v, ok := c.Attr(name)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// IntAttr returns the attribute as an int, truncating floats and parsing
// string values. Absent or unparsable attributes read as 0.
func (c *Control) IntAttr(name string) int {
	v, ok := c.Attr(name)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// TimeAttr returns the attribute as a time.Time, parsing RFC 3339 strings.
// Absent or unparsable attributes read as the zero time.
func (c *Control) TimeAttr(name string) time.Time {
	v, ok := c.Attr(name)
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		ts, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return ts
	default:
		return time.Time{}
	}
}

// attrString renders a stored value in its wire form.
func attrString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
