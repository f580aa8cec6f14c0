package expr

import (
	"strconv"
	"strings"
	"time"
)

type valueKind int

const (
	kindAbsent valueKind = iota
	kindNumber
	kindString
	kindBool
	kindDate
)

// Value is the result of evaluating an expression. Absent is an explicit
// state of its own, never represented by a language nil: it marks a field
// that could not be resolved and it propagates through arithmetic.
type Value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
	t    time.Time
}

func Absent() Value          { return Value{kind: kindAbsent} }
func Number(f float64) Value { return Value{kind: kindNumber, num: f} }
func String(s string) Value  { return Value{kind: kindString, str: s} }
func Bool(b bool) Value      { return Value{kind: kindBool, b: b} }
func Date(t time.Time) Value { return Value{kind: kindDate, t: t} }

func (v Value) IsAbsent() bool { return v.kind == kindAbsent }

// AsNumber coerces the value to a float64. Strings parse leniently after
// trimming whitespace; absent and unparsable values report false.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case kindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsString renders the value for storage or comparison. Numbers drop
// trailing zeros, dates use ISO date format.
func (v Value) AsString() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindString:
		return v.str
	case kindBool:
		if v.b {
			return "1"
		}
		return "0"
	case kindDate:
		return v.t.Format("2006-01-02")
	default:
		return ""
	}
}

// AsTime coerces the value to a date, parsing strings against DateFormats.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case kindDate:
		return v.t, true
	case kindString:
		return ParseDate(v.str)
	default:
		return time.Time{}, false
	}
}

// Truthy reports whether the value selects a CASE branch or satisfies a
// logical operand. Absent is never truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case kindBool:
		return v.b
	case kindNumber:
		return v.num != 0
	case kindString:
		return v.str != ""
	case kindDate:
		return true
	default:
		return false
	}
}

// Native returns the value as a plain Go scalar for column binding.
// Absent values have no native form; callers must check IsAbsent first.
func (v Value) Native() interface{} {
	switch v.kind {
	case kindNumber:
		return v.num
	case kindString:
		return v.str
	case kindBool:
		return v.b
	case kindDate:
		return v.t
	default:
		return nil
	}
}
