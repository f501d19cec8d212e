package dict

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gravwell/raddict/dicttype"
)

// Value is a typed value box, the output of ValueParser.Parse and the
// payload of an EnumValue. The concrete shape of a value box is an
// external-collaborator concern per spec.md §1 ("value parsing from textual
// form into typed boxes... are external"); this is the minimal reference
// shape the rest of the loader needs to hand values around without caring
// about their representation.
type Value struct {
	Type  dicttype.Type
	Int   uint64
	Str   string
	Bytes []byte
}

func UintValue(t dicttype.Type, v uint64) Value   { return Value{Type: t, Int: v} }
func StringValue(s string) Value                  { return Value{Type: dicttype.String, Str: s} }
func BytesValue(t dicttype.Type, b []byte) Value  { return Value{Type: t, Bytes: b} }

// ValueParser is the external collaborator of spec.md §6:
// "parse_value(type, text) → value | err".
type ValueParser interface {
	Parse(t dicttype.Type, text string) (Value, error)
}

var (
	ErrValueTypeUnsupported = errors.New("value parsing not supported for this type")
	ErrBadIntValue          = errors.New("invalid integer value")
	ErrBadIPValue           = errors.New("invalid IP address value")
	ErrBadDateValue         = errors.New("invalid date value")
	ErrBadOctetsValue       = errors.New("invalid hex octets value")
)

// DefaultValueParser is a reference ValueParser implementation covering
// every type in the closed enumeration that AdmitsEnum allows, so the
// loader is runnable standalone. A production deployment plugging in a
// richer value-box system (with locale-aware dates, tagged values, etc.)
// is expected to supply its own ValueParser satisfying the same interface.
type DefaultValueParser struct{}

func (DefaultValueParser) Parse(t dicttype.Type, text string) (Value, error) {
	text = unquote(text)
	switch t {
	case dicttype.UInt8, dicttype.UInt16, dicttype.UInt32, dicttype.UInt64:
		v, err := parseUint(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrBadIntValue, text)
		}
		return UintValue(t, v), nil
	case dicttype.Int32:
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrBadIntValue, text)
		}
		return UintValue(t, uint64(v)), nil
	case dicttype.String:
		return StringValue(text), nil
	case dicttype.Octets:
		b, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q", ErrBadOctetsValue, text)
		}
		return BytesValue(t, b), nil
	case dicttype.IPAddr, dicttype.IPv4Addr, dicttype.IPv6Addr:
		ip := net.ParseIP(text)
		if ip == nil {
			return Value{}, fmt.Errorf("%w: %q", ErrBadIPValue, text)
		}
		return BytesValue(t, ip), nil
	case dicttype.Date:
		if ts, err := time.Parse(time.RFC3339, text); err == nil {
			return UintValue(t, uint64(ts.Unix())), nil
		}
		if v, err := parseUint(text); err == nil {
			return UintValue(t, v), nil
		}
		return Value{}, fmt.Errorf("%w: %q", ErrBadDateValue, text)
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrValueTypeUnsupported, t)
	}
}

func parseUint(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
