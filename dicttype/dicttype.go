// Package dicttype implements the type table and the type/flag field
// parser of spec.md §4.3: resolving a type keyword (with an optional
// "[length]" suffix), and decoding the comma-separated flag field into a
// Flags value.
package dicttype

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Type is a member of the closed data-type enumeration of spec.md §3.
type Type int

const (
	Invalid Type = iota
	UInt8
	UInt16
	UInt32
	UInt64
	Int32
	String
	Octets
	IPAddr
	IPv4Addr
	IPv6Addr
	Date
	Abinary
	TLV
	Struct
	Group
	VSA
	Vendor
	Extended
	Max // sentinel bounding the enumeration; never a legal declared type
)

var names = map[string]Type{
	"uint8":    UInt8,
	"uint16":   UInt16,
	"uint32":   UInt32,
	"uint64":   UInt64,
	"int32":    Int32,
	"string":   String,
	"octets":   Octets,
	"ipaddr":   IPAddr,
	"ipv4addr": IPv4Addr,
	"ipv6addr": IPv6Addr,
	"date":     Date,
	"abinary":  Abinary,
	"tlv":      TLV,
	"struct":   Struct,
	"group":    Group,
	"vsa":      VSA,
	"vendor":   Vendor,
	"extended": Extended,
}

var display = func() map[Type]string {
	m := make(map[Type]string, len(names))
	for s, t := range names {
		m[t] = s
	}
	return m
}()

func (t Type) String() string {
	if s, ok := display[t]; ok {
		return s
	}
	return "invalid"
}

// TypeByName resolves a type keyword, the external collaborator interface
// named in spec.md §6 ("type_by_name(str) → type | invalid").
func TypeByName(name string) (Type, bool) {
	t, ok := names[name]
	return t, ok
}

// IsStructural reports whether t is a container type that cannot itself
// carry a VALUE enum (spec.md §4.4 VALUE: "rejects ... structural types").
func (t Type) IsStructural() bool {
	switch t {
	case TLV, Struct, VSA, Vendor, Extended:
		return true
	}
	return false
}

// AdmitsEnum reports whether attributes of type t may carry VALUE aliases.
func (t Type) AdmitsEnum() bool {
	switch t {
	case Invalid, Max, Group, Abinary:
		return false
	}
	return !t.IsStructural()
}

var (
	ErrUnknownType     = errors.New("unknown type")
	ErrBadLengthSuffix = errors.New("invalid [length] suffix")
	ErrLengthNotOctets = errors.New("[length] suffix only legal for octets")
	ErrLengthRange     = errors.New("octets length must be between 1 and 253")
)

// MinOctetsLength/MaxOctetsLength bound the "[N]" suffix on a fixed-length
// octets type (spec.md §4.3, tested by §8 boundary cases).
const (
	MinOctetsLength = 1
	MaxOctetsLength = 253
)

// ParsedType is the result of parsing a type field, including the optional
// fixed octets length.
type ParsedType struct {
	Type   Type
	Length uint8 // valid only when Type == Octets and HasLength
	HasLength bool
}

// ParseType parses a type field such as "octets[16]" or "uint32".
func ParseType(field string) (ParsedType, error) {
	name := field
	var lengthStr string
	hasLength := false
	if i := strings.IndexByte(field, '['); i >= 0 {
		if !strings.HasSuffix(field, "]") {
			return ParsedType{}, fmt.Errorf("%w: %q", ErrBadLengthSuffix, field)
		}
		name = field[:i]
		lengthStr = field[i+1 : len(field)-1]
		hasLength = true
	}
	t, ok := TypeByName(name)
	if !ok {
		return ParsedType{}, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	if !hasLength {
		return ParsedType{Type: t}, nil
	}
	if t != Octets {
		return ParsedType{}, fmt.Errorf("%w: %q", ErrLengthNotOctets, field)
	}
	n, err := strconv.Atoi(lengthStr)
	if err != nil {
		return ParsedType{}, fmt.Errorf("%w: %q", ErrBadLengthSuffix, field)
	}
	if n < MinOctetsLength || n > MaxOctetsLength {
		return ParsedType{}, fmt.Errorf("%w: got %d", ErrLengthRange, n)
	}
	return ParsedType{Type: Octets, Length: uint8(n), HasLength: true}, nil
}

// Flags is the flag-set record of spec.md §3.
type Flags struct {
	IsRoot   bool
	Internal bool
	HasTag   bool
	Array    bool
	Concat   bool
	Virtual  bool
	// Extra overloads "long" (under extended) and "key" (under integer
	// types) per spec.md §3/§4.3.
	Extra    bool
	Encrypt  uint8 // 0-3
	Length   uint8 // fixed octet width, if any
	TypeSize uint8 // date precision, or vendor/protocol header sizing
}

var (
	ErrUnknownFlag     = errors.New("unknown flag")
	ErrFlagWrongType   = errors.New("flag not legal for this type")
	ErrBadEncryptValue = errors.New("invalid encrypt= value")
	ErrBadDateWidth    = errors.New("invalid date width")
	ErrUnknownDateTok  = errors.New("unknown date precision token")
)

// DatePrecisions stands in for the "external precision table" spec.md §9
// OQ4 delegates to a collaborator; this is a fixed, documented default.
var DatePrecisions = map[string]uint8{
	"seconds":      1,
	"milliseconds": 2,
	"microseconds": 3,
	"nanoseconds":  4,
}

var dateWidths = map[string]uint8{
	"uint16": 16,
	"uint32": 32,
	"uint64": 64,
}

// ParseFlags decodes the comma-separated flag field for an attribute of the
// given type. It returns the decoded Flags and, when a "ref=" clause was
// present (only legal for Group), the raw reference string for the caller
// (the directive engine) to resolve.
func ParseFlags(t Type, field string) (Flags, string, error) {
	var fl Flags
	var ref string
	if field == "" {
		return fl, "", nil
	}
	for _, kv := range strings.Split(field, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		key, value, hasValue := kv, "", false
		if i := strings.IndexByte(kv, '='); i >= 0 {
			key, value, hasValue = kv[:i], kv[i+1:], true
		}
		if err := applyFlag(&fl, &ref, t, key, value, hasValue); err != nil {
			return Flags{}, "", err
		}
	}
	return fl, ref, nil
}

func applyFlag(fl *Flags, ref *string, t Type, key, value string, hasValue bool) error {
	switch {
	case key == "has_tag":
		if t != UInt32 && t != String {
			return fmt.Errorf("%w: has_tag requires uint32 or string, got %s", ErrFlagWrongType, t)
		}
		fl.HasTag = true
	case key == "encrypt":
		if !hasValue {
			return fmt.Errorf("%w: encrypt requires a value", ErrBadEncryptValue)
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 3 {
			return fmt.Errorf("%w: %q", ErrBadEncryptValue, value)
		}
		fl.Encrypt = uint8(n)
	case key == "internal":
		fl.Internal = true
	case key == "array":
		fl.Array = true
	case key == "concat":
		if t != Octets {
			return fmt.Errorf("%w: concat requires octets, got %s", ErrFlagWrongType, t)
		}
		fl.Concat = true
	case key == "virtual":
		fl.Virtual = true
	case key == "long":
		if t != Extended {
			return fmt.Errorf("%w: long requires extended, got %s", ErrFlagWrongType, t)
		}
		fl.Extra = true
	case key == "key":
		switch t {
		case UInt8, UInt16, UInt32:
		default:
			return fmt.Errorf("%w: key requires uint8/uint16/uint32, got %s", ErrFlagWrongType, t)
		}
		fl.Extra = true
	case key == "ref":
		if t != Group {
			return fmt.Errorf("%w: ref requires group, got %s", ErrFlagWrongType, t)
		}
		*ref = value
	case t == Date && dateWidths[key] != 0:
		fl.TypeSize = dateWidths[key]
	case t == Date && DatePrecisions[key] != 0:
		fl.TypeSize = DatePrecisions[key]
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFlag, key)
	}
	return nil
}
