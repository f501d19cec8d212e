package dict

import (
	"errors"
	"fmt"

	"github.com/gravwell/raddict/dicttype"
)

// FlagsValidator is the external collaborator of spec.md §6:
// "flags_valid(dict, parent, name, type, flags) → bool", the "central
// validator" spec.md §4.3 says is "consulted to reject flag/type/parent
// combinations forbidden by the broader protocol model" beyond the
// per-flag rules dicttype.ParseFlags already enforces.
type FlagsValidator interface {
	FlagsValid(dict *Dictionary, parent *Attribute, name string, t dicttype.Type, fl dicttype.Flags) error
}

var (
	ErrHasTagNotTopLevel  = errors.New("has_tag is only legal on a top-level attribute")
	ErrVirtualOnRoot      = errors.New("virtual is not legal on a dictionary root")
	ErrEncryptWrongType   = errors.New("encrypt= is only legal on string, octets, or uint32")
	ErrKeyRequiresStruct  = errors.New("key flag requires a struct parent")
	ErrArrayNotOnVendor   = errors.New("array is not legal directly on a vendor-specific container")
)

// DefaultFlagsValidator is the reference implementation of FlagsValidator.
// It encodes the handful of broader structural rules the original
// implementation applies in dict_attr_flags_valid(), beyond what
// dicttype.ParseFlags already checks per-flag.
type DefaultFlagsValidator struct{}

func (DefaultFlagsValidator) FlagsValid(dict *Dictionary, parent *Attribute, name string, t dicttype.Type, fl dicttype.Flags) error {
	if fl.HasTag && (parent == nil || !parent.IsRoot) {
		return fmt.Errorf("%w: %q", ErrHasTagNotTopLevel, name)
	}
	if fl.Virtual && parent != nil && parent.IsRoot && t == dicttype.TLV {
		return fmt.Errorf("%w: %q", ErrVirtualOnRoot, name)
	}
	if fl.Encrypt != 0 {
		switch t {
		case dicttype.String, dicttype.Octets, dicttype.UInt32:
		default:
			return fmt.Errorf("%w: %q is %s", ErrEncryptWrongType, name, t)
		}
	}
	if fl.Extra {
		switch t {
		case dicttype.UInt8, dicttype.UInt16, dicttype.UInt32:
			if parent == nil || parent.Type != dicttype.Struct {
				return fmt.Errorf("%w: %q", ErrKeyRequiresStruct, name)
			}
		case dicttype.Extended:
			// "long" has no parent-type constraint beyond the type check
			// ParseFlags already performed.
		}
	}
	if fl.Array && parent != nil && parent.Type == dicttype.Vendor {
		return fmt.Errorf("%w: %q", ErrArrayNotOnVendor, name)
	}
	return nil
}
