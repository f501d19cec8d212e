package dictload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gravwell/raddict/dict"
	"github.com/gravwell/raddict/dicterr"
	"github.com/gravwell/raddict/dictnum"
	"github.com/gravwell/raddict/dicttype"
)

var (
	ErrUnknownDirective   = errors.New("unknown directive")
	ErrMemberNotInStruct  = errors.New("MEMBER outside a struct")
	ErrAttrUnderStruct    = errors.New("ATTRIBUTE not legal directly under a struct, use MEMBER")
	ErrNoRelativeAttr     = errors.New("relative OID with no relative attribute in scope")
	ErrNestedProtocol     = errors.New("BEGIN-PROTOCOL cannot nest")
	ErrUnknownProtocol    = errors.New("unknown protocol")
	ErrUnknownVendor      = errors.New("unknown vendor in BEGIN-VENDOR")
	ErrUnknownTLV         = errors.New("unknown attribute in BEGIN-TLV")
	ErrNotTLV             = errors.New("BEGIN-TLV target is not of type tlv")
	ErrNotDescendant      = errors.New("BEGIN-TLV target is not a descendant of the current scope")
	ErrUnderVSA           = errors.New("BEGIN-TLV target is under a VSA")
	ErrBadVSAAnchor       = errors.New("format=attr target is not a vsa under an extended attribute")
	ErrKeyAttrNotFound    = errors.New("STRUCT key-attr not found")
	ErrKeyAttrNotKey      = errors.New("STRUCT key-attr does not carry the key flag")
	ErrKeyAttrNotInStruct = errors.New("STRUCT key-attr's parent is not a struct")
	ErrPrevMemberVariable = errors.New("STRUCT predecessor member is not fixed-size")
	ErrBadDirectiveArity  = errors.New("wrong number of fields for directive")
	ErrUnknownFlagsArg    = errors.New("unrecognized FLAGS argument")
)

func fieldStrs(fields [][]byte) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

// dispatch decodes the leading keyword of a tokenized line and runs its
// handler (spec.md §4.4: "dispatching on a case-insensitive first field").
func (l *Loader) dispatch(state *loadState, rawFields [][]byte) error {
	fields := fieldStrs(rawFields)
	kw := strings.ToUpper(fields[0])
	switch kw {
	case "ATTRIBUTE":
		return l.processAttribute(state, fields)
	case "MEMBER":
		return l.processMember(state, fields)
	case "STRUCT":
		return l.processStruct(state, fields)
	case "VALUE":
		return l.processValue(state, fields)
	case "FLAGS":
		return l.processFlags(state, fields)
	case "VENDOR":
		return l.processVendorDecl(state, fields)
	case "PROTOCOL":
		return l.processProtocol(state, fields)
	case "BEGIN-PROTOCOL":
		return l.processBeginProtocol(state, fields)
	case "END-PROTOCOL":
		return l.processEndProtocol(state, fields)
	case "BEGIN-TLV":
		return l.processBeginTLV(state, fields)
	case "END-TLV":
		return l.processEndTLV(state, fields)
	case "BEGIN-VENDOR":
		return l.processBeginVendor(state, fields)
	case "END-VENDOR":
		return l.processEndVendor(state, fields)
	case "$INCLUDE":
		if len(fields) != 2 {
			return fmt.Errorf("%w: $INCLUDE takes exactly one path", ErrBadDirectiveArity)
		}
		return l.processInclude(state, false, fields[1])
	case "$INCLUDE-":
		if len(fields) != 2 {
			return fmt.Errorf("%w: $INCLUDE- takes exactly one path", ErrBadDirectiveArity)
		}
		return l.processInclude(state, true, fields[1])
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDirective, fields[0])
	}
}

func beforeBracket(field string) string {
	if i := strings.IndexByte(field, '['); i >= 0 {
		return field[:i]
	}
	return field
}

func splitFormatArg(field, prefix string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(field), prefix) {
		return field[len(prefix):], true
	}
	return "", false
}

func (l *Loader) applyBaseline(state *loadState, fl *dicttype.Flags) {
	if state.internalBaseline() {
		fl.Internal = true
	}
}

// processAttribute implements spec.md §4.4 ATTRIBUTE. It accepts both the
// canonical "name oid type [flags]" field order and the "oid name type
// [flags]" order used when the OID is the leading-dot relative form (§8 S3
// shows both in the wild).
func (l *Loader) processAttribute(state *loadState, fields []string) error {
	if len(fields) < 4 {
		return fmt.Errorf("%w: ATTRIBUTE requires name, oid, type", ErrBadDirectiveArity)
	}
	name, oidStr := fields[1], fields[2]
	if strings.HasPrefix(fields[1], ".") {
		oidStr, name = fields[1], fields[2]
	}
	typeField := fields[3]
	flagsField := ""
	if len(fields) > 4 {
		flagsField = fields[4]
	}

	oid, err := dictnum.ParseOID(oidStr)
	if err != nil {
		return err
	}
	pt, err := dicttype.ParseType(typeField)
	if err != nil {
		return err
	}
	fl, ref, err := dicttype.ParseFlags(pt.Type, flagsField)
	if err != nil {
		return err
	}
	if pt.HasLength {
		fl.Length = pt.Length
	}
	l.applyBaseline(state, &fl)

	var top *dict.Attribute
	if !oid.Relative {
		top = state.ctx.unwind()
		if top == nil {
			// An empty stack means no BEGIN-PROTOCOL/TLV/VENDOR is open:
			// a bare top-level ATTRIBUTE attaches directly to the current
			// dictionary's root.
			top = state.dict.Root
		}
	} else if state.relativeAttr == nil {
		return ErrNoRelativeAttr
	}
	parent, number, err := state.dict.ResolveOID(oid, state.relativeAttr, top)
	if err != nil {
		return err
	}
	if parent.Type == dicttype.Struct {
		return ErrAttrUnderStruct
	}
	if l.FlagsValidator != nil {
		if err := l.FlagsValidator.FlagsValid(state.dict, parent, name, pt.Type, fl); err != nil {
			return err
		}
	}

	attr, err := state.dict.AddAttribute(parent, name, number, pt.Type, fl)
	if err != nil {
		return err
	}

	if pt.Type == dicttype.Group {
		if err := l.resolveGroupRefEager(state, attr, ref); err != nil {
			return err
		}
	}
	if pt.Type == dicttype.Struct {
		if err := state.ctx.push(Frame{Tag: FrameAuto, Attr: attr, File: state.curFile, Line: state.curLine}); err != nil {
			return err
		}
	}
	if pt.Type == dicttype.TLV {
		state.relativeAttr = attr
	}
	return nil
}

// resolveGroupRefEager implements spec.md §4.4 ATTRIBUTE's group-ref steps:
// default-to-root when ref is empty, otherwise try an immediate resolution
// and fall back to a group-fixup. Any target resolved eagerly must still
// satisfy §3/§8-property-4 ("a group ref's target type must be tlv"), the
// same check the deferred path applies in linkGroupRef (fixup.go).
func (l *Loader) resolveGroupRefEager(state *loadState, attr *dict.Attribute, ref string) error {
	if ref == "" {
		attr.SetGroupRef("", "")
		attr.ResolveGroupRef(state.dict, state.dict.Root)
		return nil
	}
	if target, ok := state.dict.FindByName(ref); ok {
		if target.Type != dicttype.TLV {
			return dicterr.New(state.curFile, state.curLine, dicterr.Reference,
				fmt.Errorf("%w: %q is %s", ErrFixupRefNotTLV, target.Name, target.Type))
		}
		attr.SetGroupRef("", ref)
		attr.ResolveGroupRef(state.dict, target)
		return nil
	}
	protoName, attrName, hasDot := strings.Cut(ref, ".")
	if hasDot {
		if d, ok := l.Registry.Get(protoName); ok {
			var target *dict.Attribute
			var found bool
			if attrName == "" {
				target, found = d.Root, true
			} else {
				target, found = d.FindByName(attrName)
			}
			if found {
				if target.Type != dicttype.TLV {
					return dicterr.New(state.curFile, state.curLine, dicterr.Reference,
						fmt.Errorf("%w: %q is %s", ErrFixupRefNotTLV, target.Name, target.Type))
				}
				attr.SetGroupRef(protoName, attrName)
				attr.ResolveGroupRef(d, target)
				return nil
			}
		}
	}
	if hasDot {
		attr.SetGroupRef(protoName, attrName)
	} else {
		attr.SetGroupRef("", ref)
	}
	state.fixups.Groups = append(state.fixups.Groups, GroupFixup{
		File: state.curFile, Line: state.curLine, Target: attr, RawRef: ref,
	})
	return nil
}

// processMember implements spec.md §4.4 MEMBER.
func (l *Loader) processMember(state *loadState, fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: MEMBER requires name, type", ErrBadDirectiveArity)
	}
	top := state.ctx.topPtr()
	if top == nil || top.Attr.Type != dicttype.Struct {
		return ErrMemberNotInStruct
	}
	// The canonical directive is "MEMBER name type [flags]", with member
	// numbers auto-assigned sequentially. Some dictionaries spell out the
	// number explicitly ("MEMBER name number type [flags]"), matching
	// FreeRADIUS wire examples; accept both by checking whether the second
	// field names a known type or an integer literal.
	name := fields[1]
	rest := fields[2:]
	explicitNum := -1
	if _, isType := dicttype.TypeByName(strings.ToLower(beforeBracket(rest[0]))); !isType {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			explicitNum = n
			rest = rest[1:]
		}
	}
	if len(rest) == 0 {
		return fmt.Errorf("%w: MEMBER requires a type", ErrBadDirectiveArity)
	}
	typeField := rest[0]
	flagsField := ""
	if len(rest) > 1 {
		flagsField = rest[1]
	}
	pt, err := dicttype.ParseType(typeField)
	if err != nil {
		return err
	}
	fl, _, err := dicttype.ParseFlags(pt.Type, flagsField)
	if err != nil {
		return err
	}
	if pt.HasLength {
		fl.Length = pt.Length
	}
	l.applyBaseline(state, &fl)
	parent := top.Attr
	if l.FlagsValidator != nil {
		if err := l.FlagsValidator.FlagsValid(state.dict, parent, name, pt.Type, fl); err != nil {
			return err
		}
	}
	if explicitNum > top.MemberCount {
		top.MemberCount = explicitNum
	} else {
		top.MemberCount++
	}
	attr, err := state.dict.AddAttribute(parent, name, uint64(top.MemberCount), pt.Type, fl)
	if err != nil {
		return err
	}
	parent.AccumulateLength(fixedWidth(pt))
	if pt.Type == dicttype.TLV {
		state.relativeAttr = attr
		if err := state.ctx.push(Frame{Tag: FrameAuto, Attr: attr, File: state.curFile, Line: state.curLine}); err != nil {
			return err
		}
	}
	return nil
}

// fixedWidth returns the byte width MEMBER/STRUCT length accumulation
// attributes to a type, or 0 for variable-width types (spec.md §3 "MEMBER
// ... accumulates length ... saturating at 255").
func fixedWidth(pt dicttype.ParsedType) uint8 {
	switch pt.Type {
	case dicttype.UInt8:
		return 1
	case dicttype.UInt16:
		return 2
	case dicttype.UInt32, dicttype.Int32, dicttype.IPv4Addr, dicttype.IPAddr:
		return 4
	case dicttype.UInt64:
		return 8
	case dicttype.IPv6Addr:
		return 16
	case dicttype.Date:
		return 4
	case dicttype.Octets:
		if pt.HasLength {
			return pt.Length
		}
		return 0
	default:
		return 0
	}
}

func isFixedSize(attr *dict.Attribute) bool {
	if attr.Type == dicttype.Octets {
		return attr.Flags.Length > 0
	}
	return fixedWidth(dicttype.ParsedType{Type: attr.Type}) > 0
}

// processStruct implements spec.md §4.4 STRUCT.
func (l *Loader) processStruct(state *loadState, fields []string) error {
	if len(fields) != 4 {
		return fmt.Errorf("%w: STRUCT requires key-attr, name, value", ErrBadDirectiveArity)
	}
	keyAttrName, name, rawValue := fields[1], fields[2], fields[3]
	keyAttr, ok := state.dict.FindByName(keyAttrName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyAttrNotFound, keyAttrName)
	}
	if !keyAttr.Flags.Extra {
		return fmt.Errorf("%w: %q", ErrKeyAttrNotKey, keyAttrName)
	}
	structParent := keyAttr.Parent
	if structParent == nil || structParent.Type != dicttype.Struct {
		return fmt.Errorf("%w: %q", ErrKeyAttrNotInStruct, keyAttrName)
	}
	if !state.ctx.unwindToAttr(structParent) {
		return dicterr.New(state.curFile, state.curLine, dicterr.Context,
			fmt.Errorf("STRUCT %s: enclosing struct %q is not open", name, structParent.Name))
	}
	if members := structParent.Children(); len(members) > 0 {
		if !isFixedSize(members[len(members)-1]) {
			return fmt.Errorf("%w: %q", ErrPrevMemberVariable, members[len(members)-1].Name)
		}
	}

	val, err := l.ValueParser.Parse(keyAttr.Type, rawValue)
	if err != nil {
		return err
	}
	attr, err := state.dict.AddAttribute(keyAttr, name, val.Int, dicttype.Struct, dicttype.Flags{})
	if err != nil {
		return err
	}
	if err := state.dict.AddEnum(keyAttr, name, val); err != nil {
		return err
	}
	// Member numbering inside the sub-struct continues the enclosing
	// struct's sequence rather than restarting at 1, so that parallel
	// STRUCT branches (e.g. a Request/Reply pair keyed off the same
	// field) number their own members identically.
	return state.ctx.push(Frame{
		Tag: FrameAuto, Attr: attr, File: state.curFile, Line: state.curLine,
		MemberCount: len(structParent.Children()),
	})
}

// processValue implements spec.md §4.4 VALUE, including the hot-path
// attribute-name cache and the enum-fixup fallback.
func (l *Loader) processValue(state *loadState, fields []string) error {
	if len(fields) != 4 {
		return fmt.Errorf("%w: VALUE requires attr, alias, text", ErrBadDirectiveArity)
	}
	attrName, alias, text := fields[1], fields[2], fields[3]

	var attr *dict.Attribute
	if state.valueCacheAttr != nil && strings.EqualFold(state.valueCacheName, attrName) {
		attr = state.valueCacheAttr
	} else if a, ok := state.dict.FindByName(attrName); ok {
		attr = a
		state.valueCacheName, state.valueCacheAttr = attrName, a
	}

	if attr == nil {
		state.fixups.Enums = append(state.fixups.Enums, EnumFixup{
			File: state.curFile, Line: state.curLine, AttrName: attrName, Alias: alias, RawValue: text,
		})
		return nil
	}
	if !attr.Type.AdmitsEnum() {
		return fmt.Errorf("%w: %q is %s", dict.ErrEnumTypeNotAllowed, attr.Name, attr.Type)
	}
	val, err := l.ValueParser.Parse(attr.Type, text)
	if err != nil {
		return err
	}
	return state.dict.AddEnum(attr, alias, val)
}

// processFlags implements spec.md §4.4 FLAGS.
func (l *Loader) processFlags(state *loadState, fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: FLAGS takes exactly one argument", ErrBadDirectiveArity)
	}
	arg := fields[1]
	negate := strings.HasPrefix(arg, "!")
	if negate {
		arg = arg[1:]
	}
	if arg != "internal" {
		return fmt.Errorf("%w: %q", ErrUnknownFlagsArg, arg)
	}
	state.setInternalBaseline(!negate)
	return nil
}

// processVendorDecl implements spec.md §4.4 VENDOR.
func (l *Loader) processVendorDecl(state *loadState, fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: VENDOR requires name, number", ErrBadDirectiveArity)
	}
	name := fields[1]
	num, err := dictnum.ParseInt(fields[2])
	if err != nil {
		return err
	}
	vf := dictnum.VendorFormat{TypeWidth: 1, LengthWidth: 1}
	if len(fields) > 3 {
		if raw, ok := splitFormatArg(fields[3], "format="); ok {
			vf, err = dictnum.ParseVendorFormat(raw)
			if err != nil {
				return err
			}
			if vf.Continuation && !strings.EqualFold(name, dict.WiMAXVendorName) {
				return fmt.Errorf("%w: only vendor %s may use it, got %q", dictnum.ErrContinuation, dict.WiMAXVendorName, name)
			}
		}
	}
	return state.dict.AddVendor(&dict.Vendor{
		Name: name, PEN: uint32(num),
		TypeWidth: vf.TypeWidth, LengthWidth: vf.LengthWidth, Continuation: vf.Continuation,
	})
}

// processProtocol implements spec.md §4.4 PROTOCOL.
func (l *Loader) processProtocol(state *loadState, fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: PROTOCOL requires name, number", ErrBadDirectiveArity)
	}
	name := fields[1]
	num, err := dictnum.ParseInt(fields[2])
	if err != nil {
		return err
	}
	typeSize := uint64(1)
	if len(fields) > 3 {
		if raw, ok := splitFormatArg(fields[3], "format="); ok {
			typeSize, err = dictnum.ParseInt(raw)
			if err != nil {
				return err
			}
		}
	}
	_, err = l.Registry.CheckOrRegister(name, num, uint8(typeSize))
	return err
}

// processBeginProtocol implements spec.md §4.4 BEGIN-PROTOCOL.
func (l *Loader) processBeginProtocol(state *loadState, fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: BEGIN-PROTOCOL takes exactly one name", ErrBadDirectiveArity)
	}
	if state.dict != l.Registry.Internal() {
		return dicterr.New(state.curFile, state.curLine, dicterr.Context, ErrNestedProtocol)
	}
	name := fields[1]
	d, ok := l.Registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProtocol, name)
	}
	state.outerDict = state.dict
	state.dict = d
	state.fixups = newFixupPool()
	state.relativeAttr = nil
	state.valueCacheAttr = nil
	return state.ctx.push(Frame{Tag: FrameProtocol, Attr: d.Root, File: state.curFile, Line: state.curLine})
}

// processEndProtocol implements spec.md §4.4 END-PROTOCOL.
func (l *Loader) processEndProtocol(state *loadState, fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: END-PROTOCOL takes exactly one name", ErrBadDirectiveArity)
	}
	name := fields[1]
	if !strings.EqualFold(state.dict.Name, name) {
		return dicterr.New(state.curFile, state.curLine, dicterr.Context,
			fmt.Errorf("END-PROTOCOL %s does not match open protocol %s", name, state.dict.Name))
	}
	if err := state.ctx.closeNamed(FrameProtocol, "END-PROTOCOL", name, state.curFile, state.curLine); err != nil {
		return err
	}
	closed := state.dict
	if err := l.resolveFixups(state, closed); err != nil {
		return err
	}
	closed.Warm()
	state.dict = state.outerDict
	state.outerDict = nil
	state.fixups = newFixupPool()
	state.relativeAttr = nil
	state.valueCacheAttr = nil
	return nil
}

func isDescendant(attr, ancestor *dict.Attribute) bool {
	for cur := attr; cur != nil; cur = cur.Parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// underVSA reports whether attr hangs directly off a VSA attribute: spec.md
// §4.4 BEGIN-TLV forbids targeting such an attribute directly (vendor
// sub-scope is entered through BEGIN-VENDOR instead), but a TLV nested
// deeper under a vendor's own attributes is fair game.
func underVSA(attr *dict.Attribute) bool {
	return attr.Parent != nil && attr.Parent.Type == dicttype.VSA
}

// processBeginTLV implements spec.md §4.4 BEGIN-TLV.
func (l *Loader) processBeginTLV(state *loadState, fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: BEGIN-TLV takes exactly one name", ErrBadDirectiveArity)
	}
	name := fields[1]
	attr, ok := state.dict.FindByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTLV, name)
	}
	if attr.Type != dicttype.TLV {
		return fmt.Errorf("%w: %q", ErrNotTLV, name)
	}
	if top := state.ctx.topPtr(); top != nil && !isDescendant(attr, top.Attr) {
		return fmt.Errorf("%w: %q", ErrNotDescendant, name)
	}
	if underVSA(attr) {
		return fmt.Errorf("%w: %q", ErrUnderVSA, name)
	}
	state.relativeAttr = attr
	return state.ctx.push(Frame{Tag: FrameTLV, Attr: attr, File: state.curFile, Line: state.curLine})
}

// processEndTLV implements spec.md §4.4 END-TLV.
func (l *Loader) processEndTLV(state *loadState, fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: END-TLV takes exactly one name", ErrBadDirectiveArity)
	}
	return state.ctx.closeNamed(FrameTLV, "END-TLV", fields[1], state.curFile, state.curLine)
}

const vendorSpecificName = "Vendor-Specific"

// findOrCreateVSAAnchor resolves the default VSA anchor of spec.md §4.4
// BEGIN-VENDOR: "Vendor-Specific under the current top (synthesized if
// absent)".
func (l *Loader) findOrCreateVSAAnchor(state *loadState) (*dict.Attribute, error) {
	top := state.ctx.topPtr()
	var parent *dict.Attribute
	if top != nil {
		parent = top.Attr
	} else {
		parent = state.dict.Root
	}
	if anchor, ok := parent.ChildByName(vendorSpecificName); ok {
		return anchor, nil
	}
	return state.dict.AddAttribute(parent, vendorSpecificName, 26, dicttype.VSA, dicttype.Flags{})
}

// processBeginVendor implements spec.md §4.4 BEGIN-VENDOR.
func (l *Loader) processBeginVendor(state *loadState, fields []string) error {
	if len(fields) < 2 {
		return fmt.Errorf("%w: BEGIN-VENDOR takes a name", ErrBadDirectiveArity)
	}
	name := fields[1]
	vendor, ok := state.dict.FindVendorByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVendor, name)
	}

	var anchor *dict.Attribute
	if len(fields) > 2 {
		if raw, ok := splitFormatArg(fields[2], "format="); ok {
			target, found := state.dict.FindByName(raw)
			if !found || target.Type != dicttype.VSA || target.Parent == nil || target.Parent.Type != dicttype.Extended {
				return fmt.Errorf("%w: %q", ErrBadVSAAnchor, raw)
			}
			anchor = target
		}
	}
	if anchor == nil {
		var err error
		anchor, err = l.findOrCreateVSAAnchor(state)
		if err != nil {
			return err
		}
	}

	vendorAttr, ok := anchor.ChildByNumber(uint64(vendor.PEN))
	if !ok {
		var err error
		vendorAttr, err = state.dict.AddAttribute(anchor, vendor.Name, uint64(vendor.PEN), dicttype.Vendor, dicttype.Flags{})
		if err != nil {
			return err
		}
	}
	state.relativeAttr = vendorAttr
	return state.ctx.push(Frame{Tag: FrameVendor, Attr: vendorAttr, File: state.curFile, Line: state.curLine})
}

// processEndVendor implements spec.md §4.4 END-VENDOR.
func (l *Loader) processEndVendor(state *loadState, fields []string) error {
	if len(fields) != 2 {
		return fmt.Errorf("%w: END-VENDOR takes exactly one name", ErrBadDirectiveArity)
	}
	return state.ctx.closeNamed(FrameVendor, "END-VENDOR", fields[1], state.curFile, state.curLine)
}
