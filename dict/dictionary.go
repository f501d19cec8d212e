// Package dict implements the data model of spec.md §3: attributes,
// vendors, enum values, and the per-protocol dictionary that indexes them,
// plus the protocol registry (§4.4 PROTOCOL / §4.5 secondary loads) and the
// narrow external-collaborator interfaces of §6 that the loader consumes
// for value parsing and flag validation.
package dict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gravwell/raddict/dictnum"
	"github.com/gravwell/raddict/dicttype"
)

// InternalProtocolName/Number identify the special internal dictionary
// hosting cast attributes synthesized from the type table (spec.md §3).
const (
	InternalProtocolName = "internal"
	InternalProtocolNum  = 0
)

var (
	ErrUnknownAttribute    = errors.New("unknown attribute")
	ErrUnknownVendor       = errors.New("unknown vendor")
	ErrDuplicateVendor     = errors.New("duplicate vendor")
	ErrDuplicateEnumAlias  = errors.New("duplicate enum alias")
	ErrEnumTypeNotAllowed  = errors.New("attribute type does not admit VALUE enums")
	ErrBadOIDPathComponent = errors.New("OID path component not found")
)

// Dictionary is a named protocol catalog: the attribute tree rooted at Root,
// plus the hash tables of spec.md §3.
type Dictionary struct {
	Name     string
	Number   uint64
	TypeSize uint8
	Root     *Attribute

	byName          map[string]*Attribute // global, case-insensitive
	byOID           map[string]*Attribute
	vendorsByName   map[string]*Vendor
	vendorsByNumber map[uint32]*Vendor
	valuesByAttr    map[*Attribute]map[string]*EnumValue
	valuesByAlias   map[string]*EnumValue // key: lower(attrName)+"."+alias
}

// New creates an empty dictionary with its root attribute already set,
// matching spec.md §4.4 PROTOCOL's "allocates a dictionary, sets its root".
func New(name string, number uint64) *Dictionary {
	d := &Dictionary{
		Name:            name,
		Number:          number,
		byName:          make(map[string]*Attribute),
		byOID:           make(map[string]*Attribute),
		vendorsByName:   make(map[string]*Vendor),
		vendorsByNumber: make(map[uint32]*Vendor),
		valuesByAttr:    make(map[*Attribute]map[string]*EnumValue),
		valuesByAlias:   make(map[string]*EnumValue),
	}
	d.Root = NewRoot(d, name, number)
	d.index(d.Root)
	return d
}

// NewInternal creates the special protocol-0 internal dictionary.
func NewInternal() *Dictionary {
	return New(InternalProtocolName, InternalProtocolNum)
}

func (d *Dictionary) index(a *Attribute) {
	d.byName[strings.ToLower(a.Name)] = a
	if oid := a.OID(); oid != "" {
		d.byOID[oid] = a
	}
}

// AddAttribute creates a new attribute under parent, indexes it, and
// returns it — spec.md §6 "add_attribute(dict, parent, name, number, type,
// flags) → ok | err".
func (d *Dictionary) AddAttribute(parent *Attribute, name string, number uint64, t dicttype.Type, fl dicttype.Flags) (*Attribute, error) {
	if parent == nil {
		return nil, ErrNoParent
	}
	if existing, ok := d.byName[strings.ToLower(name)]; ok {
		return nil, fmt.Errorf("%w: %q already declared as %s", ErrDuplicateName, name, existing.OID())
	}
	a := newAttribute(d, parent, name, number, t, fl)
	if err := parent.AddChild(a); err != nil {
		return nil, err
	}
	d.index(a)
	return a, nil
}

// FindByName looks up an attribute anywhere in the dictionary by its
// case-insensitive unqualified name (spec.md §6 "find_by_name").
func (d *Dictionary) FindByName(name string) (*Attribute, bool) {
	a, ok := d.byName[strings.ToLower(name)]
	return a, ok
}

// FindByOIDPath looks up an attribute by its exact dot-separated numeric
// path from the root.
func (d *Dictionary) FindByOIDPath(oid string) (*Attribute, bool) {
	a, ok := d.byOID[oid]
	return a, ok
}

// ResolveOID walks oid from relativeTo (if oid.Relative) or from top (the
// context stack's current named attribute, for a bare absolute number) or
// from the dictionary root (for a multi-component absolute OID), returning
// the parent under which a *new* attribute should be added and the trailing
// numeric identifier — spec.md §6 "find_by_oid(dict, &parent, &number,
// oid_str)".
func (d *Dictionary) ResolveOID(oid dictnum.OID, relativeTo, top *Attribute) (parent *Attribute, number uint64, err error) {
	if len(oid.Parts) == 0 {
		return nil, 0, fmt.Errorf("%w: empty OID", ErrBadOIDPathComponent)
	}
	if oid.Relative {
		if relativeTo == nil {
			return nil, 0, fmt.Errorf("%w: relative OID with no relative attribute in scope", ErrBadOIDPathComponent)
		}
		parent = relativeTo
	} else if len(oid.Parts) == 1 {
		parent = top
	} else {
		parent = d.Root
	}
	for _, n := range oid.Parts[:len(oid.Parts)-1] {
		child, ok := parent.ChildByNumber(n)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %d under %q", ErrBadOIDPathComponent, n, parent.Name)
		}
		parent = child
	}
	return parent, oid.Parts[len(oid.Parts)-1], nil
}

// AddVendor registers a vendor record (spec.md §6 "add_vendor").
func (d *Dictionary) AddVendor(v *Vendor) error {
	if _, ok := d.vendorsByName[strings.ToLower(v.Name)]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateVendor, v.Name)
	}
	if _, ok := d.vendorsByNumber[v.PEN]; ok {
		return fmt.Errorf("%w: PEN %d", ErrDuplicateVendor, v.PEN)
	}
	d.vendorsByName[strings.ToLower(v.Name)] = v
	d.vendorsByNumber[v.PEN] = v
	return nil
}

// FindVendorByName / FindVendorByNumber implement spec.md §6
// "find_vendor_by_{name,num}".
func (d *Dictionary) FindVendorByName(name string) (*Vendor, bool) {
	v, ok := d.vendorsByName[strings.ToLower(name)]
	return v, ok
}

func (d *Dictionary) FindVendorByNumber(pen uint32) (*Vendor, bool) {
	v, ok := d.vendorsByNumber[pen]
	return v, ok
}

// AddEnum installs a VALUE alias on attr (spec.md §6 "add_enum(attr, alias,
// value)"), after checking attr's type admits enums and the alias has not
// already been declared for that attribute.
func (d *Dictionary) AddEnum(attr *Attribute, alias string, v Value) error {
	if !attr.Type.AdmitsEnum() {
		return fmt.Errorf("%w: %q is %s", ErrEnumTypeNotAllowed, attr.Name, attr.Type)
	}
	m, ok := d.valuesByAttr[attr]
	if !ok {
		m = make(map[string]*EnumValue)
		d.valuesByAttr[attr] = m
	}
	if _, ok := m[alias]; ok {
		return fmt.Errorf("%w: %q on %q", ErrDuplicateEnumAlias, alias, attr.Name)
	}
	ev := &EnumValue{Attribute: attr, Alias: alias, Value: v}
	m[alias] = ev
	d.valuesByAlias[strings.ToLower(attr.Name)+"."+alias] = ev
	return nil
}

// EnumByAlias looks up an installed VALUE by attribute+alias.
func (d *Dictionary) EnumByAlias(attr *Attribute, alias string) (*EnumValue, bool) {
	m, ok := d.valuesByAttr[attr]
	if !ok {
		return nil, false
	}
	ev, ok := m[alias]
	return ev, ok
}

// Warm walks every hash table once, matching spec.md §4.5 "hash-table
// warm-up": after fixups, this materializes internal ordering so later
// concurrent readers see a stable structure without triggering reordering
// on first lookup. Go's built-in maps don't reorder on read the way the
// original's open-addressing tables could, but the walk is kept as the
// structural publish point other code can rely on: nothing may mutate the
// dictionary past this call.
func (d *Dictionary) Warm() {
	for range d.byName {
	}
	for range d.byOID {
	}
	for range d.vendorsByName {
	}
	for range d.vendorsByNumber {
	}
	for range d.valuesByAlias {
	}
}
