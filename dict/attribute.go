package dict

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gravwell/raddict/dicttype"
)

var (
	ErrDuplicateName   = errors.New("duplicate attribute name among siblings")
	ErrDuplicateNumber = errors.New("duplicate attribute number among siblings")
	ErrReservedName    = errors.New("attribute names may not begin with \"Attr-\"")
	ErrNoParent        = errors.New("non-root attribute requires a parent")
	ErrBadParentType   = errors.New("parent attribute type cannot carry this child")
)

// reservedPrefix matches spec.md §4.4: "Rejects names beginning with Attr-".
const reservedPrefix = "attr-"

// Attribute is a node in a dictionary tree (spec.md §3). Per Design Notes
// ("pointer-constness laundering" redesign), besides the child tables that
// AddChild extends, only two fields are mutable after creation: the
// accumulated struct length, and group-ref linkage — all guarded by mu.
// Every other field is frozen at AddAttribute/AddChild time.
type Attribute struct {
	Name   string
	Number uint64
	Type   dicttype.Type
	Parent *Attribute
	Flags  dicttype.Flags
	Dict   *Dictionary
	IsRoot bool

	mu            sync.Mutex
	length        uint8 // accumulated MEMBER length, struct only
	children      []*Attribute
	childByName   map[string]*Attribute
	childByNumber map[uint64]*Attribute

	// Group-ref linkage (Type == Group only). Modeled as a weak handle
	// (protocol/attribute name pair) per Design Notes "cycles between
	// dictionaries": the owning pointer is only materialized once resolved.
	refProtocol string
	refAttr     string
	refResolved bool
	refDict     *Dictionary
	refTarget   *Attribute
}

func newAttribute(dict *Dictionary, parent *Attribute, name string, number uint64, t dicttype.Type, fl dicttype.Flags) *Attribute {
	return &Attribute{
		Name:          name,
		Number:        number,
		Type:          t,
		Parent:        parent,
		Flags:         fl,
		Dict:          dict,
		childByName:   make(map[string]*Attribute),
		childByNumber: make(map[uint64]*Attribute),
	}
}

// NewRoot creates the root attribute of a dictionary: the node whose own
// numeric identifier is the protocol number (spec.md §3).
func NewRoot(dict *Dictionary, name string, number uint64) *Attribute {
	a := newAttribute(dict, nil, name, number, dicttype.TLV, dicttype.Flags{IsRoot: true})
	a.IsRoot = true
	return a
}

// AddChild links child under a, enforcing the sibling-uniqueness invariants
// of spec.md §3 ("names unique case-insensitively; numbers unique").
func (a *Attribute) AddChild(child *Attribute) error {
	if strings.HasPrefix(strings.ToLower(child.Name), reservedPrefix) {
		return fmt.Errorf("%w: %q", ErrReservedName, child.Name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := strings.ToLower(child.Name)
	if _, ok := a.childByName[key]; ok {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateName, child.Name, a.Name)
	}
	if _, ok := a.childByNumber[child.Number]; ok {
		return fmt.Errorf("%w: %d under %q", ErrDuplicateNumber, child.Number, a.Name)
	}
	child.Parent = a
	a.childByName[key] = child
	a.childByNumber[child.Number] = child
	a.children = append(a.children, child)
	return nil
}

// Children returns the attribute's direct children in declaration order.
func (a *Attribute) Children() []*Attribute {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Attribute, len(a.children))
	copy(out, a.children)
	return out
}

// ChildByNumber looks up a direct child by its sibling-scoped number
// (spec.md §6 "find_child_by_number").
func (a *Attribute) ChildByNumber(number uint64) (*Attribute, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.childByNumber[number]
	return c, ok
}

// ChildByName looks up a direct child by case-insensitive name.
func (a *Attribute) ChildByName(name string) (*Attribute, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.childByName[strings.ToLower(name)]
	return c, ok
}

// AccumulateLength saturates at 255, matching spec.md §4.4 MEMBER: "accumulates
// length into the parent struct's length field (saturating at 255)". It is a
// no-op unless a.Type is Struct.
func (a *Attribute) AccumulateLength(n uint8) {
	if a.Type != dicttype.Struct {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	sum := int(a.length) + int(n)
	if sum > 255 {
		sum = 255
	}
	a.length = uint8(sum)
}

// Length returns the struct's current accumulated member length.
func (a *Attribute) Length() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.length
}

// SetGroupRef records the unresolved (weak) reference target of a group
// attribute: protocol == "" means "this dictionary", attrName == "" means
// "that dictionary's root" (spec.md §4.4 ATTRIBUTE ... group, §4.5 group
// fixups steps 1-5).
func (a *Attribute) SetGroupRef(protocol, attrName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refProtocol = protocol
	a.refAttr = attrName
}

// GroupRef returns the unresolved (protocol, attrName) pair set by
// SetGroupRef.
func (a *Attribute) GroupRef() (protocol, attrName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refProtocol, a.refAttr
}

// ResolveGroupRef installs the cross-dictionary link once the fixup
// resolver has found the target (spec.md §4.5 step 7). target must be of
// type TLV; callers are expected to have already checked that (the error
// path needs the original file/line, which this package does not have).
func (a *Attribute) ResolveGroupRef(targetDict *Dictionary, target *Attribute) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refDict = targetDict
	a.refTarget = target
	a.refResolved = true
}

// ResolvedGroupRef returns the linked target, if any.
func (a *Attribute) ResolvedGroupRef() (targetDict *Dictionary, target *Attribute, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refDict, a.refTarget, a.refResolved
}

// OID returns the dot-separated numeric path from the dictionary root to a,
// e.g. "26.9.1" (spec.md glossary "OID").
func (a *Attribute) OID() string {
	if a.IsRoot {
		return ""
	}
	var parts []string
	for cur := a; cur != nil && !cur.IsRoot; cur = cur.Parent {
		parts = append([]string{fmt.Sprint(cur.Number)}, parts...)
	}
	return strings.Join(parts, ".")
}
