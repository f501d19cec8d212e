package dictload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gravwell/raddict/dict"
	"github.com/gravwell/raddict/dicterr"
	"github.com/gravwell/raddict/dicttype"
)

var (
	ErrFixupAttrNotFound = errors.New("enum fixup: attribute never declared")
	ErrFixupRefNotFound  = errors.New("group fixup: reference target never resolved")
	ErrFixupRefNotTLV    = errors.New("group fixup: reference target is not a tlv")
)

// resolveFixups runs spec.md §4.5's fixup resolver against d: it is
// "invoked at END-PROTOCOL and at end-of-load for the internal dictionary".
// Enum fixups resolve first, then group fixups, both in declaration order
// (Design Notes "Fixup storage": append-only, resolved front-to-back).
func (l *Loader) resolveFixups(state *loadState, d *dict.Dictionary) error {
	for _, f := range state.fixups.Enums {
		if err := l.resolveEnumFixup(d, f); err != nil {
			return err
		}
	}
	for _, f := range state.fixups.Groups {
		if err := l.resolveGroupFixup(d, f); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) resolveEnumFixup(d *dict.Dictionary, f EnumFixup) error {
	attr, ok := d.FindByName(f.AttrName)
	if !ok {
		return dicterr.New(f.File, f.Line, dicterr.Reference,
			fmt.Errorf("%w: %q", ErrFixupAttrNotFound, f.AttrName))
	}
	val, err := l.ValueParser.Parse(attr.Type, f.RawValue)
	if err != nil {
		return dicterr.Annotate(err, f.File, f.Line, dicterr.Reference, "resolving forward-declared VALUE "+f.Alias)
	}
	if err := d.AddEnum(attr, f.Alias, val); err != nil {
		return dicterr.Annotate(err, f.File, f.Line, dicterr.Reference, "resolving forward-declared VALUE "+f.Alias)
	}
	return nil
}

// resolveGroupFixup implements spec.md §4.5's four-step group-ref
// resolution: direct name in the current dictionary, protocol-qualified
// lookup (triggering a secondary protocol load if needed), a type check
// that the resolved target is a tlv, and finally linking the weak handle.
func (l *Loader) resolveGroupFixup(d *dict.Dictionary, f GroupFixup) error {
	if target, ok := d.FindByName(f.RawRef); ok {
		f.Target.SetGroupRef("", f.RawRef)
		return l.linkGroupRef(f, d, target)
	}

	protoName, attrName, hasDot := strings.Cut(f.RawRef, ".")
	if !hasDot {
		return dicterr.New(f.File, f.Line, dicterr.Reference,
			fmt.Errorf("%w: %q", ErrFixupRefNotFound, f.RawRef))
	}

	targetDict, ok := l.Registry.Get(protoName)
	if !ok {
		var err error
		targetDict, err = l.LoadProtocol(protoName)
		if err != nil {
			return dicterr.Annotate(err, f.File, f.Line, dicterr.Reference,
				fmt.Sprintf("loading protocol %q for group ref %q", protoName, f.RawRef))
		}
	}

	var target *dict.Attribute
	var found bool
	if attrName == "" {
		target, found = targetDict.Root, true
	} else {
		target, found = targetDict.FindByName(attrName)
	}
	if !found {
		return dicterr.New(f.File, f.Line, dicterr.Reference,
			fmt.Errorf("%w: %q", ErrFixupRefNotFound, f.RawRef))
	}
	return l.linkGroupRef(f, targetDict, target)
}

func (l *Loader) linkGroupRef(f GroupFixup, targetDict *dict.Dictionary, target *dict.Attribute) error {
	if target.Type != dicttype.TLV {
		return dicterr.New(f.File, f.Line, dicterr.Reference,
			fmt.Errorf("%w: %q is %s", ErrFixupRefNotTLV, target.Name, target.Type))
	}
	f.Target.ResolveGroupRef(targetDict, target)
	return nil
}
