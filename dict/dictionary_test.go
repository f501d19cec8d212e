package dict

import (
	"testing"

	"github.com/gravwell/raddict/dictnum"
	"github.com/gravwell/raddict/dicttype"
	"github.com/stretchr/testify/require"
)

func TestAddAttributeAndLookup(t *testing.T) {
	d := New("Test", 1)
	a, err := d.AddAttribute(d.Root, "User-Name", 1, dicttype.String, dicttype.Flags{})
	require.NoError(t, err)
	require.Equal(t, "1", a.OID())

	got, ok := d.FindByName("user-name")
	require.True(t, ok)
	require.Same(t, a, got)

	got, ok = d.FindByOIDPath("1")
	require.True(t, ok)
	require.Same(t, a, got)
}

func TestAddAttributeDuplicateNameAndNumber(t *testing.T) {
	d := New("Test", 1)
	_, err := d.AddAttribute(d.Root, "Foo", 1, dicttype.UInt8, dicttype.Flags{})
	require.NoError(t, err)

	_, err = d.AddAttribute(d.Root, "foo", 2, dicttype.UInt8, dicttype.Flags{})
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = d.AddAttribute(d.Root, "Bar", 1, dicttype.UInt8, dicttype.Flags{})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestReservedNamePrefixRejected(t *testing.T) {
	d := New("Test", 1)
	_, err := d.AddAttribute(d.Root, "Attr-Foo", 1, dicttype.UInt8, dicttype.Flags{})
	require.ErrorIs(t, err, ErrReservedName)
}

func TestResolveOIDNested(t *testing.T) {
	d := New("Test", 1)
	tlv, err := d.AddAttribute(d.Root, "Vendor-TLV", 100, dicttype.TLV, dicttype.Flags{})
	require.NoError(t, err)

	// relative OID ".2" resolves under the TLV
	oid, err := dictnum.ParseOID(".2")
	require.NoError(t, err)
	parent, number, err := d.ResolveOID(oid, tlv, nil)
	require.NoError(t, err)
	require.Same(t, tlv, parent)
	require.EqualValues(t, 2, number)

	// bare absolute number resolves under "top" (context stack attribute)
	oid, err = dictnum.ParseOID("1")
	require.NoError(t, err)
	parent, number, err = d.ResolveOID(oid, nil, d.Root)
	require.NoError(t, err)
	require.Same(t, d.Root, parent)
	require.EqualValues(t, 1, number)
}

func TestAddEnumRejectsStructuralTypes(t *testing.T) {
	d := New("Test", 1)
	tlv, err := d.AddAttribute(d.Root, "Vendor-TLV", 100, dicttype.TLV, dicttype.Flags{})
	require.NoError(t, err)

	err = d.AddEnum(tlv, "Foo", UintValue(dicttype.UInt32, 1))
	require.ErrorIs(t, err, ErrEnumTypeNotAllowed)

	attr, err := d.AddAttribute(d.Root, "NAS-Port", 5, dicttype.UInt32, dicttype.Flags{})
	require.NoError(t, err)
	require.NoError(t, d.AddEnum(attr, "Console", UintValue(dicttype.UInt32, 0)))

	ev, ok := d.EnumByAlias(attr, "Console")
	require.True(t, ok)
	require.EqualValues(t, 0, ev.Value.Int)

	err = d.AddEnum(attr, "Console", UintValue(dicttype.UInt32, 1))
	require.ErrorIs(t, err, ErrDuplicateEnumAlias)
}
