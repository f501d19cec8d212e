package dictload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravwell/raddict/dict"
	"github.com/gravwell/raddict/dicterr"
	"github.com/gravwell/raddict/dicttype"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader() *Loader {
	return &Loader{
		Registry:       dict.NewProtocolRegistry(),
		ValueParser:    dict.DefaultValueParser{},
		FlagsValidator: dict.DefaultFlagsValidator{},
		Locator:        DefaultFileLocator{},
	}
}

// S1: Simple ATTRIBUTE + VALUE.
func TestS1SimpleAttributeAndValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s1.dict", `
ATTRIBUTE User-Name 1 string
ATTRIBUTE NAS-Port 5 uint32
VALUE NAS-Port Console 0
VALUE NAS-Port Modem 1
`)
	l := newTestLoader()
	d, err := l.Load(path)
	require.NoError(t, err)

	userName, ok := d.FindByName("User-Name")
	require.True(t, ok)
	require.EqualValues(t, 1, userName.Number)
	require.Equal(t, dicttype.String, userName.Type)

	nasPort, ok := d.FindByName("NAS-Port")
	require.True(t, ok)
	require.EqualValues(t, 5, nasPort.Number)

	console, ok := d.EnumByAlias(nasPort, "Console")
	require.True(t, ok)
	require.EqualValues(t, 0, console.Value.Int)
	modem, ok := d.EnumByAlias(nasPort, "Modem")
	require.True(t, ok)
	require.EqualValues(t, 1, modem.Value.Int)
}

// S2: Forward-declared VALUE (enum fixup).
func TestS2ForwardDeclaredValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s2.dict", `
VALUE Service-Type Login-User 1
ATTRIBUTE Service-Type 6 uint32
`)
	l := newTestLoader()
	d, err := l.Load(path)
	require.NoError(t, err)

	attr, ok := d.FindByName("Service-Type")
	require.True(t, ok)
	ev, ok := d.EnumByAlias(attr, "Login-User")
	require.True(t, ok)
	require.EqualValues(t, 1, ev.Value.Int)
}

// S3: TLV nesting with relative OID, in the "ATTRIBUTE .N name" order.
func TestS3TLVNestingRelativeOID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s3.dict", `
ATTRIBUTE Vendor-TLV 100 tlv
BEGIN-TLV Vendor-TLV
ATTRIBUTE Sub-A 1 uint8
ATTRIBUTE .2 Sub-B uint8
END-TLV Vendor-TLV
`)
	l := newTestLoader()
	d, err := l.Load(path)
	require.NoError(t, err)

	tlv, ok := d.FindByName("Vendor-TLV")
	require.True(t, ok)
	subA, ok := tlv.ChildByName("Sub-A")
	require.True(t, ok)
	require.EqualValues(t, 1, subA.Number)
	subB, ok := tlv.ChildByName("Sub-B")
	require.True(t, ok)
	require.EqualValues(t, 2, subB.Number)
}

// S3 variant: the canonical "ATTRIBUTE Sub-B .2 uint8" field order.
func TestS3TLVNestingCanonicalRelativeOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s3b.dict", `
ATTRIBUTE Vendor-TLV 100 tlv
BEGIN-TLV Vendor-TLV
ATTRIBUTE Sub-A 1 uint8
ATTRIBUTE Sub-B .2 uint8
END-TLV Vendor-TLV
`)
	l := newTestLoader()
	d, err := l.Load(path)
	require.NoError(t, err)
	tlv, ok := d.FindByName("Vendor-TLV")
	require.True(t, ok)
	subB, ok := tlv.ChildByName("Sub-B")
	require.True(t, ok)
	require.EqualValues(t, 2, subB.Number)
}

// S4: Struct with key and STRUCT sub-declarations.
func TestS4StructWithKeyAndSubStructs(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s4.dict", `
ATTRIBUTE Packet 10 struct
MEMBER Code 1 uint8 key
MEMBER Length 2 uint16
STRUCT Code Request 1
MEMBER ReqOpt 3 uint8
STRUCT Code Reply 2
MEMBER RepOpt 3 uint16
`)
	l := newTestLoader()
	d, err := l.Load(path)
	require.NoError(t, err)

	code, ok := d.FindByName("Code")
	require.True(t, ok)

	request, ok := code.ChildByName("Request")
	require.True(t, ok)
	require.EqualValues(t, 1, request.Number)
	reqOpt, ok := request.ChildByName("ReqOpt")
	require.True(t, ok)
	require.EqualValues(t, 3, reqOpt.Number)

	reply, ok := code.ChildByName("Reply")
	require.True(t, ok)
	require.EqualValues(t, 2, reply.Number)
	repOpt, ok := reply.ChildByName("RepOpt")
	require.True(t, ok)
	require.EqualValues(t, 3, repOpt.Number)

	reqAlias, ok := d.EnumByAlias(code, "Request")
	require.True(t, ok)
	require.EqualValues(t, 1, reqAlias.Value.Int)
	replyAlias, ok := d.EnumByAlias(code, "Reply")
	require.True(t, ok)
	require.EqualValues(t, 2, replyAlias.Value.Int)
}

// S5: Group with cross-protocol ref, triggering a secondary load.
func TestS5GroupCrossProtocolRef(t *testing.T) {
	dir := t.TempDir()
	otherPath := writeFile(t, dir, "other.dict", `
PROTOCOL Other 2
BEGIN-PROTOCOL Other
ATTRIBUTE Root-TLV 1 tlv
END-PROTOCOL Other
`)
	mainPath := writeFile(t, dir, "main.dict", `
PROTOCOL Main 1
BEGIN-PROTOCOL Main
ATTRIBUTE Nested 20 group ref=Other.Root-TLV
END-PROTOCOL Main
`)
	l := newTestLoader()
	l.Locator = stubLocator{"other": otherPath}

	_, err := l.Load(mainPath)
	require.NoError(t, err)

	mainDict, ok := l.Registry.Get("Main")
	require.True(t, ok)
	nested, ok := mainDict.FindByName("Nested")
	require.True(t, ok)

	targetDict, target, ok := nested.ResolvedGroupRef()
	require.True(t, ok)
	require.Equal(t, "Other", targetDict.Name)
	require.Equal(t, "Root-TLV", target.Name)
	require.Equal(t, dicttype.TLV, target.Type)
}

// S5 failure mode: the cross-protocol ref resolves to a non-TLV attribute.
func TestS5GroupCrossProtocolRefNotTLV(t *testing.T) {
	dir := t.TempDir()
	otherPath := writeFile(t, dir, "other.dict", `
PROTOCOL Other 2
BEGIN-PROTOCOL Other
ATTRIBUTE Root-Int 1 uint32
END-PROTOCOL Other
`)
	mainPath := writeFile(t, dir, "main.dict", `
PROTOCOL Main 1
BEGIN-PROTOCOL Main
ATTRIBUTE Nested 20 group ref=Other.Root-Int
END-PROTOCOL Main
`)
	l := newTestLoader()
	l.Locator = stubLocator{"other": otherPath}

	_, err := l.Load(mainPath)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrFixupRefNotTLV)
}

// S6: Mismatched BEGIN/END.
func TestS6MismatchedBeginEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "s6.dict", `
VENDOR Acme 10
BEGIN-VENDOR Acme
ATTRIBUTE Some-TLV 1 tlv
BEGIN-TLV Some-TLV
END-VENDOR Acme
`)
	l := newTestLoader()
	_, err := l.Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "END-VENDOR Acme with mismatched BEGIN-??? Some-TLV")
}

// Boundary: context stack depth 32 pushes, 33rd fails with stack overflow.
// Exercised directly against the stack type (package-internal), since
// Loader.Load rejects any BEGIN-* frame still open at end-of-file and so
// cannot observe an open depth-32 stack of named frames by itself.
func TestContextDepthBoundary(t *testing.T) {
	var s stack
	for i := 0; i < MaxContextDepth; i++ {
		err := s.push(Frame{Tag: FrameTLV, Attr: nil, File: "t", Line: i + 1})
		require.NoError(t, err, "push %d should succeed", i+1)
	}
	require.Equal(t, MaxContextDepth, s.depth())

	err := s.push(Frame{Tag: FrameTLV, Attr: nil, File: "t", Line: MaxContextDepth + 1})
	require.Error(t, err)
	require.ErrorIs(t, err, dicterr.ErrStackOverflow)
}

// Boundary: $INCLUDE- of a nonexistent file succeeds silently; $INCLUDE of
// the same fails.
func TestIncludeOptionalVsRequired(t *testing.T) {
	dir := t.TempDir()
	optionalPath := writeFile(t, dir, "optional.dict", `
ATTRIBUTE User-Name 1 string
$INCLUDE- ./does-not-exist.dict
`)
	l := newTestLoader()
	_, err := l.Load(optionalPath)
	require.NoError(t, err)

	requiredPath := writeFile(t, dir, "required.dict", `
ATTRIBUTE User-Name 1 string
$INCLUDE ./does-not-exist.dict
`)
	l2 := newTestLoader()
	_, err = l2.Load(requiredPath)
	require.Error(t, err)
}

// Boundary: world-writable dictionary file is rejected before parsing.
func TestWorldWritableRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "writable.dict", "ATTRIBUTE User-Name 1 string\n")
	require.NoError(t, os.Chmod(path, 0o666))

	l := newTestLoader()
	_, err := l.Load(path)
	require.Error(t, err)
	require.ErrorIs(t, err, dicterr.ErrWorldWritable)
}

type stubLocator map[string]string

func (s stubLocator) Locate(protocol string) (string, error) {
	if p, ok := s[lower(protocol)]; ok {
		return p, nil
	}
	return "", os.ErrNotExist
}
