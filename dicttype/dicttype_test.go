package dicttype

import "testing"

func TestParseTypeBasic(t *testing.T) {
	pt, err := ParseType("uint32")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pt.Type != UInt32 || pt.HasLength {
		t.Fatalf("unexpected: %+v", pt)
	}

	if _, err := ParseType("nonsense"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseTypeOctetsLength(t *testing.T) {
	for _, n := range []int{MinOctetsLength, MaxOctetsLength, 16} {
		pt, err := ParseType(octetsField(n))
		if err != nil {
			t.Fatalf("octets[%d]: unexpected error: %v", n, err)
		}
		if pt.Type != Octets || !pt.HasLength || int(pt.Length) != n {
			t.Fatalf("octets[%d]: unexpected result %+v", n, pt)
		}
	}
	for _, n := range []int{0, 254} {
		if _, err := ParseType(octetsField(n)); err == nil {
			t.Fatalf("octets[%d]: expected error", n)
		}
	}
	if _, err := ParseType("uint32[4]"); err == nil {
		t.Fatal("expected error: [length] only legal for octets")
	}
}

func octetsField(n int) string {
	return "octets[" + itoa(n) + "]"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestParseFlags(t *testing.T) {
	fl, ref, err := ParseFlags(UInt32, "has_tag,encrypt=2,array")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fl.HasTag || fl.Encrypt != 2 || !fl.Array || ref != "" {
		t.Fatalf("unexpected flags: %+v ref=%q", fl, ref)
	}

	if _, _, err := ParseFlags(String, "concat"); err == nil {
		t.Fatal("expected error: concat requires octets")
	}

	fl, _, err = ParseFlags(Octets, "concat")
	if err != nil || !fl.Concat {
		t.Fatalf("unexpected: %+v %v", fl, err)
	}

	fl, ref, err = ParseFlags(Group, "ref=Other.Root-TLV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "Other.Root-TLV" {
		t.Fatalf("unexpected ref: %q", ref)
	}

	fl, _, err = ParseFlags(UInt8, "key")
	if err != nil || !fl.Extra {
		t.Fatalf("unexpected: %+v %v", fl, err)
	}

	if _, _, err := ParseFlags(UInt64, "key"); err == nil {
		t.Fatal("expected error: key not legal on uint64")
	}

	fl, _, err = ParseFlags(Extended, "long")
	if err != nil || !fl.Extra {
		t.Fatalf("unexpected: %+v %v", fl, err)
	}
	if _, _, err := ParseFlags(UInt32, "long"); err == nil {
		t.Fatal("expected error: long only legal on extended")
	}

	fl, _, err = ParseFlags(Date, "milliseconds")
	if err != nil || fl.TypeSize != 2 {
		t.Fatalf("unexpected: %+v %v", fl, err)
	}

	if _, _, err := ParseFlags(UInt32, "bogus"); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestAdmitsEnum(t *testing.T) {
	for _, ty := range []Type{UInt8, UInt32, String, IPAddr, Date} {
		if !ty.AdmitsEnum() {
			t.Fatalf("%s should admit enums", ty)
		}
	}
	for _, ty := range []Type{Abinary, TLV, Struct, Group, Vendor, Extended, VSA, Invalid, Max} {
		if ty.AdmitsEnum() {
			t.Fatalf("%s should not admit enums", ty)
		}
	}
}
