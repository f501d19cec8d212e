package dictnum

import "testing"

func TestParseInt(t *testing.T) {
	cases := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0", 0, false},
		{"123", 123, false},
		{"0x1A", 26, false},
		{"0X1a", 26, false},
		{"5.6", 5, false}, // stops at first '.'
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ParseInt(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseInt(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseInt(%q): unexpected error %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseInt(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseOID(t *testing.T) {
	oid, err := ParseOID("1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oid.Relative {
		t.Fatal("expected absolute OID")
	}
	if len(oid.Parts) != 3 || oid.Parts[0] != 1 || oid.Parts[1] != 2 || oid.Parts[2] != 3 {
		t.Fatalf("unexpected parts: %v", oid.Parts)
	}

	rel, err := ParseOID(".2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rel.Relative || len(rel.Parts) != 1 || rel.Parts[0] != 2 {
		t.Fatalf("unexpected relative OID: %+v", rel)
	}

	if _, err := ParseOID(""); err == nil {
		t.Fatal("expected error for empty OID")
	}
	if _, err := ParseOID("1..2"); err == nil {
		t.Fatal("expected error for empty component")
	}
}

func TestParseVendorFormat(t *testing.T) {
	vf, err := ParseVendorFormat("1,1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vf.TypeWidth != 1 || vf.LengthWidth != 1 || vf.Continuation {
		t.Fatalf("unexpected: %+v", vf)
	}

	vf, err = ParseVendorFormat("1,1,c")
	if err != nil {
		t.Fatalf("unexpected error for WiMAX continuation: %v", err)
	}
	if !vf.Continuation {
		t.Fatal("expected continuation flag set")
	}

	if _, err := ParseVendorFormat("2,1,c"); err == nil {
		t.Fatal("expected error: continuation only legal for 1,1")
	}
	if _, err := ParseVendorFormat("3,1"); err == nil {
		t.Fatal("expected error: T must be 1, 2, or 4")
	}
	if _, err := ParseVendorFormat("1,3"); err == nil {
		t.Fatal("expected error: L must be 0, 1, or 2")
	}
}
