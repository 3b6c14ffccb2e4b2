package metahash

import (
	"testing"

	"rainlang.xyz/rainmeta/metaerr"
)

func TestSum_KnownVectors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}
	for _, c := range cases {
		if got := Sum([]byte(c.in)).String(); got != c.want {
			t.Fatalf("Sum(%q) = %s want %s", c.in, got, c.want)
		}
	}
}

func TestParse(t *testing.T) {
	h := Sum([]byte("rain"))
	got, err := Parse(h.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch")
	}
	upper := "0X" + "C5D2460186F7233C927E7DB2DCC703C0E500B653CA82273B7BFAD8045D85A470"
	if _, err := Parse(upper); err != nil {
		t.Fatalf("Parse upper: %v", err)
	}
	for _, bad := range []string{"", "0x", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", "0x" + "zz" + upper[4:]} {
		if _, err := Parse(bad); !metaerr.IsKind(err, metaerr.KindInvalidInput) {
			t.Fatalf("Parse(%q): expected InvalidInput, got %v", bad, err)
		}
	}
}

func TestCIDRoundTrip(t *testing.T) {
	h := Sum([]byte("content"))
	id, err := h.CID()
	if err != nil {
		t.Fatalf("CID: %v", err)
	}
	back, err := FromCID(id)
	if err != nil {
		t.Fatalf("FromCID: %v", err)
	}
	if back != h {
		t.Fatalf("FromCID mismatch")
	}
}

func TestVerifyAndHex(t *testing.T) {
	data := []byte{1, 2, 3}
	if !Sum(data).Verify(data) {
		t.Fatalf("Verify failed")
	}
	if Sum(data).Verify([]byte{1, 2, 4}) {
		t.Fatalf("Verify accepted tampered data")
	}
	b, err := DecodeHex("0XABcd")
	if err != nil || len(b) != 2 || b[0] != 0xab || b[1] != 0xcd {
		t.Fatalf("DecodeHex: %x %v", b, err)
	}
	if EncodeHex(b) != "0xabcd" {
		t.Fatalf("EncodeHex: %s", EncodeHex(b))
	}
}
