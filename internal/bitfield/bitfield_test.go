package bitfield

import "testing"

func TestPackSimple(t *testing.T) {
	type flags struct {
		A bool   `bitfield:",1"`
		B bool   `bitfield:",1"`
		C uint32 `bitfield:",6"`
	}

	got, err := Pack(flags{A: true, B: false, C: 5}, &Config{NumBits: 8})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	want := uint64(1) | uint64(5)<<2
	if got != want {
		t.Fatalf("Pack() = %#x, want %#x", got, want)
	}
}

func TestPackOverflow(t *testing.T) {
	type flags struct {
		A uint32 `bitfield:",2"`
	}
	if _, err := Pack(flags{A: 7}, &Config{NumBits: 2}); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestBitSetBit(t *testing.T) {
	var v uint32
	v = SetBit(v, 3, true)
	if !Bit(v, 3) {
		t.Fatal("expected bit 3 set")
	}
	v = SetBit(v, 3, false)
	if Bit(v, 3) {
		t.Fatal("expected bit 3 cleared")
	}
}
