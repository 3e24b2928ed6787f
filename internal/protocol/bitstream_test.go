package protocol

import "testing"

func TestBitWriterReaderRoundTrip(t *testing.T) {
	w := NewBitWriter(8)
	w.WriteBits(0x3, 2)
	w.WriteBits(0x1FF, 9)
	w.WriteBits(0, 1)
	w.WriteBits(0xABCD, 16)
	w.Flush()

	r := NewBitReader(w.Bytes())
	if v, err := r.ReadBits(2); err != nil || v != 0x3 {
		t.Fatalf("field1: got %d err %v", v, err)
	}
	if v, err := r.ReadBits(9); err != nil || v != 0x1FF {
		t.Fatalf("field2: got %d err %v", v, err)
	}
	if v, err := r.ReadBits(1); err != nil || v != 0 {
		t.Fatalf("field3: got %d err %v", v, err)
	}
	if v, err := r.ReadBits(16); err != nil || v != 0xABCD {
		t.Fatalf("field4: got %d err %v", v, err)
	}
}

func TestBitWriterMasksOverflow(t *testing.T) {
	w := NewBitWriter(4)
	w.WriteBits(0xFF, 4) // only low 4 bits should survive
	w.Flush()

	r := NewBitReader(w.Bytes())
	v, err := r.ReadBits(4)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xF {
		t.Fatalf("expected masked value 0xF, got %x", v)
	}
}

func TestBitReaderUnderrun(t *testing.T) {
	w := NewBitWriter(1)
	w.WriteBits(1, 1)
	w.Flush()

	r := NewBitReader(w.Bytes())
	if _, err := r.ReadBits(32); err != ErrBufferUnderrun {
		t.Fatalf("expected ErrBufferUnderrun, got %v", err)
	}
}

func TestBitStreamManyFieldsRoundTrip(t *testing.T) {
	w := NewBitWriter(64)
	values := []struct {
		v uint64
		n uint
	}{
		{1, 1}, {0, 1}, {42, 6}, {1023, 10}, {1 << 17, 18}, {7, 3}, {0, 18},
	}
	for _, f := range values {
		w.WriteBits(f.v, f.n)
	}
	w.Flush()

	r := NewBitReader(w.Bytes())
	for _, f := range values {
		got, err := r.ReadBits(f.n)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := f.v & (uint64(1)<<f.n - 1)
		if got != want {
			t.Fatalf("field n=%d: got %d want %d", f.n, got, want)
		}
	}
}
