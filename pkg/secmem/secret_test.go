package secmem

import (
	"errors"
	"testing"
	"time"

	pqerrors "github.com/pqwire/pqwire/internal/errors"
)

func TestAllocZeroInitialized(t *testing.T) {
	s, err := Alloc(64)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	defer s.Destroy()

	if s.Len() != 64 {
		t.Errorf("Len() = %d, want 64", s.Len())
	}

	err = s.With(func(b []byte) error {
		for i, v := range b {
			if v != 0 {
				t.Errorf("byte %d = %#x, want 0", i, v)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}
}

func TestAllocInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1} {
		if _, err := Alloc(length); err == nil {
			t.Errorf("Alloc(%d) succeeded, want error", length)
		}
	}
}

func TestRandomFills(t *testing.T) {
	a, err := Random(32)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	defer a.Destroy()

	b, err := Random(32)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	defer b.Destroy()

	if Equal(a, b) {
		t.Error("two random secrets compared equal")
	}

	allZero := true
	a.With(func(buf []byte) error {
		for _, v := range buf {
			if v != 0 {
				allZero = false
			}
		}
		return nil
	})
	if allZero {
		t.Error("Random produced an all-zero secret")
	}
}

func TestFromBytesZeroizesSource(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	s, err := FromBytes(src)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	defer s.Destroy()

	for i, v := range src {
		if v != 0 {
			t.Errorf("source byte %d = %#x after FromBytes, want 0", i, v)
		}
	}

	s.With(func(b []byte) error {
		if b[0] != 1 || b[7] != 8 {
			t.Error("secret does not hold the original bytes")
		}
		return nil
	})
}

func TestDestroyIdempotent(t *testing.T) {
	s, err := Random(32)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}

	s.Destroy()
	s.Destroy()
	s.Destroy()

	if s.Len() != 0 {
		t.Errorf("Len() after Destroy = %d, want 0", s.Len())
	}
	err = s.With(func([]byte) error { return nil })
	if !errors.Is(err, pqerrors.ErrSecretDestroyed) {
		t.Errorf("With after Destroy = %v, want ErrSecretDestroyed", err)
	}
	if _, err := s.Clone(); !errors.Is(err, pqerrors.ErrSecretDestroyed) {
		t.Errorf("Clone after Destroy = %v, want ErrSecretDestroyed", err)
	}
}

func TestEqual(t *testing.T) {
	mk := func(b []byte) *Secret {
		t.Helper()
		s, err := FromBytes(append([]byte(nil), b...))
		if err != nil {
			t.Fatalf("FromBytes failed: %v", err)
		}
		return s
	}

	a := mk([]byte{1, 2, 3, 4})
	defer a.Destroy()
	same := mk([]byte{1, 2, 3, 4})
	defer same.Destroy()
	diff := mk([]byte{1, 2, 3, 5})
	defer diff.Destroy()
	short := mk([]byte{1, 2, 3})
	defer short.Destroy()

	tests := []struct {
		name string
		x, y *Secret
		want bool
	}{
		{"equal", a, same, true},
		{"different content", a, diff, false},
		{"different length", a, short, false},
		{"nil left", nil, a, false},
		{"nil right", a, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.x, tt.y); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}

	dead := mk([]byte{1, 2, 3, 4})
	dead.Destroy()
	if Equal(a, dead) || Equal(dead, dead) {
		t.Error("destroyed secret compared equal")
	}
}

func TestEqualConcurrentBothOrders(t *testing.T) {
	a, err := Random(32)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	defer a.Destroy()
	b, err := Random(32)
	if err != nil {
		t.Fatalf("Random failed: %v", err)
	}
	defer b.Destroy()

	// Equal(a, b) and Equal(b, a) racing must both return, not deadlock.
	done := make(chan struct{}, 2)
	go func() {
		for i := 0; i < 10000; i++ {
			Equal(a, b)
		}
		done <- struct{}{}
	}()
	go func() {
		for i := 0; i < 10000; i++ {
			Equal(b, a)
		}
		done <- struct{}{}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			t.Fatal("Equal deadlocked under opposite lock orders")
		}
	}

	if !Equal(a, a) {
		t.Error("secret compared unequal to itself")
	}
}

// timeEqualBatches returns the fastest wall time of repeated Equal batches.
// The minimum over many batches suppresses scheduler noise.
func timeEqualBatches(x, y *Secret) time.Duration {
	const batches = 40
	const perBatch = 200

	best := time.Duration(1<<63 - 1)
	for i := 0; i < batches; i++ {
		start := time.Now()
		for j := 0; j < perBatch; j++ {
			Equal(x, y)
		}
		if d := time.Since(start); d < best {
			best = d
		}
	}
	return best
}

func TestEqualTimingIndependentOfDiffPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("timing measurement")
	}

	base := make([]byte, 4096)
	for i := range base {
		base[i] = 0xaa
	}
	mk := func(mutate int) *Secret {
		t.Helper()
		buf := append([]byte(nil), base...)
		buf[mutate] ^= 0xff
		s, err := FromBytes(buf)
		if err != nil {
			t.Fatalf("FromBytes failed: %v", err)
		}
		return s
	}

	ref, err := FromBytes(append([]byte(nil), base...))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	defer ref.Destroy()
	early := mk(0)
	defer early.Destroy()
	late := mk(len(base) - 1)
	defer late.Destroy()

	earlyTime := timeEqualBatches(ref, early)
	lateTime := timeEqualBatches(ref, late)

	// A short-circuiting compare would finish the early-diff case orders
	// of magnitude faster; a generous bound keeps the check stable on
	// loaded machines.
	if earlyTime*4 < lateTime || lateTime*4 < earlyTime {
		t.Errorf("compare time depends on difference position: early=%v late=%v", earlyTime, lateTime)
	}
}

func BenchmarkEqualFirstByteDiff(b *testing.B) {
	benchmarkEqualDiffAt(b, 0)
}

func BenchmarkEqualLastByteDiff(b *testing.B) {
	benchmarkEqualDiffAt(b, 4095)
}

func benchmarkEqualDiffAt(b *testing.B, pos int) {
	buf := make([]byte, 4096)
	x, err := FromBytes(append([]byte(nil), buf...))
	if err != nil {
		b.Fatalf("FromBytes failed: %v", err)
	}
	defer x.Destroy()
	buf = make([]byte, 4096)
	buf[pos] = 0xff
	y, err := FromBytes(buf)
	if err != nil {
		b.Fatalf("FromBytes failed: %v", err)
	}
	defer y.Destroy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Equal(x, y)
	}
}

func TestCloneIndependent(t *testing.T) {
	s, err := FromBytes([]byte{9, 9, 9, 9})
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	defer s.Destroy()

	c, err := s.Clone()
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	if !Equal(s, c) {
		t.Error("clone differs from original")
	}

	c.Destroy()
	if err := s.With(func([]byte) error { return nil }); err != nil {
		t.Errorf("original unusable after clone destroyed: %v", err)
	}
}

func TestPublic(t *testing.T) {
	src := []byte{0xab, 0xcd}
	p := NewPublic(src)
	src[0] = 0

	if p.Bytes()[0] != 0xab {
		t.Error("NewPublic did not copy its input")
	}
	if got := p.String(); got != "abcd" {
		t.Errorf("String() = %q, want %q", got, "abcd")
	}
	if !p.Equal(NewPublic([]byte{0xab, 0xcd})) {
		t.Error("Equal returned false for identical values")
	}
	if p.Equal(NewPublic([]byte{0xab})) {
		t.Error("Equal returned true for different lengths")
	}
	if p.Clone().Len() != 2 {
		t.Error("Clone lost length")
	}
}
