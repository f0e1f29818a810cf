package veil

import (
	"sync"
	"testing"
)

// otherCodec marshals like testCodec but reports a distinct content
// type, so it occupies its own registry slot.
type otherCodec struct {
	testCodec
}

func (c *otherCodec) ContentType() string { return "application/x-other" }

func TestUse_CachesProcessor(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	obf := helloObfuscator(t)
	codec := &testCodec{}

	first, err := Use[Account](codec, WithObfuscator(obf))
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	second, err := Use[Account](codec, WithObfuscator(obf))
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	if first != second {
		t.Error("Use() should return the cached processor for the same type and codec")
	}
}

func TestUse_DistinctPerContentType(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	obf := helloObfuscator(t)

	jsonProc, err := Use[Account](&testCodec{}, WithObfuscator(obf))
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	otherProc, err := Use[Account](&otherCodec{}, WithObfuscator(obf))
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	if jsonProc == otherProc {
		t.Error("different content types should get different processors")
	}
}

func TestUse_DistinctPerType(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	obf := helloObfuscator(t)
	codec := &testCodec{}

	if _, err := Use[Account](codec, WithObfuscator(obf)); err != nil {
		t.Fatalf("Use() error: %v", err)
	}
	if _, err := Use[Fleet](codec, WithObfuscator(obf)); err != nil {
		t.Fatalf("Use() error: %v", err)
	}
}

func TestUse_PropagatesBuildErrors(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, err := Use[BadFloat](&testCodec{}); err == nil {
		t.Error("Use() should surface classification failures")
	}
}

func TestReset(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	obf := helloObfuscator(t)
	codec := &testCodec{}

	first, err := Use[Account](codec, WithObfuscator(obf))
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	Reset()

	second, err := Use[Account](codec, WithObfuscator(obf))
	if err != nil {
		t.Fatalf("Use() error: %v", err)
	}

	if first == second {
		t.Error("Reset() should drop cached processors")
	}
}

func TestUse_Concurrent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	obf := helloObfuscator(t)
	codec := &testCodec{}

	var wg sync.WaitGroup
	procs := make([]*Processor[Account], 16)
	for i := range procs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Use[Account](codec, WithObfuscator(obf))
			if err != nil {
				t.Errorf("Use() error: %v", err)
				return
			}
			procs[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(procs); i++ {
		if procs[i] != procs[0] {
			t.Fatal("concurrent Use() calls returned different processors")
		}
	}
}
