package transmission

import (
	"bytes"
	"errors"
	"testing"

	ncerr "nnfp/internal/errors"
)

type memFile struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (m *memFile) Close() error {
	m.closed = true
	return m.closeErr
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	for want := FirstID; want < FirstID+5; want++ {
		if got := c.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
}

func TestTable_InterleavedUploads(t *testing.T) {
	tbl := NewTable()
	a, b := &memFile{}, &memFile{}
	idA := tbl.Open(a, "/a")
	idB := tbl.Open(b, "/b")
	if idA == idB {
		t.Fatal("ids collide")
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d", tbl.Len())
	}

	steps := []struct {
		id    int32
		chunk string
	}{
		{idA, "hel"}, {idB, "wor"}, {idB, "ld"}, {idA, "lo"},
	}
	for _, s := range steps {
		if err := tbl.Append(s.id, []byte(s.chunk)); err != nil {
			t.Fatal(err)
		}
	}

	ua, err := tbl.Finish(idA)
	if err != nil {
		t.Fatal(err)
	}
	if ua.Written != 5 || ua.Path != "/a" {
		t.Errorf("upload a = %+v", ua)
	}
	if !a.closed || a.String() != "hello" {
		t.Errorf("a closed=%v content=%q", a.closed, a.String())
	}
	if _, ok := tbl.Lookup(idA); ok {
		t.Error("finished upload still registered")
	}

	if _, err := tbl.Finish(idB); err != nil {
		t.Fatal(err)
	}
	if b.String() != "world" {
		t.Errorf("b content = %q", b.String())
	}
	if tbl.Len() != 0 {
		t.Errorf("Len = %d after finishing both", tbl.Len())
	}
}

func TestTable_UnknownID(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Append(99, []byte("x")); !errors.Is(err, ncerr.ErrUnknownTransmission) {
		t.Errorf("Append err = %v", err)
	}
	if _, err := tbl.Finish(99); !errors.Is(err, ncerr.ErrUnknownTransmission) {
		t.Errorf("Finish err = %v", err)
	}

	id := tbl.Open(&memFile{}, "/x")
	if _, err := tbl.Finish(id); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Finish(id); !errors.Is(err, ncerr.ErrUnknownTransmission) {
		t.Errorf("double Finish err = %v", err)
	}
}

func TestTable_CloseAll(t *testing.T) {
	tbl := NewTable()
	files := []*memFile{{}, {}, {closeErr: errors.New("disk gone")}}
	for _, f := range files {
		tbl.Open(f, "/f")
	}

	err := tbl.CloseAll()
	if err == nil {
		t.Error("close error swallowed")
	}
	for i, f := range files {
		if !f.closed {
			t.Errorf("file %d not closed", i)
		}
	}
	if tbl.Len() != 0 {
		t.Errorf("Len = %d after CloseAll", tbl.Len())
	}
	if err := tbl.CloseAll(); err != nil {
		t.Errorf("second CloseAll: %v", err)
	}
}

func TestTable_IDsNeverReused(t *testing.T) {
	tbl := NewTable()
	first := tbl.Open(&memFile{}, "/1")
	tbl.Finish(first) //nolint:errcheck
	second := tbl.Open(&memFile{}, "/2")
	if second == first {
		t.Errorf("id %d reused", first)
	}
}
