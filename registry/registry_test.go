package registry

import (
	"testing"

	"github.com/google/uuid"
)

func TestStoreAddAndGet(t *testing.T) {
	s := NewStore()
	sc := s.Add("hello", `print("hi")`)
	if sc.ID == uuid.Nil {
		t.Fatal("Add should assign an ID")
	}

	got, ok := s.Get(sc.ID)
	if !ok || got.Name != "hello" {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	if _, ok := s.Get(uuid.New()); ok {
		t.Fatal("unknown ID should miss")
	}
}

func TestStorePreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		s.Add(n, "")
	}
	list := s.List()
	if len(list) != 3 {
		t.Fatalf("Len = %d", len(list))
	}
	for i, n := range names {
		if list[i].Name != n {
			t.Fatalf("List[%d] = %s, want %s", i, list[i].Name, n)
		}
	}
}

func TestStoreByNameAndRemove(t *testing.T) {
	s := NewStore()
	first := s.Add("dup", "one")
	s.Add("dup", "two")

	got, ok := s.ByName("dup")
	if !ok || got.ID != first.ID {
		t.Fatal("ByName should return the first registration")
	}

	if !s.Remove(first.ID) {
		t.Fatal("Remove should succeed")
	}
	got, ok = s.ByName("dup")
	if !ok || got.Source != "two" {
		t.Fatalf("after remove, ByName = %v, %v", got, ok)
	}
	if s.Remove(first.ID) {
		t.Fatal("double remove should fail")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
}

func TestStoreRecords(t *testing.T) {
	s := NewStore()
	s.Add("one", "return 1")
	s.Add("two", "return 2")
	recs := s.Records()
	if len(recs) != 2 || recs[0].Name != "one" || recs[1].Source != "return 2" {
		t.Fatalf("Records = %v", recs)
	}
}
