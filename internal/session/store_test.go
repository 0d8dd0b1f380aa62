package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_AppendAndSnapshot(t *testing.T) {
	s := NewMemoryStore(10, 0)

	if got := s.Snapshot("none"); len(got) != 0 || got == nil {
		t.Fatalf("missing session snapshot = %v", got)
	}
	if s.Len("none") != 0 {
		t.Fatalf("missing session len != 0")
	}

	s.Append("s1",
		Turn{Role: RoleUser, Content: "привет"},
		Turn{Role: RoleAssistant, Content: "здравствуйте"},
	)
	turns := s.Snapshot("s1")
	if len(turns) != 2 || turns[0].Content != "привет" || turns[1].Role != RoleAssistant {
		t.Fatalf("snapshot = %+v", turns)
	}

	// Snapshot must be a copy, not an aliased slice.
	turns[0].Content = "mutated"
	if s.Snapshot("s1")[0].Content != "привет" {
		t.Fatalf("snapshot aliases internal storage")
	}
}

func TestMemoryStore_StampsCreatedAt(t *testing.T) {
	s := NewMemoryStore(10, 0)

	before := time.Now()
	preset := before.Add(-time.Minute)
	s.Append("s1",
		Turn{Role: RoleUser, Content: "привет"},
		Turn{Role: RoleAssistant, Content: "здравствуйте", CreatedAt: preset},
	)

	turns := s.Snapshot("s1")
	if turns[0].CreatedAt.IsZero() || turns[0].CreatedAt.Before(before) {
		t.Fatalf("CreatedAt not stamped on append: %v", turns[0].CreatedAt)
	}
	// A caller-provided timestamp is kept as is.
	if !turns[1].CreatedAt.Equal(preset) {
		t.Fatalf("CreatedAt overwritten: %v; want %v", turns[1].CreatedAt, preset)
	}
}

func TestMemoryStore_FIFOCap(t *testing.T) {
	s := NewMemoryStore(3, 0)

	for i := 1; i <= 5; i++ {
		s.Append("s1", Turn{Role: RoleUser, Content: fmt.Sprintf("t%d", i)})
	}

	turns := s.Snapshot("s1")
	if len(turns) != 3 {
		t.Fatalf("len = %d; want cap 3", len(turns))
	}
	for i, want := range []string{"t3", "t4", "t5"} {
		if turns[i].Content != want {
			t.Fatalf("turns[%d] = %q; want %q (oldest must go first)", i, turns[i].Content, want)
		}
	}
}

func TestMemoryStore_CapCoercedToOne(t *testing.T) {
	s := NewMemoryStore(0, 0)
	s.Append("s1", Turn{Content: "a"}, Turn{Content: "b"})
	if turns := s.Snapshot("s1"); len(turns) != 1 || turns[0].Content != "b" {
		t.Fatalf("snapshot = %+v; want just the newest turn", turns)
	}
}

func TestMemoryStore_IdleEviction(t *testing.T) {
	s := NewMemoryStore(10, time.Millisecond)

	s.Append("old", Turn{Content: "x"})
	time.Sleep(5 * time.Millisecond)

	// Cleanup is opportunistic: it fires after a threshold of lookups.
	for i := 0; i < 1000; i++ {
		s.Append("hot", Turn{Content: "y"})
	}

	if n := s.Len("old"); n != 0 {
		t.Fatalf("idle session survived eviction: len=%d", n)
	}
	if s.Len("hot") == 0 {
		t.Fatalf("active session evicted")
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewMemoryStore(1000, 0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("s1", Turn{Role: RoleUser, Content: "m"}, Turn{Role: RoleAssistant, Content: "r"})
			}
		}()
	}
	wg.Wait()

	if n := s.Len("s1"); n != 8*50*2 {
		t.Fatalf("len = %d; want %d", n, 8*50*2)
	}
	// Paired appends must stay adjacent.
	turns := s.Snapshot("s1")
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != RoleUser || turns[i+1].Role != RoleAssistant {
			t.Fatalf("turn pair interleaved at %d: %s/%s", i, turns[i].Role, turns[i+1].Role)
		}
	}
}
