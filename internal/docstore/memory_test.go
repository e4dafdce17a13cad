package docstore

import (
	"context"
	"testing"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemory() })
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	doc := &Document{ID: NewID(), Kind: "playlists", Refs: map[string][]string{"tracks": {"a"}}}
	if err := s.Insert(ctx, doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Get(ctx, "playlists", doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Refs["tracks"] = append(got.Refs["tracks"], "b")
	doc.Refs["tracks"][0] = "mutated"

	again, err := s.Get(ctx, "playlists", doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tracks := again.RefList("tracks"); len(tracks) != 1 || tracks[0] != "a" {
		t.Fatalf("stored document was mutated through a returned copy: %v", tracks)
	}
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Get(ctx, "albums", NewID()); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NewID(), true},
		{"3f0c1e4a-8a8b-4c5e-9d7e-1b2c3d4e5f60", true},
		{"", false},
		{"not-an-id", false},
		{"507f1f77bcf86cd799439011", false},
		{"{3f0c1e4a-8a8b-4c5e-9d7e-1b2c3d4e5f60}", false},
	}
	for _, tc := range tests {
		if got := ValidID(tc.id); got != tc.want {
			t.Errorf("ValidID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
