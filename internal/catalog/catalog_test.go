package catalog

import (
	"testing"

	"tunehall/internal/docstore"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("concerts"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRelationLookup(t *testing.T) {
	f, err := FavoriteByName("followed_artists")
	if err != nil {
		t.Fatalf("FavoriteByName: %v", err)
	}
	if f.Target != Artists || f.Counter != CounterFollowers {
		t.Fatalf("unexpected relation: %#v", f)
	}

	if _, err := FavoriteByName("playlist_tracks"); err == nil {
		t.Fatalf("membership relation must not resolve as favorite")
	}

	m, err := MembershipByName("playlist_tracks")
	if err != nil || m.Member != Songs {
		t.Fatalf("MembershipByName: %#v, %v", m, err)
	}
}

func TestSingular(t *testing.T) {
	tests := map[docstore.Kind]string{
		Albums:  "album",
		Genres:  "genre",
		"s":     "s",
		"media": "media",
	}
	for kind, want := range tests {
		if got := Singular(kind); got != want {
			t.Fatalf("Singular(%q) = %q, want %q", kind, got, want)
		}
	}
}
