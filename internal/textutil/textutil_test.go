package textutil

import "testing"

func TestFoldName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Tom   Hanks ", "tom hanks"},
		{"ＴＯＭ", "tom"},
		{"Straße", "strasse"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FoldName(tt.in); got != tt.want {
			t.Errorf("FoldName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEqualNames(t *testing.T) {
	if !EqualNames("TOM HANKS", "tom  hanks") {
		t.Fatal("expected case-insensitive match")
	}
	if EqualNames("", "") {
		t.Fatal("empty names must never match")
	}
}

func TestSearchForm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Amélie: The Movie!", "amelie the movie"},
		{"北京", "bei jing"},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := SearchForm(tt.in); got != tt.want {
			t.Errorf("SearchForm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleDistanceOrdering(t *testing.T) {
	exact := TitleDistance("Alien", "Alien")
	prefix := TitleDistance("Alien", "Aliens vs Predator")
	contains := TitleDistance("Alien", "The Alien Within")
	fuzzy := TitleDistance("Alien", "Allen")
	if !(exact < prefix && prefix < contains && contains < fuzzy) {
		t.Fatalf("unexpected ordering: exact=%d prefix=%d contains=%d fuzzy=%d", exact, prefix, contains, fuzzy)
	}
	if TitleDistance("", "anything") != 1000 {
		t.Fatal("expected empty query to score worst")
	}
}
