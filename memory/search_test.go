package memory

import (
	"strings"
	"testing"
	"time"
)

func TestSearchExactBeatsPartial(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(fact("user's favorite color is blue", 0.5, 0))
	store.SaveFact(fact("the sky looked blue yesterday", 0.5, 0))
	store.SaveFact(fact("user works at a bakery", 0.5, 0))

	results := store.SearchMemories("favorite color", 10)
	if len(results) == 0 {
		t.Fatalf("expected results")
	}
	if !strings.Contains(results[0].Entry.Content, "favorite color") {
		t.Fatalf("exact match not ranked first: %q", results[0].Entry.Content)
	}
	for _, r := range results {
		if strings.Contains(r.Entry.Content, "bakery") {
			t.Fatalf("unrelated fact matched: %q", r.Entry.Content)
		}
	}
}

func TestSearchImportanceBreaksTies(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(fact("user plays guitar on weekends", 0.2, 0))
	store.SaveFact(fact("user plays piano on weekends", 0.9, 0))

	results := store.SearchMemories("plays weekends", 10)
	if len(results) < 2 {
		t.Fatalf("expected both facts to match, got %d", len(results))
	}
	if !strings.Contains(results[0].Entry.Content, "piano") {
		t.Fatalf("higher importance not ranked first: %q", results[0].Entry.Content)
	}
}

func TestSearchTagAndContextMatches(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(Entry{
		Content:    "deadline for the quarterly report",
		Timestamp:  time.Now(),
		MemoryType: "task",
		Importance: 0.6,
		Tags:       []string{"work"},
		Context:    map[string]string{"project": "finance"},
	})

	if got := store.SearchMemories("work", 10); len(got) == 0 {
		t.Fatalf("tag match found nothing")
	}
	if got := store.SearchMemories("finance", 10); len(got) == 0 {
		t.Fatalf("context match found nothing")
	}
}

func TestSearchFuzzyMatchesTypos(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(fact("user prefers espresso in the morning", 0.8, 0))

	if got := store.SearchMemories("expresso", 10); len(got) == 0 {
		t.Fatalf("fuzzy pass missed a close typo")
	}
}

func TestSearchAllFactsBypass(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(fact("alpha", 0.1, 0))
	store.SaveFact(fact("beta", 0.1, 0))
	store.SaveFact(fact("gamma", 0.1, 0))

	for _, query := range []string{"show me all facts", "what do you know about me", "everything"} {
		if got := store.SearchMemories(query, 10); len(got) != 3 {
			t.Fatalf("query %q: expected all 3 facts, got %d", query, len(got))
		}
	}
}

func TestSearchAllFactsOrdersByImportanceThenRecency(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(fact("important and old", 0.9, 48*time.Hour))
	store.SaveFact(fact("unimportant and new", 0.1, 0))
	store.SaveFact(fact("important and new", 0.9, time.Hour))

	got := store.SearchMemories("show me all facts", 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(got))
	}
	want := []string{"important and new", "important and old", "unimportant and new"}
	for i, content := range want {
		if got[i].Entry.Content != content {
			t.Fatalf("position %d: got %q, want %q", i, got[i].Entry.Content, content)
		}
	}

	// A tight limit must keep the high-importance facts, not the newest.
	capped := store.SearchMemories("show me all facts", 2)
	if len(capped) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(capped))
	}
	for _, r := range capped {
		if r.Entry.Importance != 0.9 {
			t.Fatalf("limit dropped a high-importance fact for %q", r.Entry.Content)
		}
	}
}

func TestSearchSingleTokenFallback(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(Entry{
		Content:    "klusterfig maintenance window",
		Timestamp:  time.Now(),
		MemoryType: "task",
		Importance: 0.1,
	})

	// Too far for the strict fuzzy prefilter; the relaxed single-token
	// fallback should still find it.
	if got := store.SearchMemories("cluster", 10); len(got) == 0 {
		t.Fatalf("single-token fallback found nothing")
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	store := newTestStore(t)
	for _, s := range []string{"red apple", "green apple", "yellow apple", "blue apple"} {
		store.SaveFact(fact(s, 0.5, 0))
	}

	if got := store.SearchMemories("apple", 2); len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
}

func TestFormatSearchResults(t *testing.T) {
	store := newTestStore(t)
	store.SaveFact(fact("user's name is Sam", 0.9, 48*time.Hour))

	results := store.SearchMemories("name", 10)
	got := store.FormatSearchResults("name", results)
	if !strings.Contains(got, "user's name is Sam") {
		t.Fatalf("result content missing:\n%s", got)
	}
	if !strings.Contains(got, "2d ago") {
		t.Fatalf("age missing:\n%s", got)
	}
}

func TestFormatSearchResultsPreferenceFallback(t *testing.T) {
	store := newTestStore(t)
	store.UpdatePreference("editor", "helix", "")

	got := store.FormatSearchResults("editor", nil)
	if !strings.Contains(got, "editor: helix") {
		t.Fatalf("preference fallback missing:\n%s", got)
	}

	empty := store.FormatSearchResults("zebra", nil)
	if !strings.Contains(empty, "No stored memories matched") {
		t.Fatalf("expected no-match message, got:\n%s", empty)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"espresso", "espresso", 1, 1},
		{"espresso", "expresso", 0.8, 1},
		{"cat", "dog", 0, 0.4},
		{"", "", 1, 1},
	}
	for _, c := range cases {
		got := similarity(c.a, c.b)
		if got < c.min || got > c.max {
			t.Fatalf("similarity(%q, %q) = %v, want [%v, %v]", c.a, c.b, got, c.min, c.max)
		}
	}
}
