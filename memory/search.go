package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScoringConfig holds the relevance scoring constants used by
// SearchMemories. Zero values are not meaningful; use DefaultScoring
// as a base when overriding individual weights.
type ScoringConfig struct {
	ExactMatch     float64 // whole query appears as a substring
	WordOverlap    float64 // multiplied by the query-token overlap ratio
	TagMatch       float64 // per tag containing or contained in a token
	ContextMatch   float64 // per context value containing a token
	FuzzyMatch     float64 // multiplied by edit similarity above threshold
	FuzzyThreshold float64
	MinScore       float64 // results at or below this are dropped
}

// DefaultScoring returns the stock weights
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		ExactMatch:     10,
		WordOverlap:    8,
		TagMatch:       4,
		ContextMatch:   2,
		FuzzyMatch:     2,
		FuzzyThreshold: 0.6,
		MinScore:       0.5,
	}
}

// allFactsPhrases trigger the scoring bypass: the user asked for the
// whole store, not a lookup.
var allFactsPhrases = []string{
	"all facts",
	"everything",
	"what do you know",
	"stored facts",
	"all memories",
}

// SearchResult pairs a fact with its relevance score
type SearchResult struct {
	Entry Entry
	Score float64
}

// SearchMemories scores every stored fact against the query and returns
// matches ordered by descending relevance. Queries asking for the whole
// store bypass scoring and return every fact. When strict scoring finds
// nothing, a loose single-token pass catches near misses.
func (s *Store) SearchMemories(query string, limit int) []SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	for _, phrase := range allFactsPhrases {
		if strings.Contains(queryLower, phrase) {
			return s.allFacts(limit)
		}
	}

	tokens := strings.Fields(queryLower)
	var results []SearchResult
	for _, fact := range s.facts {
		score := s.scoreFact(fact, queryLower, tokens)
		if score > s.scoring.MinScore {
			results = append(results, SearchResult{Entry: fact, Score: score})
		}
	}

	if len(results) == 0 && len(tokens) == 1 && len(tokens[0]) > 2 {
		// Strict scoring found nothing; a single-token query falls back
		// to a relaxed fuzzy scan without the candidate prefilter.
		for _, fact := range s.facts {
			for _, word := range strings.Fields(strings.ToLower(fact.Content)) {
				if similarity(tokens[0], word) >= 0.5 {
					results = append(results, SearchResult{Entry: fact, Score: 1})
					break
				}
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// allFacts returns the whole store ordered by importance then recency,
// capped at limit. Caller holds the lock.
func (s *Store) allFacts(limit int) []SearchResult {
	ordered := make([]Entry, len(s.facts))
	copy(ordered, s.facts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Importance != ordered[j].Importance {
			return ordered[i].Importance > ordered[j].Importance
		}
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	results := make([]SearchResult, 0, len(ordered))
	for _, fact := range ordered {
		results = append(results, SearchResult{Entry: fact, Score: s.scoring.ExactMatch})
	}
	return results
}

// scoreFact computes the relevance of one fact. Caller holds the lock.
func (s *Store) scoreFact(fact Entry, queryLower string, tokens []string) float64 {
	contentLower := strings.ToLower(fact.Content)
	var score float64

	if queryLower != "" && strings.Contains(contentLower, queryLower) {
		score += s.scoring.ExactMatch
	}

	if len(tokens) > 0 {
		contentTokens := make(map[string]bool)
		for _, w := range strings.Fields(contentLower) {
			contentTokens[w] = true
		}
		overlap := 0
		for _, tok := range tokens {
			if contentTokens[tok] {
				overlap++
			}
		}
		score += s.scoring.WordOverlap * float64(overlap) / float64(len(tokens))
	}

	for _, tag := range fact.Tags {
		tagLower := strings.ToLower(tag)
		for _, tok := range tokens {
			if strings.Contains(tagLower, tok) || strings.Contains(tok, tagLower) {
				score += s.scoring.TagMatch
				break
			}
		}
	}

	for _, value := range fact.Context {
		valueLower := strings.ToLower(value)
		matched := false
		for _, tok := range tokens {
			if strings.Contains(valueLower, tok) {
				matched = true
				break
			}
		}
		if matched {
			score += s.scoring.ContextMatch
		}
	}

	// Fuzzy pass over content words, prefiltered to plausible candidates.
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		best := 0.0
		for _, word := range strings.Fields(contentLower) {
			diff := len(word) - len(tok)
			if diff < 0 {
				diff = -diff
			}
			if !strings.Contains(word, tok) && diff > 2 {
				continue
			}
			if sim := similarity(tok, word); sim > best {
				best = sim
			}
		}
		if best >= s.scoring.FuzzyThreshold {
			score += s.scoring.FuzzyMatch * best
		}
	}

	// Importance shades the score rather than dominating it.
	return score * (0.7 + 0.3*fact.Importance)
}

// FormatSearchResults renders results for display. An empty result set
// for a preference-flavored query falls back to scanning stored
// preferences directly.
func (s *Store) FormatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		if prefs := s.preferenceFallback(query); prefs != "" {
			return prefs
		}
		return fmt.Sprintf("No stored memories matched '%s'.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant memories:\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s, importance %.1f)\n",
			i+1, r.Entry.Content, formatAge(r.Entry.Timestamp, s.now()), r.Entry.Importance)
	}
	return strings.TrimRight(b.String(), "\n")
}

// preferenceFallback scans preference keys and values for query tokens
func (s *Store) preferenceFallback(query string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := strings.Fields(strings.ToLower(query))
	var lines []string
	for key, pref := range s.preferences {
		keyLower := strings.ToLower(key)
		valueLower := strings.ToLower(pref.Value)
		for _, tok := range tokens {
			if strings.Contains(keyLower, tok) || strings.Contains(valueLower, tok) {
				lines = append(lines, fmt.Sprintf("• %s: %s", key, pref.Value))
				break
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	sort.Strings(lines)
	return "Matching preferences:\n" + strings.Join(lines, "\n")
}

// formatAge renders how long ago a fact was stored
func formatAge(ts, now time.Time) string {
	days := int(now.Sub(ts).Hours() / 24)
	if days <= 0 {
		return "today"
	}
	return fmt.Sprintf("%dd ago", days)
}

// similarity returns the normalized edit similarity of two strings in
// [0, 1], where 1 means identical.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance with a rolling single row
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cur := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			min := prev + cost
			if row[j]+1 < min {
				min = row[j] + 1
			}
			if row[j-1]+1 < min {
				min = row[j-1] + 1
			}
			row[j] = min
			prev = cur
		}
	}
	return row[len(rb)]
}
