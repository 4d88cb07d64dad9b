package registry

import (
	"sort"
	"strings"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/sahilm/fuzzy"
)

// Score tiers. Fuzzy scores are small integers (they may be negative),
// so each tier leaves room below the next one.
const (
	scoreExact     = 1000
	scorePrefix    = 500
	scoreSubstring = 300
	scoreFuzzy     = 200
	scoreTitle     = 100
)

// Match is one search result.
type Match struct {
	Item  domain.MenuItem
	Score int
	// Indexes are the byte offsets of the matched characters in the trigger, for highlighting.
	Indexes []int
	Recent  bool
}

// Search returns the items matching query, best first.
//
// Local commands match by exact, prefix or substring on the trigger, or by
// substring on the title. Prompts are scored with fuzzy matching. Ties break by
// trigger and then by ID, so the result is deterministic for a given registry
// state. An empty query lists everything, recently used items first.
func (r *Registry) Search(query string) []Match {
	r.mu.RLock()
	items := make([]domain.MenuItem, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	recent := r.recent
	r.mu.RUnlock()

	if query == "" {
		return listAll(items, recent)
	}

	q := lower(query)
	matches := make([]Match, 0, len(items))

	var prompts []domain.MenuItem
	for _, item := range items {
		if item.Origin != domain.OriginLocalCommand {
			prompts = append(prompts, item)
			continue
		}
		if m, ok := matchCommand(item, q); ok {
			matches = append(matches, m)
		}
	}
	matches = append(matches, matchPrompts(prompts, query, q)...)

	sort.Slice(matches, func(i, j int) bool {
		return less(matches[i], matches[j])
	})
	return matches
}

func matchCommand(item domain.MenuItem, q string) (Match, bool) {
	t := lower(item.Trigger)
	switch {
	case t == q:
		return Match{Item: item, Score: scoreExact, Indexes: span(0, len(q))}, true
	case strings.HasPrefix(t, q):
		return Match{Item: item, Score: scorePrefix + lengthBonus(t), Indexes: span(0, len(q))}, true
	}
	if idx := strings.Index(t, q); idx >= 0 {
		return Match{Item: item, Score: scoreSubstring - idx, Indexes: span(idx, len(q))}, true
	}
	if item.Title != "" && strings.Contains(lower(item.Title), q) {
		return Match{Item: item, Score: scoreTitle}, true
	}
	return Match{}, false
}

func matchPrompts(prompts []domain.MenuItem, query, q string) []Match {
	if len(prompts) == 0 {
		return nil
	}

	triggers := make([]string, len(prompts))
	for i, item := range prompts {
		triggers[i] = item.Trigger
	}

	out := make([]Match, 0, len(prompts))
	hit := make(map[int]struct{}, len(prompts))
	for _, fm := range fuzzy.FindNoSort(query, triggers) {
		item := prompts[fm.Index]
		t := lower(item.Trigger)

		score := scoreFuzzy + fm.Score
		switch {
		case t == q:
			score = scoreExact
		case strings.HasPrefix(t, q):
			score = scorePrefix + lengthBonus(t)
		case strings.HasPrefix(lower(item.Name), q):
			// "search" should rank lit.search above loose fuzzy hits.
			score = scoreSubstring + lengthBonus(t)
		}
		out = append(out, Match{Item: item, Score: score, Indexes: fm.MatchedIndexes})
		hit[fm.Index] = struct{}{}
	}

	titles := make([]string, 0, len(prompts))
	index := make([]int, 0, len(prompts))
	for i, item := range prompts {
		if _, ok := hit[i]; ok || item.Title == "" {
			continue
		}
		titles = append(titles, item.Title)
		index = append(index, i)
	}
	for _, fm := range fuzzy.FindNoSort(query, titles) {
		score := scoreTitle + fm.Score
		if score < 1 {
			score = 1
		}
		out = append(out, Match{Item: prompts[index[fm.Index]], Score: score})
	}
	return out
}

func listAll(items []domain.MenuItem, recent []string) []Match {
	rank := make(map[string]int, len(recent))
	for i, id := range recent {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}

	out := make([]Match, 0, len(items))
	for _, item := range items {
		_, isRecent := rank[item.ID]
		out = append(out, Match{Item: item, Recent: isRecent})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Recent != b.Recent {
			return a.Recent
		}
		if a.Recent {
			return rank[a.Item.ID] < rank[b.Item.ID]
		}
		return less(a, b)
	})
	return out
}

func less(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Item.Trigger != b.Item.Trigger {
		return a.Item.Trigger < b.Item.Trigger
	}
	return a.Item.ID < b.Item.ID
}

// lengthBonus favours shorter triggers among prefix matches.
func lengthBonus(trigger string) int {
	if n := len(trigger); n < 50 {
		return 50 - n
	}
	return 0
}

func span(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}
