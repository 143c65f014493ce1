package search

import (
	"sort"
	"strings"

	"buildea/api/internal/store"
)

// Filter applies q to ideas in memory. It never mutates the input slice.
func Filter(ideas []store.Idea, q Query) []store.Idea {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]store.Idea, 0, len(ideas))
	for _, idea := range ideas {
		if !matches(idea, q, needle) {
			continue
		}
		out = append(out, idea)
	}
	sortIdeas(out, q.Sort)
	return page(out, q.Offset, q.Limit)
}

func matches(idea store.Idea, q Query, needle string) bool {
	if q.Status != "" && idea.Status != q.Status {
		return false
	}
	if q.Mode != "" && idea.Mode != q.Mode {
		return false
	}
	if q.ThemeID != "" && (idea.ThemeID == nil || *idea.ThemeID != q.ThemeID) {
		return false
	}
	return containsText(idea, needle)
}

func containsText(idea store.Idea, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(idea.Title), needle) ||
		strings.Contains(strings.ToLower(idea.Description), needle)
}

// sortIdeas orders in place. Relevance keeps the incoming order.
func sortIdeas(ideas []store.Idea, by Sort) {
	switch by {
	case SortRelevance:
		return
	case SortOld:
		sort.SliceStable(ideas, func(i, j int) bool {
			return ideas[i].CreatedAt.Before(ideas[j].CreatedAt)
		})
	case SortLikes:
		sort.SliceStable(ideas, func(i, j int) bool {
			if ideas[i].Likes != ideas[j].Likes {
				return ideas[i].Likes > ideas[j].Likes
			}
			return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
		})
	default:
		sort.SliceStable(ideas, func(i, j int) bool {
			return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
		})
	}
}

func page(ideas []store.Idea, offset, limit int) []store.Idea {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ideas) {
		return []store.Idea{}
	}
	ideas = ideas[offset:]
	if limit > 0 && limit < len(ideas) {
		ideas = ideas[:limit]
	}
	return ideas
}

// restrictTo keeps the ideas whose id is in ids, in the order of ids.
func restrictTo(ideas []store.Idea, ids []string) []store.Idea {
	byID := make(map[string]store.Idea, len(ideas))
	for _, idea := range ideas {
		byID[idea.ID] = idea
	}
	out := make([]store.Idea, 0, len(ids))
	for _, id := range ids {
		if idea, ok := byID[id]; ok {
			out = append(out, idea)
		}
	}
	return out
}

// mergeHits keeps the engine's hits in order, then appends ideas that match
// text in process but are missing from the index.
func mergeHits(ideas []store.Idea, ids []string, text string) []store.Idea {
	out := restrictTo(ideas, ids)
	seen := make(map[string]bool, len(out))
	for _, idea := range out {
		seen[idea.ID] = true
	}
	needle := strings.ToLower(strings.TrimSpace(text))
	for _, idea := range ideas {
		if !seen[idea.ID] && containsText(idea, needle) {
			out = append(out, idea)
		}
	}
	return out
}
