package browser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/cuihairu/gamebrowser/internal/games"
)

// NotFoundError is returned by FindGame with the closest titles.
type NotFoundError struct {
	Title       string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("game %q not found", e.Title)
	}
	return fmt.Sprintf("game %q not found, did you mean %s?", e.Title, strings.Join(e.Suggestions, ", "))
}

const maxSuggestions = 3

// FindGame matches title against folder and display titles, ignoring case.
func FindGame(ctx context.Context, list []*games.Entry, title string) (*games.Entry, error) {
	want := strings.ToLower(strings.TrimSpace(title))
	type candidate struct {
		title string
		dist  int
	}
	var cands []candidate
	seen := map[string]bool{}
	for _, e := range list {
		for _, t := range []string{e.Title(), e.DisplayTitle(ctx)} {
			if strings.ToLower(t) == want {
				return e, nil
			}
			if seen[t] {
				continue
			}
			seen[t] = true
			cands = append(cands, candidate{t, levenshtein.ComputeDistance(want, strings.ToLower(t))})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	limit := len(want)/3 + 2
	nf := &NotFoundError{Title: title}
	for _, c := range cands {
		if c.dist > limit || len(nf.Suggestions) == maxSuggestions {
			break
		}
		nf.Suggestions = append(nf.Suggestions, c.title)
	}
	return nil, nf
}
