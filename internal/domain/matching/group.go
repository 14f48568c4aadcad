package matching

import (
	"cmp"
	"slices"

	"github.com/halisaha/teammatch/internal/domain/player"
)

// MaxAlternatives - сколько кандидатов оставлять на каждую позицию.
const MaxAlternatives = 3

// Grouping - результат этапа оценки и группировки.
type Grouping struct {
	TeamMembers          []PlayerMatch
	PositionAlternatives map[player.Position][]PlayerMatch
}

// ranked хранит индекс кандидата в пуле для детерминированной развязки равных оценок.
type ranked struct {
	match PlayerMatch
	index int
}

// ScoreAndGroup для каждой нужной позиции отбирает кандидатов этой позиции,
// оценивает их, сортирует по убыванию оценки и оставляет лучших.
// При равных оценках сохраняется порядок, в котором пул пришёл из справочника,
// и в списках по позициям, и в общем списке.
func ScoreAndGroup(requester player.Player, pool []player.Player, req Requirements) Grouping {
	alternatives := make(map[player.Position][]PlayerMatch, len(req))
	all := make([]ranked, 0, MaxAlternatives*len(req))

	for _, pos := range req.Needed() {
		matches := make([]ranked, 0)
		for i, candidate := range pool {
			if candidate.Position != pos {
				continue
			}
			matches = append(matches, ranked{match: NewPlayerMatch(requester, candidate), index: i})
		}

		sortRanked(matches)
		if len(matches) > MaxAlternatives {
			matches = matches[:MaxAlternatives]
		}

		alternatives[pos] = unwrap(matches)
		all = append(all, matches...)
	}

	sortRanked(all)

	return Grouping{
		TeamMembers:          unwrap(all),
		PositionAlternatives: alternatives,
	}
}

func sortRanked(items []ranked) {
	slices.SortStableFunc(items, func(a, b ranked) int {
		if c := cmp.Compare(b.match.CompatibilityScore, a.match.CompatibilityScore); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
}

func unwrap(items []ranked) []PlayerMatch {
	out := make([]PlayerMatch, len(items))
	for i, r := range items {
		out[i] = r.match
	}
	return out
}
