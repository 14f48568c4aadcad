// Package matching содержит чистую логику подбора команды: сколько игроков
// нужно на каждой позиции, как оценивать кандидатов и как собирать результат.
package matching

import (
	"github.com/halisaha/teammatch/internal/domain/player"
)

// TeamSize - размер команды (шесть на шесть).
const TeamSize = 6

// Requirements - сколько игроков нужно на каждой позиции.
type Requirements map[player.Position]int

// BaseRequirements возвращает базовую расстановку 1-2-2-1.
func BaseRequirements() Requirements {
	return Requirements{
		player.PositionGoalkeeper: 1,
		player.PositionDefender:   2,
		player.PositionMidfielder: 2,
		player.PositionForward:    1,
	}
}

// TeamRequirement считает, сколько игроков ещё нужно, если инициатор занимает
// одно место на своей позиции. Значение не опускается ниже нуля.
func TeamRequirement(own player.Position) Requirements {
	return requirementFrom(BaseRequirements(), own)
}

func requirementFrom(base Requirements, own player.Position) Requirements {
	req := make(Requirements, len(base))
	for pos, n := range base {
		req[pos] = n
	}
	if n, ok := req[own]; ok {
		req[own] = max(n-1, 0)
	}
	return req
}

// Total возвращает общее число нужных игроков.
func (r Requirements) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// Needed возвращает позиции с ненулевой потребностью в порядке расстановки.
func (r Requirements) Needed() []player.Position {
	out := make([]player.Position, 0, len(r))
	for _, pos := range player.AllPositions() {
		if r[pos] > 0 {
			out = append(out, pos)
		}
	}
	return out
}
