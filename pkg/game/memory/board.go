package memory

import "github.com/cbodonnell/arcade/pkg/game"

// Card is one card on the board.
type Card struct {
	Value   int
	Flipped bool
	Matched bool
}

// Deal returns two copies of the values 1..pairs in a uniformly random order.
func Deal(pairs int, r game.Rand) []int {
	deck := make([]int, 0, pairs*2)
	for copyIndex := 0; copyIndex < 2; copyIndex++ {
		for v := 1; v <= pairs; v++ {
			deck = append(deck, v)
		}
	}
	Shuffle(deck, r)
	return deck
}

// Shuffle permutes values in place with the Fisher-Yates algorithm.
func Shuffle(values []int, r game.Rand) {
	for i := len(values) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		values[i], values[j] = values[j], values[i]
	}
}
