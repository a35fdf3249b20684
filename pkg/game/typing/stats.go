package typing

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

// CharState classifies a character of the reference text.
type CharState string

const (
	CharUntouched CharState = "untouched"
	CharCorrect   CharState = "correct"
	CharIncorrect CharState = "incorrect"
	CharCurrent   CharState = "current"
)

// Char is one highlighted character of the reference text.
type Char struct {
	Char  string    `json:"char"`
	State CharState `json:"state"`
}

// WordsPerMinute counts the whitespace-delimited words of typed and divides
// by the elapsed minutes, rounded half up. It is 0 when no time has elapsed.
func WordsPerMinute(typed string, elapsed time.Duration) int {
	minutes := elapsed.Minutes()
	if minutes <= 0 {
		return 0
	}
	words := len(strings.Fields(typed))
	return int(math.Floor(float64(words)/minutes + 0.5))
}

// Accuracy returns the percentage of typed characters that equal the
// reference character at the same position. Characters typed past the end of
// the reference never match. It is 100 when nothing has been typed.
func Accuracy(reference, typed string) float64 {
	ref := []rune(reference)
	in := []rune(typed)
	if len(in) == 0 {
		return 100
	}

	correct := 0
	for i, r := range in {
		if i < len(ref) && ref[i] == r {
			correct++
		}
	}
	return float64(correct) / float64(len(in)) * 100
}

// FormatAccuracy renders an accuracy percentage the way the score board shows
// it: one decimal, or a bare 100 before any input. Rounding is half up on the
// exact binary value of accuracy, so 1.45 (stored as 1.4499...) shows 1.4.
func FormatAccuracy(typed string, accuracy float64) string {
	if len(typed) == 0 {
		return "100"
	}
	exact := new(big.Rat).SetFloat64(accuracy)
	if exact == nil || exact.Sign() < 0 {
		return fmt.Sprintf("%.1f", accuracy)
	}
	exact.Mul(exact, big.NewRat(10, 1))
	exact.Add(exact, big.NewRat(1, 2))
	tenths := new(big.Int).Quo(exact.Num(), exact.Denom()).Int64()
	return fmt.Sprintf("%d.%d", tenths/10, tenths%10)
}

// Highlight classifies every character of the reference text against the
// typed prefix. The character right after the typed prefix is the current one.
func Highlight(reference, typed string) []Char {
	ref := []rune(reference)
	in := []rune(typed)

	chars := make([]Char, len(ref))
	for i, r := range ref {
		state := CharUntouched
		switch {
		case i < len(in) && in[i] == r:
			state = CharCorrect
		case i < len(in):
			state = CharIncorrect
		case i == len(in):
			state = CharCurrent
		}
		chars[i] = Char{Char: string(r), State: state}
	}
	return chars
}
