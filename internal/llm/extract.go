package llm

import (
	"regexp"
	"strconv"
)

var (
	// "Final prediction: 12 and 45", "Prédiction finale : **7** et **9**"
	finalPattern  = regexp.MustCompile(`(?i)\b(?:final prediction|prédiction finale)\s*:?\s*\**(\d{1,2})\**\s*(?:and|et|,|puis|then)\s*\**(\d{1,2})\**`)
	// "les numéros sont 12 et 45", "numbers: **7**, **9**"
	phrasePattern = regexp.MustCompile(`(?i)(?:\b(?:are|sont)\s*:?|\b(?:numbers|numéros)\s*:)\s*\**(\d{1,2})\**\s*(?:and|et|,|puis|then)\s*\**(\d{1,2})\**`)
	boldPattern   = regexp.MustCompile(`\*\*(\d{1,2})\*\*`)
	numberPattern = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// ExtractNumbers recovers up to two predicted numbers from an oracle reply.
// Strategies, first match wins:
//
//  1. a "final prediction" phrase naming two numbers
//  2. another phrase naming two numbers ("are", "sont", "numbers:")
//  3. the first two bold numbers
//  4. the last two standalone one- or two-digit numbers
//
// It returns nil when no strategy finds two numbers.
func ExtractNumbers(reply string) []int {
	for _, re := range []*regexp.Regexp{finalPattern, phrasePattern} {
		if m := re.FindStringSubmatch(reply); m != nil {
			return atoiAll(m[1:3])
		}
	}

	if bold := boldPattern.FindAllStringSubmatch(reply, -1); len(bold) >= 2 {
		return atoiAll([]string{bold[0][1], bold[1][1]})
	}

	if all := numberPattern.FindAllStringSubmatch(reply, -1); len(all) >= 2 {
		n := len(all)
		return atoiAll([]string{all[n-2][1], all[n-1][1]})
	}

	return nil
}

func atoiAll(ss []string) []int {
	out := make([]int, 0, len(ss))
	for _, s := range ss {
		// Patterns only capture one or two digits.
		n, _ := strconv.Atoi(s)
		out = append(out, n)
	}
	return out
}
