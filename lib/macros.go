package lib

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// calories per gram
const (
	CaloriesPerGramCarbs   = 4
	CaloriesPerGramProtein = 4
	CaloriesPerGramFat     = 9
)

func CalculateCalories(carbs, protein, fat float64) float64 {
	return carbs*CaloriesPerGramCarbs + protein*CaloriesPerGramProtein + fat*CaloriesPerGramFat
}

// ParseGrams parses a gram quantity from a form or wire value. Anything that
// would make CalculateCalories produce NaN, Inf, or a negative count is an
// error.
func ParseGrams(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing grams")
	}
	grams, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("grams not a number: %q", s)
	}
	if math.IsNaN(grams) || math.IsInf(grams, 0) {
		return 0, fmt.Errorf("grams not finite: %q", s)
	}
	if grams < 0 {
		return 0, fmt.Errorf("grams negative: %q", s)
	}
	return grams, nil
}

func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func Capitalize(word string) string {
	if word == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
