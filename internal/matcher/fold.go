package matcher

import "unicode"

// foldRune приводит руну к каноническому представителю её класса простого
// регистрового свёртывания (минимальная руна орбиты unicode.SimpleFold).
// Орбиты те же, что у (?i) в regexp: ſ (U+017F) совпадает с s, знак
// Кельвина (U+212A) с k. Границы слова при этом остаются ASCII.
func foldRune(r rune) rune {
	lowest := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < lowest {
			lowest = f
		}
	}
	return lowest
}

func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = foldRune(r)
	}
	return runes
}

// isWordRune повторяет класс \w регулярных выражений без флага unicode: [A-Za-z0-9_].
func isWordRune(r rune) bool {
	return r == '_' ||
		('a' <= r && r <= 'z') ||
		('A' <= r && r <= 'Z') ||
		('0' <= r && r <= '9')
}

// atBoundary проверяет утверждение \b в позиции pos (между text[pos-1] и text[pos]).
func atBoundary(text []rune, pos int) bool {
	before := pos > 0 && isWordRune(text[pos-1])
	after := pos < len(text) && isWordRune(text[pos])
	return before != after
}
