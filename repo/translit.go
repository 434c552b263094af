package repo

import "strings"

// Russian and Ukrainian letters. Lower case only; Translit restores the case.
var translitMap = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'є': "ye", 'і': "i", 'ї': "yi", 'ґ': "g",
}

// Translit converts Cyrillic letters to a Latin approximation so that
// "программирование" is also found by "programmirovanie".
func Translit(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		lower := []rune(strings.ToLower(string(r)))[0]
		val, ok := translitMap[lower]
		switch {
		case !ok:
			builder.WriteRune(r)
		case lower != r && val != "":
			builder.WriteString(strings.ToUpper(val[:1]) + val[1:])
		default:
			builder.WriteString(val)
		}
	}
	return builder.String()
}

// WithTranslit appends the transliteration of s when it differs from s.
func WithTranslit(s string) string {
	t := Translit(s)
	if t == s {
		return s
	}
	return s + " " + t
}
