package sepa

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Juego de caracteres permitido por el rulebook EPC para campos de texto libre
// (nombres, remittance information) y para identificadores de mandato.
// Referencia: EPC217-08 "Best Practices – SEPA Requirements for Character Set".
var (
	textPattern      = regexp.MustCompile(`^[a-zA-Z0-9/\-?:().,'+ ]*$`)
	mandateIDPattern = regexp.MustCompile(`^[a-zA-Z0-9/\-?:().,'+]+$`)
)

// MaxNameLength longitud máxima de <Nm> y líneas de dirección según el esquema pain.008.
const MaxNameLength = 70

// ValidText indica si el texto usa únicamente el juego de caracteres SEPA.
func ValidText(s string) bool {
	return textPattern.MatchString(s)
}

// ValidMandateID indica si el identificador de mandato es no vacío, de máximo
// 35 caracteres y usa solo el subconjunto permitido (sin espacios).
func ValidMandateID(id string) bool {
	return len(id) > 0 && len(id) <= 35 && mandateIDPattern.MatchString(id)
}

// Transliterate convierte un texto arbitrario al juego de caracteres SEPA:
// descompone acentos (José → Jose), sustituye caracteres fuera del conjunto
// por espacio y recorta a max caracteres. Se aplica al tomar el snapshot del
// BatchEntry, nunca dentro del encoder (que exige entrada ya limpia).
func Transliterate(s string, max int) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var sb strings.Builder
	for _, r := range folded {
		if textPattern.MatchString(string(r)) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}
	out := strings.Join(strings.Fields(sb.String()), " ")
	if max > 0 && len(out) > max {
		out = strings.TrimSpace(out[:max])
	}
	return out
}
