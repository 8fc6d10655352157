// Package sepa contiene reglas compartidas del esquema SEPA Core Direct Debit:
// validación IBAN/BIC, juego de caracteres permitido y derivación de BIC
// para bancos holandeses. No depende de la base de datos ni del dominio.
package sepa

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// Longitudes IBAN por país (subconjunto SEPA relevante para la asociación).
var ibanLengths = map[string]int{
	"NL": 18, "BE": 16, "DE": 22, "FR": 27, "ES": 24, "IT": 27,
	"PT": 25, "AT": 20, "LU": 20, "IE": 22, "FI": 18, "DK": 18,
}

// ValidateIBAN valida estructura y checksum mod-97 (ISO 13616).
// Acepta el IBAN con o sin espacios; la comparación es case-insensitive.
func ValidateIBAN(iban string) error {
	s := NormalizeIBAN(iban)
	if len(s) < 15 || len(s) > 34 {
		return fmt.Errorf("IBAN con longitud inválida (%d)", len(s))
	}
	if !unicode.IsLetter(rune(s[0])) || !unicode.IsLetter(rune(s[1])) {
		return fmt.Errorf("IBAN debe iniciar con código de país de dos letras")
	}
	country := s[:2]
	if want, ok := ibanLengths[country]; ok && len(s) != want {
		return fmt.Errorf("IBAN %s debe tener %d caracteres, tiene %d", country, want, len(s))
	}
	for _, r := range s {
		if !isAlnumUpper(r) {
			return fmt.Errorf("IBAN contiene carácter inválido %q", r)
		}
	}
	// Mod-97: mover los primeros 4 caracteres al final y convertir letras a números (A=10..Z=35).
	rearranged := s[4:] + s[:4]
	var sb strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			sb.WriteString(fmt.Sprintf("%d", r-'A'+10))
		} else {
			sb.WriteRune(r)
		}
	}
	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return fmt.Errorf("IBAN no convertible a numérico")
	}
	if new(big.Int).Mod(n, big.NewInt(97)).Int64() != 1 {
		return fmt.Errorf("IBAN con checksum mod-97 inválido")
	}
	return nil
}

// NormalizeIBAN elimina espacios y pasa a mayúsculas.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}

// ValidateBIC valida el formato ISO 9362: 8 u 11 caracteres alfanuméricos,
// 4 letras de banco + 2 letras de país + 2 de localidad (+ 3 de sucursal).
func ValidateBIC(bic string) error {
	s := strings.ToUpper(strings.TrimSpace(bic))
	if len(s) != 8 && len(s) != 11 {
		return fmt.Errorf("BIC debe tener 8 u 11 caracteres, tiene %d", len(s))
	}
	for i, r := range s {
		switch {
		case i < 6 && !(r >= 'A' && r <= 'Z'):
			return fmt.Errorf("BIC: los primeros 6 caracteres deben ser letras")
		case i >= 6 && !isAlnumUpper(r):
			return fmt.Errorf("BIC contiene carácter inválido %q", r)
		}
	}
	return nil
}

// Tabla banco→BIC para IBAN holandeses (código de banco en posiciones 4..8).
var dutchBankBIC = map[string]string{
	"ABNA": "ABNANL2A",
	"RABO": "RABONL2U",
	"INGB": "INGBNL2A",
	"SNSB": "SNSBNL2A",
	"TRIO": "TRIONL2U",
	"BUNQ": "BUNQNL2A",
	"ASNB": "ASNBNL21",
}

// DeriveBIC intenta derivar el BIC desde un IBAN holandés. Para otros países
// retorna cadena vacía: el mandato debe traer el BIC explícito.
func DeriveBIC(iban string) string {
	s := NormalizeIBAN(iban)
	if len(s) < 8 || !strings.HasPrefix(s, "NL") {
		return ""
	}
	return dutchBankBIC[s[4:8]]
}

func isAlnumUpper(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
