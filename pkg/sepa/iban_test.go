package sepa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/sepa-incasso/pkg/sepa"
)

// ──────────────────────────────────────────────────────────────────────────────
// ValidateIBAN — checksum mod-97 (ISO 13616)
//
// Los IBAN válidos de abajo son los vectores publicados por los propios bancos
// como cuentas de ejemplo; los inválidos son el mismo IBAN con un dígito
// alterado, que debe romper el checksum.
// ──────────────────────────────────────────────────────────────────────────────

func TestValidateIBAN_Validos(t *testing.T) {
	valid := []string{
		"NL91ABNA0417164300",
		"NL39RABO0300065264",
		"DE89370400440532013000",
		"BE68539007547034",
		"FR1420041010050500013M02606",
	}
	for _, iban := range valid {
		assert.NoError(t, sepa.ValidateIBAN(iban), "IBAN %s debe ser válido", iban)
	}
}

func TestValidateIBAN_AceptaEspaciosYMinusculas(t *testing.T) {
	// El formato de imprenta agrupa en bloques de 4; ambos deben aceptarse.
	require.NoError(t, sepa.ValidateIBAN("NL91 ABNA 0417 1643 00"))
	require.NoError(t, sepa.ValidateIBAN("nl91abna0417164300"))
}

func TestValidateIBAN_ChecksumInvalido(t *testing.T) {
	// Último dígito alterado: estructura correcta, checksum roto.
	err := sepa.ValidateIBAN("NL91ABNA0417164301")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mod-97")
}

func TestValidateIBAN_LongitudPorPais(t *testing.T) {
	// NL exige 18 caracteres; 17 debe rechazarse antes de llegar al checksum.
	err := sepa.ValidateIBAN("NL91ABNA041716430")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "18")
}

func TestValidateIBAN_CaracteresInvalidos(t *testing.T) {
	assert.Error(t, sepa.ValidateIBAN("NL91ABNA04171643!0"))
	assert.Error(t, sepa.ValidateIBAN(""))
	assert.Error(t, sepa.ValidateIBAN("1291ABNA0417164300"), "debe iniciar con código de país")
}

func TestNormalizeIBAN(t *testing.T) {
	assert.Equal(t, "NL91ABNA0417164300", sepa.NormalizeIBAN("  nl91 abna 0417 1643 00 "))
}

// ──────────────────────────────────────────────────────────────────────────────
// ValidateBIC — ISO 9362
// ──────────────────────────────────────────────────────────────────────────────

func TestValidateBIC_Validos(t *testing.T) {
	assert.NoError(t, sepa.ValidateBIC("INGBNL2A"), "BIC de 8 caracteres")
	assert.NoError(t, sepa.ValidateBIC("RABONL2UXXX"), "BIC de 11 caracteres")
}

func TestValidateBIC_Invalidos(t *testing.T) {
	assert.Error(t, sepa.ValidateBIC("INGBNL2"), "7 caracteres")
	assert.Error(t, sepa.ValidateBIC("INGBNL2AX"), "9 caracteres")
	assert.Error(t, sepa.ValidateBIC("1NGBNL2A"), "primeros 6 deben ser letras")
	assert.Error(t, sepa.ValidateBIC(""))
}

// ──────────────────────────────────────────────────────────────────────────────
// DeriveBIC — tabla de bancos holandeses
// ──────────────────────────────────────────────────────────────────────────────

func TestDeriveBIC_BancosHolandeses(t *testing.T) {
	cases := map[string]string{
		"NL91ABNA0417164300": "ABNANL2A",
		"NL39RABO0300065264": "RABONL2U",
		"NL69INGB0123456789": "INGBNL2A",
		"NL12BUNQ2025266309": "BUNQNL2A",
	}
	for iban, want := range cases {
		assert.Equal(t, want, sepa.DeriveBIC(iban), "BIC derivado de %s", iban)
	}
}

func TestDeriveBIC_NoDerivable(t *testing.T) {
	assert.Empty(t, sepa.DeriveBIC("DE89370400440532013000"), "solo se deriva para NL")
	assert.Empty(t, sepa.DeriveBIC("NL00XXXX0000000000"), "banco fuera de la tabla")
	assert.Empty(t, sepa.DeriveBIC("NL"), "IBAN truncado")
}
