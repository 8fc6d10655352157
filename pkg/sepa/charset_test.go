package sepa_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tu-usuario/sepa-incasso/pkg/sepa"
)

func TestValidText(t *testing.T) {
	assert.True(t, sepa.ValidText("Jan de Vries"))
	assert.True(t, sepa.ValidText("Cuota 2026-01 (enero)"))
	assert.True(t, sepa.ValidText(""), "cadena vacía es texto válido; la obligatoriedad se valida aparte")
	assert.False(t, sepa.ValidText("José"), "acentos fuera del juego EPC")
	assert.False(t, sepa.ValidText("Jansen & Zonen"), "ampersand no permitido")
	assert.False(t, sepa.ValidText("línea\ncon salto"))
}

func TestValidMandateID(t *testing.T) {
	assert.True(t, sepa.ValidMandateID("MNDT-2026-000123"))
	assert.True(t, sepa.ValidMandateID("A"))
	assert.True(t, sepa.ValidMandateID(strings.Repeat("X", 35)), "35 es el límite exacto")

	assert.False(t, sepa.ValidMandateID(""), "vacío")
	assert.False(t, sepa.ValidMandateID(strings.Repeat("X", 36)), "36 excede el máximo")
	assert.False(t, sepa.ValidMandateID("MNDT 123"), "los espacios no se permiten en identificadores")
	assert.False(t, sepa.ValidMandateID("MNDT_123"), "guion bajo fuera del subconjunto")
}

// Transliterate se aplica una sola vez, al congelar el snapshot de la entrada.
func TestTransliterate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"José van den Berg", "Jose van den Berg"},
		{"Müller", "Muller"},
		{"Jansen & Zonen B.V.", "Jansen Zonen B.V."}, // & sustituido y espacios colapsados
		{"  espacios   extra  ", "espacios extra"},
		{"sin cambios", "sin cambios"},
	}
	for _, c := range cases {
		got := sepa.Transliterate(c.in, sepa.MaxNameLength)
		assert.Equal(t, c.want, got, "entrada %q", c.in)
		assert.True(t, sepa.ValidText(got), "la salida siempre queda dentro del juego SEPA")
	}
}

func TestTransliterate_RecortaAlMaximo(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := sepa.Transliterate(long, sepa.MaxNameLength)
	assert.Len(t, got, sepa.MaxNameLength)
}
