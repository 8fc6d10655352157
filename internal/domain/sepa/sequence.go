// Package sepa contiene la lógica de dominio del esquema Core Direct Debit:
// derivación del tipo de secuencia y validación estructural de lotes.
package sepa

import "github.com/tu-usuario/sepa-incasso/internal/domain/entity"

// ResolveSequenceType deriva el tipo de secuencia para el próximo cobro de un
// mandato dado su historial ordenado de usos.
//
//   - OOFF: el mandato fue creado como de un solo cobro; corta todo lo demás.
//   - FRST: ningún uso previo con resultado Submitted o Confirmed. Un uso que
//     terminó Failed no cuenta: el banco nunca vio el mandato como estrenado.
//   - FNAL: el caller marca este cobro como el último del mandato (p. ej. baja
//     del miembro) y el mandato ya fue usado con éxito. Sobre un mandato
//     virgen la marca final no aplica: el primer cobro sigue siendo FRST.
//   - RCUR: caso por defecto con al menos un uso exitoso previo.
//
// La función es pura; un mandato desconocido es un error del caller y se
// rechaza antes de llegar aquí.
func ResolveSequenceType(m *entity.Mandate, history []*entity.MandateUsage, final bool) entity.SequenceType {
	if m.Type == entity.MandateOneOff {
		return entity.SeqOneOff
	}

	used := false
	for _, u := range history {
		if u.Outcome.Successful() {
			used = true
			break
		}
	}

	if !used {
		return entity.SeqFirst
	}
	if final {
		return entity.SeqFinal
	}
	return entity.SeqRecurring
}
