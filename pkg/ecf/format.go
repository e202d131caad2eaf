package ecf

import (
	"fmt"
	"strconv"
)

// SequenceDigits ancho fijo del secuencial dentro del NCF electrónico.
const SequenceDigits = 10

// MaxSequence mayor secuencial representable con SequenceDigits dígitos.
const MaxSequence int64 = 9_999_999_999

// ValidSequence indica si n cabe en el formato (no negativo y hasta 10 dígitos).
// Format no valida; los rangos deben rechazarse antes de llegar aquí.
func ValidSequence(n int64) bool {
	return n >= 0 && n <= MaxSequence
}

// Format construye el NCF electrónico: prefijo + tipo + secuencial con ceros a la izquierda.
// Ej: Format("E", "32", 7) == "E320000000007".
func Format(prefix string, documentType DocumentType, sequence int64) string {
	return fmt.Sprintf("%s%s%0*d", prefix, documentType, SequenceDigits, sequence)
}

// Parse descompone un NCF electrónico en sus partes.
// Espera una serie de una letra, dos dígitos de tipo y 10 dígitos de secuencial.
func Parse(ncf string) (prefix string, documentType DocumentType, sequence int64, err error) {
	if len(ncf) != 1+2+SequenceDigits {
		return "", "", 0, fmt.Errorf("ecf: longitud de NCF inválida: %d", len(ncf))
	}
	prefix = ncf[:1]
	if prefix[0] < 'A' || prefix[0] > 'Z' {
		return "", "", 0, fmt.Errorf("ecf: serie inválida %q", prefix)
	}
	documentType = DocumentType(ncf[1:3])
	if !documentType.Valid() {
		return "", "", 0, fmt.Errorf("ecf: tipo de comprobante desconocido %q", documentType)
	}
	seq := ncf[3:]
	for _, r := range seq {
		if r < '0' || r > '9' {
			return "", "", 0, fmt.Errorf("ecf: secuencial no numérico %q", seq)
		}
	}
	sequence, err = strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("ecf: secuencial: %w", err)
	}
	return prefix, documentType, sequence, nil
}
