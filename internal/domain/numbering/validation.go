package numbering

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

const (
	TaxpayerIDMinDigits = 9
	TaxpayerIDMaxDigits = 11
	LegalNameMinLen     = 2
	LegalNameMaxLen     = 200
	CommentMaxLen       = 500
)

// NormalizeLegalName recorta espacios y normaliza a NFC para que "Ñ" compuesta y
// descompuesta cuenten igual.
func NormalizeLegalName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ValidTaxpayerID indica si id es numérico con 9 a 11 dígitos (RNC o cédula).
func ValidTaxpayerID(id string) bool {
	if len(id) < TaxpayerIDMinDigits || len(id) > TaxpayerIDMaxDigits {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// ValidSeriesPrefix indica si p es una sola letra mayúscula.
func ValidSeriesPrefix(p string) bool {
	return len(p) == 1 && p[0] >= 'A' && p[0] <= 'Z'
}

// Overlaps indica si los intervalos cerrados [aStart, aEnd] y [bStart, bEnd] se cruzan.
func Overlaps(aStart, aEnd, bStart, bEnd int64) bool {
	return aEnd >= bStart && aStart <= bEnd
}

// Validate comprueba los campos del candidato y que no se solape con los rangos de su clave.
// excludeID se ignora en el chequeo de solapamiento (el propio registro en una actualización).
// Devuelve *domain.ValidationError con todos los campos inválidos o *domain.OverlapError.
func Validate(candidate *entity.NumberRange, siblings []*entity.NumberRange, isUpdate bool, excludeID string) error {
	if err := ValidateFields(candidate, isUpdate); err != nil {
		return err
	}
	return CheckOverlap(candidate, siblings, excludeID)
}

// ValidateFields comprueba las restricciones de cada campo y entre campos.
func ValidateFields(r *entity.NumberRange, isUpdate bool) error {
	verr := &domain.ValidationError{}

	if r.OwnerID == "" {
		verr.Add("owner_id", "es requerido")
	}
	if !ValidTaxpayerID(r.TaxpayerID) {
		verr.Add("taxpayer_id", "debe tener entre %d y %d dígitos numéricos", TaxpayerIDMinDigits, TaxpayerIDMaxDigits)
	}
	if n := utf8.RuneCountInString(NormalizeLegalName(r.LegalName)); n < LegalNameMinLen || n > LegalNameMaxLen {
		verr.Add("legal_name", "debe tener entre %d y %d caracteres", LegalNameMinLen, LegalNameMaxLen)
	}
	if !r.DocumentType.Valid() {
		verr.Add("document_type", "tipo de comprobante %q no permitido", r.DocumentType)
	}
	if !ValidSeriesPrefix(r.SeriesPrefix) {
		verr.Add("series_prefix", "debe ser una letra mayúscula")
	}

	if r.RangeStart < 0 || r.RangeEnd < 0 {
		verr.Add("range", "los límites no pueden ser negativos")
	} else if r.RangeEnd <= r.RangeStart {
		verr.Add("range_end", "debe ser mayor que range_start (%d)", r.RangeStart)
	} else if r.RangeEnd > ecf.MaxSequence {
		verr.Add("range_end", "excede la capacidad de %d dígitos del secuencial", ecf.SequenceDigits)
	}

	if r.UsedCount < 0 {
		verr.Add("used_count", "no puede ser negativo")
	} else if !isUpdate && r.UsedCount != 0 {
		verr.Add("used_count", "un rango nuevo no puede tener números usados")
	} else if r.RangeEnd > r.RangeStart && r.UsedCount > r.TotalCount() {
		verr.Add("used_count", "excede el total del rango (%d)", r.TotalCount())
	}

	if r.AuthorizedAt.IsZero() {
		verr.Add("authorized_at", "es requerido")
	}
	if r.ExpiresAt.IsZero() {
		verr.Add("expires_at", "es requerido")
	}
	if !r.AuthorizedAt.IsZero() && !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(r.AuthorizedAt) {
		verr.Add("expires_at", "debe ser posterior a authorized_at")
	}

	if r.LowWaterMark <= 0 {
		verr.Add("low_water_mark", "debe ser un entero positivo")
	}
	if utf8.RuneCountInString(r.Comment) > CommentMaxLen {
		verr.Add("comment", "máximo %d caracteres", CommentMaxLen)
	}
	if r.Status != "" && !r.Status.Valid() {
		verr.Add("status", "estado %q desconocido", r.Status)
	}

	return verr.OrNil()
}

// CheckOverlap rechaza el candidato si su intervalo cruza el de otro rango de la misma clave.
func CheckOverlap(candidate *entity.NumberRange, siblings []*entity.NumberRange, excludeID string) error {
	key := candidate.Key()
	for _, other := range siblings {
		if other == nil || other.ID == excludeID || other.ID == candidate.ID {
			continue
		}
		if other.Key() != key {
			continue
		}
		if Overlaps(candidate.RangeStart, candidate.RangeEnd, other.RangeStart, other.RangeEnd) {
			return &domain.OverlapError{
				ConflictID:    other.ID,
				ConflictStart: other.RangeStart,
				ConflictEnd:   other.RangeEnd,
			}
		}
	}
	return nil
}
