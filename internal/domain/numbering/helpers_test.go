package numbering_test

import (
	"time"

	"github.com/jhoicas/ecf-numeracion/internal/domain/entity"
	"github.com/jhoicas/ecf-numeracion/pkg/ecf"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// validRange rango [1, 100] vigente un año, sin consumo.
func validRange() *entity.NumberRange {
	return &entity.NumberRange{
		ID:           "r-1",
		OwnerID:      "owner-1",
		TaxpayerID:   "130123456",
		LegalName:    "Comercial Duarte SRL",
		DocumentType: ecf.TypeConsumo,
		SeriesPrefix: "E",
		RangeStart:   1,
		RangeEnd:     100,
		AuthorizedAt: testNow.AddDate(0, -1, 0),
		ExpiresAt:    testNow.AddDate(1, 0, 0),
		LowWaterMark: 5,
		Status:       entity.StatusActive,
		CreatedAt:    testNow.AddDate(0, -1, 0),
	}
}
