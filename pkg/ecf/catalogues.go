// Package ecf contiene el catálogo de tipos de comprobante fiscal electrónico (e-CF)
// y el formato canónico del NCF electrónico (prefijo + tipo + secuencial).
package ecf

// DocumentType código de dos dígitos del tipo de e-CF.
type DocumentType string

// =============================================================================
// Tipos de comprobante fiscal electrónico
// =============================================================================

const (
	TypeCreditoFiscal       DocumentType = "31" // Factura de Crédito Fiscal Electrónica
	TypeConsumo             DocumentType = "32" // Factura de Consumo Electrónica
	TypeNotaDebito          DocumentType = "33" // Nota de Débito Electrónica
	TypeNotaCredito         DocumentType = "34" // Nota de Crédito Electrónica
	TypeCompras             DocumentType = "41" // Comprobante Electrónico de Compras
	TypeGastosMenores       DocumentType = "43" // Comprobante Electrónico para Gastos Menores
	TypeRegimenesEspeciales DocumentType = "44" // Comprobante Electrónico para Regímenes Especiales
	TypeGubernamental       DocumentType = "45" // Comprobante Electrónico Gubernamental
)

// DocumentTypeNames descripción legible de cada tipo válido.
var DocumentTypeNames = map[DocumentType]string{
	TypeCreditoFiscal:       "Factura de Crédito Fiscal Electrónica",
	TypeConsumo:             "Factura de Consumo Electrónica",
	TypeNotaDebito:          "Nota de Débito Electrónica",
	TypeNotaCredito:         "Nota de Crédito Electrónica",
	TypeCompras:             "Comprobante Electrónico de Compras",
	TypeGastosMenores:       "Comprobante Electrónico para Gastos Menores",
	TypeRegimenesEspeciales: "Comprobante Electrónico para Regímenes Especiales",
	TypeGubernamental:       "Comprobante Electrónico Gubernamental",
}

// Valid indica si el código pertenece al catálogo.
func (t DocumentType) Valid() bool {
	_, ok := DocumentTypeNames[t]
	return ok
}

// Name devuelve la descripción del tipo o "" si no existe.
func (t DocumentType) Name() string { return DocumentTypeNames[t] }

// DefaultSeriesPrefix serie por defecto de los comprobantes electrónicos.
const DefaultSeriesPrefix = "E"
