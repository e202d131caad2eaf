package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateRangeRequest entrada para registrar un rango autorizado por la DGII.
type CreateRangeRequest struct {
	TaxpayerID   string    `json:"taxpayer_id"`
	LegalName    string    `json:"legal_name"`
	DocumentType string    `json:"document_type"`
	SeriesPrefix string    `json:"series_prefix"` // vacío = "E"
	RangeStart   int64     `json:"range_start"`
	RangeEnd     int64     `json:"range_end"`
	AuthorizedAt time.Time `json:"authorized_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LowWaterMark *int64    `json:"low_water_mark"`
	Status       string    `json:"status"` // vacío = active; se admite disabled
	Comment      string    `json:"comment"`
}

// UpdateRangeRequest parche parcial; los campos nil no se tocan.
type UpdateRangeRequest struct {
	TaxpayerID   *string    `json:"taxpayer_id"`
	LegalName    *string    `json:"legal_name"`
	DocumentType *string    `json:"document_type"`
	SeriesPrefix *string    `json:"series_prefix"`
	RangeStart   *int64     `json:"range_start"`
	RangeEnd     *int64     `json:"range_end"`
	AuthorizedAt *time.Time `json:"authorized_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	LowWaterMark *int64     `json:"low_water_mark"`
	Status       *string    `json:"status"`
	Comment      *string    `json:"comment"`
}

// ListRangesRequest filtros del listado.
type ListRangesRequest struct {
	TaxpayerID         string `query:"taxpayer_id"`
	DocumentType       string `query:"document_type"`
	Status             string `query:"status"`
	Search             string `query:"search"`
	ExpiringWithinDays int    `query:"expiring_within_days"`
	PageRequest
}

// ConsumeRequest entrada para consumir por contribuyente y tipo.
type ConsumeRequest struct {
	TaxpayerID   string `json:"taxpayer_id"`
	DocumentType string `json:"document_type"`
}

// RangeResponse salida de un rango con sus valores calculados.
type RangeResponse struct {
	ID             string          `json:"id"`
	TaxpayerID     string          `json:"taxpayer_id"`
	LegalName      string          `json:"legal_name"`
	DocumentType   string          `json:"document_type"`
	DocumentName   string          `json:"document_name"`
	SeriesPrefix   string          `json:"series_prefix"`
	RangeStart     int64           `json:"range_start"`
	RangeEnd       int64           `json:"range_end"`
	UsedCount      int64           `json:"used_count"`
	TotalCount     int64           `json:"total_count"`
	AvailableCount int64           `json:"available_count"`
	UsedPercent    decimal.Decimal `json:"used_percent"`
	NextNumber     string          `json:"next_number,omitempty"`
	AuthorizedAt   time.Time       `json:"authorized_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	LowWaterMark   int64           `json:"low_water_mark"`
	Status         string          `json:"status"`
	Comment        string          `json:"comment,omitempty"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RangeListResponse lista paginada de rangos.
type RangeListResponse struct {
	Items []RangeResponse `json:"items"`
	Page  PageResponse    `json:"page"`
}

// ConsumptionResponse número emitido.
type ConsumptionResponse struct {
	RangeID        string `json:"range_id"`
	IssuedNumber   int64  `json:"issued_number"`
	Formatted      string `json:"formatted"`
	AvailableCount int64  `json:"available_count"`
	Status         string `json:"status"`
}

// RangeStatsResponse resumen del propietario.
type RangeStatsResponse struct {
	TotalRanges        int             `json:"total_ranges"`
	ExpiringSoonCount  int             `json:"expiring_soon_count"`
	LowWaterAlertCount int             `json:"low_water_alert_count"`
	CountsByStatus     map[string]int  `json:"counts_by_status"`
	TotalNumbers       int64           `json:"total_numbers"`
	UsedNumbers        int64           `json:"used_numbers"`
	UsedPercent        decimal.Decimal `json:"used_percent"`
}
