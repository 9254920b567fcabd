package models

// Requests for run and signal HTTP endpoints. Defined in domain for consistency and reuse.

type TriggerRunRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type BackfillRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
}

type SignalsRequest struct {
	Date  string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}

type ZoneRequest struct {
	Date string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}
