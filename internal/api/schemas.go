package api

import (
	"time"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/service"
)

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type PerformanceResponse struct {
	Periods []domain.PeriodPerformance `json:"periods"`
	Count   int                        `json:"count"`
}

type MatchesResponse struct {
	Symbol  string                 `json:"symbol,omitempty"`
	Matches []domain.RealizedMatch `json:"matches"`
	Count   int                    `json:"count"`
}

type RunResponse struct {
	Status string             `json:"status"`
	Report *service.RunReport `json:"report"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
