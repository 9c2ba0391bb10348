package service

import (
	"time"

	"github.com/jeovahfialho/perfwatch/internal/matching"
	"github.com/jeovahfialho/perfwatch/internal/writer"
)

// RunReport summarizes one reconciliation iteration.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`

	Fetched  int `json:"fetched"`
	Pages    int `json:"pages"`
	Valid    int `json:"valid"`
	Rejected int `json:"rejected"`
	Matches  int `json:"matches"`
	Periods  int `json:"periods"`

	MatchWrites  writer.Stats `json:"match_writes"`
	PeriodWrites writer.Stats `json:"period_writes"`

	Symbols         []string             `json:"symbols"`
	OversoldSymbols []string             `json:"oversold_symbols,omitempty"`
	Unmatched       []matching.Unmatched `json:"unmatched,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// Created is the number of rows created across both entities.
func (r *RunReport) Created() int {
	return r.MatchWrites.Created + r.PeriodWrites.Created
}

func (r *RunReport) Skipped() int {
	return r.MatchWrites.Skipped + r.PeriodWrites.Skipped
}

func (r *RunReport) Updated() int {
	return r.MatchWrites.Updated + r.PeriodWrites.Updated
}

func (r *RunReport) Failed() int {
	return r.MatchWrites.Failed + r.PeriodWrites.Failed
}

// Changed reports whether the run wrote anything.
func (r *RunReport) Changed() bool {
	return r.Created() > 0 || r.Updated() > 0
}
