package rename

import (
	"fmt"

	"discripper/internal/naming"
	"discripper/internal/services"
)

// Request selects the jobs of a batch and how their folders are named.
type Request struct {
	JobIDs      []int64
	Style       naming.Style
	ZeroPad     bool
	Consolidate bool
	IncludeYear bool
	// SeriesKey picks one series group as authoritative for every job.
	SeriesKey string
	// SeriesName overrides the series name outright.
	SeriesName string
	// ForceSeries applies the primary group's name to outliers.
	ForceSeries bool
	// Skip leaves outlier jobs out of the batch.
	Skip []int64
	User string
}

// ValidationError is a problem with the selection or a computed path. It
// matches services.ErrValidation.
type ValidationError struct {
	JobID  int64
	Reason string
}

func (e ValidationError) Error() string {
	if e.JobID == 0 {
		return e.Reason
	}
	return fmt.Sprintf("job %d: %s", e.JobID, e.Reason)
}

func (e ValidationError) Unwrap() error { return services.ErrValidation }

// SeriesGroup is the set of selected jobs that name the same series.
type SeriesGroup struct {
	Key         string  `json:"key"`
	DisplayName string  `json:"display_name"`
	IMDBID      string  `json:"imdb_id,omitempty"`
	Manual      bool    `json:"has_manual_title"`
	JobIDs      []int64 `json:"job_ids"`
}

// Consistency describes how the selection splits into series.
type Consistency struct {
	Consistent bool          `json:"consistent"`
	Primary    string        `json:"primary_series"`
	PrimaryKey string        `json:"primary_series_key"`
	Groups     []SeriesGroup `json:"series_groups"`
	Outliers   []int64       `json:"outliers,omitempty"`
}

// Item is the planned rename of one job's folder.
type Item struct {
	JobID        int64  `json:"job_id"`
	Title        string `json:"title"`
	Label        string `json:"label"`
	OldPath      string `json:"old_path"`
	NewPath      string `json:"new_path"`
	OldFolder    string `json:"old_folder_name"`
	NewFolder    string `json:"new_folder_name"`
	SeriesName   string `json:"series_name"`
	Identifier   string `json:"disc_identifier,omitempty"`
	Fallback     bool   `json:"fallback"`
	Conflict     string `json:"conflict,omitempty"`
	Consolidated bool   `json:"consolidated"`
	ParentFolder string `json:"parent_folder,omitempty"`
}

// Preview is the dry run of a batch.
type Preview struct {
	Items                   []Item            `json:"items"`
	Errors                  []ValidationError `json:"-"`
	Warnings                []string          `json:"warnings"`
	Series                  Consistency       `json:"series_info"`
	SeriesName              string            `json:"series_name"`
	ParentFolder            string            `json:"parent_folder,omitempty"`
	RequiresSeriesSelection bool              `json:"requires_series_selection"`
	Style                   naming.Style      `json:"naming_style"`
	ZeroPad                 bool              `json:"zero_padded"`
}

// Valid reports whether the preview can be executed.
func (p *Preview) Valid() bool {
	return p != nil && len(p.Errors) == 0 && !p.RequiresSeriesSelection
}

// Conflicts counts items whose destination is taken.
func (p *Preview) Conflicts() int {
	n := 0
	for _, item := range p.Items {
		if item.Conflict != "" {
			n++
		}
	}
	return n
}

// ErrorMessages renders Errors for display.
func (p *Preview) ErrorMessages() []string {
	out := make([]string, 0, len(p.Errors))
	for _, err := range p.Errors {
		out = append(out, err.Error())
	}
	return out
}

// ExecuteResult reports a finished batch.
type ExecuteResult struct {
	BatchID      string   `json:"batch_id"`
	SuccessCount int      `json:"renamed_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
	Items        []Item   `json:"items"`
}

// RollbackResult reports a reversed batch.
type RollbackResult struct {
	BatchID    string   `json:"batch_id"`
	RolledBack int      `json:"rolled_back_count"`
	Failed     int      `json:"failed_count"`
	Errors     []string `json:"errors"`
}
