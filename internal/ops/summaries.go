package ops

import (
	"strings"

	"github.com/akademi4eg/aka-assistant/internal/db"
	"github.com/akademi4eg/aka-assistant/internal/errors"
	"github.com/akademi4eg/aka-assistant/internal/record"
)

// FetchSummaryInput contains parameters for the FetchSummary operation.
type FetchSummaryInput struct {
	ID          string // required
	IncludeText *bool  // default: true (nil means default)
}

// FetchSummaryOutput is a stored summary record.
type FetchSummaryOutput struct {
	record.Item
	Summary        *string `json:"summary,omitempty"`
	Words          int     `json:"words"`
	TokensEstimate int     `json:"tokens_estimate"`
}

// FetchSummary retrieves a summary record by ID.
func FetchSummary(deps *Deps, input FetchSummaryInput) (*FetchSummaryOutput, error) {
	if err := deps.requireDB(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	rec, err := db.GetByID(deps.DB, id)
	if err != nil {
		return nil, err
	}

	out := &FetchSummaryOutput{
		Item:           rec.ToItem(),
		Summary:        rec.Summary,
		Words:          rec.Words,
		TokensEstimate: rec.TokensEstimate,
	}
	if input.IncludeText != nil && !*input.IncludeText {
		out.Summary = nil
	}
	return out, nil
}

// ListSummariesInput contains parameters for the ListSummaries operation.
type ListSummariesInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListSummariesOutput contains the result of the ListSummaries operation.
type ListSummariesOutput struct {
	Items      []record.Item `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// ListSummaries retrieves summary metadata with pagination.
func ListSummaries(deps *Deps, input ListSummariesInput) (*ListSummariesOutput, error) {
	if err := deps.requireDB(); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.List(deps.DB, limit, offset)
	if err != nil {
		return nil, err
	}
	// Ensure we return an empty array rather than nil
	if items == nil {
		items = []record.Item{}
	}

	return &ListSummariesOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "updated_at_desc",
	}, nil
}

// DeleteSummaryInput contains parameters for the DeleteSummary operation.
type DeleteSummaryInput struct {
	ID string // required
}

// DeleteSummaryOutput contains the result of the DeleteSummary operation.
type DeleteSummaryOutput struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// DeleteSummary removes a summary record. The next Summarize of the same
// document starts over.
func DeleteSummary(deps *Deps, input DeleteSummaryInput) (*DeleteSummaryOutput, error) {
	if err := deps.requireDB(); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := db.Delete(deps.DB, id); err != nil {
		return nil, err
	}
	return &DeleteSummaryOutput{Deleted: true, ID: id}, nil
}
