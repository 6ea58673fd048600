package audit

import (
	"net/url"
	"time"
)

// TimelineFilters narrows the journal. From and To are whole days; To is
// inclusive.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one journal entry.
type TimelineRow struct {
	At        time.Time
	ActorName string
	Email     string
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
}

// Line labels the row for display.
func (r TimelineRow) Line() Line {
	return newLine(r.At, r.ActorName, r.Action, r.Entity, r.EntityID)
}

// PagingInfo is peek-ahead paging: HasNext is known without a count query.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// FiltersViewModel holds the filter values echoed back to the form.
type FiltersViewModel struct {
	From   time.Time
	To     time.Time
	Actor  string
	Entity string
	Action string
}

// ViewModel is the journal page content.
type ViewModel struct {
	Filters  FiltersViewModel
	Lines    []Line
	Paging   PagingInfo
	Query    url.Values
	Entities []string
	Actions  []string
	Error    string
}
