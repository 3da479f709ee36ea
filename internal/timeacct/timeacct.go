// Package timeacct models time spent on a project for one calendar date
// and summarizes collections of those records at several granularities.
package timeacct

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Sentinel project identifiers for non-project time.
const (
	ProjectFault    = "FAULT"
	ProjectWeather  = "WEATHER"
	ProjectOther    = "OTHER"
	ProjectExtended = "EXTENDED"
	ProjectTimeGap  = "TIMEGAP"
)

// IsSentinelProject reports whether a project id names a non-project
// time category rather than a real proposal.
func IsSentinelProject(projectID string) bool {
	switch strings.ToUpper(projectID) {
	case ProjectFault, ProjectWeather, ProjectOther, ProjectExtended, ProjectTimeGap:
		return true
	}
	return false
}

// Record is time spent on one project on one calendar date. The date is
// normalized to UTC midnight; time-of-day never distinguishes records.
type Record struct {
	ProjectID string        `json:"project_id"`
	Date      time.Time     `json:"date"`
	TimeSpent time.Duration `json:"time_spent"`
	// Confirmed marks finalized time; unconfirmed time is provisional.
	Confirmed bool   `json:"confirmed"`
	ShiftType string `json:"shift_type,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// New builds a Record, normalizing the date to UTC midnight.
func New(projectID string, date time.Time, spent time.Duration, confirmed bool) Record {
	return Record{
		ProjectID: projectID,
		Date:      Midnight(date),
		TimeSpent: spent,
		Confirmed: confirmed,
	}
}

// Midnight truncates a time to 0:00 UTC on its calendar date.
func Midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// IncTime adds a duration to the time spent.
func (r *Record) IncTime(d time.Duration) {
	r.TimeSpent += d
}

// Equal reports record equality: exact project string, same calendar
// instant, and the same duration to the second. Used for deduplication,
// never for merge grouping.
func (r Record) Equal(other Record) bool {
	return r.ProjectID == other.ProjectID &&
		r.Date.Equal(other.Date) &&
		r.TimeSpent/time.Second == other.TimeSpent/time.Second
}

// Format selects the summary granularity.
type Format string

const (
	FormatAll        Format = "all"
	FormatByDate     Format = "bydate"
	FormatByProject  Format = "byproject"
	FormatByProjDate Format = "byprojdate"
)

// ErrUnknownFormat reports an unrecognized summary format.
var ErrUnknownFormat = eris.New("unknown format")

// Summary is one bucket's accumulated totals. Confirmed plus Pending
// always equals Total.
type Summary struct {
	Total     time.Duration `json:"total"`
	Confirmed time.Duration `json:"confirmed"`
	Pending   time.Duration `json:"pending"`
}

func (s *Summary) add(r Record) {
	s.Total += r.TimeSpent
	if r.Confirmed {
		s.Confirmed += r.TimeSpent
	} else {
		s.Pending += r.TimeSpent
	}
}

// Result holds the outcome of Summarize. Exactly one field is populated,
// matching the requested format. Buckets untouched by any record are
// absent; there is no zero-filling.
type Result struct {
	All        *Summary                       `json:"all,omitempty"`
	ByDate     map[string]*Summary            `json:"bydate,omitempty"`
	ByProject  map[string]*Summary            `json:"byproject,omitempty"`
	ByProjDate map[string]map[string]*Summary `json:"byprojdate,omitempty"`
}

// DateKey is the ISO date key used by bydate and byprojdate buckets.
const DateKey = "2006-01-02"

// Summarize accumulates records into summary buckets at the requested
// granularity. Project keys are uppercased for byproject; byprojdate
// keeps the project spelling as stored. The input records are never
// mutated.
func Summarize(format Format, recs []Record) (*Result, error) {
	res := &Result{}

	switch format {
	case FormatAll:
		res.All = &Summary{}
		for _, r := range recs {
			res.All.add(r)
		}

	case FormatByDate:
		res.ByDate = make(map[string]*Summary)
		for _, r := range recs {
			key := r.Date.UTC().Format(DateKey)
			s, ok := res.ByDate[key]
			if !ok {
				s = &Summary{}
				res.ByDate[key] = s
			}
			s.add(r)
		}

	case FormatByProject:
		res.ByProject = make(map[string]*Summary)
		for _, r := range recs {
			key := strings.ToUpper(r.ProjectID)
			s, ok := res.ByProject[key]
			if !ok {
				s = &Summary{}
				res.ByProject[key] = s
			}
			s.add(r)
		}

	case FormatByProjDate:
		res.ByProjDate = make(map[string]map[string]*Summary)
		for _, r := range recs {
			dates, ok := res.ByProjDate[r.ProjectID]
			if !ok {
				dates = make(map[string]*Summary)
				res.ByProjDate[r.ProjectID] = dates
			}
			key := r.Date.UTC().Format(DateKey)
			s, ok := dates[key]
			if !ok {
				s = &Summary{}
				dates[key] = s
			}
			s.add(r)
		}

	default:
		return nil, eris.Wrapf(ErrUnknownFormat, "timeacct: %q", format)
	}

	return res, nil
}
