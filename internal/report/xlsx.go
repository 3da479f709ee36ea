// Package report renders time-account summaries for people who live in
// spreadsheets.
package report

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/eaobservatory/omp-cli/internal/timeacct"
)

// WriteTimeAcctXLSX writes one summary result to an XLSX workbook. The
// sheet layout follows the granularity of the result: whichever field is
// populated gets written.
func WriteTimeAcctXLSX(path string, res *timeacct.Result) error {
	f := xlsx.NewFile()

	switch {
	case res.All != nil:
		sheet, err := f.AddSheet("Total")
		if err != nil {
			return eris.Wrap(err, "report: add sheet")
		}
		addHeaderRow(sheet, "Total (h)", "Confirmed (h)", "Pending (h)")
		addSummaryRow(sheet, nil, res.All)

	case res.ByDate != nil:
		sheet, err := f.AddSheet("By Date")
		if err != nil {
			return eris.Wrap(err, "report: add sheet")
		}
		addHeaderRow(sheet, "Date", "Total (h)", "Confirmed (h)", "Pending (h)")
		for _, key := range sortedKeys(res.ByDate) {
			addSummaryRow(sheet, []string{key}, res.ByDate[key])
		}

	case res.ByProject != nil:
		sheet, err := f.AddSheet("By Project")
		if err != nil {
			return eris.Wrap(err, "report: add sheet")
		}
		addHeaderRow(sheet, "Project", "Total (h)", "Confirmed (h)", "Pending (h)")
		for _, key := range sortedKeys(res.ByProject) {
			addSummaryRow(sheet, []string{key}, res.ByProject[key])
		}

	case res.ByProjDate != nil:
		sheet, err := f.AddSheet("By Project and Date")
		if err != nil {
			return eris.Wrap(err, "report: add sheet")
		}
		addHeaderRow(sheet, "Project", "Date", "Total (h)", "Confirmed (h)", "Pending (h)")
		projects := make([]string, 0, len(res.ByProjDate))
		for p := range res.ByProjDate {
			projects = append(projects, p)
		}
		sort.Strings(projects)
		for _, p := range projects {
			for _, d := range sortedKeys(res.ByProjDate[p]) {
				addSummaryRow(sheet, []string{p, d}, res.ByProjDate[p][d])
			}
		}

	default:
		return eris.New("report: empty summary result")
	}

	return eris.Wrap(f.Save(path), "report: save xlsx")
}

func addHeaderRow(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, title := range titles {
		row.AddCell().Value = title
	}
}

func addSummaryRow(sheet *xlsx.Sheet, labels []string, s *timeacct.Summary) {
	row := sheet.AddRow()
	for _, label := range labels {
		row.AddCell().Value = label
	}
	for _, d := range []time.Duration{s.Total, s.Confirmed, s.Pending} {
		row.AddCell().SetFloat(d.Hours())
	}
}

func sortedKeys(m map[string]*timeacct.Summary) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
