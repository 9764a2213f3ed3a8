package roster

import (
	"context"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/feral-kitty/fifi/errors"
)

// ReportFilename is the attachment name for the generated workbook.
const ReportFilename = "server_roster.xlsx"

const (
	sheetRoster = "Roster"
	sheetBans   = "Bans"
	sheetLeft   = "Left Members"
)

// BuildReport assembles the three-sheet roster workbook from the event store
// and returns it as xlsx bytes ready to attach.
func BuildReport(ctx context.Context, store *EventStore) ([]byte, error) {
	active, err := store.ActiveMembers(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load active members")
	}
	left, banned, err := store.Periods(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load membership periods")
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), sheetRoster)
	if err := writeRosterSheet(f, active); err != nil {
		return nil, err
	}
	if err := writePeriodSheet(f, sheetBans,
		[]string{"username", "user_id", "date_joined", "date_left", "ban_reason"},
		banned, func(p Period) interface{} { return p.Reason }); err != nil {
		return nil, err
	}
	if err := writePeriodSheet(f, sheetLeft,
		[]string{"username", "user_id", "date_joined", "date_left", "total_days"},
		left, func(p Period) interface{} { return p.TotalDays }); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}

func writeRosterSheet(f *excelize.File, active []Event) error {
	rows := [][]interface{}{
		{"server_joined_at", "username", "user_id", "roles"},
	}
	for _, ev := range active {
		rows = append(rows, []interface{}{
			formatTime(ev.OccurredAt),
			ev.MemberName,
			ev.MemberID,
			joinRoles(ev.RoleNames),
		})
	}
	return writeRows(f, sheetRoster, rows)
}

func writePeriodSheet(f *excelize.File, sheet string, headers []string, periods []Period, last func(Period) interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return errors.Wrapf(err, "create sheet %s", sheet)
	}
	rows := [][]interface{}{toRow(headers)}
	for _, p := range periods {
		rows = append(rows, []interface{}{
			p.MemberName,
			p.MemberID,
			formatTime(p.Joined),
			formatTime(p.Left),
			last(p),
		})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrapf(err, "cell name for row %d", i+1)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %d of %s", i+1, sheet)
		}
	}
	// Keep headers visible while scrolling.
	return errors.Wrapf(f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}), "freeze header of %s", sheet)
}

func toRow(headers []string) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func joinRoles(roles []string) string {
	return strings.Join(roles, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
