package pipeline

import (
	"strings"
	"time"

	"redfin-data-pipeline/internal/model"
)

// positions of the columns buildRecord treats specially
const (
	periodBeginColumn = 0
	periodEndColumn   = 1
	cityColumn        = 7
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// dateLayouts are tried in order when parsing period dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// MonthName returns the three-letter English abbreviation of m.
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

func parseDate(column, value string, line int) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &ParseError{Column: column, Value: value, Line: line, Cause: lastErr}
}

// buildRecord parses the period dates of a projected row and fills in the
// derived year and month columns.
func buildRecord(v [len(model.RetainedColumns)]string, line int) (model.CleanRecord, error) {
	begin, err := parseDate(model.RetainedColumns[periodBeginColumn], v[periodBeginColumn], line)
	if err != nil {
		return model.CleanRecord{}, err
	}
	end, err := parseDate(model.RetainedColumns[periodEndColumn], v[periodEndColumn], line)
	if err != nil {
		return model.CleanRecord{}, err
	}

	return model.CleanRecord{
		PeriodBegin:                begin,
		PeriodEnd:                  end,
		PeriodDuration:             v[2],
		RegionType:                 v[3],
		RegionTypeID:               v[4],
		TableID:                    v[5],
		IsSeasonallyAdjusted:       v[6],
		City:                       v[cityColumn],
		State:                      v[8],
		StateCode:                  v[9],
		PropertyType:               v[10],
		PropertyTypeID:             v[11],
		MedianSalePrice:            v[12],
		MedianListPrice:            v[13],
		MedianPPSF:                 v[14],
		MedianListPPSF:             v[15],
		HomesSold:                  v[16],
		Inventory:                  v[17],
		MonthsOfSupply:             v[18],
		MedianDOM:                  v[19],
		AvgSaleToList:              v[20],
		SoldAboveList:              v[21],
		ParentMetroRegionMetroCode: v[22],
		LastUpdated:                v[23],

		PeriodBeginYear:      begin.Year(),
		PeriodEndYear:        end.Year(),
		PeriodBeginMonthName: MonthName(begin.Month()),
		PeriodEndMonthName:   MonthName(end.Month()),
	}, nil
}
