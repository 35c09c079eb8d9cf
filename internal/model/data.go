package model

import (
	"strconv"
	"time"
)

// RetainedColumns are the source columns kept by the transform, in output order.
var RetainedColumns = [24]string{
	"period_begin", "period_end", "period_duration", "region_type", "region_type_id",
	"table_id", "is_seasonally_adjusted", "city", "state", "state_code", "property_type",
	"property_type_id", "median_sale_price", "median_list_price", "median_ppsf", "median_list_ppsf",
	"homes_sold", "inventory", "months_of_supply", "median_dom", "avg_sale_to_list",
	"sold_above_list", "parent_metro_region_metro_code", "last_updated",
}

// DerivedColumns are appended after the retained columns.
var DerivedColumns = [4]string{
	"period_begin_year", "period_end_year", "period_begin_month_name", "period_end_month_name",
}

// DateLayout is how period_begin and period_end are written out.
const DateLayout = "2006-01-02"

// CleanRecord is one row of the transformed dataset. Apart from the two
// period dates, retained values are carried as the source text.
type CleanRecord struct {
	PeriodBegin                time.Time
	PeriodEnd                  time.Time
	PeriodDuration             string
	RegionType                 string
	RegionTypeID               string
	TableID                    string
	IsSeasonallyAdjusted       string
	City                       string
	State                      string
	StateCode                  string
	PropertyType               string
	PropertyTypeID             string
	MedianSalePrice            string
	MedianListPrice            string
	MedianPPSF                 string
	MedianListPPSF             string
	HomesSold                  string
	Inventory                  string
	MonthsOfSupply             string
	MedianDOM                  string
	AvgSaleToList              string
	SoldAboveList              string
	ParentMetroRegionMetroCode string
	LastUpdated                string

	PeriodBeginYear      int
	PeriodEndYear        int
	PeriodBeginMonthName string
	PeriodEndMonthName   string
}

// Header returns the output header row.
func Header() []string {
	header := make([]string, 0, len(RetainedColumns)+len(DerivedColumns))
	header = append(header, RetainedColumns[:]...)
	return append(header, DerivedColumns[:]...)
}

// Row renders the record in Header order.
func (r CleanRecord) Row() []string {
	return []string{
		r.PeriodBegin.Format(DateLayout),
		r.PeriodEnd.Format(DateLayout),
		r.PeriodDuration,
		r.RegionType,
		r.RegionTypeID,
		r.TableID,
		r.IsSeasonallyAdjusted,
		r.City,
		r.State,
		r.StateCode,
		r.PropertyType,
		r.PropertyTypeID,
		r.MedianSalePrice,
		r.MedianListPrice,
		r.MedianPPSF,
		r.MedianListPPSF,
		r.HomesSold,
		r.Inventory,
		r.MonthsOfSupply,
		r.MedianDOM,
		r.AvgSaleToList,
		r.SoldAboveList,
		r.ParentMetroRegionMetroCode,
		r.LastUpdated,
		strconv.Itoa(r.PeriodBeginYear),
		strconv.Itoa(r.PeriodEndYear),
		r.PeriodBeginMonthName,
		r.PeriodEndMonthName,
	}
}
