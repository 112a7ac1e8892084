// Package nass is a client for the USDA NASS QuickStats HTTP API.
package nass

import (
	"net/url"
	"strconv"
)

// QueryParams are the QuickStats filter parameters for a single query.
// Empty fields are omitted from the request.
type QueryParams struct {
	SourceDesc    string // "CENSUS" or "SURVEY"
	CommodityDesc string // commodity name, e.g. "CORN"
	CommodityCode string // numeric taxonomy code, e.g. "00102"
	StatisticCat  string // e.g. "AREA HARVESTED", "YIELD", "PRODUCTION"
	AggLevelDesc  string // e.g. "COUNTY", "STATE"
	StateAlpha    string // two-letter state code
	Year          int
}

// RawStatRecord is one QuickStats observation row as the API returns it.
// Value stays a string because the API mixes numbers with sentinel text
// like "(D)" (withheld) and "(Z)" (rounds to zero); the transform stage
// decides what is numeric.
type RawStatRecord struct {
	SourceDesc       string `json:"source_desc"`
	CommodityDesc    string `json:"commodity_desc"`
	CommodityCode    string `json:"commodity_code,omitempty"`
	ShortDesc        string `json:"short_desc"`
	StatisticCatDesc string `json:"statisticcat_desc"`
	UnitDesc         string `json:"unit_desc"`
	Value            string `json:"Value"`
	Year             int    `json:"year"`
	StateAlpha       string `json:"state_alpha"`
	StateFIPSCode    string `json:"state_fips_code"`
	CountyCode       string `json:"county_code"`
	CountyName       string `json:"county_name"`
	AggLevelDesc     string `json:"agg_level_desc"`
	DomainDesc       string `json:"domain_desc,omitempty"`
	CVPercent        string `json:"CV (%),omitempty"`
}

// values encodes the non-empty filters as QuickStats query parameters.
func (p QueryParams) values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val != "" {
			v.Set(key, val)
		}
	}
	set("source_desc", p.SourceDesc)
	set("commodity_desc", p.CommodityDesc)
	set("commodity_code", p.CommodityCode)
	set("statisticcat_desc", p.StatisticCat)
	set("agg_level_desc", p.AggLevelDesc)
	set("state_alpha", p.StateAlpha)
	if p.Year > 0 {
		set("year", strconv.Itoa(p.Year))
	}
	return v
}
