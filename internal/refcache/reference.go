// Package refcache caches the authoritative USDA commodity reference list as
// a local JSON snapshot so repeated matching runs avoid redundant API calls.
package refcache

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source tags identifying which reporting service a reference came from.
const (
	SourceNASS = "NASS" // primary statistics service (QuickStats)
	SourceAMS  = "AMS"  // market-reporting service
)

var upper = cases.Upper(language.AmericanEnglish)

// CommodityReference is one entry in the external commodity taxonomy.
// Immutable once fetched; the snapshot is refreshed wholesale, never patched.
type CommodityReference struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
	ParentCode  string `json:"parent_code,omitempty"`
}

// NewCommodityReference builds a reference with the display name in its
// uppercase canonical form.
func NewCommodityReference(code, name, description, source string) CommodityReference {
	if description == "" {
		description = name
	}
	if source == "" {
		source = SourceNASS
	}
	return CommodityReference{
		Code:        strings.TrimSpace(code),
		Name:        upper.String(strings.TrimSpace(name)),
		Description: strings.TrimSpace(description),
		Source:      source,
	}
}
