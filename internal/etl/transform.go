package etl

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/biocirv/agstats-cli/internal/nass"
)

// Record kinds, derived from the API's source_desc.
const (
	KindCensus = "census"
	KindSurvey = "survey"
)

// NormalizedRow is one cleaned observation ready to load.
type NormalizedRow struct {
	Geoid         string
	CommodityCode string
	Year          int
	Kind          string // census | survey
	ParameterID   int64
	UnitID        int64
	ValueNumeric  float64
	ValueText     string
	Lineage       Lineage
}

// TransformReport counts what happened to every input row. Dropped rows
// are broken out by reason so a fully-dropped batch reads differently from
// an empty extract.
type TransformReport struct {
	In      int
	Out     int
	Dropped map[string]int
}

func (r *TransformReport) drop(reason string) {
	if r.Dropped == nil {
		r.Dropped = make(map[string]int)
	}
	r.Dropped[reason]++
}

// DroppedTotal sums drops across reasons.
func (r TransformReport) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

var geoidPattern = regexp.MustCompile(`^\d{5}$`)

// Transformer normalizes raw API rows: resolves references, validates
// geography, coerces values, and stamps lineage.
type Transformer struct {
	resolver *Resolver
	mapped   map[string]bool
	lineage  Lineage
	log      *zap.Logger
}

// NewTransformer builds a Transformer. mappedCodes is the commodity
// allowlist; rows outside it drop as unresolved references.
func NewTransformer(resolver *Resolver, mappedCodes []string, lineage Lineage) *Transformer {
	mapped := make(map[string]bool, len(mappedCodes))
	for _, c := range mappedCodes {
		mapped[c] = true
	}
	return &Transformer{
		resolver: resolver,
		mapped:   mapped,
		lineage:  lineage,
		log:      zap.L().With(zap.String("component", "etl.transform")),
	}
}

// Transform normalizes a raw batch. Rows failing any step are counted and
// dropped; nothing aborts the batch.
func (t *Transformer) Transform(ctx context.Context, raw []nass.RawStatRecord) ([]NormalizedRow, TransformReport, error) {
	report := TransformReport{In: len(raw)}

	var out []NormalizedRow
	for _, r := range raw {
		row, reason, err := t.transformOne(ctx, r)
		if err != nil {
			return out, report, err
		}
		if reason != "" {
			report.drop(reason)
			t.log.Debug("row dropped",
				zap.String("reason", reason),
				zap.String("commodity", r.CommodityDesc),
				zap.String("county", r.CountyName),
			)
			continue
		}
		out = append(out, row)
	}

	report.Out = len(out)
	t.log.Info("transform complete",
		zap.Int("in", report.In),
		zap.Int("out", report.Out),
		zap.Int("dropped", report.DroppedTotal()),
	)
	return out, report, nil
}

// transformOne returns a non-empty drop reason for rows that should be
// excluded; a non-nil error aborts the batch (resolver/database failures).
func (t *Transformer) transformOne(ctx context.Context, r nass.RawStatRecord) (NormalizedRow, string, error) {
	var zero NormalizedRow

	code := commodityKey(r)
	if code == "" || !t.mapped[code] {
		return zero, DropUnresolvedReference, nil
	}

	kind, ok := recordKind(r.SourceDesc)
	if !ok {
		return zero, DropUnknownSource, nil
	}

	param := strings.TrimSpace(strings.ToUpper(r.StatisticCatDesc))
	unit := strings.TrimSpace(strings.ToUpper(r.UnitDesc))
	if r.Year == 0 || param == "" || unit == "" {
		return zero, DropMissingField, nil
	}

	geoid := r.StateFIPSCode + r.CountyCode
	if !geoidPattern.MatchString(geoid) {
		return zero, DropInvalidGeoid, nil
	}

	value, ok := coerceValue(r.Value)
	if !ok {
		return zero, DropMalformedValue, nil
	}

	paramID, err := t.resolver.ParameterID(ctx, param)
	if err != nil {
		return zero, "", err
	}
	unitID, err := t.resolver.UnitID(ctx, unit)
	if err != nil {
		return zero, "", err
	}

	return NormalizedRow{
		Geoid:         geoid,
		CommodityCode: code,
		Year:          r.Year,
		Kind:          kind,
		ParameterID:   paramID,
		UnitID:        unitID,
		ValueNumeric:  value,
		ValueText:     strings.TrimSpace(r.Value),
		Lineage:       t.lineage,
	}, "", nil
}

// commodityKey prefers the explicit commodity code and falls back to the
// description, mirroring how the taxonomy snapshot is keyed.
func commodityKey(r nass.RawStatRecord) string {
	if r.CommodityCode != "" {
		return r.CommodityCode
	}
	return strings.TrimSpace(r.CommodityDesc)
}

func recordKind(sourceDesc string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(sourceDesc)) {
	case "CENSUS":
		return KindCensus, true
	case "SURVEY":
		return KindSurvey, true
	default:
		return "", false
	}
}

// coerceValue parses the API's stringly-typed Value field. Thousands
// separators are stripped; disclosure sentinels like "(D)" and "(Z)" are
// not numbers and fail coercion.
func coerceValue(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
