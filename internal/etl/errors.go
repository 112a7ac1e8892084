package etl

// Transform drop reasons. Rows hitting one are counted under it in the
// TransformReport, logged at debug, and excluded from the load; they never
// abort a run.
const (
	// DropUnresolvedReference: commodity code not in the mapped set.
	DropUnresolvedReference = "unresolved_reference"

	// DropUnknownSource: source_desc is neither CENSUS nor SURVEY.
	DropUnknownSource = "unknown_source"

	// DropMissingField: year, parameter, or unit absent.
	DropMissingField = "missing_field"

	// DropInvalidGeoid: state+county FIPS does not form 5 digits.
	DropInvalidGeoid = "invalid_geoid"

	// DropMalformedValue: value non-numeric after cleanup ("(D)" withheld,
	// "(Z)", empty).
	DropMalformedValue = "malformed_value"
)
