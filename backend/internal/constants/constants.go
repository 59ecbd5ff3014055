package constants

// Referral table layout
const (
	// HeaderApplicationID, HeaderPI and HeaderHosp are the upper-cased
	// labels of the first three header cells
	HeaderApplicationID = "APPLICATION ID"
	HeaderPI            = "PI"
	HeaderHosp          = "HOSP"

	// PrimaryColumn holds the referring institution of a row
	PrimaryColumn = 2

	// FirstSecondaryColumn is the first referred-to institution; the
	// following ones sit every SecondaryStride columns after it
	FirstSecondaryColumn = 4
	SecondaryStride      = 2
)

// Legend constants
const (
	// LegendLabelPrefix precedes the 1-based sequence number of a legend label
	LegendLabelPrefix = "#"
)

// Enrichment constants
const (
	// SuggestedQuerySuffix narrows place searches to the country the
	// referral tables come from. It is not applied unless configured.
	SuggestedQuerySuffix = " Australia"
)
