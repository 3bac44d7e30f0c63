package schema

import _ "embed"

// SummaryJSONSchema is the JSON Schema of the ScanSummary output contract.
//
//go:embed summary.schema.json
var SummaryJSONSchema []byte
