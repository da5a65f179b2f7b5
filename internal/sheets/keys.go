package sheets

const (
	metaKeyPrefix = "sheets_meta:"
	dataKeyPrefix = "sheet_data:"
)

// MetaKey is the cache key of a spreadsheet's tab list.
func MetaKey(spreadsheetID string) string {
	return metaKeyPrefix + spreadsheetID
}

// DataKey is the cache key of one tab's values.
func DataKey(spreadsheetID, sheetName string) string {
	return SpreadsheetPrefix(spreadsheetID) + sheetName
}

// SpreadsheetPrefix groups the DataKey of every tab of a spreadsheet.
func SpreadsheetPrefix(spreadsheetID string) string {
	return dataKeyPrefix + spreadsheetID + ":"
}
