package constants

import (
	"strings"
)

// DocumentType is the document category a provider assigns to an extraction.
type DocumentType string

const (
	Invoice        DocumentType = "Invoice"
	Receipt        DocumentType = "Receipt"
	BankStatement  DocumentType = "Bank Statement"
	InsuranceEOB   DocumentType = "Insurance EOB"
	UnknownDocType DocumentType = "Unknown"
)

var allDocumentTypes = []DocumentType{
	Invoice,
	Receipt,
	BankStatement,
	InsuranceEOB,
	UnknownDocType,
}

func DocumentTypesAsStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

// CanonicalDocumentType maps free-form model output onto a known category.
// Unrecognised input maps to UnknownDocType with ok=false.
func CanonicalDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return UnknownDocType, false
	}

	synonyms := map[string]DocumentType{
		"bill":                    Invoice,
		"tax invoice":             Invoice,
		"sales receipt":           Receipt,
		"bank_statement":          BankStatement,
		"statement":               BankStatement,
		"eob":                     InsuranceEOB,
		"explanation of benefits": InsuranceEOB,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == strings.ToLower(string(dt)) {
			return dt, true
		}
	}
	return UnknownDocType, false
}
