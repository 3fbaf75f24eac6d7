package llm

var requiredFields = []string{"vendorName", "totalAmount", "date"}

// Score rates field completeness: present required fields / 3, plus 0.1 for
// line items and 0.1 for an invoice number, clamped to [0, 1].
func Score(rec Record) float64 {
	present := 0
	for _, f := range requiredFields {
		if rec.Has(f) {
			present++
		}
	}
	score := float64(present) / float64(len(requiredFields))

	if rec.Has("lineItems") {
		if _, ok := rec["lineItems"].([]any); ok {
			score += 0.1
		}
	}
	if rec.Has("invoiceNumber") {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}
