package llm

// ExtractionPrompt is the fixed instruction sent with every document.
const ExtractionPrompt = `Analyze this image of a financial document.
Extract all relevant data points and return a strictly formatted JSON object.

The JSON structure must be as follows:
{
  "documentType": "Invoice" | "Receipt" | "Bank Statement" | "Insurance EOB" | "Unknown",
  "vendorName": "string",
  "vendorAddress": "string (address of vendor if available)",
  "invoiceNumber": "string",
  "date": "YYYY-MM-DD",
  "dueDate": "YYYY-MM-DD (optional)",
  "totalAmount": number,
  "taxAmount": number,
  "currency": "string (e.g. USD)",
  "lineItems": [
    {
      "description": "string",
      "quantity": number,
      "unitPrice": number,
      "total": number,
      "sku": "string (optional)"
    }
  ],
  "summary": "string (1 sentence summary)"
}

Rules:
1. Ensure numerical values are parsed correctly as numbers.
2. If a field is missing, use null or 0 (for numbers) as appropriate.
3. Format dates as YYYY-MM-DD.
4. Output ONLY the valid JSON string. Do not include markdown formatting like ` + "```json" + `.
`

// PromptFor returns req.Prompt or the default instruction.
func PromptFor(req ExtractRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return ExtractionPrompt
}
