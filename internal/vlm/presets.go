package vlm

import "slices"

// Preset names.
const (
	PresetSizeChart    = "size_chart"
	PresetInvoice      = "invoice"
	PresetReceipt      = "receipt"
	PresetBusinessCard = "business_card"
	PresetTable        = "table"
	PresetGeneral      = "general"
)

// PresetInfo describes a named instruction.
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type preset struct {
	description string
	instruction string
}

var presetOrder = []string{
	PresetSizeChart, PresetInvoice, PresetReceipt, PresetBusinessCard, PresetTable, PresetGeneral,
}

var presets = map[string]preset{
	PresetSizeChart: {
		description: "Extract size chart measurements as structured JSON",
		instruction: `You are a size chart data extractor. Extract ALL measurements from this image.

Return a JSON object with:
1. "sizes" - array of all size labels found (e.g. S, M, L or 36, 38, 40 or XS-3XL etc)
2. "measurements" - object where each key is a measurement type, and value is an object mapping size to measurement

Example output format:
{
    "sizes": ["S", "M", "L", "XL"],
    "measurements": {
        "chest": {"S": "36", "M": "38", "L": "40", "XL": "42"},
        "length": {"S": "26", "M": "27", "L": "28", "XL": "29"}
    }
}

Important:
- Extract the ACTUAL data from the image, not the example above
- Include ALL sizes and ALL measurements you see
- Keep original units (cm, inches, etc) if shown
- Use descriptive measurement names from the image`,
	},
	PresetInvoice: {
		description: "Extract invoice data including items, totals, vendor info",
		instruction: `Extract all data from this invoice as JSON.
Return format:
{
    "vendor": "company name",
    "date": "YYYY-MM-DD",
    "invoice_number": "...",
    "items": [{"description": "...", "quantity": N, "price": N}],
    "subtotal": N,
    "tax": N,
    "total": N
}`,
	},
	PresetReceipt: {
		description: "Extract receipt data including items and totals",
		instruction: `Extract all data from this receipt as JSON.
Return format:
{
    "store": "store name",
    "date": "YYYY-MM-DD",
    "items": [{"name": "...", "price": N}],
    "subtotal": N,
    "tax": N,
    "total": N,
    "payment_method": "..."
}`,
	},
	PresetBusinessCard: {
		description: "Extract contact information from business cards",
		instruction: `Extract contact information from this business card as JSON.
Return format:
{
    "name": "...",
    "title": "...",
    "company": "...",
    "email": "...",
    "phone": "...",
    "address": "...",
    "website": "..."
}`,
	},
	PresetTable: {
		description: "Extract tabular data with headers and rows",
		instruction: `Extract all tabular data from this image as JSON.
Return format:
{
    "headers": ["col1", "col2", ...],
    "rows": [["val1", "val2", ...], ...]
}`,
	},
	PresetGeneral: {
		description: "General purpose extraction and description",
		instruction: "Extract all text and data from this image. Describe what you see and provide any structured data you can identify.",
	},
}

// PresetInstruction returns the instruction for name, falling back to the
// general preset for unknown names.
func PresetInstruction(name string) string {
	if p, ok := presets[name]; ok {
		return p.instruction
	}
	return presets[PresetGeneral].instruction
}

// IsPreset reports whether name is a known preset.
func IsPreset(name string) bool {
	_, ok := presets[name]
	return ok
}

// Presets lists presets in a stable order.
func Presets() []PresetInfo {
	out := make([]PresetInfo, 0, len(presetOrder))
	for _, name := range presetOrder {
		out = append(out, PresetInfo{Name: name, Description: presets[name].description})
	}
	return out
}

// PresetNames lists preset names in a stable order.
func PresetNames() []string {
	return slices.Clone(presetOrder)
}
