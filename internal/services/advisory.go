package services

// AdvisoryTable maps a classification code to advisory text. Values are
// Markdown.
type AdvisoryTable map[string]string

// Lookup returns the advisory for code. A missing code is not an error.
func (t AdvisoryTable) Lookup(code string) (string, bool) {
	text, ok := t[code]
	return text, ok
}

// DefaultAdvisories covers the seven lesion classes the remote classifier
// reports.
var DefaultAdvisories = AdvisoryTable{
	"akiec": "**Actinic keratosis / intraepithelial carcinoma.** A sun-damage lesion that can progress to squamous cell carcinoma. " +
		"Book a dermatologist appointment within the next few weeks; it is usually treated in the office.",
	"bcc": "**Basal cell carcinoma.** The most common skin cancer. It grows slowly and rarely spreads, " +
		"but it should be seen by a dermatologist soon so it can be removed while small.",
	"bkl": "**Benign keratosis.** Seborrheic keratoses, solar lentigines and similar lesions are harmless. " +
		"Have it checked if it bleeds, itches or changes quickly.",
	"df": "**Dermatofibroma.** A firm, benign nodule, often after a minor skin injury. " +
		"No treatment is needed unless it bothers you.",
	"mel": "**Melanoma.** This result needs prompt attention. " +
		"Contact a dermatologist as soon as possible for an examination and, if needed, a biopsy. " +
		"Early treatment of melanoma is highly effective.",
	"nv": "**Melanocytic nevus.** A common mole, usually benign. " +
		"Keep an eye on it with the ABCDE rule (asymmetry, border, color, diameter, evolution) and see a doctor if it changes.",
	"vasc": "**Vascular lesion.** Cherry angiomas, angiokeratomas and similar lesions are typically benign. " +
		"See a doctor if it bleeds often or grows.",
}
