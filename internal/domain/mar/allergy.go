package mar

import "strings"

// Cross-reference table linking allergy keywords to drug name
// substrings. Deliberately conservative: substring rules only, no fuzzy
// matching. False negatives are possible; anything broader belongs in a
// pharmacy knowledge base, not here.
var allergyCrossReference = map[string][]string{
	"penicillin":    {"penicillin", "amoxicillin", "ampicillin", "augmentin", "piperacillin"},
	"sulfa":         {"sulfa", "sulfamethoxazole", "sulfasalazine", "bactrim", "septra"},
	"cephalosporin": {"cephalexin", "cefazolin", "ceftriaxone", "cefepime", "keflex"},
	"aspirin":       {"aspirin", "salicylate"},
	"nsaid":         {"ibuprofen", "naproxen", "ketorolac", "diclofenac"},
	"codeine":       {"codeine"},
	"morphine":      {"morphine"},
	"latex":         {},
}

// AllergyWarnings returns the subset of the patient's allergies that are
// linked to the drug being given, preserving the input order. The result
// is advisory only: it surfaces a warning for the operator to
// acknowledge and never blocks submission.
func AllergyWarnings(drugName string, allergies []string) []string {
	drug := strings.ToLower(strings.TrimSpace(drugName))
	if drug == "" {
		return nil
	}

	var warnings []string
	for _, allergy := range allergies {
		if allergyMatchesDrug(strings.ToLower(strings.TrimSpace(allergy)), drug) {
			warnings = append(warnings, allergy)
		}
	}
	return warnings
}

func allergyMatchesDrug(allergy, drug string) bool {
	if allergy == "" {
		return false
	}
	// Direct match: the recorded allergy names the drug itself.
	if strings.Contains(drug, allergy) {
		return true
	}
	for keyword, drugTerms := range allergyCrossReference {
		if !strings.Contains(allergy, keyword) {
			continue
		}
		for _, term := range drugTerms {
			if strings.Contains(drug, term) {
				return true
			}
		}
	}
	return false
}
