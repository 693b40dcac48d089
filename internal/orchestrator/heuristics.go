package orchestrator

// Heuristics holds the keyword tables behind red-flag detection, workup
// classification, and the standard plan additions. The compiled defaults
// are a starting configuration, not a frozen clinical ruleset; deployments
// override them from the config file.
type Heuristics struct {
	// RedFlagKeywords are matched (case-insensitive substring) against
	// the complaint, history, and symptoms.
	RedFlagKeywords []string `json:"red_flag_keywords" yaml:"red_flag_keywords"`
	// SeverityRedFlag is the 0-10 severity at or above which a red flag
	// is raised.
	SeverityRedFlag int `json:"severity_red_flag" yaml:"severity_red_flag"`
	// TriageRedFlag is the known ESI level at or below which a red flag
	// is raised.
	TriageRedFlag int `json:"triage_red_flag" yaml:"triage_red_flag"`

	// Workup classification buckets.
	LabKeywords       []string `json:"lab_keywords" yaml:"lab_keywords"`
	ImagingKeywords   []string `json:"imaging_keywords" yaml:"imaging_keywords"`
	ProcedureKeywords []string `json:"procedure_keywords" yaml:"procedure_keywords"`

	// StandardAdditions are deterministic plan items keyed off the top
	// diagnosis text.
	StandardAdditions []StandardAddition `json:"standard_additions" yaml:"standard_additions"`
}

// StandardAddition contributes fixed plan items whenever the primary
// diagnosis matches one of its keywords.
type StandardAddition struct {
	Keywords             []string `json:"keywords" yaml:"keywords"`
	LabTests             []string `json:"lab_tests" yaml:"lab_tests"`
	Imaging              []string `json:"imaging" yaml:"imaging"`
	DiagnosticProcedures []string `json:"diagnostic_procedures" yaml:"diagnostic_procedures"`
	Management           []string `json:"management" yaml:"management"`
}

// DefaultHeuristics returns the compiled-in keyword tables.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		RedFlagKeywords: []string{
			"chest pain", "sudden", "suicidal", "shortness of breath",
			"unresponsive", "severe bleeding", "stiff neck", "worst headache",
			"slurred speech", "vision loss", "syncope",
		},
		SeverityRedFlag: 8,
		TriageRedFlag:   2,
		LabKeywords: []string{
			"cbc", "blood", "panel", "culture", "troponin", "crp", "esr",
			"lipase", "glucose", "electrolyte", "urinalysis", "d-dimer",
			"lactate", "hcg",
		},
		ImagingKeywords: []string{
			"x-ray", "xray", "ct", "mri", "ultrasound", "imaging",
			"echocardiogram", "radiograph", "doppler",
		},
		ProcedureKeywords: []string{
			"ecg", "ekg", "endoscopy", "colonoscopy", "biopsy",
			"lumbar puncture", "spirometry",
		},
		StandardAdditions: []StandardAddition{
			{
				Keywords:             []string{"cardiac", "chest pain", "coronary", "myocardial", "angina"},
				LabTests:             []string{"Troponin"},
				DiagnosticProcedures: []string{"12-lead ECG"},
			},
			{
				Keywords: []string{"infection", "pneumonia", "sepsis"},
				LabTests: []string{"CBC with differential", "CRP"},
				Imaging:  []string{"Chest imaging"},
			},
			{
				Keywords: []string{"appendicitis", "abdominal"},
				LabTests: []string{"CBC with differential"},
				Imaging:  []string{"Abdominal ultrasound or CT"},
			},
			{
				Keywords:             []string{"stroke", "cerebrovascular", "tia"},
				Imaging:              []string{"Non-contrast head CT"},
				DiagnosticProcedures: []string{"Neurological examination"},
			},
		},
	}
}

// withDefaults fills any zero-valued table from the defaults so a
// partially specified configuration stays usable.
func (h Heuristics) withDefaults() Heuristics {
	def := DefaultHeuristics()
	if len(h.RedFlagKeywords) == 0 {
		h.RedFlagKeywords = def.RedFlagKeywords
	}
	if h.SeverityRedFlag <= 0 {
		h.SeverityRedFlag = def.SeverityRedFlag
	}
	if h.TriageRedFlag <= 0 {
		h.TriageRedFlag = def.TriageRedFlag
	}
	if len(h.LabKeywords) == 0 {
		h.LabKeywords = def.LabKeywords
	}
	if len(h.ImagingKeywords) == 0 {
		h.ImagingKeywords = def.ImagingKeywords
	}
	if len(h.ProcedureKeywords) == 0 {
		h.ProcedureKeywords = def.ProcedureKeywords
	}
	if len(h.StandardAdditions) == 0 {
		h.StandardAdditions = def.StandardAdditions
	}
	return h
}
