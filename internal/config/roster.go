package config

import "github.com/grandrounds/grandrounds/internal/models"

// DefaultSpecialists is the built-in panel used when the configuration
// names none. Internal medicine and emergency medicine sit on every
// case; the rest are recruited by symptom relevance.
func DefaultSpecialists() []models.SpecialistProfile {
	return []models.SpecialistProfile{
		{
			ID:            "internal_medicine",
			Role:          "Internist",
			AlwaysInclude: true,
			ModelTier:     "advanced",
			SymptomWeights: map[string]float64{
				"fever": 0.8, "fatigue": 0.8, "weight loss": 0.8,
				"malaise": 0.7, "night sweats": 0.7,
			},
		},
		{
			ID:            "emergency",
			Role:          "Emergency Physician",
			AlwaysInclude: true,
			ModelTier:     "advanced",
			SymptomWeights: map[string]float64{
				"chest pain": 1.0, "shortness of breath": 0.9,
				"syncope": 0.9, "severe bleeding": 1.0, "trauma": 1.0,
			},
		},
		{
			ID:        "cardiology",
			Role:      "Cardiologist",
			ModelTier: "advanced",
			SymptomWeights: map[string]float64{
				"chest pain": 1.0, "palpitations": 1.0, "syncope": 0.8,
				"shortness of breath": 0.7, "leg swelling": 0.6,
			},
		},
		{
			ID:        "pulmonology",
			Role:      "Pulmonologist",
			ModelTier: "standard",
			SymptomWeights: map[string]float64{
				"cough": 1.0, "shortness of breath": 1.0, "wheezing": 1.0,
				"hemoptysis": 0.9, "chest pain": 0.5,
			},
		},
		{
			ID:        "gastroenterology",
			Role:      "Gastroenterologist",
			ModelTier: "standard",
			SymptomWeights: map[string]float64{
				"abdominal pain": 1.0, "nausea": 0.8, "vomiting": 0.8,
				"diarrhea": 0.9, "constipation": 0.8, "blood in stool": 1.0,
			},
		},
		{
			ID:        "neurology",
			Role:      "Neurologist",
			ModelTier: "advanced",
			SymptomWeights: map[string]float64{
				"headache": 1.0, "dizziness": 0.8, "numbness": 0.9,
				"weakness": 0.8, "slurred speech": 1.0, "vision loss": 0.9,
				"seizure": 1.0,
			},
		},
		{
			ID:        "infectious_disease",
			Role:      "Infectious Disease Specialist",
			ModelTier: "standard",
			SymptomWeights: map[string]float64{
				"fever": 1.0, "rash": 0.7, "night sweats": 0.8,
				"recent travel": 0.9, "chills": 0.9,
			},
		},
		{
			ID:        "psychiatry",
			Role:      "Psychiatrist",
			ModelTier: "standard",
			SymptomWeights: map[string]float64{
				"anxiety": 1.0, "depressed mood": 1.0, "insomnia": 0.8,
				"suicidal": 1.0, "hallucinations": 1.0,
			},
		},
	}
}
