package agents

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/grandrounds/grandrounds/internal/models"
)

// opinionPayload is the structured JSON contract a specialist is asked
// to return.
type opinionPayload struct {
	DifferentialDiagnosis []struct {
		Rank               int      `json:"rank"`
		Diagnosis          string   `json:"diagnosis"`
		Code               string   `json:"code"`
		Confidence         float64  `json:"confidence"`
		Reasoning          string   `json:"reasoning"`
		SupportingEvidence []string `json:"supportingEvidence"`
		RefutingEvidence   []string `json:"refutingEvidence"`
		MustNotMiss        bool     `json:"mustNotMiss"`
		Urgency            string   `json:"urgency"`
	} `json:"differentialDiagnosis"`
	OverallConfidence float64  `json:"overallConfidence"`
	Concerns          []string `json:"concerns"`
	Evidence          []string `json:"supportingEvidence"`
	RecommendedWorkup []string `json:"recommendedWorkup"`
}

// numberedLine matches "1. Something" or "2) Something" fallback items.
var numberedLine = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)

// Fallback per-entry confidence starts here and decreases with rank.
const (
	fallbackBaseConfidence = 0.5
	fallbackRankStep       = 0.05
)

// ParseOpinion turns a specialist's raw text into an opinion. It first
// looks for a JSON object (fenced or inline); if that fails it degrades
// to extracting numbered lines as diagnoses. Parsing never returns an
// error: the fallback variant is a recognized, lower-confidence state.
func ParseOpinion(raw string, profile models.SpecialistProfile, round int) models.AgentOpinion {
	opinion := models.AgentOpinion{
		AgentID:   profile.ID,
		Role:      profile.Role,
		Round:     round,
		CreatedAt: time.Now(),
	}

	if payload, ok := parseStructured(raw); ok {
		opinion.ParseMethod = models.ParseStructured
		opinion.OverallConfidence = models.Clamp01(payload.OverallConfidence)
		opinion.Concerns = payload.Concerns
		opinion.Evidence = payload.Evidence
		opinion.RecommendedWorkup = payload.RecommendedWorkup

		for _, d := range payload.DifferentialDiagnosis {
			if strings.TrimSpace(d.Diagnosis) == "" {
				continue
			}
			entry := models.DifferentialEntry{
				Rank:               d.Rank,
				Diagnosis:          strings.TrimSpace(d.Diagnosis),
				Confidence:         models.Clamp01(d.Confidence),
				Reasoning:          d.Reasoning,
				SupportingEvidence: d.SupportingEvidence,
				RefutingEvidence:   d.RefutingEvidence,
				MustNotMiss:        d.MustNotMiss,
				Urgency:            models.ParseUrgency(d.Urgency),
			}
			if code := strings.TrimSpace(d.Code); code != "" {
				entry.Code = &models.ICDCode{Code: code, Validated: false}
			}
			opinion.Differential = append(opinion.Differential, entry)
		}
		normalizeRanks(opinion.Differential)
		return opinion
	}

	return fallbackOpinion(raw, opinion)
}

// parseStructured extracts and unmarshals the first JSON object in raw.
func parseStructured(raw string) (*opinionPayload, bool) {
	candidate := extractJSON(raw)
	if candidate == "" {
		return nil, false
	}

	var payload opinionPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, false
	}
	if len(payload.DifferentialDiagnosis) == 0 {
		return nil, false
	}
	return &payload, true
}

// extractJSON returns the first balanced JSON object in content,
// tolerating markdown code fences around it.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
	} else if idx := strings.Index(content, "```"); idx >= 0 {
		inner := content[idx+len("```"):]
		if end := strings.Index(inner, "```"); end >= 0 {
			content = inner[:end]
		}
	}

	start := strings.Index(content, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

// fallbackOpinion recovers numbered list items as diagnoses with
// decreasing default confidence and flags the parse failure as a concern.
func fallbackOpinion(raw string, opinion models.AgentOpinion) models.AgentOpinion {
	opinion.ParseMethod = models.ParseFallback

	rank := 0
	for _, line := range strings.Split(raw, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(strings.Trim(m[2], "*_ "))
		if text == "" {
			continue
		}
		rank++
		confidence := fallbackBaseConfidence - fallbackRankStep*float64(rank)
		if confidence < 0.05 {
			confidence = 0.05
		}
		opinion.Differential = append(opinion.Differential, models.DifferentialEntry{
			Rank:       rank,
			Diagnosis:  text,
			Confidence: confidence,
		})
	}

	total := 0.0
	for _, entry := range opinion.Differential {
		total += entry.Confidence
	}
	if len(opinion.Differential) > 0 {
		opinion.OverallConfidence = total / float64(len(opinion.Differential))
	}
	opinion.Concerns = append(opinion.Concerns,
		"structured output could not be parsed; diagnoses extracted from numbered list")
	return opinion
}

// normalizeRanks rewrites entry ranks to be unique and contiguous from 1,
// preserving the specialist's stated order.
func normalizeRanks(entries []models.DifferentialEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		// Unranked entries sink below ranked ones.
		ri, rj := entries[i].Rank, entries[j].Rank
		if ri <= 0 {
			return false
		}
		if rj <= 0 {
			return true
		}
		return ri < rj
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
