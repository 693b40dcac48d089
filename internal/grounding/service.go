package grounding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/grandrounds/grandrounds/internal/cache"
	"github.com/grandrounds/grandrounds/internal/directory"
	"github.com/grandrounds/grandrounds/internal/models"
)

// ServiceConfig holds the validation thresholds and lookup sizing.
type ServiceConfig struct {
	// ValidationThreshold is the minimum combined similarity for the best
	// match to count as a valid grounding.
	ValidationThreshold float64 `json:"validation_threshold" yaml:"validation_threshold"`
	// AlternativeThreshold is the minimum score for a non-best match to
	// be retained as an alternative.
	AlternativeThreshold float64 `json:"alternative_threshold" yaml:"alternative_threshold"`
	// MaxMatches bounds how many directory matches are scored per query.
	MaxMatches int `json:"max_matches" yaml:"max_matches"`
	// BatchConcurrency bounds concurrent validations in GroundDifferential.
	BatchConcurrency int `json:"batch_concurrency" yaml:"batch_concurrency"`
}

// DefaultServiceConfig returns the production thresholds.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ValidationThreshold:  0.3,
		AlternativeThreshold: 0.2,
		MaxMatches:           5,
		BatchConcurrency:     4,
	}
}

// SearchResult is a cached-or-fresh directory answer for one query.
type SearchResult struct {
	Query   string            `json:"query"`
	Matches []directory.Match `json:"matches"`
	Cached  bool              `json:"cached"`
}

// Validation is the outcome of grounding one free-text diagnosis.
type Validation struct {
	Query        string           `json:"query"`
	IsValid      bool             `json:"is_valid"`
	Match        *models.ICDCode  `json:"match,omitempty"`
	Confidence   float64          `json:"confidence"`
	Alternatives []models.ICDCode `json:"alternatives,omitempty"`
}

// GroundedDiagnosis pairs an input diagnosis with its validated code.
type GroundedDiagnosis struct {
	Query string         `json:"query"`
	Code  models.ICDCode `json:"code"`
}

// Service grounds diagnosis names against the code directory through the
// two-tier cache.
type Service struct {
	config    ServiceConfig
	cache     *cache.TieredCache
	directory *directory.Client
	log       *logrus.Logger
}

// NewService builds the grounding service. The cache is required (it may
// run without a redis tier); the directory client is required.
func NewService(config ServiceConfig, tiered *cache.TieredCache, dir *directory.Client, log *logrus.Logger) *Service {
	def := DefaultServiceConfig()
	if config.ValidationThreshold <= 0 {
		config.ValidationThreshold = def.ValidationThreshold
	}
	if config.AlternativeThreshold <= 0 {
		config.AlternativeThreshold = def.AlternativeThreshold
	}
	if config.MaxMatches <= 0 {
		config.MaxMatches = def.MaxMatches
	}
	if config.BatchConcurrency <= 0 {
		config.BatchConcurrency = def.BatchConcurrency
	}
	if log == nil {
		log = logrus.New()
	}
	return &Service{config: config, cache: tiered, directory: dir, log: log}
}

// cacheKey hashes the normalized query. The hash only needs to be stable
// across calls; it carries no security meaning.
func cacheKey(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return "icd10:search:" + hex.EncodeToString(sum[:16])
}

// Search looks a term up in the cache and falls through to the directory
// on a miss. Directory failure after the retry budget degrades to an
// empty, uncached result rather than an error.
func (s *Service) Search(ctx context.Context, term string) (SearchResult, error) {
	normalized := NormalizeQuery(term)
	if normalized == "" {
		return SearchResult{Query: normalized}, nil
	}

	key := cacheKey(normalized)
	var cached []directory.Match
	if found, err := s.cache.Get(ctx, key, &cached); err == nil && found {
		return SearchResult{Query: normalized, Matches: cached, Cached: true}, nil
	}

	matches, err := s.directory.Search(ctx, normalized, s.config.MaxMatches)
	if err != nil {
		s.log.WithError(err).WithField("query", normalized).
			Warn("code directory unavailable, returning empty grounding result")
		return SearchResult{Query: normalized}, nil
	}

	if err := s.cache.Set(ctx, key, matches); err != nil {
		s.log.WithError(err).Debug("failed to cache directory result")
	}
	return SearchResult{Query: normalized, Matches: matches}, nil
}

// ValidateDiagnosis scores the directory matches for text against the
// query and accepts the best one above the validation threshold.
func (s *Service) ValidateDiagnosis(ctx context.Context, text string) (Validation, error) {
	result, err := s.Search(ctx, text)
	if err != nil {
		return Validation{Query: text}, err
	}

	validation := Validation{Query: text}
	var scored []models.ICDCode
	for _, match := range result.Matches {
		score := CombinedSimilarity(text, match.Name)
		scored = append(scored, models.ICDCode{
			Code:       match.Code,
			Name:       match.Name,
			Confidence: score,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	for i, code := range scored {
		if i == 0 && code.Confidence > s.config.ValidationThreshold {
			best := code
			best.Validated = true
			validation.IsValid = true
			validation.Match = &best
			validation.Confidence = best.Confidence
			continue
		}
		if code.Confidence > s.config.AlternativeThreshold {
			validation.Alternatives = append(validation.Alternatives, code)
		}
	}
	return validation, nil
}

// GroundDifferential validates diagnoses concurrently, discards those
// that fail validation, and returns survivors sorted by grounding
// confidence.
func (s *Service) GroundDifferential(ctx context.Context, diagnoses []string) ([]GroundedDiagnosis, error) {
	grounded := make([]GroundedDiagnosis, 0, len(diagnoses))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.BatchConcurrency)

	for _, diagnosis := range diagnoses {
		diagnosis := diagnosis
		g.Go(func() error {
			validation, err := s.ValidateDiagnosis(gctx, diagnosis)
			if err != nil {
				s.log.WithError(err).WithField("diagnosis", diagnosis).
					Warn("diagnosis validation failed")
				return nil
			}
			if !validation.IsValid || validation.Match == nil {
				return nil
			}
			mu.Lock()
			grounded = append(grounded, GroundedDiagnosis{Query: diagnosis, Code: *validation.Match})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(grounded, func(i, j int) bool {
		return grounded[i].Code.Confidence > grounded[j].Code.Confidence
	})

	s.log.WithFields(logrus.Fields{
		"requested": len(diagnoses),
		"grounded":  len(grounded),
		"filtered":  len(diagnoses) - len(grounded),
	}).Info("differential grounding complete")
	return grounded, nil
}
