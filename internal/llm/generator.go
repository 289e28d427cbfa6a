package llm

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medcase-generator/internal/domain"
)

type probabilityEntry struct {
	BucketName  string  `json:"bucket_name"`
	Probability float64 `json:"probability"`
}

type structuredTier struct {
	TierLevel            int                       `json:"tier_level"`
	Buckets              []domain.DiagnosticBucket `json:"buckets"`
	APrioriProbabilities []probabilityEntry        `json:"a_priori_probabilities"`
}

type structuredFramework struct {
	Tiers []structuredTier `json:"tiers"`
}

type structuredLikelihoodRatio struct {
	FeatureName      string  `json:"feature_name"`
	FeatureCategory  string  `json:"feature_category"`
	DiagnosticBucket string  `json:"diagnostic_bucket"`
	TierLevel        int     `json:"tier_level"`
	LikelihoodRatio  float64 `json:"likelihood_ratio"`
}

type structuredLikelihoodRatios struct {
	FeatureLikelihoodRatios []structuredLikelihoodRatio `json:"feature_likelihood_ratios"`
}

// GenerateCaseDetails writes the case narrative from a brief description.
func (c *Client) GenerateCaseDetails(ctx context.Context, description, primaryDiagnosis string) (*domain.CaseDetails, error) {
	var details domain.CaseDetails
	if err := c.complete(ctx, caseDetailsPrompt(description, primaryDiagnosis), &details); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"history_questions":      len(details.HistoryQuestions),
		"physical_exam_findings": len(details.PhysicalExamFindings),
		"diagnostic_workup":      len(details.DiagnosticWorkup),
	}).Info("Generated case details")
	return &details, nil
}

// GenerateDiagnosticFramework produces the tiered framework. Probabilities arrive as a list of
// bucket entries and are folded into each tier's map; a repeated bucket keeps its last value.
func (c *Client) GenerateDiagnosticFramework(ctx context.Context, details *domain.CaseDetails, primaryDiagnosis string) (domain.DiagnosticFramework, error) {
	var out structuredFramework
	if err := c.complete(ctx, frameworkPrompt(details, primaryDiagnosis), &out); err != nil {
		return nil, err
	}
	return foldFramework(out), nil
}

func foldFramework(out structuredFramework) domain.DiagnosticFramework {
	framework := make(domain.DiagnosticFramework, 0, len(out.Tiers))
	for _, t := range out.Tiers {
		priors := make(map[string]float64, len(t.APrioriProbabilities))
		for _, p := range t.APrioriProbabilities {
			priors[p.BucketName] = p.Probability
		}
		buckets := t.Buckets
		if buckets == nil {
			buckets = []domain.DiagnosticBucket{}
		}
		framework = append(framework, domain.DiagnosticTier{
			TierLevel:            t.TierLevel,
			Buckets:              buckets,
			APrioriProbabilities: priors,
		})
	}
	return framework
}

// GenerateLikelihoodRatios asks for feature likelihood ratios against the framework's buckets.
func (c *Client) GenerateLikelihoodRatios(ctx context.Context, details *domain.CaseDetails, framework domain.DiagnosticFramework) ([]domain.FeatureLikelihoodRatio, error) {
	var out structuredLikelihoodRatios
	if err := c.complete(ctx, likelihoodRatiosPrompt(details, framework), &out); err != nil {
		return nil, err
	}

	lrs := make([]domain.FeatureLikelihoodRatio, 0, len(out.FeatureLikelihoodRatios))
	for _, r := range out.FeatureLikelihoodRatios {
		lrs = append(lrs, domain.FeatureLikelihoodRatio{
			FeatureName:      r.FeatureName,
			FeatureCategory:  domain.FeatureCategory(strings.ToLower(strings.TrimSpace(r.FeatureCategory))),
			DiagnosticBucket: r.DiagnosticBucket,
			TierLevel:        domain.IntPtr(r.TierLevel),
			LikelihoodRatio:  r.LikelihoodRatio,
		})
	}

	c.logger.WithField("likelihood_ratios", len(lrs)).Info("Generated feature likelihood ratios")
	return lrs, nil
}

var _ domain.CaseGenerator = (*Client)(nil)
