package compliance

import "math"

// Tier weights for the contact-role checklist.
const (
	contactCriticalWeight    = 60
	contactRecommendedWeight = 30
	contactOptionalWeight    = 10
)

// Tier weights for the deal-type checklist.
const (
	dealCriticalWeight    = 50
	dealRecommendedWeight = 30
	dealAdvisedWeight     = 20
)

// TierProgress reports how much of one tier's checklist is satisfied.
type TierProgress struct {
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	Missing   []string `json:"missing,omitempty"`
}

// Score is a weighted document-compliance result.
type Score struct {
	// Score is the weighted percentage, always an integer in [0,100].
	Score           int          `json:"score"`
	Critical        TierProgress `json:"critical"`
	Recommended     TierProgress `json:"recommended"`
	Optional        TierProgress `json:"optional"`
	MissingCritical []string     `json:"missingCritical"`
}

// ContactScore computes the compliance score for a contact role given
// the document categories on file. A tier with no requirements counts
// as fully satisfied: a role with an empty checklist scores 100.
func ContactScore(role string, categories []string) Score {
	reqs, ok := contactRequirements[role]
	if !ok {
		reqs = contactRequirements["other"]
	}
	return score(reqs, categories,
		[3]int{contactCriticalWeight, contactRecommendedWeight, contactOptionalWeight},
		true)
}

// DealScore computes the compliance score for a deal type. Unlike the
// contact checklist, a tier with no requirements contributes nothing:
// an unknown deal type scores 0, never 100.
func DealScore(dealType string, categories []string) Score {
	return score(dealRequirements[dealType], categories,
		[3]int{dealCriticalWeight, dealRecommendedWeight, dealAdvisedWeight},
		false)
}

func score(reqs tierSet, categories []string, weights [3]int, emptyTierFullCredit bool) Score {
	have := make(map[string]bool, len(categories))
	for _, c := range categories {
		have[c] = true
	}

	tiers := [3][]string{reqs.critical, reqs.recommended, reqs.optional}
	var progress [3]TierProgress
	weighted := 0.0

	for i, required := range tiers {
		progress[i].Total = len(required)
		for _, doc := range required {
			if have[doc] {
				progress[i].Completed++
			} else {
				progress[i].Missing = append(progress[i].Missing, doc)
			}
		}
		if progress[i].Total == 0 {
			if emptyTierFullCredit {
				weighted += float64(weights[i])
			}
			continue
		}
		weighted += float64(weights[i]) * float64(progress[i].Completed) / float64(progress[i].Total)
	}

	result := Score{
		Score:           clampScore(int(math.Round(weighted))),
		Critical:        progress[0],
		Recommended:     progress[1],
		Optional:        progress[2],
		MissingCritical: progress[0].Missing,
	}
	if result.MissingCritical == nil {
		result.MissingCritical = []string{}
	}
	return result
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
