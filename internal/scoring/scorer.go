// Package scoring implements the match scorer: a pure, deterministic mapping
// from (preferences, candidate) to a percentage with human-readable reasons.
// Criteria whose preference field is unset are skipped entirely, so the
// percentage is relative to the criteria the user actually specified; two
// users with different numbers of set preferences are not comparable.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/avdelag1/swipess/internal/listing"
	"github.com/avdelag1/swipess/internal/preference"
)

// Per-criterion maximum weights.
const (
	WeightPrice     = 30
	WeightBedrooms  = 20
	WeightType      = 15
	WeightAmenities = 20
	WeightLocation  = 15
)

const (
	// NeutralPercentage is returned when no preference criterion is set.
	NeutralPercentage = 50

	// MinPercentage is the ranking cutoff: candidates scoring below it are
	// dropped from the ranked result entirely.
	MinPercentage = 10
)

// MatchResult is the derived, never-persisted outcome of scoring one candidate.
type MatchResult struct {
	Percentage   int      `json:"percentage"`
	Reasons      []string `json:"reasons,omitempty"`
	Incompatible []string `json:"incompatible,omitempty"`
}

// Score computes the weighted match between preferences and one candidate.
// It performs no I/O and is safe for concurrent use.
func Score(prefs preference.Preferences, cand listing.Listing) MatchResult {
	var score, maxScore float64
	var result MatchResult

	// Price: only scored when both bounds are set.
	if prefs.MinPrice != nil && prefs.MaxPrice != nil {
		maxScore += WeightPrice
		if cand.Price >= *prefs.MinPrice && cand.Price <= *prefs.MaxPrice {
			score += WeightPrice
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("price $%d within budget $%d-$%d", cand.Price, *prefs.MinPrice, *prefs.MaxPrice))
		} else {
			result.Incompatible = append(result.Incompatible,
				fmt.Sprintf("price $%d outside budget $%d-$%d", cand.Price, *prefs.MinPrice, *prefs.MaxPrice))
		}
	}

	if prefs.MinBedrooms != nil {
		maxScore += WeightBedrooms
		if cand.Bedrooms >= *prefs.MinBedrooms {
			score += WeightBedrooms
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("%d bedrooms meets minimum of %d", cand.Bedrooms, *prefs.MinBedrooms))
		} else {
			result.Incompatible = append(result.Incompatible,
				fmt.Sprintf("only %d bedrooms, wanted at least %d", cand.Bedrooms, *prefs.MinBedrooms))
		}
	}

	if len(prefs.PropertyTypes) > 0 {
		maxScore += WeightType
		if containsFold(prefs.PropertyTypes, cand.PropertyType) {
			score += WeightType
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("property type %q is a preferred type", cand.PropertyType))
		} else {
			result.Incompatible = append(result.Incompatible,
				fmt.Sprintf("property type %q not among preferred types", cand.PropertyType))
		}
	}

	// Amenities: proportional credit for the matched share of required ones.
	if len(prefs.RequiredAmenities) > 0 {
		maxScore += WeightAmenities
		matched, missing := amenityOverlap(prefs.RequiredAmenities, cand.Amenities)
		ratio := float64(len(matched)) / float64(len(prefs.RequiredAmenities))
		score += WeightAmenities * ratio
		if len(matched) > 0 {
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("has %d of %d required amenities (%s)",
					len(matched), len(prefs.RequiredAmenities), strings.Join(matched, ", ")))
		}
		if len(missing) > 0 {
			result.Incompatible = append(result.Incompatible,
				fmt.Sprintf("missing amenities: %s", strings.Join(missing, ", ")))
		}
	}

	// Location: substring match of any preferred location against the
	// candidate's city or neighborhood.
	if len(prefs.PreferredLocations) > 0 {
		maxScore += WeightLocation
		if loc, ok := locationMatch(prefs.PreferredLocations, cand.City, cand.Neighborhood); ok {
			score += WeightLocation
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("located in preferred area %q", loc))
		} else {
			result.Incompatible = append(result.Incompatible,
				fmt.Sprintf("%s not among preferred locations", cand.City))
		}
	}

	if maxScore == 0 {
		result.Percentage = NeutralPercentage
		return result
	}

	result.Percentage = int(math.Round(100 * score / maxScore))
	return result
}

// Ranked pairs a candidate with its match result for presentation.
type Ranked struct {
	Listing listing.Listing `json:"listing"`
	Match   MatchResult     `json:"match"`
}

// Rank scores every candidate, drops those below MinPercentage, and sorts by
// percentage descending. The sort is stable: ties keep fetch order.
func Rank(prefs preference.Preferences, candidates []listing.Listing) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, cand := range candidates {
		res := Score(prefs, cand)
		if res.Percentage < MinPercentage {
			continue
		}
		ranked = append(ranked, Ranked{Listing: cand, Match: res})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Match.Percentage > ranked[j].Match.Percentage
	})
	return ranked
}

func containsFold(set []string, value string) bool {
	for _, s := range set {
		if strings.EqualFold(s, value) {
			return true
		}
	}
	return false
}

// amenityOverlap splits required amenities into those the candidate has and
// those it lacks, preserving the order of the required list.
func amenityOverlap(required, available []string) (matched, missing []string) {
	have := make(map[string]bool, len(available))
	for _, a := range available {
		have[strings.ToLower(strings.TrimSpace(a))] = true
	}
	for _, req := range required {
		if have[strings.ToLower(strings.TrimSpace(req))] {
			matched = append(matched, req)
		} else {
			missing = append(missing, req)
		}
	}
	return matched, missing
}

func locationMatch(preferred []string, city, neighborhood string) (string, bool) {
	cityLower := strings.ToLower(city)
	hoodLower := strings.ToLower(neighborhood)
	for _, loc := range preferred {
		l := strings.ToLower(strings.TrimSpace(loc))
		if l == "" {
			continue
		}
		if strings.Contains(cityLower, l) || strings.Contains(hoodLower, l) {
			return loc, true
		}
		if cityLower != "" && strings.Contains(l, cityLower) {
			return loc, true
		}
	}
	return "", false
}
