// Package scoring implements the crawler's URL prioritization function: a
// pure, side-effect-free calculation of how urgently a newly discovered
// link should be crawled, blending the parent page's own score, how often
// the destination domain has already been visited, the link's path depth,
// and a handful of path-keyword heuristics.
package scoring

import (
	"math"
	"net/url"
	"strings"
)

const (
	parentInheritance = 0.9
	depthDecay        = 0.9
	boostedFactor     = 1.2
	penalizedFactor   = 0.5
)

var boostedKeywords = []string{"list", "index", "category"}
var penalizedKeywords = []string{"login", "signup", "archive", "tag"}

// URLScore computes the priority score for a link found on a page scored
// parentScore, whose destination domain has been visited domainVisits
// times before. Higher scores are crawled sooner.
//
// score = (parentScore * 0.9) * domainFactor * depthFactor * pathFactor
//
// domainFactor = 1 / (1 + log10(domainVisits + 1))
// depthFactor  = 0.9 ^ max(0, slashCount(path) - 1)
// pathFactor   = 1.2 for list/index/category paths, 0.5 for
//                login/signup/archive/tag paths, 1.0 otherwise.
func URLScore(linkURL string, parentScore float64, domainVisits int) float64 {
	base := parentScore * parentInheritance

	domainFactor := 1.0 / (1.0 + math.Log10(float64(domainVisits)+1))

	path := pathOf(linkURL)
	depth := strings.Count(path, "/") - 1
	if depth < 0 {
		depth = 0
	}
	depthFactor := math.Pow(depthDecay, float64(depth))

	pathFactor := pathFactorOf(path)

	return base * domainFactor * depthFactor * pathFactor
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}

func pathFactorOf(path string) float64 {
	lower := strings.ToLower(path)

	factor := 1.0
	for _, kw := range boostedKeywords {
		if strings.Contains(lower, kw) {
			factor = boostedFactor
			break
		}
	}

	for _, kw := range penalizedKeywords {
		if strings.Contains(lower, kw) {
			factor = penalizedFactor
			break
		}
	}

	return factor
}
