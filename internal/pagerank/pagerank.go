// Package pagerank computes page-level and domain-level PageRank over the
// crawled link graph by Power Iteration, normalizes scores to [0,1], and
// persists them in batches through a Store.
package pagerank

import (
	"net/url"
	"sort"
)

const (
	// DefaultIterations caps how many Power Iteration rounds run before
	// the result is accepted even without convergence.
	DefaultIterations = 20
	// DefaultDamping is the probability mass a random surfer follows an
	// outgoing link rather than jumping to a random page.
	DefaultDamping = 0.85
	// ConvergenceThreshold is the total absolute score delta below which
	// iteration stops early.
	ConvergenceThreshold = 1e-6
	// SaveBatchSize bounds how many rows one persistence call writes at
	// a time, matching the reference implementation's batching.
	SaveBatchSize = 5000
)

// Edge is one directed link, src -> dst.
type Edge struct {
	Src string
	Dst string
}

// Config controls a Power Iteration run.
type Config struct {
	Iterations int
	Damping    float64
}

// DefaultConfig returns the reference iteration count and damping factor.
func DefaultConfig() Config {
	return Config{Iterations: DefaultIterations, Damping: DefaultDamping}
}

// Result maps node to its normalized score in [0,1].
type Result map[string]float64

// ComputePageRank runs Power Iteration over the directed graph formed by
// nodes and edges, returning scores normalized so the highest-scoring
// node is exactly 1.0. Nodes with no outgoing edge redistribute their
// score mass evenly across every node each iteration (dangling mass).
func ComputePageRank(nodes []string, edges []Edge, cfg Config) Result {
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.Damping <= 0 {
		cfg.Damping = DefaultDamping
	}

	n := len(nodes)
	if n == 0 {
		return Result{}
	}

	nodeSet := make(map[string]struct{}, n)
	for _, u := range nodes {
		nodeSet[u] = struct{}{}
	}

	outLinks := make(map[string][]string, n)
	inLinks := make(map[string][]string, n)
	for _, u := range nodes {
		outLinks[u] = nil
		inLinks[u] = nil
	}
	for _, e := range edges {
		if _, ok := nodeSet[e.Src]; !ok {
			continue
		}
		if _, ok := nodeSet[e.Dst]; !ok {
			continue
		}
		outLinks[e.Src] = append(outLinks[e.Src], e.Dst)
		inLinks[e.Dst] = append(inLinks[e.Dst], e.Src)
	}

	scores := make(map[string]float64, n)
	for _, u := range nodes {
		scores[u] = 1.0 / float64(n)
	}

	var dangling []string
	for _, u := range nodes {
		if len(outLinks[u]) == 0 {
			dangling = append(dangling, u)
		}
	}

	for iter := 0; iter < cfg.Iterations; iter++ {
		danglingSum := 0.0
		for _, u := range dangling {
			danglingSum += scores[u]
		}

		newScores := make(map[string]float64, n)
		for _, u := range nodes {
			incoming := 0.0
			for _, v := range inLinks[u] {
				outDeg := len(outLinks[v])
				if outDeg > 0 {
					incoming += scores[v] / float64(outDeg)
				}
			}
			newScores[u] = (1-cfg.Damping)/float64(n) + cfg.Damping*(incoming+danglingSum/float64(n))
		}

		diff := 0.0
		for _, u := range nodes {
			d := newScores[u] - scores[u]
			if d < 0 {
				d = -d
			}
			diff += d
		}
		scores = newScores

		if diff < ConvergenceThreshold {
			break
		}
	}

	return normalize(scores)
}

// ComputeDomainPageRank aggregates edges to the hostname level, keeping
// only cross-domain links (an internal link never contributes to a
// domain's authority), and runs Power Iteration over the resulting
// domain graph.
func ComputeDomainPageRank(edges []Edge, cfg Config) Result {
	domainOut := make(map[string]map[string]struct{})
	domainIn := make(map[string]map[string]struct{})
	allDomains := make(map[string]struct{})

	for _, e := range edges {
		srcDomain := hostnameOf(e.Src)
		dstDomain := hostnameOf(e.Dst)
		if srcDomain == "" || dstDomain == "" {
			continue
		}
		if srcDomain == dstDomain {
			continue
		}
		allDomains[srcDomain] = struct{}{}
		allDomains[dstDomain] = struct{}{}
		if domainOut[srcDomain] == nil {
			domainOut[srcDomain] = make(map[string]struct{})
		}
		domainOut[srcDomain][dstDomain] = struct{}{}
		if domainIn[dstDomain] == nil {
			domainIn[dstDomain] = make(map[string]struct{})
		}
		domainIn[dstDomain][srcDomain] = struct{}{}
	}

	nodes := make([]string, 0, len(allDomains))
	for d := range allDomains {
		nodes = append(nodes, d)
	}
	sort.Strings(nodes)

	var flatEdges []Edge
	for src, dsts := range domainOut {
		for dst := range dsts {
			flatEdges = append(flatEdges, Edge{Src: src, Dst: dst})
		}
	}

	return ComputePageRank(nodes, flatEdges, cfg)
}

func normalize(scores map[string]float64) Result {
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	result := make(Result, len(scores))
	if max <= 0 {
		for u, s := range scores {
			result[u] = s
		}
		return result
	}
	for u, s := range scores {
		result[u] = s / max
	}
	return result
}

func hostnameOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// Store persists computed PageRank scores and supplies the link graph
// they are computed from.
type Store interface {
	DocumentURLs() ([]string, error)
	LinkEdges() ([]Edge, error)
	SavePageRanks(scores Result) error
	SaveDomainRanks(scores Result) error
	PageRank(url string) (float64, error)
	DomainRank(domain string) (float64, error)
}

// RunPageRank computes and persists page-level PageRank, returning the
// number of pages scored.
func RunPageRank(store Store, cfg Config) (int, error) {
	nodes, err := store.DocumentURLs()
	if err != nil {
		return 0, err
	}
	edges, err := store.LinkEdges()
	if err != nil {
		return 0, err
	}
	scores := ComputePageRank(nodes, edges, cfg)
	if err := store.SavePageRanks(scores); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// RunDomainPageRank computes and persists domain-level PageRank, returning
// the number of domains scored.
func RunDomainPageRank(store Store, cfg Config) (int, error) {
	edges, err := store.LinkEdges()
	if err != nil {
		return 0, err
	}
	scores := ComputeDomainPageRank(edges, cfg)
	if err := store.SaveDomainRanks(scores); err != nil {
		return 0, err
	}
	return len(scores), nil
}
