package registry

import (
	"net/url"
	"sort"
	"strings"
)

// Search ranking, higher first.
const (
	scoreExactName      = 1000
	scoreSourceMatch    = 800
	scoreNamePrefix     = 300
	scoreTitleMatch     = 250
	scoreAllTermsInName = 200
	scoreAllTermsInDesc = 100
	scorePartialName    = 50
	scorePartialDesc    = 25
	scoreFuzzy          = 10
)

// Source names where a descriptor comes from: "appmixer" for static tools,
// the webhook host for gateway tools.
func (d Descriptor) Source() string {
	if d.Kind != KindGateway {
		return "appmixer"
	}
	u, err := url.Parse(d.Webhook)
	if err != nil || u.Host == "" {
		return d.Webhook
	}
	return u.Host
}

// normalize lowercases s and drops separators, so "send_message",
// "send-message" and "send message" compare equal.
func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Fields(s)
}

func containsAllTerms(text string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func countMatchingTerms(text string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			n++
		}
	}
	return n
}

type scoredDescriptor struct {
	desc  Descriptor
	score int
}

// Search ranks descs against query and drops those that do not match. An
// empty query returns descs unchanged.
func Search(descs []Descriptor, query string) []Descriptor {
	query = strings.TrimSpace(query)
	if query == "" {
		return cloneDescriptors(descs)
	}

	q := searchQuery{
		lower: strings.ToLower(query),
		norm:  normalize(query),
		terms: tokenize(query),
	}

	var scored []scoredDescriptor
	for _, d := range descs {
		if s := q.score(d); s > 0 {
			scored = append(scored, scoredDescriptor{desc: d, score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	out := make([]Descriptor, len(scored))
	for i, s := range scored {
		out[i] = s.desc
	}
	return out
}

type searchQuery struct {
	lower string
	norm  string
	terms []string
}

func (q searchQuery) score(d Descriptor) int {
	name := strings.ToLower(d.Name)
	nameNorm := normalize(d.Name)
	title := strings.ToLower(d.Title)
	desc := strings.ToLower(d.Description)
	source := strings.ToLower(d.Source())

	score := 0
	if name == q.lower || nameNorm == q.norm {
		score += scoreExactName
	}
	if source == q.lower {
		score += scoreSourceMatch
	}
	if strings.HasPrefix(name, q.lower) || strings.HasPrefix(nameNorm, q.norm) {
		score += scoreNamePrefix
	}
	if title != "" && (title == q.lower || normalize(title) == q.norm) {
		score += scoreTitleMatch
	}

	if len(q.terms) > 0 {
		if containsAllTerms(name, q.terms) {
			score += scoreAllTermsInName
		}
		if containsAllTerms(desc, q.terms) {
			score += scoreAllTermsInDesc
		}
		score += countMatchingTerms(name, q.terms) * scorePartialName
		score += countMatchingTerms(desc, q.terms) * scorePartialDesc
	}

	if score == 0 && (strings.Contains(nameNorm, q.norm) || strings.Contains(normalize(desc), q.norm)) {
		score += scoreFuzzy
	}
	return score
}
