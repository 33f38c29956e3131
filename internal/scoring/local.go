package scoring

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/AtharvaWandhare/synapse/internal/model"
)

const (
	maxFeatures   = 500
	maxSkillBoost = 15
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// LocalScorer compares a profile and a job with TF-IDF weighted cosine
// similarity over unigrams and bigrams, then adds up to 15 points for
// skills named verbatim in the job text. It needs no network access.
type LocalScorer struct{}

func NewLocalScorer() *LocalScorer { return &LocalScorer{} }

func (s *LocalScorer) Score(ctx context.Context, profile model.SeekerProfile, job model.JobPosting) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	resume := resumeText(profile)
	jt := jobText(job)
	if resume == "" || jt == "" {
		return 0, nil
	}

	docs := [][]string{terms(resume), terms(jt)}
	vocab := vocabulary(docs, maxFeatures)
	if len(vocab) == 0 {
		return keywordOverlap(profile.Skills, jt), nil
	}

	vecs := tfidf(docs, vocab)
	base := int(cosine(vecs[0], vecs[1]) * 100)
	return Clamp(base + skillBoost(profile.Skills, jt)), nil
}

// terms returns the lower-cased unigrams and bigrams of text with English
// stop words removed before the bigrams are formed.
func terms(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, t := range raw {
		if _, stop := stopWords[t]; !stop {
			tokens = append(tokens, t)
		}
	}
	out := make([]string, 0, 2*len(tokens))
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

// vocabulary keeps the limit most frequent terms across docs, ties broken
// alphabetically.
func vocabulary(docs [][]string, limit int) map[string]int {
	counts := map[string]int{}
	for _, d := range docs {
		for _, t := range d {
			counts[t]++
		}
	}
	all := make([]string, 0, len(counts))
	for t := range counts {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if counts[all[i]] != counts[all[j]] {
			return counts[all[i]] > counts[all[j]]
		}
		return all[i] < all[j]
	})
	if len(all) > limit {
		all = all[:limit]
	}
	vocab := make(map[string]int, len(all))
	for i, t := range all {
		vocab[t] = i
	}
	return vocab
}

// tfidf returns one L2-normalised vector per doc using smoothed idf,
// ln((1+n)/(1+df)) + 1.
func tfidf(docs [][]string, vocab map[string]int) [][]float64 {
	n := float64(len(docs))
	df := make([]float64, len(vocab))
	tf := make([][]float64, len(docs))
	for i, d := range docs {
		tf[i] = make([]float64, len(vocab))
		seen := map[int]bool{}
		for _, t := range d {
			idx, ok := vocab[t]
			if !ok {
				continue
			}
			tf[i][idx]++
			if !seen[idx] {
				seen[idx] = true
				df[idx]++
			}
		}
	}
	for i := range tf {
		var norm float64
		for j := range tf[i] {
			tf[i][j] *= math.Log((1+n)/(1+df[j])) + 1
			norm += tf[i][j] * tf[i][j]
		}
		if norm = math.Sqrt(norm); norm > 0 {
			for j := range tf[i] {
				tf[i][j] /= norm
			}
		}
	}
	return tf
}

func cosine(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return math.Max(0, math.Min(1, dot))
}

func normalizedSkills(skills []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// skillBoost awards up to 15 points for the share of skills that appear as
// substrings of the job text.
func skillBoost(skills []string, jobText string) int {
	norm := normalizedSkills(skills)
	if len(norm) == 0 {
		return 0
	}
	lower := strings.ToLower(jobText)
	hits := 0
	for _, s := range norm {
		if strings.Contains(lower, s) {
			hits++
		}
	}
	return int(float64(hits) / float64(len(norm)) * maxSkillBoost)
}

// keywordOverlap is the fallback when no term survives stop-word removal:
// the percentage of skills that are whole words of the job text.
func keywordOverlap(skills []string, jobText string) int {
	norm := normalizedSkills(skills)
	words := map[string]struct{}{}
	for _, w := range tokenPattern.FindAllString(strings.ToLower(jobText), -1) {
		words[w] = struct{}{}
	}
	if len(norm) == 0 || len(words) == 0 {
		return 0
	}
	hits := 0
	for _, s := range norm {
		if _, ok := words[s]; ok {
			hits++
		}
	}
	return Clamp(int(float64(hits) / float64(len(norm)) * 100))
}

var stopWords = func() map[string]struct{} {
	words := strings.Fields(`
		a about above across after afterwards again against all almost alone along
		already also although always am among amongst an and another any anyhow
		anyone anything anyway anywhere are around as at be became because become
		becomes becoming been before beforehand behind being below beside besides
		between beyond both but by can cannot could did do does doing done down
		during each either else elsewhere enough etc even ever every everyone
		everything everywhere except few for former formerly from further had has
		have having he hence her here hereafter hereby herein hers herself him
		himself his how however i if in indeed into is it its itself just keep
		last latter latterly least less made many may me meanwhile might mine more
		moreover most mostly much must my myself namely neither never nevertheless
		next no nobody none noone nor not nothing now nowhere of off often on once
		one only onto or other others otherwise our ours ourselves out over own per
		perhaps please rather re same seem seemed seeming seems several she should
		since so some somehow someone something sometime sometimes somewhere still
		such than that the their them themselves then thence there thereafter
		thereby therefore therein thereupon these they this those though through
		throughout thru thus to together too toward towards under until up upon us
		very via was we well were what whatever when whence whenever where
		whereafter whereas whereby wherein whereupon wherever whether which while
		whither who whoever whole whom whose why will with within without would
		yet you your yours yourself yourselves`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
