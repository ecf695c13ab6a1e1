package glossary

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// MergeReport summarises one Merge call for logging and review.
type MergeReport struct {
	Added     int
	Merged    int
	Conflicts []Conflict
}

// Conflict describes how a clash between an incoming candidate and an
// existing entry was resolved.
type Conflict struct {
	Key    string
	Action string // kept-existing | merged | split-sense
	Detail string
}

// Merge folds extraction candidates into the knowledge base.
//
// Resolution rules:
//   - Unknown key: the candidate becomes a new draft entry (Final stays empty
//     until review).
//   - Known named entity with an approved Final: the Final is never touched;
//     unrecognized renderings are recorded as conflict candidates for audit.
//   - Known term whose new evidence context resembles the existing one:
//     candidate renderings are merged and rescored by frequency.
//   - Known non-NE term with a dissimilar evidence context: a new sense is
//     split off, keyed by the context signature.
func (kb *KnowledgeBase) Merge(candidates []TermEntry) MergeReport {
	var report MergeReport

	for i := range candidates {
		cand := candidates[i]
		key := NormalizeKey(cand.Key)
		if key == "" {
			continue
		}

		existing, ok := kb.Lookup(key)
		if !ok {
			entry := newEntryFromCandidate(cand)
			kb.insert(entry)
			report.Added++
			continue
		}

		conflict := kb.resolveConflict(existing, cand)
		report.Conflicts = append(report.Conflicts, conflict)
		if conflict.Action != "kept-existing" {
			report.Merged++
		}
	}
	return report
}

func newEntryFromCandidate(cand TermEntry) *TermEntry {
	entry := &TermEntry{
		Key:      cand.Key,
		Type:     cand.Type,
		Evidence: cand.Evidence,
		Aliases:  cand.Aliases,
	}
	for i, c := range cand.Candidates {
		score := c.Score
		if score == 0 {
			// Insertion order doubles as extraction confidence order.
			score = 1.0 - 0.1*float64(i)
			if score < 0.1 {
				score = 0.1
			}
		}
		entry.Candidates = append(entry.Candidates, Candidate{
			Rendering: c.Rendering,
			Score:     score,
			Source:    "extraction",
		})
	}
	return entry
}

func (kb *KnowledgeBase) resolveConflict(existing *TermEntry, cand TermEntry) Conflict {
	// Named entities with a human-approved rendering are frozen: record any
	// diverging rendering as a low-scored conflict candidate and move on.
	if existing.Type.NamedEntity() && existing.Final != "" {
		diverged := false
		for _, c := range cand.Candidates {
			if c.Rendering == existing.Final {
				continue
			}
			diverged = true
			if !hasRendering(existing.Candidates, c.Rendering) {
				existing.Candidates = append(existing.Candidates, Candidate{
					Rendering: c.Rendering,
					Score:     0.5,
					Source:    "conflict",
				})
			}
		}
		existing.Evidence = appendEvidence(existing.Evidence, cand.Evidence)
		if diverged {
			return Conflict{
				Key:    existing.Key,
				Action: "kept-existing",
				Detail: fmt.Sprintf("named entity keeps %q", existing.Final),
			}
		}
		return Conflict{Key: existing.Key, Action: "merged"}
	}

	existingSig := ContextSignature(strings.Join(existing.Evidence, " "))
	newSig := ContextSignature(strings.Join(cand.Evidence, " "))

	if existing.Type.NamedEntity() || SignaturesSimilar(existingSig, newSig) {
		mergeRenderings(existing, cand)
		existing.Evidence = appendEvidence(existing.Evidence, cand.Evidence)
		return Conflict{Key: existing.Key, Action: "merged"}
	}

	sense := kb.splitSense(existing, cand, newSig)
	return Conflict{
		Key:    existing.Key,
		Action: "split-sense",
		Detail: sense.ID,
	}
}

// mergeRenderings folds the candidate's renderings into the existing entry,
// boosting scores by occurrence frequency. When the entry has no approved
// Final yet, the best-scored rendering becomes the suggestion the review
// sheet shows; an approved Final is left alone.
func mergeRenderings(existing *TermEntry, cand TermEntry) {
	for _, c := range cand.Candidates {
		merged := false
		for i := range existing.Candidates {
			if existing.Candidates[i].Rendering == c.Rendering {
				existing.Candidates[i].Score = capScore(existing.Candidates[i].Score + 0.1)
				merged = true
				break
			}
		}
		if !merged {
			existing.Candidates = append(existing.Candidates, Candidate{
				Rendering: c.Rendering,
				Score:     0.6,
				Source:    "extraction",
			})
		}
	}
}

func (kb *KnowledgeBase) splitSense(existing *TermEntry, cand TermEntry, sig string) Sense {
	final := ""
	if len(cand.Candidates) > 0 {
		final = cand.Candidates[0].Rendering
	}
	evidence := ""
	if len(cand.Evidence) > 0 {
		evidence = cand.Evidence[0]
	}
	sense := Sense{
		ID:               fmt.Sprintf("%s#%d", existing.Key, len(existing.Senses)+1),
		ContextSignature: sig,
		Final:            final,
		Evidence:         evidence,
	}
	existing.Senses = append(existing.Senses, sense)
	return sense
}

func hasRendering(cands []Candidate, rendering string) bool {
	for _, c := range cands {
		if c.Rendering == rendering {
			return true
		}
	}
	return false
}

func appendEvidence(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}
	for _, e := range incoming {
		if e != "" && !seen[e] {
			existing = append(existing, e)
			seen[e] = true
		}
	}
	return existing
}

func capScore(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}

// stopwords shared by both CJK and Latin evidence spans. Keyword extraction
// only has to be stable, not linguistically clever: the signature is a
// similarity key, not a summary.
var stopwords = map[string]bool{
	"的": true, "了": true, "在": true, "是": true, "和": true, "有": true,
	"就": true, "不": true, "人": true, "都": true, "一个": true, "上": true,
	"也": true, "很": true, "到": true, "说": true, "要": true, "去": true,
	"你": true, "会": true, "着": true, "没有": true, "自己": true, "这": true,
	"the": true, "and": true, "was": true, "that": true, "with": true,
	"for": true, "his": true, "her": true, "had": true, "this": true,
}

// ContextSignature reduces an evidence span to a sorted keyword signature
// used to compare contexts across occurrences of the same key.
func ContextSignature(text string) string {
	const maxKeywords = 5
	freq := make(map[string]int)
	for _, w := range tokenizeEvidence(text) {
		if len([]rune(w)) < 2 || stopwords[w] {
			continue
		}
		freq[w]++
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	sort.Strings(words)
	return strings.Join(words, "|")
}

// tokenizeEvidence lowercases and splits on anything that is not a letter or
// digit. CJK text has no word boundaries, so runs of Han characters are cut
// into overlapping bigrams.
func tokenizeEvidence(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, f := range fields {
		runes := []rune(f)
		if len(runes) > 1 && unicode.Is(unicode.Han, runes[0]) {
			for i := 0; i+1 < len(runes); i++ {
				out = append(out, string(runes[i:i+2]))
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

// SignaturesSimilar compares two context signatures by Jaccard similarity
// over their keyword sets. Empty signatures compare as similar: with no
// evidence to separate them, occurrences are assumed to share a sense rather
// than multiplying senses the reviewer has to clean up.
func SignaturesSimilar(sig1, sig2 string) bool {
	const threshold = 0.4
	if sig1 == "" || sig2 == "" {
		return true
	}
	set1 := strings.Split(sig1, "|")
	set2 := make(map[string]bool)
	for _, w := range strings.Split(sig2, "|") {
		set2[w] = true
	}
	inter := 0
	for _, w := range set1 {
		if set2[w] {
			inter++
		}
	}
	union := len(set1) + len(set2) - inter
	if union == 0 {
		return true
	}
	return float64(inter)/float64(union) >= threshold
}
