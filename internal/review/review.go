// Package review bridges the knowledge base and a human reviewer through a
// CSV candidate sheet. Export produces one row per term with its scored
// candidate renderings and senses; import reads the reviewer's final and
// senses columns back.
package review

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ostrovsky/tearloop/internal/glossary"
)

var header = []string{"term", "type", "candidates", "evidence", "suggested_final", "senses", "final"}

// Export writes the candidate sheet for every entry without a confirmed
// final rendering. Entries already finalized are skipped so repeated review
// rounds only show open work.
func Export(kb *glossary.KnowledgeBase, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create review sheet: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	count := 0
	for _, entry := range kb.Entries() {
		if entry.Final != "" {
			continue
		}
		row := []string{
			entry.Key,
			string(entry.Type),
			formatCandidates(entry.Candidates),
			strings.Join(entry.Evidence, " / "),
			entry.SuggestedFinal(),
			formatSenses(entry.Senses),
			"", // reviewer fills this in
		}
		if err := w.Write(row); err != nil {
			return count, fmt.Errorf("failed to write row for %q: %w", entry.Key, err)
		}
		count++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return count, fmt.Errorf("failed to flush review sheet: %w", err)
	}
	return count, nil
}

// Import reads a reviewed sheet back. Rows with neither a final nor a senses
// column filled are ignored; a row whose final matches the suggested column
// verbatim counts as an explicit confirmation.
func Import(path string) ([]glossary.ReviewedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open review sheet: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse review sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	for _, name := range []string{"term", "final"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("review sheet missing %q column", name)
		}
	}

	var out []glossary.ReviewedEntry
	for i, row := range rows[1:] {
		key := glossary.NormalizeKey(field(row, cols, "term"))
		final := strings.TrimSpace(field(row, cols, "final"))
		senses, err := parseSenseCell(field(row, cols, "senses"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if key == "" || (final == "" && len(senses) == 0) {
			continue
		}
		entry := glossary.ReviewedEntry{
			Key:    key,
			Final:  final,
			Senses: senses,
		}
		if label := field(row, cols, "type"); label != "" {
			entry.Type = glossary.ParseTermType(label)
		}
		if _, err := parseCandidateCell(field(row, cols, "candidates")); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

// formatCandidates renders candidates as "rendering:score|rendering:score",
// highest score first.
func formatCandidates(candidates []glossary.Candidate) string {
	sorted := make([]glossary.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	parts := make([]string, 0, len(sorted))
	for _, c := range sorted {
		parts = append(parts, fmt.Sprintf("%s:%.2f", c.Rendering, c.Score))
	}
	return strings.Join(parts, "|")
}

// parseCandidateCell validates the candidates cell shape. The renderings are
// informational on import, but a malformed cell usually means the reviewer
// shifted columns, which must not silently pass.
func parseCandidateCell(cell string) ([]glossary.Candidate, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	var out []glossary.Candidate
	for _, part := range strings.Split(cell, "|") {
		idx := strings.LastIndex(part, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("malformed candidate cell %q", cell)
		}
		score, err := strconv.ParseFloat(part[idx+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed candidate score in %q", part)
		}
		out = append(out, glossary.Candidate{Rendering: part[:idx], Score: score})
	}
	return out, nil
}

// formatSenses renders senses as "id=final|id=final". Context signatures and
// evidence stay in the knowledge base; the sheet only carries what the
// reviewer is expected to edit.
func formatSenses(senses []glossary.Sense) string {
	parts := make([]string, 0, len(senses))
	for _, s := range senses {
		parts = append(parts, fmt.Sprintf("%s=%s", s.ID, s.Final))
	}
	return strings.Join(parts, "|")
}

// parseSenseCell reads the senses cell back. Pairs with an empty final are
// kept out of the result, so an untouched exported cell round-trips to the
// same sense finals.
func parseSenseCell(cell string) ([]glossary.Sense, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	var out []glossary.Sense
	for _, part := range strings.Split(cell, "|") {
		idx := strings.Index(part, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("malformed senses cell %q", cell)
		}
		id := strings.TrimSpace(part[:idx])
		final := strings.TrimSpace(part[idx+1:])
		if final == "" {
			continue
		}
		out = append(out, glossary.Sense{ID: id, Final: final})
	}
	return out, nil
}

func columnIndex(headerRow []string) map[string]int {
	cols := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
