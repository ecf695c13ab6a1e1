package review

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ostrovsky/tearloop/internal/glossary"
)

func sheetPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "review.csv")
}

func openKB(t *testing.T) *glossary.KnowledgeBase {
	t.Helper()
	kb := glossary.New()
	kb.Merge([]glossary.TermEntry{
		{
			Key:  "非凡者",
			Type: glossary.TypeDomainTerm,
			Candidates: []glossary.Candidate{
				{Rendering: "Beyonder"},
				{Rendering: "Extraordinary"},
			},
			Evidence: []string{"成为非凡者之后"},
		},
		{
			Key:        "克莱恩·莫雷蒂",
			Type:       glossary.TypePerson,
			Candidates: []glossary.Candidate{{Rendering: "Klein Moretti"}},
			Evidence:   []string{"克莱恩·莫雷蒂推开了门"},
		},
	})
	// A finalized entry that must never show up on the sheet.
	kb.ApplyReview([]glossary.ReviewedEntry{
		{Key: "塔罗会", Type: glossary.TypeOrganization, Final: "Tarot Club"},
	})
	return kb
}

func TestExport_WritesOpenEntriesOnly(t *testing.T) {
	kb := openKB(t)
	path := sheetPath(t)

	count, err := Export(kb, path)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 open entries, got %d", count)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("exported sheet is not valid CSV: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d rows", len(rows))
	}
	wantHeader := []string{"term", "type", "candidates", "evidence", "suggested_final", "senses", "final"}
	for i, name := range wantHeader {
		if rows[0][i] != name {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], name)
		}
	}

	for _, row := range rows[1:] {
		if row[0] == "塔罗会" {
			t.Error("finalized entries must not appear on the sheet")
		}
		if row[6] != "" {
			t.Errorf("final column must start empty, got %q", row[6])
		}
	}
}

func TestExport_CandidateCellSortedByScore(t *testing.T) {
	kb := openKB(t)
	path := sheetPath(t)
	if _, err := Export(kb, path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	var cell string
	for _, row := range rows[1:] {
		if row[0] == "非凡者" {
			cell = row[2]
		}
	}
	// Merge scores candidates by insertion order, so Beyonder leads.
	if cell != "Beyonder:1.00|Extraordinary:0.90" {
		t.Errorf("unexpected candidates cell: %q", cell)
	}
}

func TestImportRoundTrip(t *testing.T) {
	kb := openKB(t)
	path := sheetPath(t)
	if _, err := Export(kb, path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Reviewer fills the final column for one row and leaves the other open.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "非凡者,") {
			lines[i] = line + "Beyonder"
		}
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reviewed, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(reviewed) != 1 {
		t.Fatalf("expected 1 reviewed row, got %d", len(reviewed))
	}
	if reviewed[0].Key != "非凡者" || reviewed[0].Final != "Beyonder" {
		t.Errorf("unexpected reviewed entry: %+v", reviewed[0])
	}
	if reviewed[0].Type != glossary.TypeDomainTerm {
		t.Errorf("type column should carry through, got %q", reviewed[0].Type)
	}

	if changed := kb.ApplyReview(reviewed); changed != 1 {
		t.Errorf("expected 1 changed entry, got %d", changed)
	}
	e, ok := kb.Lookup("非凡者")
	if !ok || e.Final != "Beyonder" {
		t.Errorf("final rendering did not apply: %+v", e)
	}
}

func TestImport_SkipsEmptyFinal(t *testing.T) {
	path := sheetPath(t)
	sheet := "term,type,candidates,evidence,suggested_final,final\n" +
		"非凡者,domain-term,Beyonder:0.90,,Beyonder,\n" +
		",,,,,Orphan Final\n"
	if err := os.WriteFile(path, []byte(sheet), 0644); err != nil {
		t.Fatal(err)
	}

	reviewed, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(reviewed) != 0 {
		t.Errorf("rows without both key and final must be skipped, got %+v", reviewed)
	}
}

func TestImport_ReorderedColumns(t *testing.T) {
	path := sheetPath(t)
	sheet := "final,term,type\n" +
		"Beyonder,非凡者,domain-term\n"
	if err := os.WriteFile(path, []byte(sheet), 0644); err != nil {
		t.Fatal(err)
	}

	reviewed, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(reviewed) != 1 || reviewed[0].Key != "非凡者" || reviewed[0].Final != "Beyonder" {
		t.Errorf("columns are matched by header name, got %+v", reviewed)
	}
}

func TestImport_MalformedCandidateCell(t *testing.T) {
	path := sheetPath(t)
	// A candidates cell with no score usually means shifted columns.
	sheet := "term,type,candidates,evidence,suggested_final,final\n" +
		"非凡者,domain-term,just a rendering,,Beyonder,Beyonder\n"
	if err := os.WriteFile(path, []byte(sheet), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Import(path)
	if err == nil {
		t.Fatal("expected a malformed-cell error")
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error should name the offending row: %v", err)
	}
}

func TestSenseRoundTrip(t *testing.T) {
	kb := glossary.New()
	kb.ApplyReview([]glossary.ReviewedEntry{{
		Key:  "晋升",
		Type: glossary.TypeDomainTerm,
		Senses: []glossary.Sense{
			{ID: "晋升#1", ContextSignature: "meeting|salary|budget", Final: "promotion"},
		},
	}})
	path := sheetPath(t)
	if _, err := Export(kb, path); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got := rows[1][5]; got != "晋升#1=promotion" {
		t.Fatalf("unexpected senses cell: %q", got)
	}

	// Reviewer adds a second sense and confirms the entry final.
	rows[1][5] = "晋升#1=promotion|晋升#2=ascension"
	rows[1][6] = "advancement"
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := csv.NewWriter(out)
	if err := w.WriteAll(rows); err != nil {
		t.Fatal(err)
	}
	out.Close()

	reviewed, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(reviewed) != 1 || len(reviewed[0].Senses) != 2 {
		t.Fatalf("expected 1 row with 2 senses, got %+v", reviewed)
	}

	if changed := kb.ApplyReview(reviewed); changed == 0 {
		t.Error("applying new sense finals must count as a change")
	}
	e, _ := kb.Lookup("晋升")
	if e.Final != "advancement" {
		t.Errorf("entry final did not apply: %q", e.Final)
	}
	if len(e.Senses) != 2 || e.Senses[1].Final != "ascension" {
		t.Errorf("new sense did not apply: %+v", e.Senses)
	}
	// The stored context signature survives a round trip that omits it.
	if e.Senses[0].ContextSignature != "meeting|salary|budget" {
		t.Errorf("existing sense lost its signature: %+v", e.Senses[0])
	}
}

func TestImport_SensesWithoutEntryFinal(t *testing.T) {
	path := sheetPath(t)
	sheet := "term,senses,final\n" +
		"晋升,晋升#1=promotion,\n"
	if err := os.WriteFile(path, []byte(sheet), 0644); err != nil {
		t.Fatal(err)
	}

	reviewed, err := Import(path)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(reviewed) != 1 || reviewed[0].Final != "" || len(reviewed[0].Senses) != 1 {
		t.Fatalf("a row resolving only senses must import, got %+v", reviewed)
	}
}

func TestImport_MalformedSenseCell(t *testing.T) {
	path := sheetPath(t)
	sheet := "term,senses,final\n" +
		"晋升,no separator here,advancement\n"
	if err := os.WriteFile(path, []byte(sheet), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Import(path)
	if err == nil {
		t.Fatal("expected a malformed-cell error")
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error should name the offending row: %v", err)
	}
}

func TestImport_MissingRequiredColumn(t *testing.T) {
	path := sheetPath(t)
	if err := os.WriteFile(path, []byte("term,type\nx,person\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Import(path); err == nil {
		t.Fatal("expected an error for a sheet without a final column")
	}
}

func TestImport_MissingFile(t *testing.T) {
	if _, err := Import(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected an error for a missing sheet")
	}
}
