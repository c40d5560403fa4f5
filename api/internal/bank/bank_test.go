package bank

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestBank(t *testing.T) *Bank {
	t.Helper()
	dir := t.TempDir()
	b, err := Open(filepath.Join(dir, "questions_db.json"), "", DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}

func testCandidate() Candidate {
	return Candidate{
		Question: "下列何者為細胞的能量工廠？",
		Options: map[string]string{
			"A": "粒線體", "B": "核糖體", "C": "高基氏體", "D": "內質網",
		},
		Source: "page_001.jpg",
	}
}

func TestAddNewThenDuplicate(t *testing.T) {
	b := newTestBank(t)

	id, status, similar, err := b.Add(testCandidate())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if status != StatusNew || id != 1 || similar != nil {
		t.Fatalf("first add: id=%d status=%s similar=%v", id, status, similar)
	}

	id2, status2, _, err := b.Add(testCandidate())
	if err != nil {
		t.Fatalf("Add duplicate: %v", err)
	}
	if status2 != StatusDuplicate || id2 != 1 {
		t.Fatalf("duplicate add: id=%d status=%s", id2, status2)
	}
	if b.Len() != 1 {
		t.Fatalf("bank size = %d after duplicate add", b.Len())
	}
}

func TestDuplicateIgnoresOptionLetterOrder(t *testing.T) {
	b := newTestBank(t)
	if _, _, _, err := b.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}

	shuffled := testCandidate()
	shuffled.Options = map[string]string{
		"A": "內質網", "B": "粒線體", "C": "核糖體", "D": "高基氏體",
	}
	_, status, _, err := b.Add(shuffled)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusDuplicate {
		t.Fatalf("status = %s, want duplicate", status)
	}
}

func TestSimilarConflictAndForceAdd(t *testing.T) {
	b := newTestBank(t)
	if _, _, _, err := b.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}

	// One rune changed in the question, identical options: scores well above
	// the 0.75 threshold but is not an exact duplicate.
	near := testCandidate()
	near.Question = "下列何者為細胞的能量中心？"
	id, status, similar, err := b.Add(near)
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusSimilar {
		t.Fatalf("status = %s, want similar", status)
	}
	if id != ProvisionalID {
		t.Fatalf("id = %d, want ProvisionalID", id)
	}
	if len(similar) != 1 || similar[0].Record.ID != 1 {
		t.Fatalf("similar = %+v", similar)
	}
	if similar[0].Score < 0.75 || similar[0].Score >= 0.999 {
		t.Fatalf("score = %f, outside similar band", similar[0].Score)
	}
	if b.Len() != 1 {
		t.Fatal("similar candidate was inserted")
	}

	forcedID, err := b.ForceAdd(near)
	if err != nil {
		t.Fatalf("ForceAdd: %v", err)
	}
	if forcedID != 2 || b.Len() != 2 {
		t.Fatalf("forced id=%d len=%d", forcedID, b.Len())
	}
}

func TestIDsNeverReused(t *testing.T) {
	b := newTestBank(t)
	c1 := testCandidate()
	c2 := testCandidate()
	c2.Question = "第二題完全不同的題目內容？"
	c2.Options = map[string]string{"A": "甲", "B": "乙", "C": "丙", "D": "丁"}

	if _, _, _, err := b.Add(c1); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := b.Add(c2); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(2); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	id, _, _, err := b.Add(testCandidate())
	if err != nil {
		t.Fatal(err)
	}
	if id != 3 {
		t.Fatalf("id after deleting all = %d, want 3", id)
	}
}

func TestGetDeleteNotFound(t *testing.T) {
	b := newTestBank(t)
	if _, err := b.Get(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if err := b.Delete(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	b := newTestBank(t)
	c := testCandidate()
	c.Question = "Which organelle is the ATP factory?"
	c.Options = map[string]string{"A": "Mitochondria", "B": "Ribosome", "C": "Golgi", "D": "ER"}
	if _, _, _, err := b.Add(c); err != nil {
		t.Fatal(err)
	}

	if got := b.Search("atp"); len(got) != 1 {
		t.Fatalf("question search: %d matches", len(got))
	}
	if got := b.Search("MITO"); len(got) != 1 {
		t.Fatalf("option search: %d matches", len(got))
	}
	if got := b.Search("chloroplast"); len(got) != 0 {
		t.Fatalf("no-match search: %d matches", len(got))
	}
}

func TestUpdateKeepsFingerprints(t *testing.T) {
	b := newTestBank(t)
	if _, _, _, err := b.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}
	before, _ := b.Get(1)

	q := "改寫後的題目內容是什麼？"
	if err := b.Update(1, RecordUpdate{Question: &q}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	after, err := b.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if after.Question != q {
		t.Fatal("question not updated")
	}
	if after.QuestionHash != before.QuestionHash || after.CombinedHash != before.CombinedHash {
		t.Fatal("fingerprints were recomputed on update")
	}
	if after.UpdatedAt.IsZero() {
		t.Fatal("updated_at not set")
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatal("created_at changed on update")
	}
}

func TestUpdateNotFound(t *testing.T) {
	b := newTestBank(t)
	q := "x"
	if err := b.Update(9, RecordUpdate{Question: &q}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update missing: %v", err)
	}
}

func TestSetAnswer(t *testing.T) {
	b := newTestBank(t)
	if _, _, _, err := b.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}
	if err := b.SetAnswer(1, "A", "粒線體進行呼吸作用產生ATP。"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	q, _ := b.Get(1)
	if q.CorrectAnswer != "A" || q.Note == "" {
		t.Fatalf("record after SetAnswer: %+v", q)
	}
}

func TestClearResetsCounter(t *testing.T) {
	b := newTestBank(t)
	if _, _, _, err := b.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}
	if err := b.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if b.Len() != 0 {
		t.Fatal("bank not empty after Clear")
	}
	id, _, _, err := b.Add(testCandidate())
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("id after Clear = %d, want 1", id)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "questions_db.json")

	b, err := Open(file, "", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := b.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(file, "", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("reopened size = %d", reopened.Len())
	}
	q, err := reopened.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if q.Question != testCandidate().Question {
		t.Fatalf("reopened question = %q", q.Question)
	}

	// The counter survives too.
	id, _, _, err := reopened.Add(Candidate{
		Question: "另一道全新的題目內容？",
		Options:  map[string]string{"A": "甲", "B": "乙", "C": "丙", "D": "丁"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("id after reopen = %d, want 2", id)
	}
}

func TestOpenCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "questions_db.json")
	if err := os.WriteFile(file, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Open(file, "", DefaultOptions())
	if err != nil {
		t.Fatalf("Open corrupt: %v", err)
	}
	if b.Len() != 0 {
		t.Fatal("corrupt file produced records")
	}
	id, _, _, err := b.Add(testCandidate())
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}
}

func TestImportData(t *testing.T) {
	srcDir := t.TempDir()
	src, err := Open(filepath.Join(srcDir, "src.json"), "", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := src.Add(testCandidate()); err != nil {
		t.Fatal(err)
	}

	dst := newTestBank(t)
	other := testCandidate()
	other.Question = "目標題庫原有的題目內容？"
	other.Options = map[string]string{"A": "甲", "B": "乙", "C": "丙", "D": "丁"}
	if _, _, _, err := dst.Add(other); err != nil {
		t.Fatal(err)
	}

	n, err := dst.Import(src.CurrentFile())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 || dst.Len() != 2 {
		t.Fatalf("imported=%d len=%d", n, dst.Len())
	}
	q, err := dst.Get(2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(q.Source, ImportedMarker) {
		t.Fatalf("imported source = %q", q.Source)
	}
	srcRec, err := src.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if !q.CreatedAt.Equal(srcRec.CreatedAt) {
		t.Fatalf("created_at rewritten on import: %v != %v", q.CreatedAt, srcRec.CreatedAt)
	}
}

func TestStats(t *testing.T) {
	b := newTestBank(t)
	c := testCandidate()
	if _, _, _, err := b.Add(c); err != nil {
		t.Fatal(err)
	}
	c2 := testCandidate()
	c2.Question = "第二題不同的題目內容？"
	c2.Source = "page_002.jpg"
	if _, _, _, err := b.Add(c2); err != nil {
		t.Fatal(err)
	}

	st := b.Stats()
	if st.Total != 2 || len(st.Sources) != 2 {
		t.Fatalf("stats = %+v", st)
	}
}
