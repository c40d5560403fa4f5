package bank

import "time"

// QuestionRecord is the persisted unit of the bank. Options always carries
// the full A-D key set; letters absent from the source hold the blank marker
// filled in by the extractor.
type QuestionRecord struct {
	ID            int               `json:"id"`
	Question      string            `json:"question"`
	QuestionHash  string            `json:"question_hash"`
	Options       map[string]string `json:"options"`
	OptionsHash   string            `json:"options_hash"`
	CombinedHash  string            `json:"combined_hash"`
	CorrectAnswer string            `json:"correct_answer"`
	Source        string            `json:"source"`
	ImagePath     string            `json:"image_path"`
	Note          string            `json:"note"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at,omitzero"`
}

func (q QuestionRecord) clone() QuestionRecord {
	opts := make(map[string]string, len(q.Options))
	for k, v := range q.Options {
		opts[k] = v
	}
	q.Options = opts
	return q
}

// Candidate is an incoming question before classification.
type Candidate struct {
	Question      string
	Options       map[string]string
	CorrectAnswer string
	Source        string
	ImagePath     string
	Note          string
}

// Status classifies a Candidate on insert.
type Status string

const (
	StatusNew       Status = "new"
	StatusDuplicate Status = "duplicate"
	StatusSimilar   Status = "similar"
)

// ProvisionalID is returned for similar candidates: nothing was inserted and
// no id was consumed; the caller must resolve the conflict first.
const ProvisionalID = -1

// SimilarMatch pairs an existing record with its similarity score.
type SimilarMatch struct {
	Record QuestionRecord `json:"record"`
	Score  float64        `json:"score"`
}

// RecordUpdate is a partial update; nil fields are untouched. Fingerprints
// are deliberately NOT recomputed on update: an edited question keeps the
// hash of the original it was extracted from (see DESIGN.md).
type RecordUpdate struct {
	Question      *string
	Options       map[string]string
	CorrectAnswer *string
	Note          *string
}

// Stats summarizes the bank.
type Stats struct {
	Total   int      `json:"total"`
	Sources []string `json:"sources"`
}

// bankFile is the on-disk layout: the whole record list plus the id counter.
type bankFile struct {
	Questions   []QuestionRecord `json:"questions"`
	NextID      int              `json:"next_id"`
	LastUpdated time.Time        `json:"last_updated"`
}
