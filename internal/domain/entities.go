package domain

// Chunk is a contiguous slice of a document's extracted text.
// Offset and Length count characters (runes), not bytes.
type Chunk struct {
	Index  int
	Offset int
	Length int
	Text   string
}

// End returns the exclusive character offset at which the chunk stops.
func (c Chunk) End() int {
	return c.Offset + c.Length
}

// VectorRecord is the unit stored and searched. Records are never mutated
// after they are appended to a store.
type VectorRecord struct {
	ID           string    `json:"id"`
	DocumentName string    `json:"document_name"`
	ChunkText    string    `json:"chunk_text"`
	Vector       []float32 `json:"vector"`
}

// RankedResult is a record annotated with its similarity to one query.
type RankedResult struct {
	Record     VectorRecord
	Similarity float64
}

// Source is the citation form of a ranked result.
type Source struct {
	ID           string  `json:"id,omitempty"`
	DocumentName string  `json:"document_name"`
	ChunkText    string  `json:"chunk_text"`
	Similarity   float64 `json:"similarity"`
}

// Answer is a grounded answer together with the records it was built from,
// most relevant first.
type Answer struct {
	Query   string         `json:"query"`
	Text    string         `json:"answer"`
	Sources []RankedResult `json:"-"`
}

// Citations converts the ranked sources to their wire form.
func (a *Answer) Citations() []Source {
	out := make([]Source, 0, len(a.Sources))
	for _, r := range a.Sources {
		out = append(out, r.Source())
	}
	return out
}

// Source converts the result to its citation form.
func (r RankedResult) Source() Source {
	return Source{
		ID:           r.Record.ID,
		DocumentName: r.Record.DocumentName,
		ChunkText:    r.Record.ChunkText,
		Similarity:   r.Similarity,
	}
}

// Analysis is the structured review of a legal document. Fields the
// generator did not return are left empty.
type Analysis struct {
	Summary        string `json:"summary"`
	KeyClauses     string `json:"keyClauses"`
	PotentialRisks string `json:"potentialRisks"`
}
