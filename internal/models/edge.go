package models

// Relations derived from a record.
const (
	RelationPostedBy       = "posted_by"
	RelationLocatedIn      = "located_in"
	RelationEmploymentType = "employment_type"
)

// Key prefixes identifying the node an edge endpoint refers to.
const (
	JobKeyPrefix            = "job:"
	CompanyKeyPrefix        = "company:"
	LocationKeyPrefix       = "location:"
	EmploymentTypeKeyPrefix = "employment:"
)

// Edge represents a relationship between two graph nodes.
type Edge struct {
	RunID    string `json:"run_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// EdgesForRecord derives the graph edges of one record. Missing values
// ("N/A", empty, or the error marker) produce no edge; employment types fan
// out into one edge per value.
func EdgesForRecord(runID string, rec JobRecord) []Edge {
	if rec.ID == "" {
		return nil
	}
	from := JobKeyPrefix + rec.ID
	var edges []Edge
	add := func(to, relation string) {
		edges = append(edges, Edge{RunID: runID, From: from, To: to, Relation: relation})
	}
	if usable(rec.Company) {
		add(CompanyKeyPrefix+rec.Company, RelationPostedBy)
	}
	for _, loc := range SplitMultiValue(rec.Location) {
		if usable(loc) {
			add(LocationKeyPrefix+loc, RelationLocatedIn)
		}
	}
	for _, kind := range rec.EmploymentTypes() {
		if usable(kind) {
			add(EmploymentTypeKeyPrefix+kind, RelationEmploymentType)
		}
	}
	return edges
}

func usable(v string) bool {
	return v != "" && v != "N/A" && v != "EXCEPTION"
}
