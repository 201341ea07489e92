package graph

import (
	"fmt"
	"strings"

	"karriere-harvester/internal/models"
)

// BuildJobQuery merges the Job node of a record. Placeholder values never
// overwrite a previously stored property.
func BuildJobQuery(runID string, rec models.JobRecord) (string, map[string]any) {
	query := "MERGE (j:Job {id: $id}) " +
		"SET j.run_id = $run_id, " +
		"j.name = coalesce($name, j.name), " +
		"j.url = coalesce($url, j.url), " +
		"j.salary = coalesce($salary, j.salary), " +
		"j.experience = coalesce($experience, j.experience)"
	params := map[string]any{
		"id":         rec.ID,
		"run_id":     runID,
		"name":       optional(rec.Name),
		"url":        optional(rec.URL),
		"salary":     optional(rec.Salary),
		"experience": optional(rec.Experience),
	}
	return query, params
}

// BuildEdgeQuery merges both endpoints of an edge and the relationship
// between them.
func BuildEdgeQuery(edge models.Edge) (string, map[string]any) {
	fromLabel, fromKey, fromProp := nodeLabel(edge.From)
	toLabel, toKey, toProp := nodeLabel(edge.To)
	rel := relationType(edge.Relation)

	query := fmt.Sprintf(
		"MERGE (from:%s {%s: $fromKey}) "+
			"MERGE (to:%s {%s: $toKey}) "+
			"MERGE (from)-[r:%s]->(to) "+
			"SET r.run_id = $run_id",
		fromLabel, fromProp,
		toLabel, toProp,
		rel,
	)

	params := map[string]any{
		"fromKey": fromKey,
		"toKey":   toKey,
		"run_id":  edge.RunID,
	}
	return query, params
}

func optional(v string) any {
	if v == "" || v == "N/A" || v == "EXCEPTION" {
		return nil
	}
	return v
}

func nodeLabel(key string) (label string, value string, property string) {
	switch {
	case strings.HasPrefix(key, models.JobKeyPrefix):
		return "Job", strings.TrimPrefix(key, models.JobKeyPrefix), "id"
	case strings.HasPrefix(key, models.CompanyKeyPrefix):
		return "Company", strings.TrimPrefix(key, models.CompanyKeyPrefix), "name"
	case strings.HasPrefix(key, models.LocationKeyPrefix):
		return "Location", strings.TrimPrefix(key, models.LocationKeyPrefix), "name"
	case strings.HasPrefix(key, models.EmploymentTypeKeyPrefix):
		return "EmploymentType", strings.TrimPrefix(key, models.EmploymentTypeKeyPrefix), "name"
	default:
		return "External", key, "key"
	}
}

func relationType(input string) string {
	switch input {
	case models.RelationPostedBy:
		return "POSTED_BY"
	case models.RelationLocatedIn:
		return "LOCATED_IN"
	case models.RelationEmploymentType:
		return "HAS_EMPLOYMENT_TYPE"
	default:
		return strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(input))
	}
}
