package driver

// IndexQueries are run once at startup. Memgraph label-property indices.
var IndexQueries = []string{
	"CREATE INDEX ON :Report(id);",
	"CREATE INDEX ON :Symptom(id);",
	"CREATE INDEX ON :DiagnosisUnit(uuid);",
	"CREATE INDEX ON :Organ(name);",
	"CREATE INDEX ON :Run(id);",
	"CREATE INDEX ON :Comparison(uuid);",
}

const (
	SaveReportQuery = `
		MERGE (r:Report {id: $id})
		SET r.path = $path,
			r.total_symptoms = $total_symptoms
		RETURN r.id AS id
	`

	SaveSymptomQuery = `
		MATCH (r:Report {id: $report_id})
		MERGE (s:Symptom {id: $id})
		SET s.text = $text,
			s.report_id = $report_id,
			s.idx = $idx
		MERGE (r)-[:HAS_SYMPTOM]->(s)
		RETURN s.id AS id
	`

	SaveDiagnosisUnitQuery = `
		MATCH (s:Symptom {id: $symptom_id})
		MERGE (u:DiagnosisUnit {uuid: $uuid})
		SET u.diagnosis = $diagnosis,
			u.organ = $organ,
			u.locations = $locations
		MERGE (s)-[:HAS_UNIT]->(u)
		WITH u
		FOREACH (name IN CASE WHEN $organ = "" THEN [] ELSE [$organ] END |
			MERGE (o:Organ {name: name})
			MERGE (u)-[:AFFECTS]->(o)
		)
		RETURN u.uuid AS uuid
	`

	// FindEvidenceQuery ranks diagnosis units of other symptoms by how many
	// query terms their symptom text or diagnosis contains.
	FindEvidenceQuery = `
		MATCH (s:Symptom)-[:HAS_UNIT]->(u:DiagnosisUnit)
		WHERE s.id <> $exclude_id
		WITH s, u, size([t IN $terms WHERE toLower(s.text) CONTAINS t OR toLower(u.diagnosis) CONTAINS t]) AS hits
		WHERE hits > 0
		RETURN u.diagnosis AS diagnosis,
			u.organ AS organ,
			u.locations AS locations,
			hits
		ORDER BY hits DESC, u.uuid
		LIMIT $limit
	`

	SaveRunQuery = `
		MERGE (run:Run {id: $id})
		SET run.started_at = $started_at,
			run.duration_ms = $duration_ms,
			run.summary = $summary
		RETURN run.id AS id
	`

	SaveComparisonQuery = `
		MATCH (run:Run {id: $run_id})
		MERGE (c:Comparison {uuid: $uuid})
		SET c.api = $api,
			c.report_id = $report_id,
			c.symptom_id = $symptom_id,
			c.baseline_score = $baseline_score,
			c.augmented_score = $augmented_score,
			c.overall_delta = $overall_delta,
			c.f1_delta = $f1_delta,
			c.verdict = $verdict,
			c.organ_improved = $organ_improved,
			c.invalid_reason = $invalid_reason
		MERGE (run)-[:HAS_RESULT]->(c)
		WITH c
		OPTIONAL MATCH (s:Symptom {id: $symptom_id})
		FOREACH (x IN CASE WHEN s IS NULL THEN [] ELSE [s] END |
			MERGE (c)-[:FOR_SYMPTOM]->(x)
		)
		RETURN c.uuid AS uuid
	`
)
