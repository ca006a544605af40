package store

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/hluk/resultsdb/pkg/api/query"
)

// buildResultsQuery applies the parsed predicates to a results query.
// Distinct filter keys combine with AND; the values of one key combine
// with OR. Each result_data key gets its own join alias so that
// "item=X AND type=Y" can only be satisfied by two separate data rows,
// never by one row matching half of each condition.
func buildResultsQuery(db *gorm.DB, filters *query.Filters) *gorm.DB {
	joined := false
	groupsJoined := false
	dataJoins := 0

	for _, p := range filters.Predicates {
		switch p.Field {
		case query.FieldOutcome:
			db = wherePredicate(db, "results.outcome", p)
		case query.FieldTestcase:
			db = wherePredicate(db, "results.testcase_name", p)
		case query.FieldGroup:
			// The group relation is joined once; every group predicate
			// constrains the same joined row.
			if !groupsJoined {
				db = db.Joins(
					"JOIN results_groups ON" +
						" results_groups.result_id = results.id",
				)
				groupsJoined = true
				joined = true
			}

			db = wherePredicate(db, "results_groups.group_uuid", p)
		case query.FieldData:
			alias := fmt.Sprintf("rd%d", dataJoins)
			dataJoins++

			db = db.Joins(fmt.Sprintf(
				"JOIN result_data %s ON %s.result_id = results.id"+
					" AND %s.key = ?",
				alias, alias, alias,
			), p.DataKey)
			db = wherePredicate(db, alias+".value", p)
			joined = true
		}
	}

	if filters.Since != nil {
		db = db.Where("results.submit_time >= ?", filters.Since.Start)

		if filters.Since.End != nil {
			db = db.Where("results.submit_time < ?", *filters.Since.End)
		}
	}

	// Joins against multi-valued relations can duplicate result rows.
	if joined {
		db = db.Distinct("results.*")
	}

	return db
}

// wherePredicate adds one predicate as an exact/IN match or an OR of LIKE
// patterns on the given column.
func wherePredicate(db *gorm.DB, column string, p query.Predicate) *gorm.DB {
	if p.Like {
		sql, args := likeClause(column, p.Values)

		return db.Where(sql, args...)
	}

	if len(p.Values) == 1 {
		return db.Where(column+" = ?", p.Values[0])
	}

	return db.Where(column+" IN ?", p.Values)
}

// likeClause builds "(col LIKE ? OR col LIKE ? ...)" with the public
// wildcard (*) translated to the SQL one (%).
func likeClause(column string, patterns []string) (string, []any) {
	conditions := make([]string, 0, len(patterns))
	args := make([]any, 0, len(patterns))

	for _, pattern := range patterns {
		conditions = append(conditions, column+" LIKE ?")
		args = append(args, query.TranslatePattern(pattern))
	}

	return "(" + strings.Join(conditions, " OR ") + ")", args
}
