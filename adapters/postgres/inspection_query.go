package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"qcgallery/domain/inspection"
)

// sqlCondition is a WHERE clause fragment with positional `?` parameters.
// Callers rebind placeholders for the target driver.
type sqlCondition struct {
	Clause string
	Params []any
}

func (c *sqlCondition) and(clause string, params ...any) {
	if c.Clause == "" {
		c.Clause = clause
	} else {
		c.Clause += " AND " + clause
	}
	c.Params = append(c.Params, params...)
}

func (c sqlCondition) where() string {
	if c.Clause == "" {
		return "1=1"
	}
	return c.Clause
}

// buildInspectionWhere turns criteria into ANDed predicates. Unset fields
// contribute nothing. search_text is a substring match on inspection_id.
func buildInspectionWhere(c inspection.Criteria) sqlCondition {
	var cond sqlCondition
	f := c.FilterSpec

	if c.Scoped {
		if len(c.FactoryScope) == 0 {
			cond.and("1=0")
		} else {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.FactoryScope)), ", ")
			params := make([]any, len(c.FactoryScope))
			for i, id := range c.FactoryScope {
				params[i] = id
			}
			cond.and("factory_id IN ("+placeholders+")", params...)
		}
	}
	if f.FactoryID != nil {
		cond.and("factory_id = ?", *f.FactoryID)
	}
	if f.CameraID != nil {
		cond.and("camera_id = ?", *f.CameraID)
	}
	if f.Prediction != nil {
		cond.and("prediction = ?", string(*f.Prediction))
	}
	if f.DefectType != nil {
		cond.and("defect_type = ?", *f.DefectType)
	}
	if f.SearchText != nil {
		cond.and(`inspection_id LIKE ? ESCAPE '\'`, "%"+escapeLike(*f.SearchText)+"%")
	}
	if f.DateFrom != nil {
		cond.and(`"date" >= ?`, f.DateFrom.String())
	}
	if f.DateTo != nil {
		cond.and(`"date" <= ?`, f.DateTo.String())
	}
	return cond
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

const inspectionColumns = `inspection_id, factory_id, camera_id, "timestamp", image_path, prediction,
	confidence_score, defect_type, inference_time_ms, model_version, "date"`

// inspectionOrder is total: inspection_id breaks timestamp ties so paging is stable.
const inspectionOrder = `"timestamp" DESC, inspection_id DESC`

func pageQuery(table string, cond sqlCondition, limit, offset int) (string, []any) {
	query := fmt.Sprintf(`SELECT %s
	FROM %s
	WHERE %s
	ORDER BY %s
	LIMIT ? OFFSET ?`, inspectionColumns, table, cond.where(), inspectionOrder)
	params := append(append([]any{}, cond.Params...), limit, offset)
	return query, params
}

func statsQuery(table string, cond sqlCondition) (string, []any) {
	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN prediction = 'OK' THEN 1 ELSE 0 END), 0) AS ok_count,
		COALESCE(SUM(CASE WHEN prediction = 'KO' THEN 1 ELSE 0 END), 0) AS ko_count
	FROM %s
	WHERE %s`, table, cond.where())
	return query, cond.Params
}

func grandTotalQuery(table string) string {
	return fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
}

func defectTypesQuery(table string) string {
	return fmt.Sprintf(`SELECT DISTINCT defect_type
	FROM %s
	WHERE defect_type IS NOT NULL
	ORDER BY defect_type`, table)
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// validTable guards the one identifier that is interpolated into SQL.
func validTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}
