package checks

import (
	"fmt"
	"reflect"
	"strings"

	"gamedata-sync/core/database"
	"gamedata-sync/feature/history/models"

	"gorm.io/gorm"
)

// SchemaReport compares the live history table with its model.
type SchemaReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	TypeMismatches []string `json:"type_mismatches"`
	Status         string   `json:"status"` // "ok", "error"
}

// CheckSchema verifies the database tables of the given models, using their GORM tags
// as the source of truth. Without models the sync history model is checked.
func CheckSchema(db *gorm.DB, modelList ...any) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if len(modelList) == 0 {
		modelList = []any{models.SyncRun{}}
	}

	report := &SchemaReport{
		Matched: true,
		Tables:  make(map[string]TableReport),
		Errors:  []string{},
	}

	for _, model := range modelList {
		typ := reflect.TypeOf(model)
		tabler, ok := reflect.New(typ).Interface().(interface{ TableName() string })
		if !ok {
			return nil, fmt.Errorf("model %s does not implement TableName", typ.Name())
		}
		table := tabler.TableName()

		actual, err := database.GetTableColumns(db, table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("failed to inspect table %s: %v", table, err))
			report.Matched = false
			continue
		}
		byName := make(map[string]database.ColumnInfo, len(actual))
		for _, col := range actual {
			byName[col.Field] = col
		}

		tbl := TableReport{
			MissingColumns: []string{},
			TypeMismatches: []string{},
			Status:         "ok",
		}
		for i := 0; i < typ.NumField(); i++ {
			tag := typ.Field(i).Tag.Get("gorm")
			name := parseGormColumn(tag)
			if name == "" {
				continue
			}

			col, exists := byName[name]
			if !exists {
				tbl.MissingColumns = append(tbl.MissingColumns, name)
				tbl.Status = "error"
				continue
			}

			// soft check: int(11) satisfies int, mediumtext satisfies text
			want := strings.ToLower(parseGormType(tag))
			if want != "" && !strings.Contains(col.Type, want) {
				tbl.TypeMismatches = append(tbl.TypeMismatches, fmt.Sprintf("%s: expected %s, got %s", name, want, col.Type))
				tbl.Status = "error"
			}
		}
		if tbl.Status != "ok" {
			report.Matched = false
		}
		report.Tables[table] = tbl
	}

	return report, nil
}

func parseGormColumn(tag string) string {
	for _, p := range strings.Split(tag, ";") {
		if strings.HasPrefix(p, "column:") {
			return strings.TrimPrefix(p, "column:")
		}
	}
	return ""
}

func parseGormType(tag string) string {
	for _, p := range strings.Split(tag, ";") {
		if strings.HasPrefix(p, "type:") {
			return strings.TrimPrefix(p, "type:")
		}
	}
	return ""
}
