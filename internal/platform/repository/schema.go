package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"mosaic_backend/internal/platform/apperr"
)

// fields resolves client-facing field names (db column, Go field or json
// name) to columns, and coerces query-string values to column types.
type fields struct {
	schema  *schema.Schema
	byName  map[string]*schema.Field
	primary string
}

func parseFields(db *gorm.DB, model any) (*fields, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, fmt.Errorf("parse model schema: %w", err)
	}
	s := stmt.Schema

	f := &fields{schema: s, byName: make(map[string]*schema.Field)}
	for _, field := range s.Fields {
		if field.DBName == "" {
			continue
		}
		f.byName[field.DBName] = field
		f.byName[field.Name] = field
		if tag := strings.Split(field.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
			f.byName[tag] = field
		}
	}
	if s.PrioritizedPrimaryField != nil {
		f.primary = s.PrioritizedPrimaryField.DBName
	}
	return f, nil
}

func (f *fields) lookup(name string) (*schema.Field, error) {
	field, ok := f.byName[name]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown field %q", name))
	}
	return field, nil
}

func (f *fields) column(name string) (string, error) {
	field, err := f.lookup(name)
	if err != nil {
		return "", err
	}
	return field.DBName, nil
}

func (f *fields) has(column string) bool {
	_, ok := f.byName[column]
	return ok
}

// coerce converts a raw query-string value to the Go type of field.
func coerce(field *schema.Field, raw string) (any, error) {
	invalid := func() error {
		return apperr.Validation(fmt.Sprintf("invalid value %q for field %q", raw, field.Name))
	}

	switch field.DataType {
	case schema.Int:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalid()
		}
		return n, nil
	case schema.Uint:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, invalid()
		}
		return n, nil
	case schema.Float:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, invalid()
		}
		return n, nil
	case schema.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, invalid()
		}
		return b, nil
	case schema.Time:
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, invalid()
		}
		return t, nil
	default:
		return raw, nil
	}
}
