// Package loader reads audit task lists from CSV benchmark files and YAML
// task files, and validates them.
package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// CSV column names. Level, Profile, Domain and Title fall back to defaults
// when their column is absent.
const (
	ColID            = "ID"
	ColLevel         = "Level"
	ColProfile       = "Profile"
	ColDomain        = "Domain"
	ColTitle         = "Title"
	ColCheckType     = "Check_Type"
	ColTarget        = "Target"
	ColParameters    = "Parameters"
	ColAlgorithm     = "Algorithm"
	ColExpectedValue = "Expected_Value"
)

// Loader reads task files and validates them against the task schema.
// Known check types and algorithms are only used by Lint: tasks naming
// unknown ones still load and are classified ERROR when run.
type Loader struct {
	validate        *validator.Validate
	knownCheckTypes map[string]struct{}
	knownAlgorithms map[string]struct{}
}

// New creates a Loader. checkTypes and algorithms may be nil.
func New(checkTypes, algorithms []string) *Loader {
	return &Loader{
		validate:        validator.New(),
		knownCheckTypes: set(checkTypes),
		knownAlgorithms: set(algorithms),
	}
}

// Load reads a task file, choosing the format by extension (.csv, .yaml,
// .yml). Tasks that fail validation or repeat an earlier ID are left out
// and reported in the returned errors; loading continues past them.
func (l *Loader) Load(path string) ([]*types.AuditTask, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read %q: %w", path, err)}
	}

	var tasks []*types.AuditTask
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		tasks, err = ParseCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		tasks, err = ParseYAML(data)
	default:
		return nil, []error{fmt.Errorf("unsupported task file %q: expected .csv, .yaml or .yml", path)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("%s: %w", path, err)}
	}

	return l.validateAll(tasks)
}

// ParseCSV reads tasks from a CSV benchmark with a header row. Parameters
// are parsed as a flow-style mapping or list; parse problems are recorded
// on the task rather than failing the file.
func ParseCSV(r io.Reader) ([]*types.AuditTask, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := columns[ColID]; !ok {
		return nil, fmt.Errorf("missing required column %q", ColID)
	}

	var tasks []*types.AuditTask
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		get := func(col, fallback string) string {
			i, ok := columns[col]
			if !ok || i >= len(record) {
				return fallback
			}
			return record[i]
		}

		tasks = append(tasks, &types.AuditTask{
			ID:            strings.TrimSpace(get(ColID, "")),
			Level:         get(ColLevel, "N/A"),
			Profiles:      splitProfiles(get(ColProfile, "All")),
			Domain:        get(ColDomain, "General"),
			Title:         get(ColTitle, "No Title"),
			CheckType:     strings.TrimSpace(get(ColCheckType, "")),
			Target:        get(ColTarget, ""),
			Parameters:    ParseParameters(get(ColParameters, ""), row),
			Algorithm:     get(ColAlgorithm, ""),
			ExpectedValue: get(ColExpectedValue, ""),
			State:         types.TaskPending,
		})
	}
	return tasks, nil
}

// ParseParameters parses a CSV Parameters cell. An empty cell yields empty
// parameters; anything other than a mapping or list yields parameters
// carrying the error for the given row.
func ParseParameters(raw string, row int) types.Parameters {
	if strings.TrimSpace(raw) == "" {
		return types.Parameters{}
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return types.ErrorParameters(fmt.Sprintf("Malformed parameters string on row %d: %v", row, err), raw)
	}
	if len(node.Content) == 0 {
		return types.Parameters{}
	}

	doc := node.Content[0]
	if doc.Kind != yaml.MappingNode && doc.Kind != yaml.SequenceNode {
		return types.ErrorParameters(fmt.Sprintf("Parameters on row %d is not a valid dictionary or list.", row), raw)
	}

	var p types.Parameters
	if err := doc.Decode(&p); err != nil {
		return types.ErrorParameters(fmt.Sprintf("Malformed parameters string on row %d: %v", row, err), raw)
	}
	if p.Err != "" {
		p = types.ErrorParameters(fmt.Sprintf("Malformed parameters string on row %d: %s", row, p.Err), raw)
	}
	return p
}

// taskFile is the YAML task file layout. A bare list of tasks is also accepted.
type taskFile struct {
	Tasks []*types.AuditTask `yaml:"tasks"`
}

// ParseYAML reads tasks from a YAML document.
func ParseYAML(data []byte) ([]*types.AuditTask, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var tasks []*types.AuditTask
	switch doc := node.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&tasks); err != nil {
			return nil, fmt.Errorf("failed to decode tasks: %w", err)
		}
	case yaml.MappingNode:
		var f taskFile
		if err := doc.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode tasks: %w", err)
		}
		tasks = f.Tasks
	default:
		return nil, errors.New("YAML task file must be a list of tasks or a mapping with a tasks key")
	}

	for _, t := range tasks {
		if t == nil {
			return nil, errors.New("YAML task file contains an empty task")
		}
		t.State = types.TaskPending
	}
	return tasks, nil
}

// Lint reports tasks that will load but cannot pass: unknown check types
// or algorithms. Compound checks carry algorithms per step and are not
// checked for an algorithm.
func (l *Loader) Lint(tasks []*types.AuditTask) []string {
	var warnings []string
	for i, t := range tasks {
		if strings.TrimSpace(t.ID) == "" {
			warnings = append(warnings, fmt.Sprintf("task %d (%q): no ID defined, it cannot be selected with --id", i+1, t.Title))
		}
		if t.CheckType == "" {
			warnings = append(warnings, fmt.Sprintf("%s: no check_type defined", t.ID))
		} else if l.knownCheckTypes != nil {
			if _, ok := l.knownCheckTypes[t.CheckType]; !ok {
				warnings = append(warnings, fmt.Sprintf("%s: unknown check_type %q (known: %s)", t.ID, t.CheckType, list(l.knownCheckTypes)))
			}
		}
		if t.CheckType == "command_tree" || l.knownAlgorithms == nil {
			continue
		}
		if _, ok := l.knownAlgorithms[t.Algorithm]; !ok {
			warnings = append(warnings, fmt.Sprintf("%s: unknown algorithm %q (known: %s)", t.ID, t.Algorithm, list(l.knownAlgorithms)))
		}
	}
	return warnings
}

func (l *Loader) validateAll(tasks []*types.AuditTask) ([]*types.AuditTask, []error) {
	var valid []*types.AuditTask
	var errs []error
	seen := make(map[string]int)

	for i, t := range tasks {
		if err := l.validate.Struct(t); err != nil {
			errs = append(errs, fmt.Errorf("task %d (%q): %w", i+1, t.ID, formatValidationErrors(err)))
			continue
		}
		if t.ID == "" {
			valid = append(valid, t)
			continue
		}
		if prev, exists := seen[t.ID]; exists {
			errs = append(errs, fmt.Errorf("duplicate task ID %q: first defined at task %d, duplicated at task %d", t.ID, prev, i+1))
			continue
		}
		seen[t.ID] = i + 1
		valid = append(valid, t)
	}
	return valid, errs
}

// formatValidationErrors converts validator errors into user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, formatFieldError(fe))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func splitProfiles(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func set(names []string) map[string]struct{} {
	if names == nil {
		return nil
	}
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func list(m map[string]struct{}) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
