package domain

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Имена полей Record, о которых договорились шаги, dashboard и input builder.
const (
	FieldUserStory        = "user_story"
	FieldADOPayload       = "ado_payload"
	FieldPlan             = "plan"
	FieldRefinedStory     = "refined_story"
	FieldDBSchema         = "db_schema"
	FieldBackendCode      = "backend_code"
	FieldFrontendCode     = "frontend_code"
	FieldLegacyAnalysis   = "legacy_analysis"
	FieldTestResults      = "test_results"
	FieldDeploymentStatus = "deployment_status"
	FieldOutcome          = "outcome"
	FieldSimulateFailures = "simulate_failures"
	FieldRetriesExhausted = "retries_exhausted"

	// Управляющие поля.
	FieldRetryCount = "retry_count"
	FieldStatus     = "status"
	FieldLogs       = "logs"
)

// Record — разделяемое изменяемое состояние одного run.
//
// Record передаётся от шага к шагу. Поля заполняются постепенно,
// поэтому любой читатель должен переживать отсутствие поля.
// Record никогда не заменяется целиком: engine сливает результат
// каждого шага поле за полем (см. Merge), ключи не удаляются.
type Record map[string]any

// NewRecord создаёт Record с обязательными управляющими полями.
func NewRecord() Record {
	return Record{
		FieldRetryCount: 0,
		FieldLogs:       []string{},
	}
}

// Get возвращает значение поля и признак его наличия.
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// String возвращает строковое поле или "".
func (r Record) String(field string) string {
	if v, ok := r[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int возвращает целочисленное поле или 0.
// Понимает значения, пришедшие из JSON (float64, json.Number).
func (r Record) Int(field string) int {
	v, ok := r[field]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	}
	return 0
}

// Bool возвращает логическое поле или false.
func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

// Status возвращает текущий статус.
func (r Record) Status() string {
	return r.String(FieldStatus)
}

// SetStatus перезаписывает статус.
func (r Record) SetStatus(status string) {
	r[FieldStatus] = status
}

// RetryCount возвращает счётчик повторов.
func (r Record) RetryCount() int {
	return r.Int(FieldRetryCount)
}

// IncrementRetry увеличивает retry_count на 1 и возвращает новое значение.
func (r Record) IncrementRetry() int {
	n := r.RetryCount() + 1
	r[FieldRetryCount] = n
	return n
}

// Logs возвращает журнал шагов.
// Возвращается копия, изменение результата не затрагивает Record.
func (r Record) Logs() []string {
	v, ok := r[FieldLogs]
	if !ok {
		return nil
	}
	switch l := v.(type) {
	case []string:
		out := make([]string, len(l))
		copy(out, l)
		return out
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// AppendLog добавляет запись в журнал.
func (r Record) AppendLog(message string) {
	r[FieldLogs] = append(r.Logs(), message)
}

// Clone возвращает глубокую копию Record.
//
// Слайсы и вложенные map копируются, поэтому снимок не видит
// последующих изменений исходного Record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Record:
		return t.Clone()
	default:
		return v
	}
}

// Merge переносит поля other в r поверх существующих.
// Ключи, отсутствующие в other, остаются нетронутыми.
func (r Record) Merge(other Record) {
	for k, v := range other {
		r[k] = v
	}
}

// Diff возвращает отсортированные имена полей, которые отличаются от prev.
func (r Record) Diff(prev Record) []string {
	changed := make([]string, 0)
	for k, v := range r {
		old, ok := prev[k]
		if !ok || !reflect.DeepEqual(normalize(old), normalize(v)) {
			changed = append(changed, k)
		}
	}
	for k := range prev {
		if _, ok := r[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// normalize приводит журнал к []string, чтобы []any из JSON
// не считался отличием от []string.
func normalize(v any) any {
	if l, ok := v.([]any); ok {
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return v
			}
			out = append(out, s)
		}
		return out
	}
	return v
}

// LogsExtend проверяет, что журнал r является строгим продолжением журнала prev:
// prev — префикс r, и r длиннее prev.
func (r Record) LogsExtend(prev Record) bool {
	before := prev.Logs()
	after := r.Logs()
	if len(after) <= len(before) {
		return false
	}
	for i := range before {
		if before[i] != after[i] {
			return false
		}
	}
	return true
}

// Contains сообщает, содержит ли строковое поле подстроку.
func (r Record) Contains(field, substr string) bool {
	return strings.Contains(r.String(field), substr)
}
