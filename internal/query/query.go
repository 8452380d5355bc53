// Package query はリストエンドポイントのクエリパラメータを解析し、
// ストレージ非依存のクエリ記述子に変換する。
// where/sort/selectはJSONオブジェクトとして受け取り、
// 小さなタグ付き条件式の列に変換するため、DBなしで単体テストできる。
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// Op は条件式の比較演算子を表す。
type Op string

const (
	// OpEq は等価比較。
	OpEq Op = "eq"
	// OpNe は非等価比較。
	OpNe Op = "ne"
	// OpGt は大なり比較。
	OpGt Op = "gt"
	// OpGte は以上比較。
	OpGte Op = "gte"
	// OpLt は小なり比較。
	OpLt Op = "lt"
	// OpLte は以下比較。
	OpLte Op = "lte"
	// OpIn は集合包含比較。Valueは[]any。
	OpIn Op = "in"
)

// operatorNames はwhere式中の"$"演算子キーからOpへのマッピング。
var operatorNames = map[string]Op{
	"$ne":  OpNe,
	"$gt":  OpGt,
	"$gte": OpGte,
	"$lt":  OpLt,
	"$lte": OpLte,
	"$in":  OpIn,
}

// Kind はフィールドの値型を表す。条件値はこの型に従って変換・検証される。
type Kind int

const (
	// KindString は文字列フィールド。
	KindString Kind = iota
	// KindBool は真偽値フィールド。
	KindBool
	// KindTime はエポックミリ秒で指定されるタイムスタンプフィールド。
	KindTime
)

// Condition はフィルタ条件1件を表す。
// ValueはKindに従って変換済み（string / bool / time.Time、OpInの場合はそのスライス）。
type Condition struct {
	Field string
	Op    Op
	Value any
}

// SortKey はソートキー1件を表す。
type SortKey struct {
	Field string
	Desc  bool
}

// Projection はフィールド射影を表す。
// Includeがtrueの場合はFieldsのみを返し、falseの場合はFieldsを除外する。
// idはWithIDに従って常に独立に制御される。
type Projection struct {
	Include bool
	Fields  map[string]bool
	WithID  bool
}

// Descriptor は検証済みのクエリ記述子。
type Descriptor struct {
	Conditions []Condition
	Sort       []SortKey
	Projection *Projection
	Skip       int
	Limit      int
	HasLimit   bool
	WantCount  bool
}

// Options はエンティティごとの解析設定。
type Options struct {
	// Fields はwhere/sort/selectで参照可能なフィールド名とその値型。
	// idは常に文字列フィールドとして許可される。
	Fields map[string]Kind
	// ProjectionFields はselectでのみ参照可能なフィールド名の集合。
	// 配列フィールドなど、フィルタ・ソート対象にならないものを入れる。
	ProjectionFields map[string]bool
	// DefaultLimit はlimit未指定時の既定値。0は無制限を意味する。
	DefaultLimit int
	// SelectAliases はselectパラメータが無い場合に参照するレガシー別名。
	SelectAliases []string
}

// ParseListQuery はリストエンドポイントのクエリパラメータ群をDescriptorに変換する。
// where/sort/selectの解析失敗は*model.APIError（validation）として返す。
// skip/limitの不正値は未指定として扱い、エラーにしない。
func ParseListQuery(values url.Values, opts Options) (*Descriptor, error) {
	d := &Descriptor{}

	if raw := values.Get("where"); raw != "" {
		conds, err := parseWhere(raw, opts)
		if err != nil {
			return nil, err
		}
		d.Conditions = conds
	}

	if raw := values.Get("sort"); raw != "" {
		keys, err := parseSort(raw, opts)
		if err != nil {
			return nil, err
		}
		d.Sort = keys
	}

	raw := values.Get("select")
	if raw == "" {
		for _, alias := range opts.SelectAliases {
			if v := values.Get(alias); v != "" {
				raw = v
				break
			}
		}
	}
	if raw != "" {
		proj, err := ParseProjection(raw, opts)
		if err != nil {
			return nil, err
		}
		d.Projection = proj
	}

	if n, ok := parseNonNegativeInt(values.Get("skip")); ok {
		d.Skip = n
	}
	if n, ok := parseNonNegativeInt(values.Get("limit")); ok {
		d.Limit = n
		d.HasLimit = true
	} else if opts.DefaultLimit > 0 {
		d.Limit = opts.DefaultLimit
		d.HasLimit = true
	}

	// countは文字列"true"の場合のみ有効
	d.WantCount = values.Get("count") == "true"

	return d, nil
}

// parseWhere はwhereパラメータをConditionの列に変換する。
func parseWhere(raw string, opts Options) ([]Condition, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, model.NewInvalidQueryError("where", "not a JSON object")
	}

	conds := make([]Condition, 0, len(obj))
	for field, rawVal := range obj {
		kind, ok := fieldKind(field, opts)
		if !ok {
			return nil, model.NewInvalidQueryError("where", fmt.Sprintf("unsupported field %q", field))
		}

		var val any
		dec := json.NewDecoder(bytes.NewReader(rawVal))
		dec.UseNumber()
		if err := dec.Decode(&val); err != nil {
			return nil, model.NewInvalidQueryError("where", "malformed value")
		}

		switch v := val.(type) {
		case map[string]any:
			// 演算子オブジェクト: {"$gt": 100, "$lte": 200} のような形式
			if len(v) == 0 {
				return nil, model.NewInvalidQueryError("where", fmt.Sprintf("empty operator object for field %q", field))
			}
			for opName, opVal := range v {
				op, ok := operatorNames[opName]
				if !ok {
					return nil, model.NewInvalidQueryError("where", fmt.Sprintf("unsupported operator %q", opName))
				}
				if op == OpIn {
					arr, ok := opVal.([]any)
					if !ok {
						return nil, model.NewInvalidQueryError("where", "$in requires an array")
					}
					converted := make([]any, len(arr))
					for i, elem := range arr {
						cv, err := convertValue(field, kind, elem)
						if err != nil {
							return nil, err
						}
						converted[i] = cv
					}
					conds = append(conds, Condition{Field: field, Op: OpIn, Value: converted})
					continue
				}
				cv, err := convertValue(field, kind, opVal)
				if err != nil {
					return nil, err
				}
				conds = append(conds, Condition{Field: field, Op: op, Value: cv})
			}
		case []any:
			return nil, model.NewInvalidQueryError("where", fmt.Sprintf("array value for field %q is not supported", field))
		default:
			cv, err := convertValue(field, kind, val)
			if err != nil {
				return nil, err
			}
			conds = append(conds, Condition{Field: field, Op: OpEq, Value: cv})
		}
	}

	return conds, nil
}

// convertValue は条件値をフィールドの値型に合わせて変換する。
// KindTimeはエポックミリ秒の数値をtime.Timeに変換する。
func convertValue(field string, kind Kind, v any) (any, error) {
	switch kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, model.NewInvalidQueryError("where", fmt.Sprintf("field %q requires a string value", field))
		}
		return s, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, model.NewInvalidQueryError("where", fmt.Sprintf("field %q requires a boolean value", field))
		}
		return b, nil
	case KindTime:
		n, ok := v.(json.Number)
		if !ok {
			return nil, model.NewInvalidQueryError("where", fmt.Sprintf("field %q requires an epoch-millisecond number", field))
		}
		ms, err := n.Int64()
		if err != nil {
			return nil, model.NewInvalidQueryError("where", fmt.Sprintf("field %q requires an epoch-millisecond integer", field))
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return nil, model.NewInvalidQueryError("where", fmt.Sprintf("field %q has an unknown kind", field))
}

// parseSort はsortパラメータをSortKeyの列に変換する。
// JSONオブジェクトのキー出現順を保持するためトークン単位で解析する。
func parseSort(raw string, opts Options) ([]SortKey, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, model.NewInvalidQueryError("sort", "not a JSON object")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, model.NewInvalidQueryError("sort", "not a JSON object")
	}

	var keys []SortKey
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, model.NewInvalidQueryError("sort", "malformed object")
		}
		field := keyTok.(string)
		if _, ok := fieldKind(field, opts); !ok {
			return nil, model.NewInvalidQueryError("sort", fmt.Sprintf("unsupported field %q", field))
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, model.NewInvalidQueryError("sort", "malformed object")
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return nil, model.NewInvalidQueryError("sort", fmt.Sprintf("direction for %q must be 1 or -1", field))
		}
		switch num.String() {
		case "1":
			keys = append(keys, SortKey{Field: field})
		case "-1":
			keys = append(keys, SortKey{Field: field, Desc: true})
		default:
			return nil, model.NewInvalidQueryError("sort", fmt.Sprintf("direction for %q must be 1 or -1", field))
		}
	}

	// 閉じ括弧の後に余計なトークンが無いことを確認
	if _, err := dec.Token(); err != nil {
		return nil, model.NewInvalidQueryError("sort", "malformed object")
	}

	return keys, nil
}

// ParseProjection はselectパラメータをProjectionに変換する。
// ドキュメントストアの射影セマンティクスに合わせ、包含と除外の混在は
// 不正とする。ただし包含射影からのid除外のみ許可する。
func ParseProjection(raw string, opts Options) (*Projection, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, model.NewInvalidQueryError("select", "not a JSON object")
	}

	proj := &Projection{Fields: map[string]bool{}, WithID: true}
	sawInclude := false
	sawExclude := false

	for field, v := range obj {
		if _, ok := fieldKind(field, opts); !ok && !opts.ProjectionFields[field] {
			return nil, model.NewInvalidQueryError("select", fmt.Sprintf("unsupported field %q", field))
		}

		include, ok := projectionFlag(v)
		if !ok {
			return nil, model.NewInvalidQueryError("select", fmt.Sprintf("value for %q must be 0 or 1", field))
		}

		// idの除外は包含射影とも共存できる
		if field == "id" && !include {
			proj.WithID = false
			continue
		}

		if include {
			sawInclude = true
		} else {
			sawExclude = true
		}
		proj.Fields[field] = true
	}

	if sawInclude && sawExclude {
		return nil, model.NewInvalidQueryError("select", "cannot mix inclusion and exclusion")
	}
	proj.Include = sawInclude
	return proj, nil
}

// projectionFlag は射影の値（0/1またはbool）を解釈する。
func projectionFlag(v any) (include, ok bool) {
	switch n := v.(type) {
	case bool:
		return n, true
	case float64:
		if n == 0 {
			return false, true
		}
		if n == 1 {
			return true, true
		}
	}
	return false, false
}

// parseNonNegativeInt は非負整数を解析する。不正値はfalseを返す。
func parseNonNegativeInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// fieldKind はフィールドの値型を返す。idは常に文字列として許可。
func fieldKind(field string, opts Options) (Kind, bool) {
	if field == "id" {
		return KindString, true
	}
	k, ok := opts.Fields[field]
	return k, ok
}
