package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/taskman/internal/query"
)

// taskColumns はタスクのAPIフィールド名からカラム名へのマッピング。
var taskColumns = map[string]string{
	"id":               "id",
	"name":             "name",
	"description":      "description",
	"deadline":         "deadline",
	"completed":        "completed",
	"assignedUser":     "assigned_user",
	"assignedUserName": "assigned_user_name",
}

// userColumns はユーザーのAPIフィールド名からカラム名へのマッピング。
var userColumns = map[string]string{
	"id":          "id",
	"name":        "name",
	"email":       "email",
	"dateCreated": "date_created",
}

// sqlOperators はクエリ演算子からSQL比較演算子へのマッピング。
var sqlOperators = map[query.Op]string{
	query.OpEq:  "=",
	query.OpNe:  "<>",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// buildWhereClause はフィルタ条件からWHERE句とバインド引数を構築する。
// 条件が無い場合は空文字列を返す。引数の番号はstartArgから始まる。
func buildWhereClause(conds []query.Condition, columns map[string]string, startArg int) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	n := startArg

	for _, c := range conds {
		col, ok := columns[c.Field]
		if !ok {
			return "", nil, fmt.Errorf("no column mapping for field %q", c.Field)
		}

		if c.Op == query.OpIn {
			values, ok := c.Value.([]any)
			if !ok {
				return "", nil, fmt.Errorf("$in condition on %q has non-slice value", c.Field)
			}
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col, n))
			args = append(args, pq.Array(concreteSlice(values)))
			n++
			continue
		}

		op, ok := sqlOperators[c.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}
		parts = append(parts, fmt.Sprintf("%s %s $%d", col, op, n))
		args = append(args, c.Value)
		n++
	}

	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// buildListSuffix はクエリ記述子からWHERE/ORDER BY/LIMIT/OFFSET句を構築する。
func buildListSuffix(d *query.Descriptor, columns map[string]string) (string, []any, error) {
	clause, args, err := buildWhereClause(d.Conditions, columns, 1)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(clause)

	if len(d.Sort) > 0 {
		keys := make([]string, 0, len(d.Sort))
		for _, k := range d.Sort {
			col, ok := columns[k.Field]
			if !ok {
				return "", nil, fmt.Errorf("no column mapping for sort field %q", k.Field)
			}
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			keys = append(keys, col+" "+dir)
		}
		sb.WriteString(" ORDER BY " + strings.Join(keys, ", "))
	}

	if d.HasLimit {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", d.Limit))
	}
	if d.Skip > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", d.Skip))
	}

	return sb.String(), args, nil
}

// concreteSlice は[]anyをpq.Arrayが扱える具体型スライスに変換する。
// 条件値はKindごとに同一型であることをクエリ解析側が保証している。
func concreteSlice(values []any) any {
	if len(values) == 0 {
		return []string{}
	}
	switch values[0].(type) {
	case string:
		out := make([]string, len(values))
		for i, v := range values {
			out[i], _ = v.(string)
		}
		return out
	case bool:
		out := make([]bool, len(values))
		for i, v := range values {
			out[i], _ = v.(bool)
		}
		return out
	case time.Time:
		out := make([]time.Time, len(values))
		for i, v := range values {
			out[i], _ = v.(time.Time)
		}
		return out
	}
	return values
}
