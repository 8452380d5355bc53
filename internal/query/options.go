package query

// defaultTaskLimit はタスク一覧のlimit未指定時の既定値。
const defaultTaskLimit = 100

// TaskOptions はタスク一覧・取得用の解析設定を返す。
func TaskOptions() Options {
	return Options{
		Fields: map[string]Kind{
			"name":             KindString,
			"description":      KindString,
			"deadline":         KindTime,
			"completed":        KindBool,
			"assignedUser":     KindString,
			"assignedUserName": KindString,
		},
		DefaultLimit: defaultTaskLimit,
	}
}

// UserOptions はユーザー一覧・取得用の解析設定を返す。
// limitの既定は無制限。selectの代わりにレガシー別名filterも受け付ける。
func UserOptions() Options {
	return Options{
		Fields: map[string]Kind{
			"name":        KindString,
			"email":       KindString,
			"dateCreated": KindTime,
		},
		ProjectionFields: map[string]bool{
			"pendingTasks": true,
		},
		SelectAliases: []string{"filter"},
	}
}
