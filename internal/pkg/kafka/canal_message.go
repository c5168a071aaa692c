package kafka

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// canal 事件类型
const (
	INSERT = "INSERT"
	UPDATE = "UPDATE"
	DELETE = "DELETE"
)

// CanalMessage 定义了 Canal 推送到 Kafka 的 JSON 数据结构
type CanalMessage struct {
	ID       int64    `json:"id"`
	Database string   `json:"database"`
	Table    string   `json:"table"`
	PKNames  []string `json:"pkNames"`
	IsDDL    bool     `json:"isDdl"`
	Type     string   `json:"type"`
	ES       int64    `json:"es"`
	TS       int64    `json:"ts"`

	// Data 存储变更后的数据，canal 在 flatMessage 模式下所有列值都是字符串
	Data []map[string]interface{} `json:"data"`

	// Old 存储变更前的数据
	Old []map[string]interface{} `json:"old"`
}

// StrToUint64 兼容字符串与 JSON 数字两种列值
func StrToUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseUint(t, 10, 64)
	case float64:
		return uint64(t), nil
	case json.Number:
		return strconv.ParseUint(t.String(), 10, 64)
	case nil:
		return 0, fmt.Errorf("column is null")
	default:
		return 0, fmt.Errorf("unsupported column type %T", v)
	}
}

// StrToInt64 同 StrToUint64，空值按 0 处理
func StrToInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseInt(t, 10, 64)
	case float64:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported column type %T", v)
	}
}
