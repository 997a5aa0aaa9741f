package workflow

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONParams 活动上绑定的应用参数(app_param / pushapp_param),
// 保存的时候是一段 JSON object, 运行应用的时候传给应用
type JSONParams struct {
	data map[string]any
}

// ParseJSONParams 解析参数,空字符串当作空参数
func ParseJSONParams(raw string) (*JSONParams, error) {
	p := &JSONParams{data: make(map[string]any)}
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p.data); err != nil {
		return nil, errors.Wrapf(ErrWorkflowParamInvalid, "params is not a json object: %s, err: %v", raw, err)
	}
	if p.data == nil {
		// "null"
		p.data = make(map[string]any)
	}
	return p, nil
}

func NewJSONParamsFromMap(m map[string]any) *JSONParams {
	if m == nil {
		m = make(map[string]any)
	}
	return &JSONParams{data: m}
}

// Get 获取值,支持嵌套路径 Get("notify", "channel")
func (p *JSONParams) Get(keys ...string) (any, bool) {
	if p == nil || len(keys) == 0 {
		return nil, false
	}
	var current any = p.data
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

func (p *JSONParams) GetString(keys ...string) (string, bool) {
	val, ok := p.Get(keys...)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// GetInt64 json 解出来的数字是 float64,这里统一转换
func (p *JSONParams) GetInt64(keys ...string) (int64, bool) {
	val, ok := p.Get(keys...)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func (p *JSONParams) GetBool(keys ...string) (bool, bool) {
	val, ok := p.Get(keys...)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Set 设置值,中间路径不是 map 的会被覆盖
func (p *JSONParams) Set(keys []string, value any) error {
	if len(keys) == 0 {
		return errors.New("keys cannot be empty")
	}
	current := p.data
	for _, key := range keys[:len(keys)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[key] = next
		}
		current = next
	}
	current[keys[len(keys)-1]] = value
	return nil
}

func (p *JSONParams) String() string {
	if p == nil || len(p.data) == 0 {
		return ""
	}
	b, err := json.Marshal(p.data)
	if err != nil {
		return ""
	}
	return string(b)
}

// Unmarshal 反序列化到应用自己的参数结构体
func (p *JSONParams) Unmarshal(v any) error {
	b, err := json.Marshal(p.data)
	if err != nil {
		return errors.WithMessage(err, "marshal params failed")
	}
	return json.Unmarshal(b, v)
}
