package domain

import (
	"encoding/json"
	"fmt"
)

// Issue — задача из трекера в том объеме, который нужен пайплайну.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels LabelSet `json:"labels"`
}

// LabelSet — список меток. В JSON приходит либо массивом строк, либо массивом
// объектов с полем name (формат GitHub API), допускается смешанный вариант.
type LabelSet []string

func (ls *LabelSet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("labels must be a JSON array: %w", err)
	}

	out := make(LabelSet, 0, len(raw))
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, name)
			continue
		}

		var obj struct {
			Name *string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil || obj.Name == nil {
			return fmt.Errorf("label #%d is neither a string nor an object with name", i)
		}
		out = append(out, *obj.Name)
	}

	*ls = out
	return nil
}

// ParseLabels разбирает значение флага --issue-labels. Пустая строка — пустой список.
func ParseLabels(raw string) (LabelSet, error) {
	if raw == "" {
		return LabelSet{}, nil
	}
	var ls LabelSet
	if err := json.Unmarshal([]byte(raw), &ls); err != nil {
		return nil, err
	}
	return ls, nil
}
