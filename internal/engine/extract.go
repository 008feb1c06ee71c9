package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/PaesslerAG/gval"
	"github.com/PaesslerAG/jsonpath"
)

// Extraction expressions are JSONPath with the full gval grammar on top,
// e.g. $.access_token or $.lobby_info.available_games[0].game_id.
var extractLang = gval.Full(jsonpath.PlaceholderExtension())

// ExtractString evaluates a JSONPath expression against a JSON response
// body and renders the first match as a string. A non-JSON body, a bad
// expression or a miss all come back as errors; callers decide whether a
// miss matters.
func ExtractString(body []byte, expression string) (string, error) {
	eval, err := extractLang.NewEvaluable(expression)
	if err != nil {
		return "", fmt.Errorf("bad extract expression %q: %w", expression, err)
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("extract %q: body is not JSON: %w", expression, err)
	}
	v, err := eval(context.Background(), doc)
	if err != nil {
		return "", fmt.Errorf("extract %q: %w", expression, err)
	}
	return stringify(expression, v)
}

func stringify(expression string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", fmt.Errorf("extract %q: no match", expression)
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", fmt.Errorf("extract %q: unrenderable match: %w", expression, err)
		}
		return string(b), nil
	}
}
