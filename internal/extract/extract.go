// Package extract pulls routing signals out of structured request bodies.
package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Field returns the string value of the named field in a JSON body.
//
// It never fails: non-UTF-8 bytes, malformed JSON, a missing field, or a
// field holding a non-string value all report an absent signal. The key
// containment check short-circuits bodies that cannot possibly carry the
// field before the full parse runs.
func Field(body []byte, name string) (string, bool) {
	if len(body) == 0 || name == "" {
		return "", false
	}
	if !utf8.Valid(body) {
		return "", false
	}
	// The shortcut only holds for plain key names; gjson path syntax
	// (dots, wildcards, modifiers) addresses keys that do not appear
	// verbatim in the document.
	if !strings.ContainsAny(name, ".*?|@#") && !bytes.Contains(body, []byte(`"`+name+`"`)) {
		return "", false
	}
	if !gjson.ValidBytes(body) {
		return "", false
	}

	value := gjson.GetBytes(body, name)
	if value.Type != gjson.String {
		return "", false
	}
	return value.Str, true
}
