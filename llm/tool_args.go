package llm

import (
	"bytes"
	"encoding/json"
)

// maxArgUnquotes bounds how many layers of string-encoding are peeled
// off tool arguments before giving up.
const maxArgUnquotes = 2

// DecodeToolArguments decodes the arguments of a tool call into a map.
// Mistral usually sends a JSON object, but under tool pressure the
// arguments sometimes arrive string-encoded (`"{\"q\":1}"`), and a
// refused call can carry null or free text. Anything that does not
// decode to an object becomes an empty map, so a malformed call still
// reaches the tool and fails with a proper missing-argument error
// instead of derailing the turn.
func DecodeToolArguments(raw json.RawMessage) map[string]interface{} {
	payload := bytes.TrimSpace(raw)

	for i := 0; i <= maxArgUnquotes; i++ {
		if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
			return map[string]interface{}{}
		}

		if payload[0] == '{' {
			var args map[string]interface{}
			if err := json.Unmarshal(payload, &args); err != nil {
				return map[string]interface{}{}
			}
			return args
		}

		if payload[0] != '"' {
			break
		}
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			break
		}
		payload = bytes.TrimSpace([]byte(inner))
	}

	return map[string]interface{}{}
}
