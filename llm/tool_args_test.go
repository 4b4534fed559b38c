package llm

import (
	"encoding/json"
	"testing"
)

func TestDecodeToolArgumentsObject(t *testing.T) {
	args := DecodeToolArguments(json.RawMessage(`{"query":"dota","limit":5}`))
	if args["query"] != "dota" {
		t.Fatalf("query = %v, want dota", args["query"])
	}
	if args["limit"] != float64(5) {
		t.Fatalf("limit = %v, want 5", args["limit"])
	}
}

func TestDecodeToolArgumentsStringEncoded(t *testing.T) {
	args := DecodeToolArguments(json.RawMessage(`"{\"limit\":5}"`))
	if args["limit"] != float64(5) {
		t.Fatalf("limit = %v, want 5", args["limit"])
	}

	// Whitespace inside the encoded layer.
	padded, err := json.Marshal(`  {"q":"x"}  `)
	if err != nil {
		t.Fatal(err)
	}
	args = DecodeToolArguments(padded)
	if args["q"] != "x" {
		t.Fatalf("q = %v, want x", args["q"])
	}
}

func TestDecodeToolArgumentsMalformed(t *testing.T) {
	for _, raw := range []string{``, `null`, `"null"`, `"not json"`, `[1,2]`, `{"broken":`, `42`} {
		args := DecodeToolArguments(json.RawMessage(raw))
		if args == nil || len(args) != 0 {
			t.Fatalf("raw %q: expected empty map, got %v", raw, args)
		}
	}
}
