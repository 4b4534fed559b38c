// Package history repairs and bounds message sequences so they always
// satisfy the tool-calling chat protocol: strict user/assistant
// alternation, and every requested tool call paired with exactly one tool
// reply before the next turn.
package history

import (
	"github.com/martz/miniagent/llm"
)

// Sanitize repairs history and trims it to at most maxMessages while
// preserving tool call integrity. The result always starts with a user
// message (or is empty), never contains an orphaned tool reply, and never
// has two adjacent user or assistant messages. Sanitize is pure and
// idempotent.
func Sanitize(history []llm.Message, maxMessages int) []llm.Message {
	if len(history) == 0 {
		return []llm.Message{}
	}

	sanitized := repair(history)
	if len(sanitized) <= maxMessages {
		return sanitized
	}
	return trim(sanitized, maxMessages)
}

// repair walks left to right collapsing duplicate roles, pairing tool
// calls with their replies, and discarding orphans.
func repair(history []llm.Message) []llm.Message {
	sanitized := make([]llm.Message, 0, len(history))
	var lastRole llm.Role

	queue := history
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		role := msg.Role

		if role == llm.RoleAssistant && len(msg.ToolCalls) > 0 {
			// Look ahead for the tool replies answering this call set.
			// Replies must be consecutive; hitting anything else leaves
			// the call set unsatisfied and the whole unit is dropped.
			needed := make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				needed[tc.ID] = true
			}

			byID := make(map[string]llm.Message, len(needed))
			for len(queue) > 0 && len(needed) > 0 {
				next := queue[0]
				if next.Role != llm.RoleTool || !needed[next.ToolCallID] {
					break
				}
				byID[next.ToolCallID] = next
				delete(needed, next.ToolCallID)
				queue = queue[1:]
			}

			if len(needed) == 0 {
				// A tool-calling assistant message still collapses a
				// preceding plain assistant message.
				if lastRole == llm.RoleAssistant && len(sanitized) > 0 {
					sanitized = sanitized[:len(sanitized)-1]
				}
				sanitized = append(sanitized, msg)
				for _, tc := range msg.ToolCalls {
					sanitized = append(sanitized, byID[tc.ID])
				}
				lastRole = llm.RoleTool
			}
			continue
		}

		// Same user/assistant role twice in a row keeps only the newest.
		if (role == llm.RoleUser || role == llm.RoleAssistant) && role == lastRole {
			if len(sanitized) > 0 {
				sanitized[len(sanitized)-1] = msg
			} else {
				sanitized = append(sanitized, msg)
			}
			continue
		}

		// Any tool reply reaching here has no kept caller.
		if role == llm.RoleTool {
			continue
		}

		sanitized = append(sanitized, msg)
		lastRole = role
	}

	return sanitized
}

// trim walks backward from the newest message keeping an assistant message
// and its tool replies as an atomic unit, then pops leading messages until
// the history both fits the budget and starts with a user turn.
func trim(sanitized []llm.Message, maxMessages int) []llm.Message {
	trimmed := make([]llm.Message, 0, maxMessages)
	keepIDs := make(map[string]bool)

	for i := len(sanitized) - 1; i >= 0; i-- {
		msg := sanitized[i]
		switch {
		case msg.Role == llm.RoleTool:
			keepIDs[msg.ToolCallID] = true
			trimmed = append([]llm.Message{msg}, trimmed...)
		case msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0:
			kept := false
			for _, tc := range msg.ToolCalls {
				if keepIDs[tc.ID] {
					kept = true
				}
			}
			if kept {
				trimmed = append([]llm.Message{msg}, trimmed...)
				for _, tc := range msg.ToolCalls {
					delete(keepIDs, tc.ID)
				}
			}
		default:
			trimmed = append([]llm.Message{msg}, trimmed...)
		}

		if len(trimmed) >= maxMessages && trimmed[0].Role == llm.RoleUser {
			break
		}
	}

	// Drop whole leading units until the budget holds.
	for len(trimmed) > maxMessages {
		trimmed = popUnit(trimmed)
	}

	// The history must open with a user turn; an injected context system
	// message directly ahead of it may stay.
	for len(trimmed) > 0 {
		if trimmed[0].Role == llm.RoleUser {
			break
		}
		if trimmed[0].Role == llm.RoleSystem && len(trimmed) > 1 && trimmed[1].Role == llm.RoleUser {
			break
		}
		trimmed = popUnit(trimmed)
	}

	return trimmed
}

// popUnit removes the leading message, taking any tool replies of a
// leading tool-calling assistant message with it.
func popUnit(msgs []llm.Message) []llm.Message {
	if len(msgs) == 0 {
		return msgs
	}
	head := msgs[0]
	msgs = msgs[1:]
	if head.Role == llm.RoleAssistant && len(head.ToolCalls) > 0 {
		for len(msgs) > 0 && msgs[0].Role == llm.RoleTool {
			msgs = msgs[1:]
		}
	}
	return msgs
}
