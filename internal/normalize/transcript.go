package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Transcript alias chains: the structured transcript appeared under two keys
// across payload versions, either as a flat turn array or wrapped in
// {"segments": [...]}.
var transcriptKeys = []string{"transcript_object", "transcript_with_tool_calls"}

func extractTranscript(call map[string]any) []TranscriptTurn {
	for _, key := range transcriptKeys {
		raw, ok := call[key]
		if !ok {
			continue
		}
		if turns := normalizeTranscript(raw); turns != nil {
			return turns
		}
	}
	return nil
}

// normalizeTranscript converts either raw shape into ordered turns.
// Unusable turns are skipped, never fatal.
func normalizeTranscript(raw any) []TranscriptTurn {
	items, ok := raw.([]any)
	if !ok {
		wrapped, ok := raw.(map[string]any)
		if !ok {
			return nil
		}
		items, ok = wrapped["segments"].([]any)
		if !ok {
			return nil
		}
	}

	turns := make([]TranscriptTurn, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		offset := turnOffset(entry)
		if text := turnText(entry); text != "" {
			turns = append(turns, TranscriptTurn{
				Speaker:       turnSpeaker(entry),
				Text:          text,
				OffsetSeconds: offset,
			})
		}
		turns = append(turns, toolTurns(entry, offset)...)
	}
	if len(turns) == 0 {
		return nil
	}
	return turns
}

func turnSpeaker(entry map[string]any) string {
	if s := asString(entry["speaker"]); s != "" {
		return s
	}
	if s := asString(entry["role"]); s != "" {
		return s
	}
	return "unknown"
}

func turnText(entry map[string]any) string {
	if s := asString(entry["text"]); s != "" {
		return s
	}
	return asString(entry["content"])
}

func turnOffset(entry map[string]any) int {
	for _, key := range []string{"offset_seconds", "start"} {
		if v, ok := entry[key].(float64); ok && v >= 0 {
			return int(v)
		}
	}
	return 0
}

// toolTurns flattens tool invocations embedded in a turn into synthetic
// "tool" speaker turns with a name(args-json) body.
func toolTurns(entry map[string]any, offset int) []TranscriptTurn {
	var invocations []any
	if list, ok := entry["tool_calls"].([]any); ok {
		invocations = list
	} else if single, ok := entry["tool_call"].(map[string]any); ok {
		invocations = []any{single}
	}

	var turns []TranscriptTurn
	for _, item := range invocations {
		call, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := asString(call["name"])
		if name == "" {
			continue
		}
		turns = append(turns, TranscriptTurn{
			Speaker:       "tool",
			Text:          fmt.Sprintf("%s(%s)", name, renderArguments(call["arguments"])),
			OffsetSeconds: offset,
		})
	}
	return turns
}

func renderArguments(raw any) string {
	switch args := raw.(type) {
	case nil:
		return "{}"
	case string:
		if trimmed := strings.TrimSpace(args); trimmed != "" {
			return trimmed
		}
		return "{}"
	default:
		data, err := json.Marshal(args)
		if err != nil {
			return "{}"
		}
		return string(data)
	}
}
