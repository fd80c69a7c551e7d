package gemini

import (
	"encoding/base64"
	"encoding/json"

	"google.golang.org/genai"
)

// decodeServerMessage parses one server frame. Audio parts carrying data that
// is not valid base64 fail the whole frame in encoding/json, so on failure
// those parts are cut out and the rest of the frame is parsed again. The
// number of parts cut is returned alongside the message.
func decodeServerMessage(data []byte) (*genai.LiveServerMessage, int, error) {
	var msg genai.LiveServerMessage
	err := json.Unmarshal(data, &msg)
	if err == nil {
		return &msg, 0, nil
	}

	var raw map[string]any
	if json.Unmarshal(data, &raw) != nil {
		return nil, 0, err
	}
	dropped := dropUndecodableParts(raw)
	if dropped == 0 {
		return nil, 0, err
	}

	cleaned, marshalErr := json.Marshal(raw)
	if marshalErr != nil {
		return nil, dropped, err
	}
	msg = genai.LiveServerMessage{}
	if err := json.Unmarshal(cleaned, &msg); err != nil {
		return nil, dropped, err
	}
	return &msg, dropped, nil
}

func dropUndecodableParts(raw map[string]any) int {
	content, _ := raw["serverContent"].(map[string]any)
	turn, _ := content["modelTurn"].(map[string]any)
	parts, _ := turn["parts"].([]any)

	dropped := 0
	kept := make([]any, 0, len(parts))
	for _, part := range parts {
		if !decodablePart(part) {
			dropped++
			continue
		}
		kept = append(kept, part)
	}
	if dropped > 0 {
		turn["parts"] = kept
	}
	return dropped
}

func decodablePart(part any) bool {
	fields, _ := part.(map[string]any)
	inline, ok := fields["inlineData"].(map[string]any)
	if !ok || inline["data"] == nil {
		return true
	}
	data, ok := inline["data"].(string)
	if !ok {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(data)
	return err == nil
}
