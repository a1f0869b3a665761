package storage

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/atinyakov/asrcollect/internal/common"
)

// DecodeDataURL splits a "data:<mime>;base64,<payload>" string into its MIME
// type and decoded bytes. A payload without the data: prefix is decoded as
// bare base64 and reported as audio/wav.
func DecodeDataURL(payload string) (string, []byte, error) {
	payload = strings.TrimSpace(payload)
	mimeType := "audio/wav"

	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return "", nil, fmt.Errorf("data URL without payload: %w", common.ErrInvalidInput)
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, fmt.Errorf("data URL is not base64 encoded: %w", common.ErrInvalidInput)
		}
		meta = strings.TrimSuffix(meta, ";base64")
		// Drop parameters such as ";codecs=opus".
		if base, _, found := strings.Cut(meta, ";"); found {
			meta = base
		}
		if meta != "" {
			mimeType = strings.ToLower(meta)
		}
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("empty recording: %w", common.ErrInvalidInput)
	}
	return mimeType, data, nil
}
