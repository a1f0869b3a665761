package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/atinyakov/asrcollect/internal/common"
)

// recordedStem is the readable part of names given to in-browser recordings.
const recordedStem = "recorded"

// contentTypes maps accepted file extensions to MIME types.
var contentTypes = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
	"flac": "audio/flac",
	"m4a":  "audio/mp4",
}

// recordingExtensions maps MediaRecorder MIME types to file extensions.
var recordingExtensions = map[string]string{
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/wave":  "wav",
	"audio/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mpeg":  "mp3",
	"audio/mp4":   "m4a",
}

// ContentType returns the MIME type for a stored reference, by extension.
func ContentType(ref string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(ref), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Ingester validates audio payloads, names them and writes them to a Store.
type Ingester struct {
	store    Store
	maxBytes int64
}

// NewIngester returns an Ingester writing to store and rejecting payloads
// larger than maxBytes.
func NewIngester(store Store, maxBytes int64) *Ingester {
	return &Ingester{store: store, maxBytes: maxBytes}
}

// StoreUploaded writes an uploaded file verbatim. The extension of
// originalName selects the format and must be one of the accepted ones.
func (i *Ingester) StoreUploaded(ctx context.Context, contributorID, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	ct, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("%q: %w", originalName, common.ErrUnsupportedAudio)
	}

	data, err := i.readLimited(r)
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	name := ObjectName(contributorID, stem, data, ext)
	return i.store.Put(ctx, name, bytes.NewReader(data), int64(len(data)), ct)
}

// StoreRecorded decodes a base64 recording, optionally wrapped in a data URL,
// and writes it.
func (i *Ingester) StoreRecorded(ctx context.Context, contributorID, payload string) (string, error) {
	// base64 inflates by 4/3; reject before allocating the decoded copy.
	if int64(len(payload)) > i.maxBytes/3*4+1024 {
		return "", common.ErrTooLarge
	}

	mimeType, data, err := DecodeDataURL(payload)
	if err != nil {
		return "", err
	}
	if int64(len(data)) > i.maxBytes {
		return "", common.ErrTooLarge
	}
	ext, ok := recordingExtensions[mimeType]
	if !ok {
		return "", fmt.Errorf("%s: %w", mimeType, common.ErrUnsupportedAudio)
	}

	name := ObjectName(contributorID, recordedStem, data, ext)
	return i.store.Put(ctx, name, bytes.NewReader(data), int64(len(data)), contentTypes[ext])
}

// Open returns the stored payload for ref.
func (i *Ingester) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return i.store.Open(ctx, ref)
}

func (i *Ingester) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, i.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if int64(len(data)) > i.maxBytes {
		return nil, common.ErrTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio: %w", common.ErrInvalidInput)
	}
	return data, nil
}
