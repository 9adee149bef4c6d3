package storage

import (
	"context"
	"io"
	"time"
)

type Uploader interface {
	// Upload stores r under objectName and returns the object key.
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
	Delete(ctx context.Context, objectName string) error
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// VoiceObjectName is the object key for a voice clip of a session message.
func VoiceObjectName(userID, sessionID, messageID, ext string) string {
	return "voice/" + userID + "/" + sessionID + "/" + messageID + ext
}

func ExtensionFor(contentType string) string {
	switch contentType {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	}
	return ".bin"
}
