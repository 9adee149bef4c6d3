package stt

import "context"

type Provider interface {
	// Transcribe recognises speech in audio. language is a BCP-47 tag and
	// contentType the MIME type of the clip.
	Transcribe(ctx context.Context, audio []byte, contentType, language string) (text string, confidence float64, err error)
	Close() error
}

var regionDefaults = map[string]string{
	"en": "en-US", "es": "es-ES", "fr": "fr-FR", "de": "de-DE", "it": "it-IT",
	"pt": "pt-BR", "ru": "ru-RU", "ja": "ja-JP", "ko": "ko-KR", "zh": "cmn-Hans-CN",
	"ar": "ar-SA", "hi": "hi-IN", "nl": "nl-NL", "pl": "pl-PL", "sv": "sv-SE",
	"da": "da-DK", "no": "nb-NO", "fi": "fi-FI",
}

// LanguageTag maps an ISO 639-1 catalog code onto the recognizer's tag.
// Codes already carrying a region are returned as-is.
func LanguageTag(code string) string {
	if tag, ok := regionDefaults[code]; ok {
		return tag
	}
	if code == "" {
		return "en-US"
	}
	return code
}
