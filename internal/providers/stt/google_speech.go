package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c, SampleRateHz: 16000}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, contentType, language string) (string, float64, error) {
	if language == "" {
		language = "en-US"
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   EncodingFor(contentType),
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
	}
	// header-carrying formats report their own rate
	if cfg.Encoding == speechpb.RecognitionConfig_LINEAR16 {
		cfg.SampleRateHertz = g.SampleRateHz
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}

	// results are consecutive portions of the clip; join the best
	// alternative of each
	var parts []string
	var confSum float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 || r.Alternatives[0].Transcript == "" {
			continue
		}
		best := r.Alternatives[0]
		parts = append(parts, strings.TrimSpace(best.Transcript))
		confSum += float64(best.Confidence)
	}
	if len(parts) == 0 {
		return "", 0, nil
	}

	return strings.Join(parts, " "), confSum / float64(len(parts)), nil
}

func EncodingFor(contentType string) speechpb.RecognitionConfig_AudioEncoding {
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i != -1 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC
	case "audio/mpeg", "audio/mp3":
		return speechpb.RecognitionConfig_MP3
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
