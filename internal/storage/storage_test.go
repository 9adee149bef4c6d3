package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoiceObjectName(t *testing.T) {
	assert.Equal(t, "voice/u1/s1/m1.webm", VoiceObjectName("u1", "s1", "m1", ExtensionFor("audio/webm")))
	assert.Equal(t, ".bin", ExtensionFor("application/octet-stream"))
}
