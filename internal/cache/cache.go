package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Key names shared by the services that cache through Cache.
const (
	KeyActiveLanguages = "languages:active"
	keyLanguagePrefix  = "languages:code:"
)

func LanguageKey(code string) string {
	return keyLanguagePrefix + code
}
