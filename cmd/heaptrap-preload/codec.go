package main

import (
	"os"

	"github.com/orizon-lang/heaptrap/internal/codec"
)

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func codecCodec(name string) (codec.Codec, bool) {
	return codec.ByName(name)
}
