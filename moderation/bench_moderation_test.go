package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func BenchmarkModerator_Censor(b *testing.B) {
	req := require.New(b)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	words := make([]string, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		words = append(words, fmt.Sprintf("forbidden%dword", i))
	}
	mod, err := NewModerator(words, replacementChar, log)
	req.NoError(err)

	text := strings.Repeat("a perfectly normal sentence about forbidden42word ", 40)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mod.Censor(text)
	}
}
