package analyzer

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAIKey = "sk-proj-abc123def456ghi789jkl012mno345pqr678stu901xyz"

func TestSecretAnalyzer_Analyze(t *testing.T) {
	a, err := NewSecretAnalyzer()
	require.NoError(t, err)

	t.Run("clean content", func(t *testing.T) {
		out, err := a.Analyze(context.Background(), []byte("package main\n\nfunc main() {}\n"), "main.go")
		require.NoError(t, err)
		assert.False(t, out.HasFindings())
		assert.Empty(t, out.Payload)
	})

	t.Run("binary content", func(t *testing.T) {
		out, err := a.Analyze(context.Background(), []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}, "logo.png")
		require.NoError(t, err)
		assert.False(t, out.HasFindings())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := a.Analyze(ctx, []byte("x"), "x.txt")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("secret is found and redacted", func(t *testing.T) {
		content := []byte("\nconst apiKey = \"" + openAIKey + "\"\n")
		out, err := a.Analyze(context.Background(), content, "src/client.js")
		require.NoError(t, err)
		require.True(t, out.HasFindings())

		var findings []Finding
		require.NoError(t, json.Unmarshal(out.Payload, &findings))
		require.Len(t, findings, out.FindingCount)
		assert.NotContains(t, string(out.Payload), openAIKey)
		assert.NotEmpty(t, findings[0].RuleID)
	})
}

func TestSecretAnalyzer_PathRules(t *testing.T) {
	a, err := NewSecretAnalyzer()
	require.NoError(t, err)

	tests := []struct {
		name    string
		content []byte
		path    string
		want    bool
	}{
		{"keystore text", []byte("placeholder"), "certs/client.p12", true},
		{"keystore binary", []byte{0x30, 0x82, 0x00, 0x01}, "certs/server.pfx", true},
		{"ordinary file", []byte("placeholder"), "certs/readme.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := a.Analyze(context.Background(), tt.content, tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.want, out.HasFindings())
			if !tt.want {
				return
			}
			var findings []Finding
			require.NoError(t, json.Unmarshal(out.Payload, &findings))
			assert.Equal(t, "pkcs12-file", findings[0].RuleID)
		})
	}
}

func TestSecretAnalyzer_DeadlineStopsDetection(t *testing.T) {
	a, err := NewSecretAnalyzer()
	require.NoError(t, err)

	content := []byte(strings.Repeat("api_key = \"abcd1234efgh5678\"\n", 500_000))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	start := time.Now()
	out, err := a.Analyze(ctx, content, "config/huge.env")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, out.HasFindings())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSecretAnalyzer_Concurrent(t *testing.T) {
	a, err := NewSecretAnalyzer()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_, err := a.Analyze(context.Background(), []byte("nothing to see here\n"), "readme.txt")
			assert.NoError(t, err)
		})
	}
	wg.Wait()
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "****", Redact("short"))
	assert.Equal(t, "sk-p****", Redact(openAIKey))
}
