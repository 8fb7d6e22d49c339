package governance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	res, err := engine.Evaluate(ctx, Request{Action: "click", Target: "[3]"})
	require.NoError(t, err)
	assert.Equal(t, EffectAllow, res.Effect)

	// Test Deny
	engine.DenyAction("type")
	res, err = engine.Evaluate(ctx, Request{Action: "type"})
	require.NoError(t, err)
	assert.Equal(t, EffectDeny, res.Effect)
	assert.Contains(t, res.Reason, "type")
}

func TestNewPolicyEngine_URLPatterns(t *testing.T) {
	engine, err := NewPolicyEngine(nil, []string{`^(file|chrome|javascript|data):`, `(^|\.)internal\.corp/`})
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		req  Request
		want Effect
	}{
		{Request{Action: "navigate", URL: "https://example.com"}, EffectAllow},
		{Request{Action: "navigate", URL: "file:///etc/passwd"}, EffectDeny},
		{Request{Action: "navigate", URL: "javascript:alert(1)"}, EffectDeny},
		{Request{Action: "navigate", URL: "https://wiki.internal.corp/page"}, EffectDeny},
		// patterns only gate navigation
		{Request{Action: "click", URL: "file:///tmp/x.html"}, EffectAllow},
	}
	for _, tt := range tests {
		res, err := engine.Evaluate(ctx, tt.req)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Effect, tt.req.URL)
	}
}

func TestNewPolicyEngine_BadPattern(t *testing.T) {
	_, err := NewPolicyEngine(nil, []string{"("})
	require.Error(t, err)
}
