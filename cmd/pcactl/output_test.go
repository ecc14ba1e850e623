package main

import (
	"bytes"
	"strings"
	"testing"

	"conversation-analytics-service/internal/store"
)

func TestRender(t *testing.T) {
	list := []store.Summary{{JobName: "call-1", RunID: "run-1", LanguageCode: "en-US", Turns: 2}}

	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{"json", formatJSON, []string{`"jobName": "call-1"`, `"turns": 2`}},
		{"yaml", formatYAML, []string{"- jobName: call-1", "  runId: run-1", "  turns: 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := render(&buf, tt.format, list); err != nil {
				t.Fatalf("render: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestRender_YAMLQuotesAmbiguousStrings(t *testing.T) {
	var buf bytes.Buffer
	if err := render(&buf, formatYAML, map[string]string{"value": "true"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), `value: "true"`) {
		t.Errorf("expected string to stay quoted, got %q", buf.String())
	}
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"show", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
