package llm

import "testing"

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  plain text  ":          "plain text",
		"```json{\"a\":1}```":     `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessageHelpers(t *testing.T) {
	if m := System("s"); m.Role != RoleSystem || m.Content != "s" {
		t.Errorf("System() = %+v", m)
	}
	if m := User("u"); m.Role != RoleUser || m.Content != "u" {
		t.Errorf("User() = %+v", m)
	}
	if f := Float(0.7); f == nil || *f != 0.7 {
		t.Errorf("Float(0.7) = %v", f)
	}
}
