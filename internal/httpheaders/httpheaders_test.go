package httpheaders

import "testing"

func TestSetReplacesEquivalentKeyCaseInsensitively(t *testing.T) {
	headers := map[string]string{"authorization": "Bearer old"}
	got := Set(headers, "Authorization", "Bearer new")

	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (got=%#v)", len(got), got)
	}
	if got["Authorization"] != "Bearer new" {
		t.Fatalf(`got["Authorization"] = %q, want %q`, got["Authorization"], "Bearer new")
	}
}

func TestSetDefaultKeepsExistingValue(t *testing.T) {
	headers := map[string]string{"AUTHORIZATION": "Bearer explicit"}
	got := SetDefault(headers, "Authorization", "Bearer ${TOKEN}")
	if got["AUTHORIZATION"] != "Bearer explicit" || len(got) != 1 {
		t.Fatalf("SetDefault() = %#v, want explicit value kept", got)
	}

	got = SetDefault(nil, "X-Api-Key", "${KEY}")
	if got["X-Api-Key"] != "${KEY}" {
		t.Fatalf("SetDefault(nil) = %#v", got)
	}
}

func TestParse(t *testing.T) {
	got, err := Parse([]string{"Authorization: Bearer ${TOKEN}", "X-Team=infra", "x-team: platform"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Parse() = %#v, want two headers", got)
	}
	if got["Authorization"] != "Bearer ${TOKEN}" {
		t.Fatalf(`got["Authorization"] = %q`, got["Authorization"])
	}
	if got["x-team"] != "platform" {
		t.Fatalf("later pair should win: %#v", got)
	}

	for _, bad := range []string{"novalue", ": x", "Bad Name: x"} {
		if _, err := Parse([]string{bad}); err == nil {
			t.Fatalf("Parse(%q) error = nil, want error", bad)
		}
	}
}
