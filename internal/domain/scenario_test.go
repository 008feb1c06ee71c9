package domain

import (
	"encoding/json"
	"testing"
)

func TestStatusSetUnmarshal(t *testing.T) {
	var single StatusSet
	if err := json.Unmarshal([]byte(`201`), &single); err != nil {
		t.Fatalf("single: %v", err)
	}
	if len(single) != 1 || single[0] != 201 {
		t.Fatalf("single = %v, want [201]", single)
	}

	var many StatusSet
	if err := json.Unmarshal([]byte(`[200, 404]`), &many); err != nil {
		t.Fatalf("array: %v", err)
	}
	if len(many) != 2 || many[0] != 200 || many[1] != 404 {
		t.Fatalf("array = %v, want [200 404]", many)
	}

	var bad StatusSet
	if err := json.Unmarshal([]byte(`"ok"`), &bad); err == nil {
		t.Fatal("expected error for string status")
	}
}

func TestStatusSetMarshal(t *testing.T) {
	b, err := json.Marshal(StatusSet{204})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "204" {
		t.Fatalf("single marshals to %s, want 204", b)
	}
	b, err = json.Marshal(StatusSet{200, 201})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[200,201]" {
		t.Fatalf("set marshals to %s, want [200,201]", b)
	}
}

func TestStatusSetMatches(t *testing.T) {
	var empty StatusSet
	if !empty.Matches(200) {
		t.Fatal("empty set must accept 200")
	}
	if empty.Matches(204) {
		t.Fatal("empty set must accept only 200")
	}
	set := StatusSet{200, 404}
	if !set.Matches(404) || set.Matches(500) {
		t.Fatalf("set %v matched wrong codes", set)
	}
}

func TestScenarioRefUnmarshal(t *testing.T) {
	var byName ScenarioRef
	if err := json.Unmarshal([]byte(`"quick_match"`), &byName); err != nil {
		t.Fatalf("name: %v", err)
	}
	if byName.Name != "quick_match" || byName.Inline != nil {
		t.Fatalf("name ref = %+v", byName)
	}

	inlineJSON := `{"name":"inline","actions":[{"name":"ping","endpoint":"/ping"}]}`
	var inline ScenarioRef
	if err := json.Unmarshal([]byte(inlineJSON), &inline); err != nil {
		t.Fatalf("inline: %v", err)
	}
	if inline.Inline == nil || inline.Name != "inline" || len(inline.Inline.Actions) != 1 {
		t.Fatalf("inline ref = %+v", inline)
	}

	var bad ScenarioRef
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatal("expected error for numeric scenario")
	}
}

func TestScenarioRefMarshalPrefersInline(t *testing.T) {
	sc := Scenario{Name: "s", Actions: []Action{{Name: "a", Endpoint: "/a"}}}
	b, err := json.Marshal(ScenarioRef{Name: "s", Inline: &sc})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) == `"s"` {
		t.Fatal("inline ref must marshal the full object")
	}
	b, err = json.Marshal(ScenarioRef{Name: "s"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"s"` {
		t.Fatalf("name-only ref marshals to %s, want \"s\"", b)
	}
}

func TestActionNormalize(t *testing.T) {
	a := Action{Name: "x", Endpoint: "/x"}
	a.Normalize()
	if a.Method != "GET" {
		t.Fatalf("default method = %q, want GET", a.Method)
	}
	a = Action{Name: "x", Method: "post", Endpoint: "/x"}
	a.Normalize()
	if a.Method != "POST" {
		t.Fatalf("method = %q, want POST", a.Method)
	}
}

func TestActionValidate(t *testing.T) {
	cases := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"valid", Action{Name: "login", Method: "POST", Endpoint: "/api/login"}, false},
		{"missing name", Action{Endpoint: "/x"}, true},
		{"missing endpoint", Action{Name: "x"}, true},
		{"bad method", Action{Name: "x", Method: "FETCH", Endpoint: "/x"}, true},
		{"negative delay", Action{Name: "x", Endpoint: "/x", Delay: -1}, true},
		{"status out of range", Action{Name: "x", Endpoint: "/x", ExpectedStatus: StatusSet{42}}, true},
		{"status set ok", Action{Name: "x", Endpoint: "/x", ExpectedStatus: StatusSet{200, 404}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.action.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestScenarioValidate(t *testing.T) {
	ok := Scenario{Name: "s", Actions: []Action{{Name: "a", Endpoint: "/a"}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid scenario rejected: %v", err)
	}
	if err := (Scenario{Actions: []Action{{Name: "a", Endpoint: "/a"}}}).Validate(); err == nil {
		t.Fatal("nameless scenario accepted")
	}
	if err := (Scenario{Name: "empty"}).Validate(); err == nil {
		t.Fatal("actionless scenario accepted")
	}
}
