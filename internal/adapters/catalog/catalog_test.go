package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"load-tester/internal/domain"
)

func TestBuiltinScenarios(t *testing.T) {
	t.Parallel()
	c := NewCatalog()

	for _, name := range []string{
		"login_lobby_game", "quick_match", "lobby_browse",
		"mobile_journey", "mobile_social",
	} {
		sc, ok := c.GetScenario(name)
		if !ok {
			t.Fatalf("builtin %q missing", name)
		}
		if err := sc.Validate(); err != nil {
			t.Fatalf("builtin %q invalid: %v", name, err)
		}
		for _, a := range sc.Actions {
			if a.Method != "GET" && a.Method != "POST" {
				t.Fatalf("builtin %q action %q has method %q", name, a.Name, a.Method)
			}
		}
	}

	login, _ := c.GetScenario("login_lobby_game")
	if login.Actions[0].Name != "login" || login.Actions[0].Extract["session_id"] != "$.session_id" {
		t.Fatalf("login action = %+v", login.Actions[0])
	}

	mobile, _ := c.GetScenario("mobile_journey")
	if got := mobile.Actions[0].Headers["X-Platform"]; got != "iOS" {
		t.Fatalf("mobile headers = %v", mobile.Actions[0].Headers)
	}
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()
	c := NewCatalog()

	if err := c.PutScenario(domain.Scenario{
		Name:    "custom",
		Actions: []domain.Action{{Name: "x", Method: "GET", Endpoint: "/x"}},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	list := c.ListScenarios()
	if list[0].Name != "login_lobby_game" {
		t.Fatalf("first = %q", list[0].Name)
	}
	if list[len(list)-1].Name != "custom" {
		t.Fatalf("last = %q", list[len(list)-1].Name)
	}

	// replacing keeps the original position
	if err := c.PutScenario(domain.Scenario{
		Name:        "login_lobby_game",
		Description: "replaced",
		Actions:     []domain.Action{{Name: "y", Method: "GET", Endpoint: "/y"}},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	list = c.ListScenarios()
	if list[0].Name != "login_lobby_game" || list[0].Description != "replaced" {
		t.Fatalf("first after replace = %+v", list[0])
	}

	if err := c.PutScenario(domain.Scenario{}); err == nil {
		t.Fatal("nameless scenario must be rejected")
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := `name: checkout
description: storefront checkout flow
actions:
  - name: browse
    endpoint: /api/products
    delay: 1.5
  - name: add_to_cart
    method: post
    endpoint: /api/cart
    payload:
      product_id: "prod_1"
    expected_status: 201
  - name: pay
    method: POST
    endpoint: /api/checkout
    expected_status: [200, 402]
    extract:
      order_id: $.order.id
`
	if err := os.WriteFile(filepath.Join(dir, "checkout.yaml"), []byte(good), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := NewCatalog()
	n, err := c.LoadDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 1 {
		t.Fatalf("loaded %d files, want 1", n)
	}

	sc, ok := c.GetScenario("checkout")
	if !ok {
		t.Fatal("loaded scenario missing")
	}
	if sc.Actions[0].Method != "GET" {
		t.Fatalf("default method = %q", sc.Actions[0].Method)
	}
	if sc.Actions[1].Method != "POST" {
		t.Fatalf("lowercase method not normalized: %q", sc.Actions[1].Method)
	}
	if len(sc.Actions[1].ExpectedStatus) != 1 || sc.Actions[1].ExpectedStatus[0] != 201 {
		t.Fatalf("single expected_status = %v", sc.Actions[1].ExpectedStatus)
	}
	if len(sc.Actions[2].ExpectedStatus) != 2 {
		t.Fatalf("list expected_status = %v", sc.Actions[2].ExpectedStatus)
	}
	if sc.Actions[2].Extract["order_id"] != "$.order.id" {
		t.Fatalf("extract = %v", sc.Actions[2].Extract)
	}
}

func TestLoadDirRejectsBrokenFiles(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad-yaml.yaml":   "name: [unclosed",
		"no-actions.yml":  "name: empty\n",
		"bad-status.yaml": "name: s\nactions:\n  - name: a\n    endpoint: /x\n    expected_status: maybe\n",
	}
	for fname, content := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, fname), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := NewCatalog().LoadDir(dir); err == nil {
			t.Errorf("%s loaded without error", fname)
		}
	}

	if _, err := NewCatalog().LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing directory must error")
	}
}
