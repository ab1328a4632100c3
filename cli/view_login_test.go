package cli

import (
	"testing"

	"github.com/duckpond-io/pondctl/api"
)

func TestLoginStoresFullAccountSnapshot(t *testing.T) {
	store := api.NewSessionStore()
	client := api.New("http://localhost:8000")
	v := newLoginView(newTUITheme(), client, store, 1)

	msg := loginResultMsg{
		epoch: 1,
		resp: &api.LoginResponse{
			User:   api.UserInfo{AccountID: "acct-1", Name: "ana"},
			Tenant: api.TenantInfo{Name: "duckpond"},
		},
		me: &api.MeResponse{
			Quotas:  map[string]any{"max_storage_gb": 50.0},
			APIKeys: []map[string]any{{"key_id": "k1", "key_preview": "dp_live_12"}},
		},
	}
	_, cmd := v.Update(msg)
	if cmd == nil {
		t.Fatal("expected navigation command after successful login")
	}

	sess := store.Get()
	if sess == nil {
		t.Fatal("no session stored")
	}
	if sess.AccountID != "acct-1" || sess.Name != "ana" || sess.Tenant != "duckpond" {
		t.Fatalf("session = %+v", sess)
	}
	if got, ok := sess.Quotas["max_storage_gb"]; !ok || got != 50.0 {
		t.Fatalf("quotas = %v", sess.Quotas)
	}
	if len(sess.APIKeys) != 1 || sess.APIKeys[0]["key_id"] != "k1" {
		t.Fatalf("api keys = %v", sess.APIKeys)
	}
}

func TestLoginWithoutProfileStillSignsIn(t *testing.T) {
	store := api.NewSessionStore()
	client := api.New("http://localhost:8000")
	v := newLoginView(newTUITheme(), client, store, 1)

	msg := loginResultMsg{
		epoch: 1,
		resp: &api.LoginResponse{
			User: api.UserInfo{AccountID: "acct-1", Name: "ana"},
		},
	}
	v.Update(msg)

	sess := store.Get()
	if sess == nil {
		t.Fatal("no session stored")
	}
	if sess.Quotas != nil || sess.APIKeys != nil {
		t.Fatalf("unexpected profile data: %+v", sess)
	}
}
