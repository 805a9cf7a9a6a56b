package storage

import (
	"context"
	"errors"
	"testing"
)

func TestNullBackendWritesSucceed(t *testing.T) {
	backend := NewNullBackend()
	ctx := context.Background()

	if err := backend.StoreClient(ctx, &Client{ID: "c"}); err != nil {
		t.Errorf("StoreClient() error = %v", err)
	}
	if err := backend.StoreToken(ctx, &AccessToken{Token: "t"}); err != nil {
		t.Errorf("StoreToken() error = %v", err)
	}
	if err := backend.StoreAuthCode(ctx, &AuthorizationCode{Code: "a"}); err != nil {
		t.Errorf("StoreAuthCode() error = %v", err)
	}
	if err := backend.DeleteToken(ctx, "t"); err != nil {
		t.Errorf("DeleteToken() error = %v", err)
	}
	if err := backend.DeleteAuthCode(ctx, "a"); err != nil {
		t.Errorf("DeleteAuthCode() error = %v", err)
	}
}

func TestNullBackendReadsReportNotFound(t *testing.T) {
	backend := NewNullBackend()
	ctx := context.Background()

	if _, err := backend.LoadClient(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadClient() error = %v, want ErrNotFound", err)
	}
	if _, err := backend.LoadToken(ctx, "t"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadToken() error = %v, want ErrNotFound", err)
	}
	if _, err := backend.LoadAuthCode(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadAuthCode() error = %v, want ErrNotFound", err)
	}

	clients, err := backend.ListClients(ctx)
	if err != nil {
		t.Errorf("ListClients() error = %v", err)
	}
	if len(clients) != 0 {
		t.Errorf("ListClients() = %d clients, want 0", len(clients))
	}
}
