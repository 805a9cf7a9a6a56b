package authbridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/mcp-authbridge/internal/testutil"
	"github.com/giantswarm/mcp-authbridge/storage"
	storagemock "github.com/giantswarm/mcp-authbridge/storage/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryClientReadThrough(t *testing.T) {
	backend := storagemock.NewBackend()
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	// Seed the backend directly; the cache knows nothing about it.
	seeded := testutil.GenerateTestClient()
	if err := backend.StoreClient(ctx, seeded); err != nil {
		t.Fatalf("StoreClient() error = %v", err)
	}

	client, err := registry.Client(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("Client() error = %v", err)
	}
	if client.ID != seeded.ID {
		t.Errorf("ID = %q, want %q", client.ID, seeded.ID)
	}

	// Second lookup is served from cache.
	loads := backend.CallCount("LoadClient")
	if _, err := registry.Client(ctx, seeded.ID); err != nil {
		t.Fatalf("cached Client() error = %v", err)
	}
	if backend.CallCount("LoadClient") != loads {
		t.Error("cached lookup hit the backend")
	}
}

func TestRegistryClientWriteThrough(t *testing.T) {
	backend := storagemock.NewBackend()
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	if err := registry.PutClient(ctx, client); err != nil {
		t.Fatalf("PutClient() error = %v", err)
	}

	stored, err := backend.LoadClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("client not mirrored to backend: %v", err)
	}
	if stored.ID != client.ID {
		t.Errorf("mirrored ID = %q", stored.ID)
	}
}

func TestRegistryPersistenceWriteFailureIsNonFatal(t *testing.T) {
	backend := storagemock.NewBackend()
	backend.FailWrites = errors.New("write refused")
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	client := testutil.GenerateTestClient()
	if err := registry.PutClient(ctx, client); err != nil {
		t.Fatalf("PutClient() with failing backend: error = %v", err)
	}

	// The in-memory state still serves it.
	if _, err := registry.Client(ctx, client.ID); err != nil {
		t.Errorf("Client() after failed persist: error = %v", err)
	}
}

func TestRegistryPersistenceReadFailureIsNotFound(t *testing.T) {
	backend := storagemock.NewBackend()
	backend.FailReads = errors.New("read refused")
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	if _, err := registry.Client(ctx, "anything"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Client() error = %v, want ErrNotFound", err)
	}
	if _, err := registry.Code(ctx, "anything"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Code() error = %v, want ErrNotFound", err)
	}
	if _, err := registry.Token(ctx, "anything"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Token() error = %v, want ErrNotFound", err)
	}
}

func TestRegistryClientsMergesBackendAndCache(t *testing.T) {
	backend := storagemock.NewBackend()
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	persisted := &storage.Client{ID: "persisted-only"}
	if err := backend.StoreClient(ctx, persisted); err != nil {
		t.Fatalf("StoreClient() error = %v", err)
	}

	cached := &storage.Client{ID: "cached"}
	if err := registry.PutClient(ctx, cached); err != nil {
		t.Fatalf("PutClient() error = %v", err)
	}

	clients, err := registry.Clients(ctx)
	if err != nil {
		t.Fatalf("Clients() error = %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("Clients() returned %d entries, want 2", len(clients))
	}
}

func TestRegistryCodeLazyExpiry(t *testing.T) {
	backend := storagemock.NewBackend()
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	code.ExpiresAt = time.Now().Add(-time.Minute)
	if err := registry.PutCode(ctx, code, "ext-tok"); err != nil {
		t.Fatalf("PutCode() error = %v", err)
	}

	if _, err := registry.Code(ctx, code.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired code lookup error = %v, want ErrNotFound", err)
	}

	// The expired entry and its mapping are gone, in cache and backend.
	if _, ok := registry.ExternalToken(code.Code); ok {
		t.Error("external mapping survived code expiry")
	}
	if _, err := backend.LoadAuthCode(ctx, code.Code); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("backend LoadAuthCode() error = %v, want ErrNotFound", err)
	}
}

func TestRegistryCodeReadThroughFromBackend(t *testing.T) {
	backend := storagemock.NewBackend()
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	if err := backend.StoreAuthCode(ctx, code); err != nil {
		t.Fatalf("StoreAuthCode() error = %v", err)
	}

	got, err := registry.Code(ctx, code.Code)
	if err != nil {
		t.Fatalf("Code() error = %v", err)
	}
	if got.ClientID != code.ClientID {
		t.Errorf("ClientID = %q", got.ClientID)
	}
}

func TestRegistryExchangeIsSingleUse(t *testing.T) {
	registry := NewCredentialRegistry(nil, testLogger())
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	if err := registry.PutCode(ctx, code, "ext-tok"); err != nil {
		t.Fatalf("PutCode() error = %v", err)
	}

	first := testutil.GenerateTestAccessToken()
	if err := registry.Exchange(ctx, code.Code, first); err != nil {
		t.Fatalf("first Exchange() error = %v", err)
	}

	second := testutil.GenerateTestAccessToken()
	if err := registry.Exchange(ctx, code.Code, second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Exchange() error = %v, want ErrNotFound", err)
	}

	// Mapping followed the first token only.
	if ext, ok := registry.ExternalToken(first.Token); !ok || ext != "ext-tok" {
		t.Errorf("mapping for first token = %q, %v", ext, ok)
	}
	if _, ok := registry.ExternalToken(second.Token); ok {
		t.Error("second token acquired a mapping")
	}
}

func TestRegistryExchangeConcurrent(t *testing.T) {
	registry := NewCredentialRegistry(nil, testLogger())
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	if err := registry.PutCode(ctx, code, "ext-tok"); err != nil {
		t.Fatalf("PutCode() error = %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- registry.Exchange(ctx, code.Code, testutil.GenerateTestAccessToken())
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrNotFound) {
			t.Errorf("Exchange() error = %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("code exchanged %d times, want exactly 1", successes)
	}
}

func TestRegistryDeleteTokenIdempotent(t *testing.T) {
	backend := storagemock.NewBackend()
	registry := NewCredentialRegistry(backend, testLogger())
	ctx := context.Background()

	token := testutil.GenerateTestAccessToken()
	code := testutil.GenerateTestAuthorizationCode()
	if err := registry.PutCode(ctx, code, "ext-tok"); err != nil {
		t.Fatalf("PutCode() error = %v", err)
	}
	if err := registry.Exchange(ctx, code.Code, token); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if err := registry.DeleteToken(ctx, token.Token); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if _, err := registry.Token(ctx, token.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted token lookup error = %v", err)
	}
	if _, err := backend.LoadToken(ctx, token.Token); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("backend still holds deleted token")
	}
	if err := registry.DeleteToken(ctx, token.Token); err != nil {
		t.Errorf("repeated DeleteToken() error = %v", err)
	}
	if err := registry.DeleteToken(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteToken(unknown) error = %v", err)
	}
}

func TestRegistryTokenZeroExpiryNeverExpires(t *testing.T) {
	registry := NewCredentialRegistry(nil, testLogger())
	ctx := context.Background()

	code := testutil.GenerateTestAuthorizationCode()
	if err := registry.PutCode(ctx, code, ""); err != nil {
		t.Fatalf("PutCode() error = %v", err)
	}
	token := testutil.GenerateTestAccessToken()
	token.ExpiresAt = time.Time{}
	if err := registry.Exchange(ctx, code.Code, token); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	if _, err := registry.Token(ctx, token.Token); err != nil {
		t.Errorf("non-expiring token lookup error = %v", err)
	}
}
