package token_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/hashvault/wallet-backend/internal/adapter/postgres"
	"github.com/hashvault/wallet-backend/internal/adapter/postgres/testhelper"
	"github.com/hashvault/wallet-backend/internal/adapter/postgres/token"
	"github.com/hashvault/wallet-backend/internal/domain"
)

func newRepo(t *testing.T) (*token.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return token.New(pool), pool
}

func newToken() *domain.Token {
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return &domain.Token{
		Symbol:   "T" + suffix,
		Name:     "Test Token " + suffix,
		Network:  domain.NetworkEthereum,
		Decimals: 18,
		Enabled:  true,
	}
}

func TestRepo_Save_InsertAndUpdate(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	contract := "0x" + uuid.New().String()[:12]

	tok := newToken()
	tok.ContractAddress = &contract
	if err := repo.Save(ctx, tok); err != nil {
		t.Fatalf("Save insert: %v", err)
	}
	if tok.ID == uuid.Nil {
		t.Fatal("Save must assign the id on first insert")
	}

	tok.Enabled = false
	if err := repo.Save(ctx, tok); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, err := repo.FindByID(ctx, tok.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Enabled {
		t.Error("Enabled = true, want the stored false")
	}
	if got.ContractAddress == nil || *got.ContractAddress != contract {
		t.Errorf("ContractAddress = %v, want %q", got.ContractAddress, contract)
	}
	if got.Decimals != 18 {
		t.Errorf("Decimals = %d, want 18", got.Decimals)
	}
}

func TestRepo_Save_DuplicateSymbol(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	t1 := newToken()
	if err := repo.Save(ctx, t1); err != nil {
		t.Fatalf("Save first: %v", err)
	}

	dup := newToken()
	dup.Symbol = t1.Symbol
	if err := repo.Save(ctx, dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Save duplicate = %v, want ErrAlreadyExists", err)
	}

	// The same symbol is fine on another network.
	other := newToken()
	other.Symbol = t1.Symbol
	other.Network = domain.NetworkPolygon
	if err := repo.Save(ctx, other); err != nil {
		t.Errorf("Save on another network = %v, want nil", err)
	}
}

func TestRepo_FindBySymbol(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	tok := newToken()
	if err := repo.Save(ctx, tok); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.FindBySymbol(ctx, tok.Symbol, domain.NetworkEthereum)
	if err != nil {
		t.Fatalf("FindBySymbol: %v", err)
	}
	if got.ID != tok.ID {
		t.Errorf("ID = %s, want %s", got.ID, tok.ID)
	}

	_, err = repo.FindBySymbol(ctx, tok.Symbol, domain.NetworkTron)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("FindBySymbol wrong network = %v, want ErrNotFound", err)
	}
}

func TestRepo_EnabledDefaultsTrue(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	// A row written without the column materializes as tradable.
	id := uuid.New()
	symbol := "N" + strings.ToUpper(uuid.New().String()[:6])
	_, err := pool.Exec(ctx,
		`INSERT INTO tokens (id, symbol, name, network, decimals)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, symbol, "Default Enabled", domain.NetworkEthereum.String(), 8,
	)
	if err != nil {
		t.Fatalf("insert row: %v", err)
	}

	got, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.Enabled {
		t.Error("Enabled = false, want the default true for a NULL column")
	}
}

func TestRepo_Find_EnabledOnly(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	enabled := newToken()
	if err := repo.Save(ctx, enabled); err != nil {
		t.Fatalf("Save: %v", err)
	}
	disabled := newToken()
	disabled.Enabled = false
	if err := repo.Save(ctx, disabled); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Find(postgres.Filter{
		"symbol":  map[string]any{"$in": []any{enabled.Symbol, disabled.Symbol}},
		"enabled": true,
	}).All(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].ID != enabled.ID {
		t.Errorf("got %d tokens, want only the enabled one", len(got))
	}
}

func TestRepo_InsertMany(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	toks := []*domain.Token{newToken(), newToken()}
	if err := repo.InsertMany(ctx, toks); err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	for _, tok := range toks {
		if tok.ID == uuid.Nil {
			t.Fatal("InsertMany must assign ids")
		}
		if _, err := repo.FindByID(ctx, tok.ID); err != nil {
			t.Errorf("FindByID(%s): %v", tok.Symbol, err)
		}
	}
}
