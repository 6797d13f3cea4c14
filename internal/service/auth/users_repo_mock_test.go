package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hashvault/wallet-backend/internal/adapter/postgres"
	userrepo "github.com/hashvault/wallet-backend/internal/adapter/postgres/user"
	"github.com/hashvault/wallet-backend/internal/domain"
)

var _ usersRepo = &usersRepoMock{}

type usersRepoMock struct {
	FindByIDFunc           func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmailFunc        func(ctx context.Context, email string) (*domain.User, error)
	FindByRefreshTokenFunc func(ctx context.Context, tokenHash string) (*domain.User, error)
	SaveFunc               func(ctx context.Context, u *domain.User, prev *userrepo.Snapshot) (*userrepo.Snapshot, error)
	VerifyPasswordFunc     func(u *domain.User, plaintext string) bool
	UpdateManyFunc         func(ctx context.Context, f postgres.Filter, u postgres.Update) (int64, error)

	calls struct {
		FindByID []struct {
			Ctx context.Context
			ID  uuid.UUID
		}
		FindByEmail []struct {
			Ctx   context.Context
			Email string
		}
		FindByRefreshToken []struct {
			Ctx       context.Context
			TokenHash string
		}
		Save []struct {
			Ctx  context.Context
			U    *domain.User
			Prev *userrepo.Snapshot
		}
		VerifyPassword []struct {
			U         *domain.User
			Plaintext string
		}
		UpdateMany []struct {
			Ctx context.Context
			F   postgres.Filter
			U   postgres.Update
		}
	}
	lockFindByID           sync.RWMutex
	lockFindByEmail        sync.RWMutex
	lockFindByRefreshToken sync.RWMutex
	lockSave               sync.RWMutex
	lockVerifyPassword     sync.RWMutex
	lockUpdateMany         sync.RWMutex
}

func (mock *usersRepoMock) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if mock.FindByIDFunc == nil {
		panic("usersRepoMock.FindByIDFunc: method is nil but usersRepo.FindByID was just called")
	}
	callInfo := struct {
		Ctx context.Context
		ID  uuid.UUID
	}{Ctx: ctx, ID: id}
	mock.lockFindByID.Lock()
	mock.calls.FindByID = append(mock.calls.FindByID, callInfo)
	mock.lockFindByID.Unlock()
	return mock.FindByIDFunc(ctx, id)
}

func (mock *usersRepoMock) FindByIDCalls() []struct {
	Ctx context.Context
	ID  uuid.UUID
} {
	mock.lockFindByID.RLock()
	calls := mock.calls.FindByID
	mock.lockFindByID.RUnlock()
	return calls
}

func (mock *usersRepoMock) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if mock.FindByEmailFunc == nil {
		panic("usersRepoMock.FindByEmailFunc: method is nil but usersRepo.FindByEmail was just called")
	}
	callInfo := struct {
		Ctx   context.Context
		Email string
	}{Ctx: ctx, Email: email}
	mock.lockFindByEmail.Lock()
	mock.calls.FindByEmail = append(mock.calls.FindByEmail, callInfo)
	mock.lockFindByEmail.Unlock()
	return mock.FindByEmailFunc(ctx, email)
}

func (mock *usersRepoMock) FindByEmailCalls() []struct {
	Ctx   context.Context
	Email string
} {
	mock.lockFindByEmail.RLock()
	calls := mock.calls.FindByEmail
	mock.lockFindByEmail.RUnlock()
	return calls
}

func (mock *usersRepoMock) FindByRefreshToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	if mock.FindByRefreshTokenFunc == nil {
		panic("usersRepoMock.FindByRefreshTokenFunc: method is nil but usersRepo.FindByRefreshToken was just called")
	}
	callInfo := struct {
		Ctx       context.Context
		TokenHash string
	}{Ctx: ctx, TokenHash: tokenHash}
	mock.lockFindByRefreshToken.Lock()
	mock.calls.FindByRefreshToken = append(mock.calls.FindByRefreshToken, callInfo)
	mock.lockFindByRefreshToken.Unlock()
	return mock.FindByRefreshTokenFunc(ctx, tokenHash)
}

func (mock *usersRepoMock) FindByRefreshTokenCalls() []struct {
	Ctx       context.Context
	TokenHash string
} {
	mock.lockFindByRefreshToken.RLock()
	calls := mock.calls.FindByRefreshToken
	mock.lockFindByRefreshToken.RUnlock()
	return calls
}

func (mock *usersRepoMock) Save(ctx context.Context, u *domain.User, prev *userrepo.Snapshot) (*userrepo.Snapshot, error) {
	if mock.SaveFunc == nil {
		panic("usersRepoMock.SaveFunc: method is nil but usersRepo.Save was just called")
	}
	callInfo := struct {
		Ctx  context.Context
		U    *domain.User
		Prev *userrepo.Snapshot
	}{Ctx: ctx, U: u, Prev: prev}
	mock.lockSave.Lock()
	mock.calls.Save = append(mock.calls.Save, callInfo)
	mock.lockSave.Unlock()
	return mock.SaveFunc(ctx, u, prev)
}

func (mock *usersRepoMock) SaveCalls() []struct {
	Ctx  context.Context
	U    *domain.User
	Prev *userrepo.Snapshot
} {
	mock.lockSave.RLock()
	calls := mock.calls.Save
	mock.lockSave.RUnlock()
	return calls
}

func (mock *usersRepoMock) VerifyPassword(u *domain.User, plaintext string) bool {
	if mock.VerifyPasswordFunc == nil {
		panic("usersRepoMock.VerifyPasswordFunc: method is nil but usersRepo.VerifyPassword was just called")
	}
	callInfo := struct {
		U         *domain.User
		Plaintext string
	}{U: u, Plaintext: plaintext}
	mock.lockVerifyPassword.Lock()
	mock.calls.VerifyPassword = append(mock.calls.VerifyPassword, callInfo)
	mock.lockVerifyPassword.Unlock()
	return mock.VerifyPasswordFunc(u, plaintext)
}

func (mock *usersRepoMock) VerifyPasswordCalls() []struct {
	U         *domain.User
	Plaintext string
} {
	mock.lockVerifyPassword.RLock()
	calls := mock.calls.VerifyPassword
	mock.lockVerifyPassword.RUnlock()
	return calls
}

func (mock *usersRepoMock) UpdateMany(ctx context.Context, f postgres.Filter, u postgres.Update) (int64, error) {
	if mock.UpdateManyFunc == nil {
		panic("usersRepoMock.UpdateManyFunc: method is nil but usersRepo.UpdateMany was just called")
	}
	callInfo := struct {
		Ctx context.Context
		F   postgres.Filter
		U   postgres.Update
	}{Ctx: ctx, F: f, U: u}
	mock.lockUpdateMany.Lock()
	mock.calls.UpdateMany = append(mock.calls.UpdateMany, callInfo)
	mock.lockUpdateMany.Unlock()
	return mock.UpdateManyFunc(ctx, f, u)
}

func (mock *usersRepoMock) UpdateManyCalls() []struct {
	Ctx context.Context
	F   postgres.Filter
	U   postgres.Update
} {
	mock.lockUpdateMany.RLock()
	calls := mock.calls.UpdateMany
	mock.lockUpdateMany.RUnlock()
	return calls
}
