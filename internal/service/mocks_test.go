package service

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"github.com/bond-service/internal/auth"
	"github.com/bond-service/internal/isin"
	"github.com/bond-service/internal/models"
	"github.com/bond-service/internal/storage"
)

// Mock repositories for testing. They hand out copies so a service that
// mutates a record before failing validation leaves the store untouched.

type mockUserRepo struct {
	users map[string]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return &storage.ConflictError{Constraint: "users_username_key"}
		}
	}
	if user.ID == "" {
		user.ID = fmt.Sprintf("test-user-id-%d", len(m.users)+1)
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user not found: %s: %w", id, storage.ErrNotFound)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user not found: %s: %w", username, storage.ErrNotFound)
}

func (m *mockUserRepo) List(ctx context.Context) ([]*models.User, error) {
	var result []*models.User
	for _, u := range m.users {
		cp := *u
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	for id, u := range m.users {
		if id != user.ID && u.Username == user.Username {
			return &storage.ConflictError{Constraint: "users_username_key"}
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user not found: %s: %w", id, storage.ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

type mockPortfolioRepo struct {
	portfolios map[string]*models.Portfolio
	// bonds is cleared of a deleted portfolio's bonds when set
	bonds *mockBondRepo
}

func newMockPortfolioRepo() *mockPortfolioRepo {
	return &mockPortfolioRepo{portfolios: map[string]*models.Portfolio{}}
}

func (m *mockPortfolioRepo) Create(ctx context.Context, portfolio *models.Portfolio) error {
	for _, p := range m.portfolios {
		if p.Name == portfolio.Name {
			return &storage.ConflictError{Constraint: "portfolios_name_key"}
		}
	}
	if portfolio.ID == "" {
		// Generate unique ID based on number of portfolios
		portfolio.ID = fmt.Sprintf("test-portfolio-id-%d", len(m.portfolios)+1)
	}
	cp := *portfolio
	m.portfolios[portfolio.ID] = &cp
	return nil
}

func (m *mockPortfolioRepo) GetByID(ctx context.Context, id string) (*models.Portfolio, error) {
	if p, ok := m.portfolios[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("portfolio not found: %s: %w", id, storage.ErrNotFound)
}

func (m *mockPortfolioRepo) List(ctx context.Context) ([]*models.Portfolio, error) {
	var result []*models.Portfolio
	for _, p := range m.portfolios {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockPortfolioRepo) ListByOwner(ctx context.Context, userID string) ([]*models.Portfolio, error) {
	all, _ := m.List(ctx)
	var result []*models.Portfolio
	for _, p := range all {
		if p.CreatedBy == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockPortfolioRepo) Update(ctx context.Context, portfolio *models.Portfolio) error {
	for id, p := range m.portfolios {
		if id != portfolio.ID && p.Name == portfolio.Name {
			return &storage.ConflictError{Constraint: "portfolios_name_key"}
		}
	}
	cp := *portfolio
	m.portfolios[portfolio.ID] = &cp
	return nil
}

func (m *mockPortfolioRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.portfolios[id]; !ok {
		return fmt.Errorf("portfolio not found: %s: %w", id, storage.ErrNotFound)
	}
	delete(m.portfolios, id)
	if m.bonds != nil {
		for bid, b := range m.bonds.bonds {
			if b.PortfolioID == id {
				delete(m.bonds.bonds, bid)
			}
		}
	}
	return nil
}

type mockBondRepo struct {
	bonds      map[string]*models.Bond
	portfolios *mockPortfolioRepo
	seq        int
}

func newMockBondRepo(portfolios *mockPortfolioRepo) *mockBondRepo {
	repo := &mockBondRepo{bonds: map[string]*models.Bond{}, portfolios: portfolios}
	portfolios.bonds = repo
	return repo
}

func (m *mockBondRepo) unique(bond *models.Bond) error {
	for id, b := range m.bonds {
		if id == bond.ID {
			continue
		}
		if b.EmissionName == bond.EmissionName {
			return &storage.ConflictError{Constraint: "bonds_emission_name_key"}
		}
		if b.EmissionISIN == bond.EmissionISIN {
			return &storage.ConflictError{Constraint: "bonds_emission_isin_key"}
		}
	}
	return nil
}

func (m *mockBondRepo) Create(ctx context.Context, bond *models.Bond) error {
	if err := m.unique(bond); err != nil {
		return err
	}
	m.seq++
	if bond.ID == "" {
		bond.ID = fmt.Sprintf("test-bond-id-%03d", m.seq)
	}
	cp := *bond
	m.bonds[bond.ID] = &cp
	return nil
}

func (m *mockBondRepo) GetByID(ctx context.Context, id string) (*models.Bond, error) {
	if b, ok := m.bonds[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, fmt.Errorf("bond not found: %s: %w", id, storage.ErrNotFound)
}

func (m *mockBondRepo) List(ctx context.Context) ([]*models.Bond, error) {
	var result []*models.Bond
	for _, b := range m.bonds {
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockBondRepo) ListByOwner(ctx context.Context, userID string) ([]*models.Bond, error) {
	all, _ := m.List(ctx)
	var result []*models.Bond
	for _, b := range all {
		if p, ok := m.portfolios.portfolios[b.PortfolioID]; ok && p.CreatedBy == userID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockBondRepo) ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.Bond, error) {
	all, _ := m.List(ctx)
	var result []*models.Bond
	for _, b := range all {
		if b.PortfolioID == portfolioID {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockBondRepo) Update(ctx context.Context, bond *models.Bond) error {
	if err := m.unique(bond); err != nil {
		return err
	}
	cp := *bond
	m.bonds[bond.ID] = &cp
	return nil
}

func (m *mockBondRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.bonds[id]; !ok {
		return fmt.Errorf("bond not found: %s: %w", id, storage.ErrNotFound)
	}
	delete(m.bonds, id)
	return nil
}

// fixture wires every service over shared in-memory repositories
type fixture struct {
	users      *mockUserRepo
	portfolios *mockPortfolioRepo
	bonds      *mockBondRepo

	userService      *UserService
	portfolioService *PortfolioService
	bondService      *BondService
	analysisService  *AnalysisService
}

func newFixture(validator func(ctx context.Context, isin string) error) *fixture {
	f := &fixture{
		users:      newMockUserRepo(),
		portfolios: newMockPortfolioRepo(),
	}
	f.bonds = newMockBondRepo(f.portfolios)

	f.userService = NewUserService(f.users, auth.NewPasswordHasher(bcrypt.MinCost))
	f.portfolioService = NewPortfolioService(f.portfolios)
	if validator == nil {
		f.bondService = NewBondService(f.bonds, f.portfolios, nil)
	} else {
		f.bondService = NewBondService(f.bonds, f.portfolios, isin.ValidatorFunc(validator))
	}
	f.analysisService = NewAnalysisService(f.portfolios, f.bonds)
	return f
}

var (
	alice = &auth.Principal{UserID: "alice", Username: "alice"}
	bob   = &auth.Principal{UserID: "bob", Username: "bob"}
	admin = &auth.Principal{UserID: "admin", Username: "admin", IsSuperuser: true}
)
