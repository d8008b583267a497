package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"researchblog/internal/models"
)

// Memory keeps accounts and posts in process. It backs DB_DRIVER=memory and the tests.
type Memory struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]models.Account
	posts    map[uuid.UUID]models.Post
	now      func() time.Time

	// insertion order breaks CreatedAt ties
	seq     uint64
	postSeq map[uuid.UUID]uint64
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[uuid.UUID]models.Account),
		posts:    make(map[uuid.UUID]models.Post),
		now:      time.Now,
		postSeq:  make(map[uuid.UUID]uint64),
	}
}

// SetClock replaces the timestamp source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Accounts() AccountRepository { return memoryAccounts{m} }

func (m *Memory) Posts() PostRepository { return memoryPosts{m} }

type memoryAccounts struct{ m *Memory }

func (r memoryAccounts) Create(_ context.Context, account *models.Account) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, a := range r.m.accounts {
		if a.Email == account.Email || a.Username == account.Username {
			return fmt.Errorf("failed to create account: %w", ErrDuplicate)
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := r.m.now()
	account.CreatedAt, account.UpdatedAt = now, now
	r.m.accounts[account.ID] = cloneAccount(*account)
	return nil
}

func (r memoryAccounts) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, a := range r.m.accounts {
		if a.Email == email {
			a = cloneAccount(a)
			return &a, nil
		}
	}
	return nil, fmt.Errorf("failed to find account by email %s: %w", email, ErrNotFound)
}

func (r memoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	a, ok := r.m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("failed to find account by id %s: %w", id, ErrNotFound)
	}
	a = cloneAccount(a)
	return &a, nil
}

func (r memoryAccounts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Account, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.m.accounts[id]; ok {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (r memoryAccounts) FindByActiveResetToken(_ context.Context, token string, now time.Time) (*models.Account, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, a := range r.m.accounts {
		if a.ResetPasswordToken == nil || a.ResetPasswordExpire == nil {
			continue
		}
		if *a.ResetPasswordToken == token && a.ResetPasswordExpire.After(now) {
			a = cloneAccount(a)
			return &a, nil
		}
	}
	return nil, fmt.Errorf("failed to find account by reset token: %w", ErrNotFound)
}

func (r memoryAccounts) Save(_ context.Context, account *models.Account) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.accounts[account.ID]; !ok {
		return fmt.Errorf("failed to update account id %s: %w", account.ID, ErrNotFound)
	}
	for id, a := range r.m.accounts {
		if id != account.ID && (a.Email == account.Email || a.Username == account.Username) {
			return fmt.Errorf("failed to update account id %s: %w", account.ID, ErrDuplicate)
		}
	}
	account.UpdatedAt = r.m.now()
	r.m.accounts[account.ID] = cloneAccount(*account)
	return nil
}

type memoryPosts struct{ m *Memory }

func (r memoryPosts) Create(_ context.Context, post *models.Post) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.Images == nil {
		post.Images = []models.Attachment{}
	}
	now := r.m.now()
	post.CreatedAt, post.UpdatedAt = now, now
	r.m.posts[post.ID] = clonePost(*post)
	r.m.seq++
	r.m.postSeq[post.ID] = r.m.seq
	return nil
}

func (r memoryPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	p, ok := r.m.posts[id]
	if !ok {
		return nil, fmt.Errorf("failed to find post by id %s: %w", id, ErrNotFound)
	}
	p = clonePost(p)
	return &p, nil
}

func (r memoryPosts) FindAllPublic(_ context.Context) ([]models.Post, error) {
	return r.list(func(models.Post) bool { return true }), nil
}

func (r memoryPosts) FindByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Post, error) {
	return r.list(func(p models.Post) bool { return p.OwnerID == ownerID }), nil
}

func (r memoryPosts) list(keep func(models.Post) bool) []models.Post {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]models.Post, 0, len(r.m.posts))
	for _, p := range r.m.posts {
		if keep(p) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.m.postSeq[out[i].ID] > r.m.postSeq[out[j].ID]
	})
	return out
}

func (r memoryPosts) Update(_ context.Context, id uuid.UUID, patch models.PostPatch) (*models.Post, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.posts[id]
	if !ok {
		return nil, fmt.Errorf("failed to update post id %s: %w", id, ErrNotFound)
	}
	if cols := patch.Apply(&p); len(cols) > 0 {
		p.UpdatedAt = r.m.now()
	}
	r.m.posts[id] = clonePost(p)
	p = clonePost(p)
	return &p, nil
}

func (r memoryPosts) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.posts[id]; !ok {
		return false, nil
	}
	delete(r.m.posts, id)
	delete(r.m.postSeq, id)
	return true, nil
}

func cloneAccount(a models.Account) models.Account {
	if a.ResetPasswordToken != nil {
		t := *a.ResetPasswordToken
		a.ResetPasswordToken = &t
	}
	if a.ResetPasswordExpire != nil {
		e := *a.ResetPasswordExpire
		a.ResetPasswordExpire = &e
	}
	return a
}

func clonePost(p models.Post) models.Post {
	p.Images = append([]models.Attachment{}, p.Images...)
	if p.PDF != nil {
		pdf := *p.PDF
		p.PDF = &pdf
	}
	if p.Topic != nil {
		t := *p.Topic
		p.Topic = &t
	}
	if p.Hyperlink != nil {
		h := *p.Hyperlink
		p.Hyperlink = &h
	}
	return p
}
