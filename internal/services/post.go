package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"researchblog/internal/models"
	"researchblog/internal/repository"
	"researchblog/internal/storage"
	"researchblog/internal/utils"
)

const (
	publicListKey   = "posts:public"
	publicListTTL   = 30 * time.Second
	publicCacheSize = 16
)

const MsgPostDeleted = "Post deleted"

var errAuthorDescription = Validation("Author and description are required")

// PostView is a post as returned to clients. Owner is the owner id, or the
// owner's public profile on the public read paths.
type PostView struct {
	*models.Post
	Owner           any    `json:"owner"`
	DescriptionHTML string `json:"descriptionHtml"`
}

type CreatePostInput struct {
	OwnerID     uuid.UUID
	Author      string
	Description string
	Topic       *string
	Hyperlink   *string
	Images      []storage.File
	PDF         *storage.File
}

// UpdatePostInput carries a partial update. Nil text fields and empty file
// fields leave the stored values alone.
type UpdatePostInput struct {
	ID          uuid.UUID
	CallerID    uuid.UUID
	Author      *string
	Description *string
	Topic       *string
	Hyperlink   *string
	Images      []storage.File
	PDF         *storage.File
}

type PostService struct {
	posts    repository.PostRepository
	accounts repository.AccountRepository
	storage  storage.Storage
	cache    *utils.TTLCache[[]PostView]
	log      logrus.FieldLogger

	// gen counts invalidations. A listing only fills the cache if no
	// mutation landed while it was being built.
	cacheMu sync.Mutex
	gen     uint64
}

func NewPostService(posts repository.PostRepository, accounts repository.AccountRepository, store storage.Storage, log logrus.FieldLogger) (*PostService, error) {
	cache, err := utils.NewTTLCache[[]PostView](publicCacheSize, publicListTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create post cache: %w", err)
	}
	return &PostService{posts: posts, accounts: accounts, storage: store, cache: cache, log: log}, nil
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*PostView, error) {
	if blank(&in.Author) || blank(&in.Description) {
		return nil, errAuthorDescription
	}

	jobs := uploadJobs(in.Images, in.PDF)
	uploaded, err := s.uploadAll(ctx, jobs)
	if err != nil {
		return nil, err
	}
	images, pdf := splitUploads(uploaded, len(in.Images), in.PDF != nil)

	post := &models.Post{
		OwnerID:     in.OwnerID,
		Author:      in.Author,
		Description: in.Description,
		Topic:       in.Topic,
		Hyperlink:   in.Hyperlink,
		Images:      images,
		PDF:         pdf,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.deleteAll(ctx, uploaded)
		return nil, err
	}
	s.invalidate()

	s.log.WithFields(logrus.Fields{
		"post_id": post.ID,
		"owner":   post.OwnerID,
		"files":   len(uploaded),
	}).Info("post created")
	return s.view(post, post.OwnerID), nil
}

// ListPublic returns every post, newest first, with owners resolved.
func (s *PostService) ListPublic(ctx context.Context) ([]PostView, error) {
	if cached, ok := s.cache.Get(publicListKey); ok {
		return cached, nil
	}
	gen := s.generation()

	posts, err := s.posts.FindAllPublic(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := s.ownerProfiles(ctx, posts)
	if err != nil {
		return nil, err
	}

	views := make([]PostView, 0, len(posts))
	for i := range posts {
		views = append(views, *s.view(&posts[i], profileOrNil(profiles, posts[i].OwnerID)))
	}
	s.fillCache(gen, views)
	return views, nil
}

func (s *PostService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

func (s *PostService) fillCache(gen uint64, views []PostView) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen == gen {
		s.cache.Set(publicListKey, views)
	}
}

// invalidate drops the public listing and stales any fill in flight.
func (s *PostService) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	s.cache.Purge()
}

func (s *PostService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]PostView, error) {
	posts, err := s.posts.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]PostView, 0, len(posts))
	for i := range posts {
		views = append(views, *s.view(&posts[i], posts[i].OwnerID))
	}
	return views, nil
}

func (s *PostService) Get(ctx context.Context, id uuid.UUID) (*PostView, error) {
	post, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	profiles, err := s.ownerProfiles(ctx, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return s.view(post, profileOrNil(profiles, post.OwnerID)), nil
}

// Update uploads replacement files first, then writes the record, then
// removes the superseded objects. A failed upload or write leaves the stored
// post and its objects as they were.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*PostView, error) {
	post, err := s.find(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if post.OwnerID != in.CallerID {
		return nil, kind(ErrForbidden, "Not authorized to update this post")
	}
	if (in.Author != nil && blank(in.Author)) || (in.Description != nil && blank(in.Description)) {
		return nil, errAuthorDescription
	}

	uploaded, err := s.uploadAll(ctx, uploadJobs(in.Images, in.PDF))
	if err != nil {
		return nil, err
	}
	images, pdf := splitUploads(uploaded, len(in.Images), in.PDF != nil)

	patch := models.PostPatch{
		Author:      in.Author,
		Description: in.Description,
		Topic:       in.Topic,
		Hyperlink:   in.Hyperlink,
	}
	var superseded []models.Attachment
	if len(in.Images) > 0 {
		patch.Images = &images
		superseded = append(superseded, post.Images...)
	}
	if pdf != nil {
		patch.PDF = pdf
		if post.PDF != nil {
			superseded = append(superseded, *post.PDF)
		}
	}

	if patch.Empty() {
		return s.view(post, post.OwnerID), nil
	}

	updated, err := s.posts.Update(ctx, in.ID, patch)
	if err != nil {
		s.deleteAll(ctx, uploaded)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	s.invalidate()
	s.deleteAll(ctx, superseded)

	return s.view(updated, updated.OwnerID), nil
}

// Delete removes a post. Attachment cleanup is best effort and never blocks
// the record deletion.
func (s *PostService) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	post, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if post.OwnerID != callerID {
		return kind(ErrForbidden, "Not authorized to delete this post")
	}

	s.deleteAll(ctx, post.Attachments())

	deleted, err := s.posts.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.invalidate()
	if !deleted {
		return ErrPostNotFound
	}
	s.log.WithField("post_id", id).Info("post deleted")
	return nil
}

func (s *PostService) find(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *PostService) view(post *models.Post, owner any) *PostView {
	return &PostView{
		Post:            post,
		Owner:           owner,
		DescriptionHTML: utils.RenderMarkdown(post.Description),
	}
}

func (s *PostService) ownerProfiles(ctx context.Context, posts []models.Post) (map[uuid.UUID]*models.OwnerProfile, error) {
	seen := make(map[uuid.UUID]bool, len(posts))
	ids := make([]uuid.UUID, 0, len(posts))
	for _, p := range posts {
		if !seen[p.OwnerID] {
			seen[p.OwnerID] = true
			ids = append(ids, p.OwnerID)
		}
	}
	accounts, err := s.accounts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	profiles := make(map[uuid.UUID]*models.OwnerProfile, len(accounts))
	for i := range accounts {
		profiles[accounts[i].ID] = accounts[i].PublicProfile()
	}
	return profiles, nil
}

// profileOrNil keeps a missing owner as JSON null rather than a typed nil.
func profileOrNil(profiles map[uuid.UUID]*models.OwnerProfile, id uuid.UUID) any {
	if p, ok := profiles[id]; ok {
		return p
	}
	return nil
}

type uploadJob struct {
	file   storage.File
	folder string
}

func uploadJobs(images []storage.File, pdf *storage.File) []uploadJob {
	jobs := make([]uploadJob, 0, len(images)+1)
	for _, f := range images {
		jobs = append(jobs, uploadJob{file: f, folder: storage.FolderImages})
	}
	if pdf != nil {
		jobs = append(jobs, uploadJob{file: *pdf, folder: storage.FolderPDFs})
	}
	return jobs
}

func splitUploads(uploaded []models.Attachment, nImages int, hasPDF bool) ([]models.Attachment, *models.Attachment) {
	images := make([]models.Attachment, nImages)
	copy(images, uploaded[:nImages])
	if !hasPDF {
		return images, nil
	}
	pdf := uploaded[nImages]
	return images, &pdf
}

// uploadAll uploads every job concurrently, preserving order. On failure the
// objects that did land are removed and ErrUpload is returned.
func (s *PostService) uploadAll(ctx context.Context, jobs []uploadJob) ([]models.Attachment, error) {
	results := make([]models.Attachment, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			att, err := s.storage.Upload(gctx, job.file, job.folder)
			if err != nil {
				return fmt.Errorf("%s: %w", job.file.Filename, err)
			}
			results[i] = att
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var landed []models.Attachment
		for _, att := range results {
			if att.ExternalID != "" {
				landed = append(landed, att)
			}
		}
		s.deleteAll(ctx, landed)
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return results, nil
}

// deleteAll removes objects concurrently. Failures are logged only.
func (s *PostService) deleteAll(ctx context.Context, atts []models.Attachment) {
	if len(atts) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	for _, att := range atts {
		g.Go(func() error {
			if err := s.storage.Delete(ctx, att.ExternalID); err != nil {
				s.log.WithError(err).WithField("external_id", att.ExternalID).Warn("failed to delete attachment")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func blank(s *string) bool {
	return strings.TrimSpace(*s) == ""
}
