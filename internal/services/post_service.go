package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kalm/internal/apperr"
	"kalm/internal/authz"
	"kalm/internal/models"
	"kalm/internal/repositories"

	"github.com/sirupsen/logrus"
)

// PostInput is the body of a post creation request.
type PostInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Body     string `json:"body" validate:"required"`
	Category string `json:"category" validate:"max=50"`
}

// PostPatch is a partial post update. The author cannot be changed.
type PostPatch struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Body     *string `json:"body"`
	Category *string `json:"category" validate:"omitempty,max=50"`
}

// PostService handles blog posts and the author ownership rule.
type PostService struct {
	repo     repositories.PostRepository
	accounts repositories.AccountRepository
	events   EventPublisher
	log      logrus.FieldLogger
}

// NewPostService creates a new PostService.
func NewPostService(repo repositories.PostRepository, accounts repositories.AccountRepository, events EventPublisher, log logrus.FieldLogger) *PostService {
	return &PostService{
		repo:     repo,
		accounts: accounts,
		events:   events,
		log:      loggerOrDefault(log),
	}
}

// ListPosts returns every post, newest first, with author summaries.
func (s *PostService) ListPosts(ctx context.Context) ([]models.Post, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if err := s.attachAuthors(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withAuthor(ctx, post)
}

// CreatePost stores a post authored by actor.
func (s *PostService) CreatePost(ctx context.Context, actor *models.Identity, in PostInput) (*models.Post, error) {
	if actor == nil || actor.AccountID == "" {
		return nil, apperr.Unauthorized("token required")
	}
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" || body == "" {
		return nil, apperr.InvalidInput("title and body are required")
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = models.DefaultPostCategory
	}

	post := &models.Post{
		Title:    title,
		Body:     in.Body,
		Category: category,
		AuthorID: actor.AccountID,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	publishEvent(ctx, s.events, s.log, EventPostCreated, map[string]interface{}{
		"postId":   post.ID,
		"authorId": post.AuthorID,
	})
	return s.withAuthor(ctx, post)
}

// UpdatePost applies a patch if actor is an admin or the post's author.
func (s *PostService) UpdatePost(ctx context.Context, actor *models.Identity, id string, patch PostPatch) (*models.Post, error) {
	post, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyOwned(actor, post.AuthorID).Allowed {
		return nil, apperr.Forbidden("you are not allowed to edit this post")
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.InvalidInput("title cannot be empty")
		}
		post.Title = title
	}
	if patch.Body != nil {
		if strings.TrimSpace(*patch.Body) == "" {
			return nil, apperr.InvalidInput("body cannot be empty")
		}
		post.Body = *patch.Body
	}
	if patch.Category != nil {
		category := strings.TrimSpace(*patch.Category)
		if category == "" {
			category = models.DefaultPostCategory
		}
		post.Category = category
	}

	if err := s.repo.Update(ctx, post); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("post not found")
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return s.withAuthor(ctx, post)
}

// DeletePost removes a post. Route access is restricted to admins.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("post not found")
		}
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (s *PostService) load(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("post not found")
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	return post, nil
}

func (s *PostService) withAuthor(ctx context.Context, post *models.Post) (*models.Post, error) {
	posts := []models.Post{*post}
	if err := s.attachAuthors(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

func (s *PostService) attachAuthors(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; ok {
			continue
		}
		seen[p.AuthorID] = struct{}{}
		ids = append(ids, p.AuthorID)
	}
	accounts, err := s.accounts.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load post authors: %w", err)
	}
	byID := make(map[string]*models.AccountSummary, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = accounts[i].Summary()
	}
	for i := range posts {
		posts[i].Author = byID[posts[i].AuthorID]
	}
	return nil
}
