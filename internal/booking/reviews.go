package booking

import (
	"sort"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

const maxReviewLen = 1000

func ParseReviewStatus(raw string) (ReviewStatus, error) {
	switch s := ReviewStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return s, nil
	default:
		return "", invalidf("unknown review status %q", raw)
	}
}

type Review struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id,omitempty"`
	Author      string       `json:"author"`
	Rating      int          `json:"rating"`
	Text        string       `json:"text"`
	Status      ReviewStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	ModeratedAt *time.Time   `json:"moderated_at,omitempty"`
}

type ReviewInput struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// ReviewSummary is the public review board.
type ReviewSummary struct {
	Reviews []Review `json:"reviews"`
	Count   int      `json:"count"`
	Average float64  `json:"average"`
}

// SubmitReview stores a customer review awaiting moderation.
func (c *Clinic) SubmitReview(actor Actor, in ReviewInput) (Review, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return Review{}, ErrForbidden
	}
	if in.Rating < 1 || in.Rating > 5 {
		return Review{}, invalidf("rating must be between 1 and 5")
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Review{}, invalidf("review text is required")
	}
	if len([]rune(text)) > maxReviewLen {
		return Review{}, invalidf("review longer than %d characters", maxReviewLen)
	}
	author := strings.TrimSpace(actor.Name)
	if author == "" {
		author = "Anonymous"
	}
	r := Review{
		ID:        c.newID(),
		UserID:    actor.UserID,
		Author:    author,
		Rating:    in.Rating,
		Text:      text,
		Status:    ReviewPending,
		CreatedAt: c.now().UTC(),
	}
	err := c.store.Update(func(tx *store.Tx) error {
		return store.Put(tx, reviewsCollection, r.ID, r)
	})
	if err != nil {
		return Review{}, err
	}
	return r, nil
}

func sortNewestFirst(rs []Review) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

// PublicReviews lists approved reviews newest first, without author ids.
func (c *Clinic) PublicReviews() (ReviewSummary, error) {
	reviews, err := c.ListReviews(ReviewApproved)
	if err != nil {
		return ReviewSummary{}, err
	}
	sum := ReviewSummary{Reviews: reviews, Count: len(reviews)}
	total := 0
	for i := range sum.Reviews {
		sum.Reviews[i].UserID = ""
		total += sum.Reviews[i].Rating
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}

// ListReviews is the moderation queue; an empty status lists all reviews.
func (c *Clinic) ListReviews(status ReviewStatus) ([]Review, error) {
	var out []Review
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, reviewsCollection, func(r Review) bool {
			return status == "" || r.Status == status
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

// ModerateReview approves or rejects a review. Moderation decisions can be
// revised.
func (c *Clinic) ModerateReview(id string, approve bool) (Review, error) {
	to := ReviewRejected
	if approve {
		to = ReviewApproved
	}
	var r Review
	err := c.store.Update(func(tx *store.Tx) error {
		if err := get(tx, reviewsCollection, "review", id, &r); err != nil {
			return err
		}
		now := c.now().UTC()
		r.Status = to
		r.ModeratedAt = &now
		return store.Put(tx, reviewsCollection, r.ID, r)
	})
	if err != nil {
		return Review{}, err
	}
	return r, nil
}

func (c *Clinic) DeleteReview(id string) error {
	return c.store.Update(func(tx *store.Tx) error {
		if err := store.Delete(tx, reviewsCollection, id); err != nil {
			return translateMiss(err, "review", id)
		}
		return nil
	})
}
