package booking

import (
	"sort"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
)

type FAQ struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Position  int       `json:"position"`
	Published bool      `json:"published"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FAQInput omits Position to append and Published to publish.
type FAQInput struct {
	Question  string `json:"question" yaml:"question"`
	Answer    string `json:"answer" yaml:"answer"`
	Position  *int   `json:"position" yaml:"position"`
	Published *bool  `json:"published" yaml:"published"`
}

func validateFAQ(in FAQInput) (string, string, error) {
	q := strings.TrimSpace(in.Question)
	a := strings.TrimSpace(in.Answer)
	switch {
	case q == "":
		return "", "", invalidf("question is required")
	case a == "":
		return "", "", invalidf("answer is required")
	case len([]rune(q)) > 300:
		return "", "", invalidf("question longer than 300 characters")
	case len([]rune(a)) > 4000:
		return "", "", invalidf("answer longer than 4000 characters")
	case in.Position != nil && *in.Position < 0:
		return "", "", invalidf("position cannot be negative")
	}
	return q, a, nil
}

func sortFAQs(fs []FAQ) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Position != fs[j].Position {
			return fs[i].Position < fs[j].Position
		}
		return fs[i].Question < fs[j].Question
	})
}

func (c *Clinic) CreateFAQ(in FAQInput) (FAQ, error) {
	var f FAQ
	err := c.store.Update(func(tx *store.Tx) error {
		var err error
		f, err = c.createFAQTx(tx, in)
		return err
	})
	if err != nil {
		return FAQ{}, err
	}
	return f, nil
}

// createFAQTx appends after the last position unless one is given.
func (c *Clinic) createFAQTx(tx *store.Tx, in FAQInput) (FAQ, error) {
	q, a, err := validateFAQ(in)
	if err != nil {
		return FAQ{}, err
	}
	f := FAQ{
		ID:        c.newID(),
		Question:  q,
		Answer:    a,
		Published: boolOr(in.Published, true),
		UpdatedAt: c.now().UTC(),
	}
	if in.Position != nil {
		f.Position = *in.Position
	} else {
		all, err := store.List[FAQ](tx, faqsCollection)
		if err != nil {
			return FAQ{}, err
		}
		for _, existing := range all {
			if existing.Position >= f.Position {
				f.Position = existing.Position + 1
			}
		}
	}
	return f, store.Put(tx, faqsCollection, f.ID, f)
}

// UpdateFAQ replaces question and answer; nil Position or Published keep the
// current values.
func (c *Clinic) UpdateFAQ(id string, in FAQInput) (FAQ, error) {
	q, a, err := validateFAQ(in)
	if err != nil {
		return FAQ{}, err
	}
	var f FAQ
	err = c.store.Update(func(tx *store.Tx) error {
		if err := get(tx, faqsCollection, "faq", id, &f); err != nil {
			return err
		}
		f.Question = q
		f.Answer = a
		if in.Position != nil {
			f.Position = *in.Position
		}
		f.Published = boolOr(in.Published, f.Published)
		f.UpdatedAt = c.now().UTC()
		return store.Put(tx, faqsCollection, f.ID, f)
	})
	if err != nil {
		return FAQ{}, err
	}
	return f, nil
}

func (c *Clinic) DeleteFAQ(id string) error {
	return c.store.Update(func(tx *store.Tx) error {
		if err := store.Delete(tx, faqsCollection, id); err != nil {
			return translateMiss(err, "faq", id)
		}
		return nil
	})
}

// ListFAQs orders by position then question; drafts only when asked.
func (c *Clinic) ListFAQs(includeDrafts bool) ([]FAQ, error) {
	var out []FAQ
	err := c.store.View(func(tx *store.Tx) error {
		var err error
		out, err = store.Filter(tx, faqsCollection, func(f FAQ) bool {
			return includeDrafts || f.Published
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sortFAQs(out)
	return out, nil
}
