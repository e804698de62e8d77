package ringslog

import (
	"testing"
	"time"
)

func TestReviewCacheServesStaleUntilInvalidated(t *testing.T) {
	s := setupTestStore(t)
	seedUser(t, s, "u1")
	c := NewReviewCache(s, time.Hour)

	if err := s.SaveReview(Review{UID: "r1", UserID: "u1", ISBN: "1234567890", Title: "First", Author: "A", Content: "abc"}); err != nil {
		t.Fatal(err)
	}
	got, err := c.ListReviews()
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	if err := s.SaveReview(Review{UID: "r1", UserID: "u1", ISBN: "1234567890", Title: "Edited", Author: "A", Content: "abc"}); err != nil {
		t.Fatal(err)
	}
	r, err := c.GetReview("r1")
	if err != nil {
		t.Fatalf("GetReview failed: %v", err)
	}
	if r.Title != "First" {
		t.Errorf("Title = %q, want cached First", r.Title)
	}

	c.Invalidate()
	r, err = c.GetReview("r1")
	if err != nil {
		t.Fatalf("GetReview failed: %v", err)
	}
	if r.Title != "Edited" {
		t.Errorf("Title = %q, want Edited after invalidate", r.Title)
	}
}

func TestReviewCacheEmptyStore(t *testing.T) {
	s := setupTestStore(t)
	c := NewReviewCache(s, time.Hour)

	got, err := c.ListReviews()
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
	if _, err := c.GetReview("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReviewCacheExpires(t *testing.T) {
	s := setupTestStore(t)
	seedUser(t, s, "u1")
	c := NewReviewCache(s, 20*time.Millisecond)

	if _, err := c.ListReviews(); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveReview(Review{UID: "r1", UserID: "u1", ISBN: "1234567890", Title: "Late", Author: "A", Content: "abc"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	got, err := c.ListReviews()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 after TTL", len(got))
	}
}
