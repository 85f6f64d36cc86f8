package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{ID: "tx-1", CreatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		tx   Transaction
		want error
	}{
		{Transaction{CreatedAt: good.CreatedAt}, ErrMissingID},
		{Transaction{ID: "  ", CreatedAt: good.CreatedAt}, ErrMissingID},
		{Transaction{ID: "tx-1"}, ErrMissingCreatedAt},
	}
	for i, tc := range cases {
		err := tc.tx.Validate()
		if !errors.Is(err, ErrInvalidTransaction) || !errors.Is(err, tc.want) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestTransactionIgnored(t *testing.T) {
	cases := []struct {
		tags []string
		want bool
	}{
		{nil, false},
		{[]string{"ignore"}, true},
		{[]string{"ignore", "holiday"}, true},
		{[]string{"holiday", "ignore"}, false}, // only the first tag counts
	}
	for _, tc := range cases {
		if got := (Transaction{Tags: tc.tags}).Ignored(); got != tc.want {
			t.Fatalf("tags %v: expected %v, got %v", tc.tags, tc.want, got)
		}
	}
}

func TestOutcomeKey(t *testing.T) {
	if k, ok := Category("groceries").Key(); !ok || k != "groceries" {
		t.Fatalf("unexpected key %q %v", k, ok)
	}
	if k, ok := Uncategorized().Key(); !ok || k != CategoryNone {
		t.Fatalf("uncategorized should aggregate under %q, got %q", CategoryNone, k)
	}
	if _, ok := Excluded().Key(); ok {
		t.Fatal("excluded outcome must not have a key")
	}
}

func TestRunContext(t *testing.T) {
	now := time.Date(2024, 5, 8, 23, 30, 0, 0, time.UTC)
	rc := NewRunContext("run-1", now)
	if rc.Today() != "2024-05-08" {
		t.Fatalf("unexpected today %q", rc.Today())
	}
	w := now.AddDate(0, 0, -7)
	rc2 := rc.WithWatermark(w)
	if !rc.Watermark.IsZero() {
		t.Fatal("WithWatermark must not modify the receiver")
	}
	if !rc2.Watermark.Equal(w) {
		t.Fatalf("expected watermark %v, got %v", w, rc2.Watermark)
	}
}

func TestCategoryDirectory(t *testing.T) {
	src := map[string]string{"groceries": "Groceries"}
	d := NewCategoryDirectory(src)
	src["groceries"] = "changed"

	if d.Name("groceries") != "Groceries" {
		t.Fatal("directory must not alias the input map")
	}
	if d.Name(CategoryOther) != "Other" {
		t.Fatal("other must always be present")
	}
	if d.Name("unknown") != "unknown" {
		t.Fatal("unknown ids fall back to the id")
	}
	if d.Len() != 2 || !d.Has("groceries") {
		t.Fatalf("unexpected directory contents %v", d.IDs())
	}
	if ids := d.IDs(); ids[0] != "groceries" || ids[1] != "other" {
		t.Fatalf("expected sorted ids, got %v", ids)
	}
}
