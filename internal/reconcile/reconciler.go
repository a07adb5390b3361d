package reconcile

import (
	"fmt"

	"github.com/ironscout-hq/ironscout/internal/domain"
	"github.com/ironscout-hq/ironscout/internal/storage"
)

// Package reconcile classifies freshly extracted listings as new vs already
// known and persists the new ones.

// Result summarizes one reconciliation pass. New preserves the relative order
// of first occurrence in the candidate batch.
type Result struct {
	New        []domain.Machine
	Duplicates int
}

// Reconciler filters candidate listings against the record store.
type Reconciler struct {
	store storage.Store
}

// NewReconciler wires a reconciler to its store.
func NewReconciler(store storage.Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile walks the candidates in input order, inserting each unseen
// identity. The existence check and insert happen per item so a duplicate
// appearing twice within one batch is caught against the updated store state.
// New listings carry the first-seen timestamp the store assigned at insert.
// Any store error is returned as-is; it is fatal for the run.
func (r *Reconciler) Reconcile(candidates []domain.Machine) (Result, error) {
	if r == nil || r.store == nil {
		return Result{}, fmt.Errorf("reconciler is not initialized")
	}

	var res Result
	for _, m := range candidates {
		seen, err := r.store.Exists(m.SiteType, m.SearchLabel, m.UniqueKey)
		if err != nil {
			return res, fmt.Errorf("check listing %s: %w", m.UniqueKey, err)
		}
		if seen {
			res.Duplicates++
			continue
		}

		stored, outcome, err := r.store.Insert(m)
		if err != nil {
			return res, fmt.Errorf("persist listing %s: %w", m.UniqueKey, err)
		}
		if outcome == storage.DuplicateRejected {
			res.Duplicates++
			continue
		}
		res.New = append(res.New, stored)
	}
	return res, nil
}
