package syncer

import (
	"slices"
	"strings"

	"github.com/and161185/clipsync/internal/model"
)

// ItemPlan is the outcome of reconciling local items with the remote listing.
type ItemPlan struct {
	Merged  []model.ClipboardItem // full reconciled collection
	Adopt   []model.ClipboardItem // remote versions to write locally
	Upload  []model.ClipboardItem // local versions the remote lacks or has older
	Zombies int                   // remote records ignored because a delete is queued
}

// MergeItems reconciles by id with last-writer-wins on Timestamp.
//
//   - remote newer: replace local (a binary item keeps its local blob filename)
//   - local newer: upload
//   - equal: keep local
//   - remote only: adopt, unless pendingDelete reports the id
//   - local only: upload
//
// Merging the result with the same remote set again yields no Adopt and no Upload.
func MergeItems(local, remote []model.ClipboardItem, pendingDelete func(id string) bool) ItemPlan {
	var plan ItemPlan
	byID := make(map[string]model.ClipboardItem, len(local)+len(remote))
	for _, it := range local {
		byID[it.ID] = it
	}
	seen := make(map[string]struct{}, len(remote))

	for _, r := range remote {
		seen[r.ID] = struct{}{}
		l, ok := byID[r.ID]
		switch {
		case !ok:
			if pendingDelete != nil && pendingDelete(r.ID) {
				plan.Zombies++
				continue
			}
			byID[r.ID] = r
			plan.Adopt = append(plan.Adopt, r)
		case r.Timestamp.After(l.Timestamp):
			if r.Type.IsBinary() && l.Type == r.Type {
				r.Content = l.Content
			}
			byID[r.ID] = r
			plan.Adopt = append(plan.Adopt, r)
		case l.Timestamp.After(r.Timestamp):
			plan.Upload = append(plan.Upload, l)
		}
	}
	for _, l := range local {
		if _, ok := seen[l.ID]; !ok {
			plan.Upload = append(plan.Upload, l)
		}
	}

	plan.Merged = make([]model.ClipboardItem, 0, len(byID))
	for _, it := range byID {
		plan.Merged = append(plan.Merged, it)
	}
	model.SortItems(plan.Merged)
	slices.SortFunc(plan.Upload, byItemID)
	slices.SortFunc(plan.Adopt, byItemID)
	return plan
}

func byItemID(a, b model.ClipboardItem) int { return strings.Compare(a.ID, b.ID) }

// TagPlan is the outcome of reconciling tag colors.
type TagPlan struct {
	Merged []model.TagColor
	Adopt  []model.TagColor
	Upload []model.TagColor
}

// MergeTagColors reconciles by tag. Tag colors carry no timestamp, so on a
// value conflict the local entry wins and is uploaded again.
func MergeTagColors(local, remote []model.TagColor, pendingDelete func(tag string) bool) TagPlan {
	var plan TagPlan
	byTag := make(map[string]model.TagColor, len(local)+len(remote))
	for _, c := range local {
		byTag[c.Tag] = c
	}
	seen := make(map[string]struct{}, len(remote))

	for _, r := range remote {
		seen[r.Tag] = struct{}{}
		l, ok := byTag[r.Tag]
		switch {
		case !ok:
			if pendingDelete != nil && pendingDelete(r.Tag) {
				continue
			}
			byTag[r.Tag] = r
			plan.Adopt = append(plan.Adopt, r)
		case !l.SameColor(r):
			plan.Upload = append(plan.Upload, l)
		}
	}
	for _, l := range local {
		if _, ok := seen[l.Tag]; !ok {
			plan.Upload = append(plan.Upload, l)
		}
	}

	plan.Merged = make([]model.TagColor, 0, len(byTag))
	for _, c := range byTag {
		plan.Merged = append(plan.Merged, c)
	}
	byTagName := func(a, b model.TagColor) int { return strings.Compare(a.Tag, b.Tag) }
	slices.SortFunc(plan.Merged, byTagName)
	slices.SortFunc(plan.Adopt, byTagName)
	slices.SortFunc(plan.Upload, byTagName)
	return plan
}
