package service

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/victorivanov/huddle/internal/database"
	"github.com/victorivanov/huddle/internal/models"
)

var tagPattern = regexp.MustCompile(`@[A-Za-z0-9]+`)

// ExtractHandles returns the lowercased handles tagged in text, without
// duplicates, in order of first appearance.
func ExtractHandles(text string) []string {
	matches := tagPattern.FindAllString(text, -1)
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		h := strings.ToLower(m[1:])
		if !slices.Contains(handles, h) {
			handles = append(handles, h)
		}
	}
	return handles
}

// TagScanner resolves tagged handles to members of a conversation.
type TagScanner struct {
	directory database.DirectoryRepository
}

func NewTagScanner(directory database.DirectoryRepository) *TagScanner {
	return &TagScanner{directory: directory}
}

// Scan returns the sorted ids of conversation members tagged in text.
// Unknown handles and non-members are skipped.
func (t *TagScanner) Scan(ctx context.Context, text string, ref models.ConversationRef) ([]int64, error) {
	var ids []int64
	for _, h := range ExtractHandles(text) {
		uid, ok, err := t.directory.ResolveHandle(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("resolving handle %q: %w", h, err)
		}
		if !ok || slices.Contains(ids, uid) {
			continue
		}
		member, err := t.directory.IsMember(ctx, ref, uid)
		if err != nil {
			return nil, fmt.Errorf("checking membership of %d: %w", uid, err)
		}
		if member {
			ids = append(ids, uid)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// newlyTagged returns the ids in next that are not in prev.
func newlyTagged(prev, next []int64) []int64 {
	var out []int64
	for _, id := range next {
		if !slices.Contains(prev, id) {
			out = append(out, id)
		}
	}
	return out
}
