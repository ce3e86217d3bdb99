// Package stack keeps per-user stacks (named page collections) in the
// key-value side store: an assignment hash mapping page ids to stack names,
// plus active and archived name sets.
package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const nameSeparator = ","

// store is the consumer interface on the side store (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// Repo implements the stack repository.
type Repo struct {
	store  store
	prefix string
}

// New creates a stack repository. prefix defaults to "renoted:stack:".
func New(s store, prefix string) *Repo {
	if prefix == "" {
		prefix = "renoted:stack:"
	}
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) assignKey(user string) string { return r.prefix + user + ":pages" }
func (r *Repo) activeKey(user string) string { return r.prefix + user + ":active" }
func (r *Repo) archiveKey(user string) string {
	return r.prefix + user + ":archived"
}

// Assign puts a page into a stack, registering the stack as active if it is
// new.
func (r *Repo) Assign(ctx context.Context, user, uriID, stack string) error {
	if stack == "" {
		return fmt.Errorf("stack name is required")
	}
	assigned, err := r.pageStacks(ctx, user, uriID)
	if err != nil {
		return err
	}
	for _, s := range assigned {
		if s == stack {
			return nil
		}
	}
	assigned = append(assigned, stack)
	sort.Strings(assigned)

	if err := r.store.SAdd(ctx, r.activeKey(user), stack); err != nil {
		return fmt.Errorf("register stack %s: %w", stack, err)
	}
	if err := r.store.HSet(ctx, r.assignKey(user), map[string]string{
		uriID: strings.Join(assigned, nameSeparator),
	}); err != nil {
		return fmt.Errorf("assign page %s to stack %s: %w", uriID, stack, err)
	}
	return nil
}

// Unassign removes a page from a stack.
func (r *Repo) Unassign(ctx context.Context, user, uriID, stack string) error {
	assigned, err := r.pageStacks(ctx, user, uriID)
	if err != nil {
		return err
	}

	kept := assigned[:0]
	for _, s := range assigned {
		if s != stack {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(assigned) {
		return nil
	}

	if len(kept) == 0 {
		if err := r.store.HDel(ctx, r.assignKey(user), uriID); err != nil {
			return fmt.Errorf("clear stacks for page %s: %w", uriID, err)
		}
		return nil
	}
	if err := r.store.HSet(ctx, r.assignKey(user), map[string]string{
		uriID: strings.Join(kept, nameSeparator),
	}); err != nil {
		return fmt.Errorf("unassign page %s from stack %s: %w", uriID, stack, err)
	}
	return nil
}

// Archive moves a stack from the active to the archived set. Page
// assignments are kept so a later dearchive restores them.
func (r *Repo) Archive(ctx context.Context, user, stack string) error {
	if err := r.store.SRem(ctx, r.activeKey(user), stack); err != nil {
		return fmt.Errorf("archive stack %s: %w", stack, err)
	}
	if err := r.store.SAdd(ctx, r.archiveKey(user), stack); err != nil {
		return fmt.Errorf("archive stack %s: %w", stack, err)
	}
	return nil
}

// Dearchive moves a stack back to the active set.
func (r *Repo) Dearchive(ctx context.Context, user, stack string) error {
	if err := r.store.SRem(ctx, r.archiveKey(user), stack); err != nil {
		return fmt.Errorf("dearchive stack %s: %w", stack, err)
	}
	if err := r.store.SAdd(ctx, r.activeKey(user), stack); err != nil {
		return fmt.Errorf("dearchive stack %s: %w", stack, err)
	}
	return nil
}

// Rename changes a stack's name across every assignment and in whichever
// name set it currently lives in. Returns the ids of the affected pages.
func (r *Repo) Rename(ctx context.Context, user, from, to string) ([]string, error) {
	if to == "" {
		return nil, fmt.Errorf("stack name is required")
	}
	assignments, err := r.store.HGetAll(ctx, r.assignKey(user))
	if err != nil {
		return nil, fmt.Errorf("load stack assignments for %s: %w", user, err)
	}

	var affected []string
	for uriID, raw := range assignments {
		names := strings.Split(raw, nameSeparator)
		seen := make(map[string]bool, len(names))
		renamed := false
		kept := names[:0]
		for _, name := range names {
			if name == from {
				name = to
				renamed = true
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			kept = append(kept, name)
		}
		if !renamed {
			continue
		}
		sort.Strings(kept)
		if err := r.store.HSet(ctx, r.assignKey(user), map[string]string{
			uriID: strings.Join(kept, nameSeparator),
		}); err != nil {
			return nil, fmt.Errorf("rename stack %s on page %s: %w", from, uriID, err)
		}
		affected = append(affected, uriID)
	}
	sort.Strings(affected)

	archived, err := r.IsArchived(ctx, user, from)
	if err != nil {
		return nil, err
	}
	nameSet := r.activeKey(user)
	if archived {
		nameSet = r.archiveKey(user)
	}
	if err := r.store.SRem(ctx, r.activeKey(user), from); err != nil {
		return nil, fmt.Errorf("rename stack %s: %w", from, err)
	}
	if err := r.store.SRem(ctx, r.archiveKey(user), from); err != nil {
		return nil, fmt.Errorf("rename stack %s: %w", from, err)
	}
	if err := r.store.SAdd(ctx, nameSet, to); err != nil {
		return nil, fmt.Errorf("rename stack %s: %w", from, err)
	}
	return affected, nil
}

// IsArchived reports whether a stack is archived.
func (r *Repo) IsArchived(ctx context.Context, user, stack string) (bool, error) {
	return r.store.SIsMember(ctx, r.archiveKey(user), stack)
}

// Active returns the user's active stack names, sorted.
func (r *Repo) Active(ctx context.Context, user string) ([]string, error) {
	names, err := r.store.SMembers(ctx, r.activeKey(user))
	if err != nil {
		return nil, fmt.Errorf("list stacks for %s: %w", user, err)
	}
	sort.Strings(names)
	return names, nil
}

// ForPages returns the active-stack memberships of the given pages.
// Archived stacks are filtered out of the view, keeping them recoverable.
func (r *Repo) ForPages(ctx context.Context, user string, uriIDs []string) (map[string][]string, error) {
	if len(uriIDs) == 0 {
		return map[string][]string{}, nil
	}

	assignments, err := r.store.HGetAll(ctx, r.assignKey(user))
	if err != nil {
		return nil, fmt.Errorf("load stack assignments for %s: %w", user, err)
	}
	archived, err := r.archivedSet(ctx, user)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(uriIDs))
	for _, uriID := range uriIDs {
		raw, ok := assignments[uriID]
		if !ok || raw == "" {
			continue
		}
		var visible []string
		for _, name := range strings.Split(raw, nameSeparator) {
			if name != "" && !archived[name] {
				visible = append(visible, name)
			}
		}
		if len(visible) > 0 {
			out[uriID] = visible
		}
	}
	return out, nil
}

// PagesInStack returns the ids of pages assigned to one stack, used when an
// archive or dearchive event reindexes the affected annotations.
func (r *Repo) PagesInStack(ctx context.Context, user, stack string) ([]string, error) {
	assignments, err := r.store.HGetAll(ctx, r.assignKey(user))
	if err != nil {
		return nil, fmt.Errorf("load stack assignments for %s: %w", user, err)
	}

	var out []string
	for uriID, raw := range assignments {
		for _, name := range strings.Split(raw, nameSeparator) {
			if name == stack {
				out = append(out, uriID)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repo) pageStacks(ctx context.Context, user, uriID string) ([]string, error) {
	assignments, err := r.store.HGetAll(ctx, r.assignKey(user))
	if err != nil {
		return nil, fmt.Errorf("load stack assignments for %s: %w", user, err)
	}
	raw := assignments[uriID]
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, nameSeparator), nil
}

func (r *Repo) archivedSet(ctx context.Context, user string) (map[string]bool, error) {
	names, err := r.store.SMembers(ctx, r.archiveKey(user))
	if err != nil {
		return nil, fmt.Errorf("load archived stacks for %s: %w", user, err)
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}
