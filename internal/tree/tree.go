// Package tree implements the hierarchical document engine: pure functions
// over an ordered forest of nodes with structural sharing. Every mutation
// returns a new forest in which the ancestor path of the changed node consists
// of fresh objects and every untouched subtree keeps its original reference,
// so callers can detect change by reference without diffing.
package tree

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"arbor-server/internal/domain"
	"arbor-server/internal/reminder"
)

// MaxLabelLength is the upper bound on a node label, in runes.
const MaxLabelLength = 255

// Patch carries the fields a node update may change. Nil fields are left
// untouched. RemoveReminder clears the reminder and wins over Reminder.
type Patch struct {
	Label          *string
	Content        *string
	Completed      *bool
	Reminder       *domain.Reminder
	RemoveReminder bool
}

func typeRank(t domain.NodeType) int {
	switch t {
	case domain.NodeTypeFolder:
		return 0
	case domain.NodeTypeNote:
		return 1
	default:
		return 2
	}
}

// Sort returns a new slice ordered folder < note < task, then by label using
// case-insensitive locale-aware collation. The sort is stable.
func Sort(nodes []*domain.Node) []*domain.Node {
	sorted := make([]*domain.Node, len(nodes))
	copy(sorted, nodes)

	// collate.Collator is not safe for concurrent use, so each call builds
	// its own; sibling arrays are small.
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		return c.CompareString(a.Label, b.Label) < 0
	})
	return sorted
}

// Find locates id anywhere in the forest, depth first. It returns the node and
// the sibling slice that directly contains it, or ok=false if id does not
// resolve.
func Find(nodes []*domain.Node, id string) (node *domain.Node, siblings []*domain.Node, ok bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, nodes, true
		}
		if n.Type == domain.NodeTypeFolder {
			if found, sibs, ok := Find(n.Children, id); ok {
				return found, sibs, true
			}
		}
	}
	return nil, nil, false
}

// HasSiblingCollision reports whether label (trimmed, case-insensitive)
// matches any sibling other than the one whose id equals excludeID.
func HasSiblingCollision(siblings []*domain.Node, label, excludeID string) bool {
	trimmed := strings.TrimSpace(label)
	for _, s := range siblings {
		if s.ID == excludeID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s.Label), trimmed) {
			return true
		}
	}
	return false
}

// Insert appends child to the root forest (parentID nil) or to the named
// folder's children, and re-sorts that one array.
func Insert(nodes []*domain.Node, parentID *string, child *domain.Node) ([]*domain.Node, error) {
	if parentID == nil {
		if HasSiblingCollision(nodes, child.Label, child.ID) {
			return nil, ErrNameConflict
		}
		next := append(append([]*domain.Node{}, nodes...), child)
		return Sort(next), nil
	}

	out, inserted, err := insertIn(nodes, *parentID, child)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrParentNotFound
	}
	return out, nil
}

func insertIn(nodes []*domain.Node, parentID string, child *domain.Node) ([]*domain.Node, bool, error) {
	for i, n := range nodes {
		if n.ID == parentID {
			if n.Type != domain.NodeTypeFolder {
				return nil, false, ErrParentNotFound
			}
			if HasSiblingCollision(n.Children, child.Label, child.ID) {
				return nil, false, ErrNameConflict
			}
			parent := *n
			parent.Children = Sort(append(append([]*domain.Node{}, n.Children...), child))
			return replaceAt(nodes, i, &parent), true, nil
		}
		if n.Type == domain.NodeTypeFolder {
			children, inserted, err := insertIn(n.Children, parentID, child)
			if err != nil {
				return nil, false, err
			}
			if inserted {
				parent := *n
				parent.Children = children
				return replaceAt(nodes, i, &parent), true, nil
			}
		}
	}
	return nodes, false, nil
}

// Update applies patch to the node named by id and recomputes its UpdatedAt.
// When no field value actually changes, the original forest is returned with
// changed=false and nothing is touched, so callers can skip persistence.
func Update(nodes []*domain.Node, id string, patch Patch, now time.Time) (out []*domain.Node, updated *domain.Node, changed bool, err error) {
	out, updated, changed, err = updateIn(nodes, id, patch, now)
	if err != nil {
		return nil, nil, false, err
	}
	if updated == nil {
		return nil, nil, false, ErrItemNotFound
	}
	return out, updated, changed, nil
}

func updateIn(nodes []*domain.Node, id string, patch Patch, now time.Time) ([]*domain.Node, *domain.Node, bool, error) {
	for i, n := range nodes {
		if n.ID == id {
			next, changed, err := applyPatch(n, nodes, patch, now)
			if err != nil {
				return nil, nil, false, err
			}
			if !changed {
				return nodes, n, false, nil
			}
			out := replaceAt(nodes, i, next)
			if next.Label != n.Label {
				out = Sort(out)
			}
			return out, next, true, nil
		}
		if n.Type == domain.NodeTypeFolder {
			children, updated, changed, err := updateIn(n.Children, id, patch, now)
			if err != nil {
				return nil, nil, false, err
			}
			if updated != nil {
				if !changed {
					return nodes, updated, false, nil
				}
				parent := *n
				parent.Children = children
				return replaceAt(nodes, i, &parent), updated, true, nil
			}
		}
	}
	return nodes, nil, false, nil
}

func applyPatch(n *domain.Node, siblings []*domain.Node, patch Patch, now time.Time) (*domain.Node, bool, error) {
	next := *n
	changed := false

	if patch.Label != nil {
		label := strings.TrimSpace(*patch.Label)
		if label == "" || utf8.RuneCountInString(label) > MaxLabelLength {
			return nil, false, ErrInvalidField
		}
		if HasSiblingCollision(siblings, label, n.ID) {
			return nil, false, ErrNameConflict
		}
		if label != n.Label {
			next.Label = label
			changed = true
		}
	}

	if patch.Content != nil {
		if n.Type == domain.NodeTypeFolder {
			return nil, false, ErrInvalidField
		}
		if *patch.Content != n.Content {
			next.Content = *patch.Content
			changed = true
		}
	}

	if patch.Completed != nil {
		if n.Type != domain.NodeTypeTask {
			return nil, false, ErrInvalidField
		}
		if *patch.Completed != n.Completed {
			next.Completed = *patch.Completed
			changed = true
		}
	}

	if patch.RemoveReminder {
		if n.Reminder != nil {
			next.Reminder = nil
			changed = true
		}
	} else if patch.Reminder != nil {
		if n.Type == domain.NodeTypeFolder {
			return nil, false, ErrInvalidField
		}
		if !reminderEqual(n.Reminder, patch.Reminder) {
			r := *patch.Reminder
			next.Reminder = &r
			changed = true
		}
	}

	if changed {
		next.UpdatedAt = now
	}
	return &next, changed, nil
}

// Delete removes the node and its whole subtree wherever it occurs. A miss is
// not an error: the original forest comes back with removed=false.
func Delete(nodes []*domain.Node, id string) (out []*domain.Node, removed bool) {
	for i, n := range nodes {
		if n.ID == id {
			next := make([]*domain.Node, 0, len(nodes)-1)
			next = append(next, nodes[:i]...)
			next = append(next, nodes[i+1:]...)
			return next, true
		}
		if n.Type == domain.NodeTypeFolder {
			children, ok := Delete(n.Children, id)
			if ok {
				parent := *n
				parent.Children = children
				return replaceAt(nodes, i, &parent), true
			}
		}
	}
	return nodes, false
}

// Move detaches the node and re-inserts it under newParentID (nil for the
// root) at newIndex, clamped to the destination bounds and defaulting to the
// end. The destination is deliberately not re-sorted: an explicit position
// overrides the automatic ordering for this one operation.
func Move(nodes []*domain.Node, id string, newParentID *string, newIndex *int, now time.Time) ([]*domain.Node, *domain.Node, error) {
	node, _, ok := Find(nodes, id)
	if !ok {
		return nil, nil, ErrItemNotFound
	}
	if newParentID != nil {
		target, _, ok := Find(nodes, *newParentID)
		if !ok || target.Type != domain.NodeTypeFolder {
			return nil, nil, ErrParentNotFound
		}
	}

	moved := *node
	moved.UpdatedAt = now

	without, _ := Delete(nodes, id)
	if newParentID == nil {
		return spliceAt(without, &moved, newIndex), &moved, nil
	}

	// A target inside the moved subtree disappears with the Delete above and
	// resolves to parent-not-found here.
	out, inserted := spliceIn(without, *newParentID, &moved, newIndex)
	if !inserted {
		return nil, nil, ErrParentNotFound
	}
	return out, &moved, nil
}

func spliceIn(nodes []*domain.Node, parentID string, child *domain.Node, index *int) ([]*domain.Node, bool) {
	for i, n := range nodes {
		if n.ID == parentID {
			if n.Type != domain.NodeTypeFolder {
				return nodes, false
			}
			parent := *n
			parent.Children = spliceAt(n.Children, child, index)
			return replaceAt(nodes, i, &parent), true
		}
		if n.Type == domain.NodeTypeFolder {
			children, ok := spliceIn(n.Children, parentID, child, index)
			if ok {
				parent := *n
				parent.Children = children
				return replaceAt(nodes, i, &parent), true
			}
		}
	}
	return nodes, false
}

func spliceAt(nodes []*domain.Node, child *domain.Node, index *int) []*domain.Node {
	at := len(nodes)
	if index != nil {
		at = *index
		if at < 0 {
			at = 0
		}
		if at > len(nodes) {
			at = len(nodes)
		}
	}
	out := make([]*domain.Node, 0, len(nodes)+1)
	out = append(out, nodes[:at]...)
	out = append(out, child)
	out = append(out, nodes[at:]...)
	return out
}

// Normalize prepares an externally supplied forest for import: every node gets
// a fresh identifier unless it already carries a valid UUID, missing
// timestamps are filled with now, labels are trimmed, and fields illegal for
// the node's type are dropped. Sibling uniqueness is deliberately not
// enforced; import accepts labels as given.
func Normalize(nodes []*domain.Node, now time.Time) []*domain.Node {
	out := make([]*domain.Node, 0, len(nodes))
	for _, n := range nodes {
		next := *n
		if _, err := uuid.Parse(n.ID); err != nil {
			next.ID = uuid.New().String()
		}
		next.Label = strings.TrimSpace(n.Label)
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = now
		}
		if n.Type == domain.NodeTypeFolder {
			next.Children = Normalize(n.Children, now)
			// A folder carries structure only. A reminder smuggled in here
			// would fire but never reschedule, since updates reject it.
			next.Reminder = nil
			next.Content = ""
		} else {
			next.Children = nil
		}
		if n.Type != domain.NodeTypeTask {
			next.Completed = false
		}
		out = append(out, &next)
	}
	return out
}

// CollectDue walks the forest depth first and returns every node whose
// reminder is due at now.
func CollectDue(nodes []*domain.Node, now time.Time) []*domain.Node {
	var due []*domain.Node
	for _, n := range nodes {
		if reminder.IsDue(n.Reminder, now) {
			due = append(due, n)
		}
		if n.Type == domain.NodeTypeFolder {
			due = append(due, CollectDue(n.Children, now)...)
		}
	}
	return due
}

// HasEnabledReminder reports whether any node in the forest carries an enabled
// reminder. The storage layer keeps this flag on the tree document so the
// scheduler only loads trees that can have due reminders.
func HasEnabledReminder(nodes []*domain.Node) bool {
	for _, n := range nodes {
		if n.Reminder != nil && n.Reminder.Enabled {
			return true
		}
		if n.Type == domain.NodeTypeFolder && HasEnabledReminder(n.Children) {
			return true
		}
	}
	return false
}

func replaceAt(nodes []*domain.Node, i int, n *domain.Node) []*domain.Node {
	out := make([]*domain.Node, len(nodes))
	copy(out, nodes)
	out[i] = n
	return out
}

func reminderEqual(a, b *domain.Reminder) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !a.Timestamp.Equal(b.Timestamp) || a.Enabled != b.Enabled || a.TriggerCount != b.TriggerCount {
		return false
	}
	if !timePtrEqual(a.SnoozedUntil, b.SnoozedUntil) || !timePtrEqual(a.LastTriggered, b.LastTriggered) {
		return false
	}
	return repeatEqual(a.RepeatOptions, b.RepeatOptions)
}

func repeatEqual(a, b *domain.RepeatOptions) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Unit != b.Unit || a.Interval != b.Interval || !timePtrEqual(a.EndDate, b.EndDate) {
		return false
	}
	if len(a.DaysOfWeek) != len(b.DaysOfWeek) {
		return false
	}
	for i := range a.DaysOfWeek {
		if a.DaysOfWeek[i] != b.DaysOfWeek[i] {
			return false
		}
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
