package tree

import (
	"errors"
	"testing"
	"time"

	"arbor-server/internal/domain"

	"github.com/google/uuid"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newNode(id, label string, nodeType domain.NodeType, children ...*domain.Node) *domain.Node {
	n := &domain.Node{
		ID:        id,
		Label:     label,
		Type:      nodeType,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	if nodeType == domain.NodeTypeFolder {
		n.Children = children
	}
	return n
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestSort(t *testing.T) {
	nodes := []*domain.Node{
		newNode("1", "alpha", domain.NodeTypeTask),
		newNode("2", "Beta", domain.NodeTypeNote),
		newNode("3", "zeta", domain.NodeTypeFolder),
		newNode("4", "alpha", domain.NodeTypeNote),
	}

	sorted := Sort(nodes)

	wantOrder := []string{"3", "4", "2", "1"}
	for i, id := range wantOrder {
		if sorted[i].ID != id {
			t.Fatalf("position %d: got id %s, want %s", i, sorted[i].ID, id)
		}
	}

	// Input order untouched.
	if nodes[0].ID != "1" {
		t.Error("Sort() mutated its input")
	}
}

func TestSort_Idempotent(t *testing.T) {
	nodes := []*domain.Node{
		newNode("1", "b", domain.NodeTypeNote),
		newNode("2", "A", domain.NodeTypeTask),
		newNode("3", "c", domain.NodeTypeFolder),
	}

	once := Sort(nodes)
	twice := Sort(once)

	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("sort not idempotent at position %d", i)
		}
	}
}

func TestFind_NotFound(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
	}

	if _, _, ok := Find(nodes, "missing"); ok {
		t.Error("Find() reported a match for an absent id")
	}
}

func TestFind_ReturnsContainingSiblings(t *testing.T) {
	inner := newNode("n1", "Plan", domain.NodeTypeNote)
	folder := newNode("f1", "Work", domain.NodeTypeFolder, inner)
	nodes := []*domain.Node{folder}

	node, siblings, ok := Find(nodes, "n1")
	if !ok {
		t.Fatal("Find() did not locate nested node")
	}
	if node != inner {
		t.Error("Find() returned wrong node")
	}
	if len(siblings) != 1 || siblings[0] != inner {
		t.Error("Find() returned wrong sibling slice")
	}
}

func TestHasSiblingCollision(t *testing.T) {
	siblings := []*domain.Node{
		newNode("1", "Groceries", domain.NodeTypeNote),
		newNode("2", "  Chores ", domain.NodeTypeTask),
	}

	if !HasSiblingCollision(siblings, "groceries", "") {
		t.Error("expected case-insensitive collision")
	}
	if !HasSiblingCollision(siblings, "Chores", "") {
		t.Error("expected trimmed collision")
	}
	if HasSiblingCollision(siblings, "Groceries", "1") {
		t.Error("collision reported against the excluded node itself")
	}
	if HasSiblingCollision(siblings, "Other", "") {
		t.Error("collision reported for a unique label")
	}
}

func TestInsert_RootAndSorted(t *testing.T) {
	nodes := []*domain.Node{
		newNode("1", "b", domain.NodeTypeNote),
	}

	out, err := Insert(nodes, nil, newNode("2", "a", domain.NodeTypeNote))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if out[0].ID != "2" || out[1].ID != "1" {
		t.Error("root not re-sorted after insert")
	}
	if len(nodes) != 1 {
		t.Error("Insert() mutated its input")
	}
}

func TestInsert_IntoFolder(t *testing.T) {
	folder := newNode("f1", "Work", domain.NodeTypeFolder)
	nodes := []*domain.Node{folder}

	out, err := Insert(nodes, strPtr("f1"), newNode("n1", "Plan", domain.NodeTypeNote))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, _, ok := Find(out, "n1")
	if !ok {
		t.Fatal("inserted node not found")
	}
	if got.Label != "Plan" {
		t.Errorf("label = %q, want %q", got.Label, "Plan")
	}
	if HasSiblingCollision(out[0].Children, got.Label, got.ID) {
		t.Error("fresh insert collides with its own siblings")
	}

	// Original folder untouched.
	if len(folder.Children) != 0 {
		t.Error("Insert() mutated the original folder")
	}
}

func TestInsert_Errors(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
		newNode("n2", "Loose", domain.NodeTypeNote),
	}

	if _, err := Insert(nodes, strPtr("missing"), newNode("x", "X", domain.NodeTypeNote)); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("absent parent: got %v, want ErrParentNotFound", err)
	}
	if _, err := Insert(nodes, strPtr("n2"), newNode("x", "X", domain.NodeTypeNote)); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("non-folder parent: got %v, want ErrParentNotFound", err)
	}
	if _, err := Insert(nodes, strPtr("f1"), newNode("x", "plan", domain.NodeTypeNote)); !errors.Is(err, ErrNameConflict) {
		t.Errorf("duplicate label: got %v, want ErrNameConflict", err)
	}
}

func TestUpdate_StructuralSharing(t *testing.T) {
	note := newNode("n1", "Plan", domain.NodeTypeNote)
	left := newNode("f1", "Work", domain.NodeTypeFolder, note)
	right := newNode("f2", "Home", domain.NodeTypeFolder,
		newNode("n2", "Chores", domain.NodeTypeTask),
	)
	nodes := []*domain.Node{right, left}

	later := testTime.Add(time.Minute)
	out, updated, changed, err := Update(nodes, "n1", Patch{Content: strPtr("draft")}, later)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !changed {
		t.Fatal("Update() reported no change for a real content change")
	}

	if updated.Content != "draft" {
		t.Errorf("content = %q, want %q", updated.Content, "draft")
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Error("UpdatedAt not advanced")
	}
	if updated.CreatedAt != testTime {
		t.Error("CreatedAt changed on update")
	}

	// The ancestor path is fresh, the untouched subtree keeps its reference.
	if out[1] == left {
		t.Error("changed folder kept its old reference")
	}
	if out[0] != right {
		t.Error("unrelated subtree was copied")
	}
	if note.Content != "" {
		t.Error("Update() mutated the original node")
	}
}

func TestUpdate_NoOp(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
	}

	later := testTime.Add(time.Minute)
	first, _, changed, err := Update(nodes, "n1", Patch{Content: strPtr("draft")}, later)
	if err != nil || !changed {
		t.Fatalf("first Update() changed=%v err=%v", changed, err)
	}

	second, updated, changed, err := Update(first, "n1", Patch{Content: strPtr("draft")}, later.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Update() error = %v", err)
	}
	if changed {
		t.Error("second identical Update() reported a change")
	}
	if second[0] != first[0] {
		t.Error("no-op update copied the forest")
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Error("no-op update advanced UpdatedAt")
	}
}

func TestUpdate_RenameToParentLabelSucceeds(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
	}

	// "Work" is the parent, not a sibling; the rename must go through.
	_, updated, _, err := Update(nodes, "n1", Patch{Label: strPtr("Work")}, testTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Label != "Work" {
		t.Errorf("label = %q, want %q", updated.Label, "Work")
	}
}

func TestUpdate_Errors(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
			newNode("n2", "Notes", domain.NodeTypeNote),
		),
	}
	later := testTime.Add(time.Minute)

	if _, _, _, err := Update(nodes, "missing", Patch{Content: strPtr("x")}, later); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("absent id: got %v, want ErrItemNotFound", err)
	}
	if _, _, _, err := Update(nodes, "n1", Patch{Label: strPtr("notes")}, later); !errors.Is(err, ErrNameConflict) {
		t.Errorf("sibling collision: got %v, want ErrNameConflict", err)
	}
	if _, _, _, err := Update(nodes, "n1", Patch{Completed: boolPtr(true)}, later); !errors.Is(err, ErrInvalidField) {
		t.Errorf("completed on note: got %v, want ErrInvalidField", err)
	}
	if _, _, _, err := Update(nodes, "f1", Patch{Content: strPtr("x")}, later); !errors.Is(err, ErrInvalidField) {
		t.Errorf("content on folder: got %v, want ErrInvalidField", err)
	}
	if _, _, _, err := Update(nodes, "n1", Patch{Label: strPtr("   ")}, later); !errors.Is(err, ErrInvalidField) {
		t.Errorf("blank label: got %v, want ErrInvalidField", err)
	}
}

func TestDelete(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
		newNode("n2", "Loose", domain.NodeTypeNote),
	}

	out, removed := Delete(nodes, "f1")
	if !removed {
		t.Fatal("Delete() did not remove the folder")
	}
	if len(out) != 1 || out[0].ID != "n2" {
		t.Error("folder subtree not removed wholesale")
	}
	if _, _, ok := Find(out, "n1"); ok {
		t.Error("descendant survived its ancestor's deletion")
	}
}

func TestDelete_Idempotent(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
	}

	out, removed := Delete(nodes, "missing")
	if removed {
		t.Error("Delete() claimed to remove an absent id")
	}
	if out[0] != nodes[0] {
		t.Error("Delete() of an absent id copied the forest")
	}
}

func TestMove(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("n1", "Plan", domain.NodeTypeNote),
		),
		newNode("f2", "Archive", domain.NodeTypeFolder,
			newNode("n2", "Old", domain.NodeTypeNote),
			newNode("n3", "Older", domain.NodeTypeNote),
		),
	}

	later := testTime.Add(time.Minute)
	out, moved, err := Move(nodes, "n1", strPtr("f2"), intPtr(0), later)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	if !moved.UpdatedAt.Equal(later) {
		t.Error("moved node's UpdatedAt not advanced")
	}

	_, siblings, ok := Find(out, "n1")
	if !ok {
		t.Fatal("moved node not found in destination")
	}
	// Explicit index respected, no re-sort of the destination.
	if siblings[0].ID != "n1" {
		t.Errorf("moved node at position %v, want 0", siblings)
	}
	if len(siblings) != 3 {
		t.Errorf("destination has %d children, want 3", len(siblings))
	}

	if _, _, ok := Find(out[0].Children, "n1"); ok {
		t.Error("node still present in its old parent")
	}
}

func TestMove_IndexClamped(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder),
		newNode("n1", "Plan", domain.NodeTypeNote),
	}

	out, _, err := Move(nodes, "n1", strPtr("f1"), intPtr(99), testTime)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if len(out[0].Children) != 1 || out[0].Children[0].ID != "n1" {
		t.Error("out-of-range index not clamped to the end")
	}
}

func TestMove_Errors(t *testing.T) {
	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder,
			newNode("f2", "Inner", domain.NodeTypeFolder),
		),
		newNode("n1", "Plan", domain.NodeTypeNote),
	}

	if _, _, err := Move(nodes, "missing", nil, nil, testTime); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("absent id: got %v, want ErrItemNotFound", err)
	}
	if _, _, err := Move(nodes, "n1", strPtr("missing"), nil, testTime); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("absent parent: got %v, want ErrParentNotFound", err)
	}
	if _, _, err := Move(nodes, "n1", strPtr("n1"), nil, testTime); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("non-folder parent: got %v, want ErrParentNotFound", err)
	}
	// A folder cannot move into its own subtree.
	if _, _, err := Move(nodes, "f1", strPtr("f2"), nil, testTime); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("move into own subtree: got %v, want ErrParentNotFound", err)
	}
}

func TestNormalize(t *testing.T) {
	keep := uuid.New().String()
	nodes := []*domain.Node{
		{
			ID:    "not-a-uuid",
			Label: "  Imported  ",
			Type:  domain.NodeTypeFolder,
			Children: []*domain.Node{
				{ID: keep, Label: "Kept", Type: domain.NodeTypeNote, CreatedAt: testTime, UpdatedAt: testTime},
				{Label: "Fresh", Type: domain.NodeTypeTask},
			},
		},
	}

	now := testTime.Add(time.Hour)
	out := Normalize(nodes, now)

	root := out[0]
	if _, err := uuid.Parse(root.ID); err != nil {
		t.Errorf("invalid id not replaced: %q", root.ID)
	}
	if root.Label != "Imported" {
		t.Errorf("label not trimmed: %q", root.Label)
	}
	if !root.CreatedAt.Equal(now) || !root.UpdatedAt.Equal(now) {
		t.Error("missing timestamps not backfilled")
	}

	if root.Children[0].ID != keep {
		t.Error("valid uuid was reassigned")
	}
	if root.Children[0].CreatedAt != testTime {
		t.Error("existing timestamp overwritten")
	}
	if root.Children[1].ID == "" {
		t.Error("fresh node did not receive an id")
	}
}

func TestNormalize_SecondPassKeepsIDs(t *testing.T) {
	nodes := []*domain.Node{
		{Label: "a", Type: domain.NodeTypeFolder, Children: []*domain.Node{
			{Label: "b", Type: domain.NodeTypeNote},
		}},
	}

	first := Normalize(nodes, testTime)
	second := Normalize(first, testTime.Add(time.Hour))

	if second[0].ID != first[0].ID {
		t.Error("second normalize reassigned a folder id")
	}
	if second[0].Children[0].ID != first[0].Children[0].ID {
		t.Error("second normalize reassigned a child id")
	}
}

func TestNormalize_StripsTypeIllegalFields(t *testing.T) {
	past := testTime.Add(-time.Hour)
	nodes := []*domain.Node{
		{
			Label:     "Folder",
			Type:      domain.NodeTypeFolder,
			Content:   "smuggled",
			Completed: true,
			Reminder:  &domain.Reminder{Timestamp: past, Enabled: true},
		},
		{Label: "Note", Type: domain.NodeTypeNote, Completed: true},
		{Label: "Task", Type: domain.NodeTypeTask, Completed: true},
	}

	out := Normalize(nodes, testTime)

	folder := out[0]
	if folder.Reminder != nil {
		t.Error("reminder survived on an imported folder")
	}
	if folder.Content != "" || folder.Completed {
		t.Error("content/completed survived on an imported folder")
	}
	// A sanitized import never leaves the scheduler something it cannot
	// reschedule.
	if due := CollectDue(out, testTime); len(due) != 0 {
		t.Errorf("CollectDue() after import = %d nodes, want 0", len(due))
	}

	if out[1].Completed {
		t.Error("completed survived on an imported note")
	}
	if !out[2].Completed {
		t.Error("completed stripped from an imported task")
	}
}

func TestNormalize_AcceptsDuplicateLabels(t *testing.T) {
	nodes := []*domain.Node{
		{Label: "Twin", Type: domain.NodeTypeNote},
		{Label: "twin", Type: domain.NodeTypeNote},
	}

	out := Normalize(nodes, testTime)
	if len(out) != 2 {
		t.Fatal("import dropped duplicate-labeled nodes")
	}
}

func TestCollectDue(t *testing.T) {
	now := testTime
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	dueNote := newNode("n1", "Due", domain.NodeTypeNote)
	dueNote.Reminder = &domain.Reminder{Timestamp: past, Enabled: true}

	disabled := newNode("n2", "Off", domain.NodeTypeNote)
	disabled.Reminder = &domain.Reminder{Timestamp: past, Enabled: false}

	snoozed := newNode("n3", "Snoozed", domain.NodeTypeTask)
	snoozed.Reminder = &domain.Reminder{Timestamp: past, Enabled: true, SnoozedUntil: &future}

	nodes := []*domain.Node{
		newNode("f1", "Work", domain.NodeTypeFolder, dueNote, disabled),
		snoozed,
	}

	due := CollectDue(nodes, now)
	if len(due) != 1 || due[0].ID != "n1" {
		t.Fatalf("CollectDue() = %d nodes, want exactly n1", len(due))
	}

	if !HasEnabledReminder(nodes) {
		t.Error("HasEnabledReminder() missed an enabled reminder")
	}
	if HasEnabledReminder([]*domain.Node{disabled}) {
		t.Error("HasEnabledReminder() counted a disabled reminder")
	}
}
