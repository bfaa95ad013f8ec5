package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"arbor-server/internal/domain"
	"arbor-server/internal/reminder"
	"arbor-server/internal/repository"
	"arbor-server/internal/tree"
	"arbor-server/internal/websocket"

	"github.com/google/uuid"
)

// TreeService is the mutation surface over a user's forest: every operation
// loads the whole tree, runs the pure tree engine, writes the whole tree back,
// and relays the event to the user's other devices.
type TreeService struct {
	trees     repository.TreeRepository
	wsManager *websocket.Manager
}

func NewTreeService(trees repository.TreeRepository, wsManager *websocket.Manager) *TreeService {
	return &TreeService{
		trees:     trees,
		wsManager: wsManager,
	}
}

func (s *TreeService) GetTree(userID string) ([]*domain.Node, error) {
	return s.trees.Load(userID)
}

func (s *TreeService) GetNode(userID, nodeID string) (*domain.Node, error) {
	nodes, err := s.trees.Load(userID)
	if err != nil {
		return nil, err
	}

	node, _, ok := tree.Find(nodes, nodeID)
	if !ok {
		return nil, tree.ErrItemNotFound
	}
	return node, nil
}

func (s *TreeService) CreateNode(userID string, req *domain.CreateNodeRequest) (*domain.Node, error) {
	if !domain.ValidNodeType(req.Type) {
		return nil, tree.ErrInvalidNodeType
	}

	label := strings.TrimSpace(req.Label)
	if label == "" || utf8.RuneCountInString(label) > tree.MaxLabelLength {
		return nil, tree.ErrInvalidField
	}

	if req.Type == domain.NodeTypeFolder && (req.Content != "" || req.Reminder != nil) {
		return nil, tree.ErrInvalidField
	}
	if req.Completed && req.Type != domain.NodeTypeTask {
		return nil, tree.ErrInvalidField
	}

	now := time.Now()
	node := &domain.Node{
		ID:        uuid.New().String(),
		Label:     label,
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch req.Type {
	case domain.NodeTypeFolder:
		node.Children = []*domain.Node{}
	case domain.NodeTypeNote:
		node.Content = req.Content
	case domain.NodeTypeTask:
		node.Content = req.Content
		node.Completed = req.Completed
	}
	if req.Reminder != nil {
		r := *req.Reminder
		node.Reminder = &r
	}

	nodes, err := s.trees.Load(userID)
	if err != nil {
		return nil, err
	}

	next, err := tree.Insert(nodes, req.ParentID, node)
	if err != nil {
		return nil, err
	}

	if err := s.trees.Replace(userID, next); err != nil {
		return nil, err
	}

	s.broadcast(userID, req.DeviceID, websocket.TypeNodeCreated, &websocket.NodeEventPayload{
		Node:     node,
		ParentID: req.ParentID,
		DeviceID: req.DeviceID,
	})

	return node, nil
}

func (s *TreeService) UpdateNode(userID, nodeID string, req *domain.UpdateNodeRequest) (*domain.Node, error) {
	nodes, err := s.trees.Load(userID)
	if err != nil {
		return nil, err
	}

	patch := tree.Patch{
		Label:          req.Label,
		Content:        req.Content,
		Completed:      req.Completed,
		Reminder:       req.Reminder,
		RemoveReminder: req.RemoveReminder,
	}

	next, node, changed, err := tree.Update(nodes, nodeID, patch, time.Now())
	if err != nil {
		return nil, err
	}
	if !changed {
		// No field value moved; skip the write and the relay event.
		return node, nil
	}

	if err := s.trees.Replace(userID, next); err != nil {
		return nil, err
	}

	s.broadcast(userID, req.DeviceID, websocket.TypeNodeUpdated, &websocket.NodeEventPayload{
		Node:     node,
		DeviceID: req.DeviceID,
	})

	return node, nil
}

// DeleteNode removes the node and its subtree. Deleting an unknown id is a
// no-op, not an error.
func (s *TreeService) DeleteNode(userID, nodeID, deviceID string) error {
	nodes, err := s.trees.Load(userID)
	if err != nil {
		return err
	}

	next, removed := tree.Delete(nodes, nodeID)
	if !removed {
		return nil
	}

	if err := s.trees.Replace(userID, next); err != nil {
		return err
	}

	s.broadcast(userID, deviceID, websocket.TypeNodeDeleted, &websocket.NodeDeletedPayload{
		NodeID:   nodeID,
		DeviceID: deviceID,
	})

	return nil
}

func (s *TreeService) MoveNode(userID, nodeID string, req *domain.MoveNodeRequest) (*domain.Node, error) {
	nodes, err := s.trees.Load(userID)
	if err != nil {
		return nil, err
	}

	next, node, err := tree.Move(nodes, nodeID, req.NewParentID, req.NewIndex, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.trees.Replace(userID, next); err != nil {
		return nil, err
	}

	s.broadcast(userID, req.DeviceID, websocket.TypeNodeMoved, &websocket.NodeMovedPayload{
		Node:        node,
		NewParentID: req.NewParentID,
		NewIndex:    req.NewIndex,
		DeviceID:    req.DeviceID,
	})

	return node, nil
}

// ReplaceTree imports a whole forest, discarding the previous one. Incoming
// ids are kept only when they are valid UUIDs; everything else is reissued.
func (s *TreeService) ReplaceTree(userID string, req *domain.ReplaceTreeRequest) ([]*domain.Node, error) {
	if err := validateNodeTypes(req.Nodes); err != nil {
		return nil, err
	}

	normalized := tree.Normalize(req.Nodes, time.Now())

	if err := s.trees.Replace(userID, normalized); err != nil {
		return nil, err
	}

	s.broadcast(userID, req.DeviceID, websocket.TypeTreeReplaced, &websocket.TreeReplacedPayload{
		DeviceID: req.DeviceID,
	})

	return normalized, nil
}

func (s *TreeService) SnoozeReminder(userID, nodeID string, req *domain.SnoozeReminderRequest) (*domain.Node, error) {
	nodes, err := s.trees.Load(userID)
	if err != nil {
		return nil, err
	}

	node, _, ok := tree.Find(nodes, nodeID)
	if !ok {
		return nil, tree.ErrItemNotFound
	}
	if node.Reminder == nil {
		return nil, tree.ErrInvalidField
	}

	now := time.Now()
	snoozed := reminder.Snooze(node.Reminder, req.Minutes, now)

	next, updated, changed, err := tree.Update(nodes, nodeID, tree.Patch{Reminder: snoozed}, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	if err := s.trees.Replace(userID, next); err != nil {
		return nil, err
	}

	s.broadcast(userID, req.DeviceID, websocket.TypeNodeUpdated, &websocket.NodeEventPayload{
		Node:     updated,
		DeviceID: req.DeviceID,
	})

	return updated, nil
}

func (s *TreeService) broadcast(userID, deviceID string, msgType websocket.MessageType, payload interface{}) {
	if s.wsManager == nil {
		return
	}

	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return
	}

	s.wsManager.BroadcastToUser(userID, msg, deviceID)
}

func validateNodeTypes(nodes []*domain.Node) error {
	for _, n := range nodes {
		if !domain.ValidNodeType(n.Type) {
			return tree.ErrInvalidNodeType
		}
		if n.Type == domain.NodeTypeFolder {
			if err := validateNodeTypes(n.Children); err != nil {
				return err
			}
		}
	}
	return nil
}
