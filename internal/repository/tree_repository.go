package repository

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"arbor-server/internal/domain"
	"arbor-server/internal/tree"

	"github.com/go-kivik/kivik/v4"
)

// TreeRepository stores one document per user holding that user's whole
// forest. There are no partial writes: Replace swaps the entire tree.
type TreeRepository interface {
	Load(userID string) ([]*domain.Node, error)
	Replace(userID string, nodes []*domain.Node) error
	ListUserIDsWithReminders() ([]string, error)
}

type treeRepository struct {
	client *kivik.Client
	dbName string
}

func NewTreeRepository(client *kivik.Client, dbName string) TreeRepository {
	return &treeRepository{
		client: client,
		dbName: dbName,
	}
}

func treeDocID(userID string) string {
	return fmt.Sprintf("tree:%s", userID)
}

func (r *treeRepository) Load(userID string) ([]*domain.Node, error) {
	db := r.client.DB(r.dbName)

	row := db.Get(context.Background(), treeDocID(userID))

	var doc struct {
		Nodes []*domain.Node `json:"nodes"`
	}
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			// First use: a user without a document owns an empty forest.
			return []*domain.Node{}, nil
		}
		return nil, fmt.Errorf("failed to load tree: %w", err)
	}

	return doc.Nodes, nil
}

func (r *treeRepository) Replace(userID string, nodes []*domain.Node) error {
	db := r.client.DB(r.dbName)
	docID := treeDocID(userID)

	doc := map[string]interface{}{
		"user_id": userID,
		"nodes":   nodes,
		// Maintained on every write so the scheduler can select only users
		// that can have due reminders.
		"has_reminders": tree.HasEnabledReminder(nodes),
		"updated_at":    time.Now(),
	}

	var existing map[string]interface{}
	row := db.Get(context.Background(), docID)
	scanErr := row.ScanDoc(&existing)

	rev, err := revForReplace(existing, scanErr)
	if err != nil {
		return err
	}
	if rev != "" {
		doc["_rev"] = rev
	}

	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to replace tree: %w", err)
	}

	return nil
}

// revForReplace maps the pre-write Get outcome: reuse the existing revision,
// treat an absent doc as a first write, and surface any other failure rather
// than attempting a rev-less Put that would misreport it as a conflict.
func revForReplace(existing map[string]interface{}, scanErr error) (string, error) {
	switch {
	case scanErr == nil:
		rev, _ := existing["_rev"].(string)
		return rev, nil
	case kivik.HTTPStatus(scanErr) == http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("failed to read tree revision: %w", scanErr)
	}
}

func (r *treeRepository) ListUserIDsWithReminders() ([]string, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"has_reminders": true,
			"nodes":         map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list trees with reminders: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var doc struct {
			UserID string `json:"user_id"`
		}
		if err := rows.ScanDoc(&doc); err != nil {
			continue // Skip malformed docs
		}
		userIDs = append(userIDs, doc.UserID)
	}

	return userIDs, nil
}
