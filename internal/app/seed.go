package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/docstore"
	"github.com/vidtube/backend/internal/models"
)

func seedPath(dir, name string) string {
	return filepath.Join(dir, name+"_seed.json")
}

// Seed loads a JSON file shaped as {collection: [documents]} into store. Documents without an
// _id get one; plaintext user passwords are hashed. It returns the count per collection.
func Seed(ctx context.Context, store docstore.Store, path string) (map[string]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var fixture map[string][]docstore.Document
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}

	names := make([]string, 0, len(fixture))
	for name := range fixture {
		if _, ok := models.Schema[name]; !ok {
			return nil, fmt.Errorf("seed %s: unknown collection %q", path, name)
		}
		names = append(names, name)
	}
	slices.Sort(names)

	now := models.Now()
	counts := make(map[string]int, len(names))
	for _, name := range names {
		for i, doc := range fixture[name] {
			if err := prepareSeedDoc(name, doc, now); err != nil {
				return counts, fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			if err := store.Create(ctx, name, doc); err != nil {
				return counts, fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			counts[name]++
		}
	}
	return counts, nil
}

func prepareSeedDoc(collection string, doc docstore.Document, now models.Time) error {
	if doc.ID() == "" {
		doc["_id"] = uuid.NewString()
	}
	stamp := docstore.FormatTime(now.Time)
	if _, ok := doc["createdAt"]; !ok {
		doc["createdAt"] = stamp
	}
	if _, ok := doc["updatedAt"]; !ok && collection != models.CollectionLikes && collection != models.CollectionSubscriptions {
		doc["updatedAt"] = stamp
	}
	if collection != models.CollectionUsers {
		return nil
	}
	password := doc.String("password")
	if password == "" || strings.HasPrefix(password, "$2") {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	doc["password"] = string(hashed)
	return nil
}
