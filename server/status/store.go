package status

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andydunstall/dnd/pkg/kv"
)

// StoreSnapshot is the response to the store route.
type StoreSnapshot struct {
	Version uint64     `json:"version"`
	Entries kv.Entries `json:"entries"`
}

// Store exposes the local key-value store.
type Store struct {
	store *kv.Store
}

func NewStore(store *kv.Store) *Store {
	return &Store{
		store: store,
	}
}

func (s *Store) Register(group *gin.RouterGroup) {
	group.GET("", s.snapshotRoute)
}

func (s *Store) snapshotRoute(c *gin.Context) {
	version, entries := s.store.Snapshot()
	c.JSON(http.StatusOK, &StoreSnapshot{
		Version: version,
		Entries: entries,
	})
}

var _ Handler = &Store{}
