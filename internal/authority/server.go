// Package authority is an in-memory gallery server speaking the same HTTP API
// as the real backend. It backs demo mode and end-to-end tests.
package authority

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/five82/storyboard/internal/gallery"
	"github.com/five82/storyboard/internal/state"
)

const subscriberBuffer = 16

// Image seeds one image into a scope.
type Image struct {
	ID          string
	Description string
	Dialog      []string
}

type scope struct {
	images       []gallery.ImageRecord
	dialogs      map[string][]string
	descriptions map[string]string
}

// Server holds every scope in memory and broadcasts a change event after
// each mutation.
type Server struct {
	logger *slog.Logger

	mu          sync.RWMutex
	scopes      map[string]*scope
	speakers    gallery.SpeakerMeta
	defaultPath string

	subsMu sync.Mutex
	subs   map[chan string]struct{}
	done   chan struct{}
	closed sync.Once

	rejectReorders atomic.Bool
	rejectDeletes  atomic.Bool
	now            func() time.Time
}

// New returns an empty server with the default speaker registry.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger,
		scopes:   make(map[string]*scope),
		speakers: gallery.DefaultSpeakers(),
		subs:     make(map[chan string]struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Handler returns the gin engine serving the API.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/path", s.getDefaultPath)
		api.GET("/updates", s.streamUpdates)
		api.GET("/images", s.listImages)
		api.DELETE("/images/:id", s.deleteImage)
		api.POST("/images/:id/reorder", s.reorder)
		api.GET("/images/:id/dialog", s.getDialog)
		api.POST("/images/:id/dialog", s.setDialog)
		api.GET("/images/:id/description", s.getDescription)
		api.GET("/dialogs", s.listDialogs)
		api.GET("/speakers", s.getSpeakers)
		api.POST("/speakers", s.setSpeakers)
		api.GET("/dirs", s.listDirs)
	}
	return r
}

// Close ends every open update stream.
func (s *Server) Close() {
	s.closed.Do(func() { close(s.done) })
}

// SetDefaultPath sets the scope reported by /api/path.
func (s *Server) SetDefaultPath(path string) {
	s.mu.Lock()
	s.defaultPath = path
	s.mu.Unlock()
}

// SetSpeakers replaces the speaker registry.
func (s *Server) SetSpeakers(meta gallery.SpeakerMeta) {
	s.mu.Lock()
	s.speakers = meta
	s.mu.Unlock()
}

// RejectReorders makes every reorder request fail with 409.
func (s *Server) RejectReorders(reject bool) {
	s.rejectReorders.Store(reject)
}

// RejectDeletes makes every delete request fail with 409.
func (s *Server) RejectDeletes(reject bool) {
	s.rejectDeletes.Store(reject)
}

// Seed replaces the contents of path. Images without an id get a random one.
// It returns the ids in order.
func (s *Server) Seed(path string, images ...Image) []string {
	sc := &scope{dialogs: make(map[string][]string), descriptions: make(map[string]string)}
	ids := make([]string, 0, len(images))
	ts := s.now().UTC()
	for i, img := range images {
		id := img.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids = append(ids, id)
		sc.images = append(sc.images, gallery.ImageRecord{
			ID:        id,
			URL:       imageURL(path, id),
			Timestamp: ts.Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano),
		})
		if img.Description != "" {
			sc.descriptions[id] = img.Description
		}
		if img.Dialog != nil {
			sc.dialogs[id] = append([]string(nil), img.Dialog...)
		}
	}

	s.mu.Lock()
	s.scopes[path] = sc
	s.mu.Unlock()
	s.Broadcast(path)
	return ids
}

// Add appends an image to path, as an upload would, and returns its id.
func (s *Server) Add(path string, img Image) string {
	id := img.ID
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	sc := s.scopeLocked(path)
	sc.images = append(sc.images, gallery.ImageRecord{
		ID:        id,
		URL:       imageURL(path, id),
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	})
	if img.Description != "" {
		sc.descriptions[id] = img.Description
	}
	if img.Dialog != nil {
		sc.dialogs[id] = append([]string(nil), img.Dialog...)
	}
	s.mu.Unlock()
	s.Broadcast(path)
	return id
}

// Order returns the ids of path in order.
func (s *Server) Order(path string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scopes[path]
	if !ok {
		return nil
	}
	ids := make([]string, len(sc.images))
	for i, img := range sc.images {
		ids[i] = img.ID
	}
	return ids
}

// Dialog returns the stored dialog lines of id.
func (s *Server) Dialog(path, id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sc, ok := s.scopes[path]; ok {
		return append([]string(nil), sc.dialogs[id]...)
	}
	return nil
}

// Subscribers reports how many update streams are open.
func (s *Server) Subscribers() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

// Broadcast notifies every stream that path changed. Slow subscribers miss
// events rather than block the sender.
func (s *Server) Broadcast(path string) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- path:
		default:
		}
	}
}

func (s *Server) subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan string) {
	s.subsMu.Lock()
	delete(s.subs, ch)
	s.subsMu.Unlock()
}

func (s *Server) scopeLocked(path string) *scope {
	sc, ok := s.scopes[path]
	if !ok {
		sc = &scope{dialogs: make(map[string][]string), descriptions: make(map[string]string)}
		s.scopes[path] = sc
	}
	return sc
}

func (s *Server) getDefaultPath(c *gin.Context) {
	s.mu.RLock()
	path := s.defaultPath
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) streamUpdates(c *gin.Context) {
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Content-Type", "text/event-stream")

	ch := s.subscribe()
	defer s.unsubscribe(ch)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-s.done:
			return
		case path := <-ch:
			c.SSEvent("update", path)
			c.Writer.Flush()
		}
	}
}

func (s *Server) listImages(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	images := []gallery.ImageRecord{}
	if sc, ok := s.scopes[c.Query("path")]; ok {
		images = append(images, sc.images...)
	}
	c.JSON(http.StatusOK, images)
}

func (s *Server) deleteImage(c *gin.Context) {
	if s.rejectDeletes.Load() {
		c.JSON(http.StatusConflict, gin.H{"error": "deletes disabled"})
		return
	}
	path, id := c.Query("path"), c.Param("id")

	s.mu.Lock()
	sc, ok := s.scopes[path]
	if !ok || indexOf(sc.images, id) < 0 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	i := indexOf(sc.images, id)
	sc.images = append(sc.images[:i], sc.images[i+1:]...)
	delete(sc.dialogs, id)
	delete(sc.descriptions, id)
	s.mu.Unlock()

	s.logger.Info("image deleted", "path", path, "id", id)
	s.Broadcast(path)
	c.Status(http.StatusNoContent)
}

func (s *Server) reorder(c *gin.Context) {
	var req struct {
		PrevID *string `json:"prev_id"`
		NextID *string `json:"next_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.rejectReorders.Load() {
		c.JSON(http.StatusConflict, gin.H{"error": "reorders disabled"})
		return
	}

	path := c.Query("path")
	intent := gallery.ReorderIntent{MovedID: c.Param("id")}
	if req.PrevID != nil {
		intent.PrevID = *req.PrevID
	}
	if req.NextID != nil {
		intent.NextID = *req.NextID
	}

	s.mu.Lock()
	sc, ok := s.scopes[path]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	moved, ok := state.MoveNeighbor(sc.images, intent)
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	// A move rewrites the asset, which gives it a new timestamp.
	i := indexOf(moved, intent.MovedID)
	moved[i].Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	sc.images = moved
	s.mu.Unlock()

	s.logger.Info("image reordered", "path", path, "id", intent.MovedID, "prev", intent.PrevID, "next", intent.NextID)
	s.Broadcast(path)
	c.JSON(http.StatusOK, gin.H{"id": intent.MovedID})
}

func (s *Server) getDialog(c *gin.Context) {
	path, id := c.Query("path"), c.Param("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scopes[path]
	if !ok || indexOf(sc.images, id) < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	lines := sc.dialogs[id]
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, gallery.DialogPayload{Dialog: lines})
}

func (s *Server) setDialog(c *gin.Context) {
	var req gallery.DialogPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	path, id := c.Query("path"), c.Param("id")

	s.mu.Lock()
	sc, ok := s.scopes[path]
	if !ok || indexOf(sc.images, id) < 0 {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	sc.dialogs[id] = append([]string{}, req.Dialog...)
	s.mu.Unlock()

	s.Broadcast(path)
	c.JSON(http.StatusOK, gallery.DialogPayload{Dialog: req.Dialog})
}

func (s *Server) getDescription(c *gin.Context) {
	path, id := c.Query("path"), c.Param("id")
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scopes[path]
	if !ok || indexOf(sc.images, id) < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"description": sc.descriptions[id]})
}

func (s *Server) listDialogs(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dialogs := make(map[string][]string)
	if sc, ok := s.scopes[c.Query("path")]; ok {
		for _, img := range sc.images {
			lines := sc.dialogs[img.ID]
			if lines == nil {
				lines = []string{}
			}
			dialogs[img.ID] = lines
		}
	}
	c.JSON(http.StatusOK, gallery.DialogsPayload{Dialogs: dialogs})
}

func (s *Server) getSpeakers(c *gin.Context) {
	s.mu.RLock()
	meta := s.speakers
	s.mu.RUnlock()
	defaults := gallery.DefaultSpeakers()
	if meta.Colors == nil {
		meta.Colors = defaults.Colors
	}
	if meta.Names == nil {
		meta.Names = defaults.Names
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) setSpeakers(c *gin.Context) {
	var meta gallery.SpeakerMeta
	if err := c.ShouldBindJSON(&meta); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.SetSpeakers(meta)
	c.JSON(http.StatusOK, meta)
}

// listDirs reports the immediate child scopes of path.
func (s *Server) listDirs(c *gin.Context) {
	parent := strings.Trim(c.Query("path"), "/")

	s.mu.RLock()
	defer s.mu.RUnlock()

	children := make(map[string]*gallery.DirEntry)
	grandchildren := make(map[string]map[string]struct{})
	for key, sc := range s.scopes {
		rest, ok := childPath(parent, key)
		if !ok {
			continue
		}
		name, below, nested := strings.Cut(rest, "/")
		entry, ok := children[name]
		if !ok {
			entry = &gallery.DirEntry{Name: name}
			children[name] = entry
			grandchildren[name] = make(map[string]struct{})
		}
		if nested {
			first, _, _ := strings.Cut(below, "/")
			grandchildren[name][first] = struct{}{}
			continue
		}
		entry.ImageCount = len(sc.images)
	}

	entries := make([]gallery.DirEntry, 0, len(children))
	for name, entry := range children {
		entry.DirCount = len(grandchildren[name])
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	c.JSON(http.StatusOK, entries)
}

func childPath(parent, key string) (string, bool) {
	key = strings.Trim(key, "/")
	if key == "" || key == parent {
		return "", false
	}
	if parent == "" {
		return key, true
	}
	rest, ok := strings.CutPrefix(key, parent+"/")
	return rest, ok
}

func indexOf(images []gallery.ImageRecord, id string) int {
	for i, img := range images {
		if img.ID == id {
			return i
		}
	}
	return -1
}

func imageURL(path, id string) string {
	if path == "" {
		return fmt.Sprintf("/images/%s.png", id)
	}
	return fmt.Sprintf("/images/%s/%s.png", strings.Trim(path, "/"), id)
}
