// Package server exposes the paper notes over HTTP: the total.json document,
// the generated structure listing and per-paper core pictures. Every request
// goes back to disk; nothing is cached between requests.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"paper-notes-app/internal/notes"
	"paper-notes-app/internal/pics"
	"paper-notes-app/internal/store"
	"paper-notes-app/internal/structure"
)

const (
	maxJSONBody     int64 = 50 << 20
	multipartSlack  int64 = 1 << 20
	defaultLogLimit       = 50
	maxLogLimit           = 500
)

// ImageMirror keeps a remote copy of stored pictures.
type ImageMirror interface {
	Put(name, localPath string) error
	Delete(name string) error
}

// Auditor records mutating requests.
type Auditor interface {
	SaveLog(entry store.Log) error
	RecentLogs(limit int) ([]store.Log, error)
}

// Options wires the server to its storage. Mirror and Audit are optional.
type Options struct {
	StaticDir      string
	Notes          *notes.Store
	Pics           *pics.Dir
	MaxUploadBytes int64
	Mirror         ImageMirror
	Audit          Auditor
}

type Server struct {
	notes     *notes.Store
	pics      *pics.Dir
	staticDir string
	maxUpload int64
	mirror    ImageMirror
	audit     Auditor
}

func New(opts Options) *Server {
	if opts.Notes == nil || opts.Pics == nil {
		panic("server.New: notes store and pics dir are required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = pics.MaxFileSize
	}
	return &Server{
		notes:     opts.Notes,
		pics:      opts.Pics,
		staticDir: opts.StaticDir,
		maxUpload: opts.MaxUploadBytes,
		mirror:    opts.Mirror,
		audit:     opts.Audit,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())
	r.MaxMultipartMemory = s.maxUpload

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"healthy": true})
	})
	r.GET("/notes/structure.txt", s.getStructureText)

	api := r.Group("/api")
	api.GET("/total-json", s.getTotalJSON)
	api.POST("/update-total-json", s.updateTotalJSON)
	api.POST("/generate-structure", s.generateStructure)
	api.POST("/upload-core-pic", s.uploadCorePic)
	api.DELETE("/delete-core-pic/:paperId", s.deleteCorePic)
	if s.audit != nil {
		api.GET("/logs", s.getLogs)
	}

	if s.staticDir != "" {
		fileServer := http.FileServer(newPublicFS(s.staticDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
				return
			}
			fileServer.ServeHTTP(c.Writer, c.Request)
		})
	}
	return r
}

func (s *Server) getStructureText(c *gin.Context) {
	text, err := s.notes.ReadStructure()
	if err != nil {
		log.Println("Error reading structure.txt:", err)
		abortWithError(c, "failed to read structure.txt", err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

func (s *Server) getTotalJSON(c *gin.Context) {
	collection, err := s.notes.Read()
	if err != nil {
		log.Println("Error reading total.json:", err)
		abortWithError(c, "failed to read total.json", err)
		return
	}
	data, err := collection.Indented()
	if err != nil {
		abortWithError(c, "failed to encode total.json", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

type updateRequest struct {
	PaperID   json.RawMessage `json:"paperId"`
	PaperData json.RawMessage `json:"paperData"`
}

func (s *Server) updateTotalJSON(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, "invalid JSON body", fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}
	paperID, ok := notes.IDFromJSON(req.PaperID)
	if !ok || !notes.Truthy(req.PaperData) {
		abortWithError(c, "missing parameter", fmt.Errorf("%w: missing required parameter paperId or paperData", errInvalidRequest))
		return
	}
	log.Printf("Updating paper %s\n", paperID)

	collection := s.notes.Load()
	collection.Set(paperID, notes.Paper(req.PaperData))
	if err := s.notes.Save(collection); err != nil {
		log.Println("Error writing total.json:", err)
		abortWithError(c, "failed to write total.json", err)
		return
	}
	log.Printf("Wrote total.json, %d papers\n", collection.Len())
	s.record(store.ActionUpdatePaper, paperID, "paper data updated")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "paper data saved to total.json",
		"paperId": paperID,
	})
}

// IncludePlaceholder follows JSON truthiness, so "yes" and 1 count as true.
type generateRequest struct {
	IncludePlaceholder json.RawMessage `json:"includePlaceholder"`
}

func (s *Server) generateStructure(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, "invalid JSON body", fmt.Errorf("%w: %v", errInvalidRequest, err))
		return
	}

	collection, err := s.notes.Read()
	if err != nil {
		log.Println("Error reading total.json:", err)
		abortWithError(c, "failed to read total.json", err)
		return
	}

	includePlaceholder := notes.Truthy(req.IncludePlaceholder)
	text := structure.Generate(collection, includePlaceholder)
	if err := s.notes.WriteStructure(text); err != nil {
		log.Println("Error writing structure.txt:", err)
		abortWithError(c, "failed to write structure.txt", err)
		return
	}
	s.record(store.ActionGenerateStructure, "", fmt.Sprintf("includePlaceholder=%t", includePlaceholder))

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "directory structure generated and saved to structure.txt",
		"structureText": text,
	})
}

func (s *Server) uploadCorePic(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+multipartSlack)
	// Other parse failures surface below as a missing paperId or file.
	if _, err := c.MultipartForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, "upload rejected", pics.ErrFileTooLarge)
			return
		}
	}

	paperID := c.PostForm("paperId")
	if paperID == "" {
		paperID = c.Query("paperId")
	}
	if paperID == "" {
		abortWithError(c, "upload rejected", pics.ErrMissingPaperID)
		return
	}
	header, err := c.FormFile("core_pic")
	if err != nil {
		abortWithError(c, "upload rejected", pics.ErrMissingFile)
		return
	}
	name, err := pics.FileName(paperID, header.Filename)
	if err != nil {
		abortWithError(c, "upload rejected", err)
		return
	}
	if header.Size > s.maxUpload {
		abortWithError(c, "upload rejected", pics.ErrFileTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		abortWithError(c, "failed to read upload", err)
		return
	}
	defer file.Close()

	path, err := s.pics.Save(name, file, s.maxUpload)
	if err != nil {
		log.Println("Error storing core picture:", err)
		abortWithError(c, "failed to store image", err)
		return
	}
	log.Printf("Stored %s as %s\n", header.Filename, name)

	collection := s.notes.Load()
	paper, ok := collection.Get(paperID)
	if !ok || !paper.Present() {
		abortWithError(c, "paper not found", fmt.Errorf("%w: %s", notes.ErrPaperNotFound, paperID))
		return
	}
	updated, err := paper.WithCorePic(name)
	if err != nil {
		abortWithError(c, "failed to update paper", err)
		return
	}
	collection.Set(paperID, updated)
	if err := s.notes.Save(collection); err != nil {
		log.Println("Error writing total.json:", err)
		abortWithError(c, "failed to write total.json", err)
		return
	}

	if s.mirror != nil {
		if err := s.mirror.Put(name, path); err != nil {
			log.Println("Error mirroring core picture:", err)
		}
	}
	s.record(store.ActionUploadCorePic, paperID, "stored "+name)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "image uploaded and linked to the paper",
		"fileName": name,
		"filePath": path,
	})
}

func (s *Server) deleteCorePic(c *gin.Context) {
	paperID := c.Param("paperId")
	if paperID == "" {
		abortWithError(c, "delete rejected", pics.ErrMissingPaperID)
		return
	}

	collection := s.notes.Load()
	paper, ok := collection.Get(paperID)
	if !ok || !paper.Present() {
		abortWithError(c, "paper not found", fmt.Errorf("%w: %s", notes.ErrPaperNotFound, paperID))
		return
	}

	name := paper.CorePic()
	if name == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "paper has no core picture"})
		return
	}

	// The picture file is best effort; the JSON field goes regardless.
	if err := s.pics.Remove(name); err != nil {
		log.Println("Error deleting core picture file:", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(name); err != nil {
			log.Println("Error deleting mirrored core picture:", err)
		}
	}

	updated, err := paper.WithoutCorePic()
	if err != nil {
		abortWithError(c, "failed to update paper", err)
		return
	}
	collection.Set(paperID, updated)
	if err := s.notes.Save(collection); err != nil {
		log.Println("Error writing total.json:", err)
		abortWithError(c, "failed to write total.json", err)
		return
	}
	s.record(store.ActionDeleteCorePic, paperID, "removed "+name)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "core picture deleted"})
}

func (s *Server) getLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxLogLimit {
			abortWithError(c, "invalid limit", fmt.Errorf("%w: limit must be between 1 and %d", errInvalidRequest, maxLogLimit))
			return
		}
		limit = parsed
	}
	logs, err := s.audit.RecentLogs(limit)
	if err != nil {
		log.Println("Error reading audit logs:", err)
		abortWithError(c, "failed to read logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs})
}

// record writes an audit entry when auditing is enabled. Failures are only
// logged.
func (s *Server) record(action, paperID, message string) {
	if s.audit == nil {
		return
	}
	err := s.audit.SaveLog(store.Log{Level: store.LevelInfo, Action: action, PaperID: paperID, Message: message})
	if err != nil {
		log.Println("Error saving audit log:", err)
	}
}
