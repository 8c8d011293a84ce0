package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/lessonsync/internal/chunker"
	"github.com/dgallion1/lessonsync/internal/contentsync"
	"github.com/dgallion1/lessonsync/internal/editor"
	"github.com/dgallion1/lessonsync/internal/session"
	"github.com/dgallion1/lessonsync/internal/surface"
	"github.com/dgallion1/lessonsync/internal/upload"
)

// A null or absent content field means the value has not arrived yet.
type contentRequest struct {
	Content *string `json:"content"`
}

func (c contentRequest) value() contentsync.Content {
	if c.Content == nil {
		return contentsync.Unset()
	}
	return contentsync.Value(*c.Content)
}

type createSessionRequest struct {
	Identity string  `json:"identity"`
	Content  *string `json:"content"`
}

type identityRequest struct {
	Identity string  `json:"identity"`
	Content  *string `json:"content"`
}

type focusRequest struct {
	Focused bool `json:"focused"`
}

type commandRequest struct {
	Command string      `json:"command"`
	Args    editor.Args `json:"args"`
	DryRun  bool        `json:"dry_run,omitempty"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, err := s.deps.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return nil
	}
	return sess
}

// sessionError maps surface and editor errors to status codes.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, surface.ErrUnmounted), errors.Is(err, session.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, editor.ErrUnknownCommand),
		errors.Is(err, editor.ErrBlockOutOfRange),
		errors.Is(err, editor.ErrInvalidLevel),
		errors.Is(err, editor.ErrInvalidArgs):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, editor.ErrNoHistory):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeSession(w http.ResponseWriter, code int, sess *session.Session, extra map[string]any) {
	snap, err := sess.Surface.Snapshot()
	if err != nil {
		sessionError(w, err)
		return
	}
	stored, changes := sess.Stored()
	body := map[string]any{
		"session_id": sess.ID,
		"surface":    snap,
		"stored":     stored,
		"changes":    changes,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Identity == "" {
		jsonError(w, "identity is required", http.StatusBadRequest)
		return
	}
	sess, err := s.deps.Sessions.Create(req.Identity, contentRequest{req.Content}.value())
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeSession(w, http.StatusCreated, sess, nil)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	s.writeSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := sess.Surface.SetContent(req.value())
	if err != nil {
		sessionError(w, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess, map[string]any{"decision": d.String()})
}

func (s *Server) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req identityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Identity == "" {
		jsonError(w, "identity is required", http.StatusBadRequest)
		return
	}
	d, err := sess.Surface.SetIdentity(req.Identity, contentRequest{req.Content}.value())
	if err != nil {
		sessionError(w, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess, map[string]any{"decision": d.String()})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req focusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Focused {
		if err := sess.Surface.Focus(); err != nil {
			sessionError(w, err)
			return
		}
		s.writeSession(w, http.StatusOK, sess, nil)
		return
	}
	d, err := sess.Surface.Blur()
	if err != nil {
		sessionError(w, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess, map[string]any{"decision": d.String()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req commandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DryRun {
		writeJSON(w, http.StatusOK, map[string]any{
			"command": req.Command,
			"can":     sess.Surface.Can(req.Command, req.Args),
		})
		return
	}
	if err := sess.Surface.Apply(req.Command, req.Args); err != nil {
		sessionError(w, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess, nil)
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	out, err := sess.Surface.Outline()
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleChunks splits the session document into heading-scoped chunks.
// ?size= sets the target size in tokens.
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	cfg := chunker.DefaultConfig()
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "size must be a positive integer", http.StatusBadRequest)
			return
		}
		cfg.ChunkSize = n
	}
	out, err := sess.Surface.Outline()
	if err != nil {
		sessionError(w, err)
		return
	}
	chunks := chunker.ChunkOutline(out, cfg)
	if chunks == nil {
		chunks = []chunker.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	diff, err := sess.Surface.PendingDiff()
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": diff != "", "diff": diff})
}

// handleImage uploads an image and inserts it into the document as a
// local edit.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Uploads == nil {
		jsonError(w, upload.ErrNotConfigured.Error(), http.StatusServiceUnavailable)
		return
	}
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	args := editor.Args{Block: -1, Alt: r.FormValue("alt"), Title: r.FormValue("title")}
	if v := r.FormValue("block"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "block must be an integer", http.StatusBadRequest)
			return
		}
		args.Block = n
	}
	if v := r.FormValue("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, "offset must be an integer", http.StatusBadRequest)
			return
		}
		args.Offset = &n
	}

	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	filename := sanitizeFilename(header.Filename)
	res, err := s.deps.Uploads.Upload(r.Context(), upload.KindImage, filename, ct, data)
	switch {
	case errors.Is(err, upload.ErrUnsupportedType):
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	case errors.Is(err, upload.ErrTooLarge):
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	case err != nil:
		jsonError(w, fmt.Sprintf("upload failed: %s", err), http.StatusBadGateway)
		return
	}

	args.Src = res.URL
	if err := sess.Surface.Apply("setImage", args); err != nil {
		sessionError(w, err)
		return
	}
	s.writeSession(w, http.StatusOK, sess, map[string]any{"upload": res})
}
