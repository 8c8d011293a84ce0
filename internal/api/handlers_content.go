package api

import (
	"net/http"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/markdown"
	"github.com/dgallion1/lessonsync/internal/parser"
)

type classifyRequest struct {
	HTML     string `json:"html"`
	Language string `json:"language,omitempty"`
}

type convertRequest struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

// classifier returns the classifier for a request-level language override.
func (s *Server) classifier(lang string) *heading.Classifier {
	if lang != "" {
		return heading.Parse(lang)
	}
	if s.deps.Classifier != nil {
		return s.deps.Classifier
	}
	return heading.Parse("")
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cls := s.classifier(req.Language)
	results, err := cls.ScanString(req.HTML)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if results == nil {
		results = []heading.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language": cls.Language().String(),
		"results":  results,
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cls := s.classifier(req.Language)
	tree, err := parser.Content(req.Content, cls)
	if err != nil {
		jsonError(w, "convert: "+err.Error(), http.StatusBadRequest)
		return
	}
	ser := &markdown.Serializer{Classifier: cls}
	writeJSON(w, http.StatusOK, map[string]any{
		"markdown": ser.Serialize(tree),
		"html":     ser.HTML(tree),
		"outline":  doctree.BuildOutline(tree),
	})
}
