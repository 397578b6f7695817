package resumefit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// multipart overhead allowed on top of the document size limit
const formOverhead = 1 << 20

var analysisPolicy = bluemonday.StrictPolicy()

// sanitize strips any markup the rewriter put into an analysis string.
func sanitize(s string) string {
	return html.UnescapeString(analysisPolicy.Sanitize(s))
}

// Sanitized returns the analysis with markup removed from every field.
func (a Analysis) Sanitized() Analysis {
	return Analysis{
		StrongPoints: sanitize(a.StrongPoints),
		WeakPoints:   sanitize(a.WeakPoints),
		ChangesMade:  sanitize(a.ChangesMade),
	}
}

// OptimizeResponse is the JSON body of a successful optimize call.
type OptimizeResponse struct {
	RunID          string   `json:"run_id"`
	Filename       string   `json:"filename"`
	Document       []byte   `json:"document,omitempty"`
	OutputPath     string   `json:"output_path,omitempty"`
	Analysis       Analysis `json:"analysis"`
	AppliedPatches int      `json:"applied_patches"`
	IgnoredPatches int      `json:"ignored_patches"`
	SkippedImages  int      `json:"skipped_images"`
}

func newOptimizeResponse(res *Result) OptimizeResponse {
	return OptimizeResponse{
		RunID:          res.RunID,
		Filename:       res.Filename,
		Analysis:       res.Analysis.Sanitized(),
		AppliedPatches: res.Patch.Applied,
		IgnoredPatches: res.Patch.Ignored,
		SkippedImages:  len(res.Build.Skipped),
	}
}

// ExtractResponse is the JSON body of an extract call.
type ExtractResponse struct {
	Mode    Mode    `json:"mode"`
	Entries []Entry `json:"entries,omitempty"`
	Payload string  `json:"payload"`
	Images  int     `json:"images"`
}

// ErrorResponse reports a failed call.
type ErrorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
	Stage Stage  `json:"stage,omitempty"`
	Raw   string `json:"raw_response,omitempty"`
}

// RegisterHTTP registers the HTTP endpoints on a chi router.
func (p *Pipeline) RegisterHTTP(r chi.Router) {
	r.Get("/health", p.handleHealth)
	r.Post("/api/v1/optimize", p.handleOptimize)
	r.Post("/api/v1/extract", p.handleExtract)
}

func (p *Pipeline) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": string(p.cfg.Mode)})
}

// handleOptimize takes a multipart form with the document in "resume" and
// the job in "role" and "description". With ?download=1 the document is
// returned as an attachment instead of JSON.
func (p *Pipeline) handleOptimize(w http.ResponseWriter, r *http.Request) {
	document, ok := p.readDocument(w, r)
	if !ok {
		return
	}
	role := r.FormValue("role")
	description := r.FormValue("description")
	if role == "" || description == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "role and description are required"})
		return
	}

	res, err := p.Optimize(r.Context(), Input{Document: document, Role: role, Description: description})
	if err != nil {
		p.writeError(w, err)
		return
	}

	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Type", docxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
		w.Header().Set("X-Run-Id", res.RunID)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.Document)
		return
	}

	resp := newOptimizeResponse(res)
	resp.Document = res.Document
	writeJSON(w, http.StatusOK, resp)
}

func (p *Pipeline) handleExtract(w http.ResponseWriter, r *http.Request) {
	document, ok := p.readDocument(w, r)
	if !ok {
		return
	}
	ex, err := p.Extract(document)
	if err != nil {
		p.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExtractResponse{Mode: ex.Mode, Entries: ex.Entries, Payload: ex.Payload, Images: len(ex.Images)})
}

func (p *Pipeline) readDocument(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, p.cfg.MaxDocumentBytes()+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "document too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form: " + err.Error()})
		return nil, false
	}

	file, _, err := r.FormFile("resume")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing resume file"})
		return nil, false
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read resume file"})
		return nil, false
	}
	return document, true
}

func (p *Pipeline) writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Stage: StageOf(err), Raw: RawResponse(err)}
	var se *StageError
	if errors.As(err, &se) {
		resp.RunID = se.RunID
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrRewrite):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMalformed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
