package server

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/matzehuels/sb3min/pkg/buildinfo"
	"github.com/matzehuels/sb3min/pkg/errors"
	"github.com/matzehuels/sb3min/pkg/pipeline"
	"github.com/matzehuels/sb3min/pkg/report"
	"github.com/matzehuels/sb3min/pkg/sb3"
)

// Response headers of /v1/compact.
const (
	IdentifiersHeader = "X-Identifiers"
	BytesSavedHeader  = "X-Bytes-Saved"
)

type errorResponse struct {
	Error     string      `json:"error"`
	Code      errors.Code `json:"code,omitempty"`
	Category  string      `json:"category"`
	RequestID string      `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

// handleCompact handles POST /v1/compact.
func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	archive, err := s.readArchive(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.runner.Compact(r.Context(), archive, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	out, err := archive.Repack(&buf, result.Project)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result.Output = out
	result.Stats.OutputBytes = out.ArchiveBytes
	result.Stats.OutputJSONBytes = out.JSONBytes

	if s.reports != nil {
		rec := report.NewRecord(archive.Path, opts, result)
		if err := s.reports.Write(r.Context(), rec); err != nil {
			s.logger.Warn("failed to write report", "id", RequestID(r.Context()), "error", err)
		}
	}

	h := w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	h.Set(IdentifiersHeader, strconv.Itoa(result.Stats.Identifiers))
	h.Set(BytesSavedHeader, strconv.Itoa(result.Stats.JSONSaved()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleInspect handles POST /v1/inspect.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	archive, err := s.readArchive(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := s.runner.Inspect(r.Context(), archive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if top := r.URL.Query().Get("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid top %q", top))
			return
		}
		in.Ranked = in.Top(n)
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	d := s.defaults
	opts := pipeline.Options{
		NoRename:      d.NoRename,
		Enumeration:   d.Enumeration,
		Alphabet:      d.Alphabet,
		AllowExternal: d.AllowExternal,
		Monitors:      d.Monitors,
		NoCache:       d.NoCache,
		Logger:        d.Logger,
	}
	q := r.URL.Query()
	if v := q.Get("monitors"); v != "" {
		opts.Monitors = v
	}
	if v := q.Get("enumeration"); v != "" {
		opts.Enumeration = v
	}
	if v := q.Get("rename"); v != "" {
		rename, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid rename %q", v)
		}
		opts.NoRename = !rename
	}
	if v := q.Get("allow_external"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "invalid allow_external %q", v)
		}
		opts.AllowExternal = allow
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

// readArchive reads the request body as a container.
func (s *Server) readArchive(w http.ResponseWriter, r *http.Request) (*sb3.Archive, error) {
	name := "upload.sb3"
	var member string
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
	case "project":
		member = sb3.ProjectMember
	case "sprite":
		name, member = "upload.sprite3", sb3.SpriteMember
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown kind %q (want project or sprite)", kind)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "body exceeds %d bytes", s.maxBody)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidContainer, err, "read body")
	}
	return sb3.Read(bytes.NewReader(body), int64(len(body)), name, sb3.OpenOptions{
		Member: member,
		Logger: s.logger,
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "id", RequestID(r.Context()), "error", err)
	}
	writeJSON(w, status, errorResponse{
		Error:     errors.UserMessage(err),
		Code:      errors.GetCode(err),
		Category:  string(errors.Category(err)),
		RequestID: RequestID(r.Context()),
	})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidContainer, errors.ErrCodeMissingMember, errors.ErrCodeInvalidJSON:
		return http.StatusBadRequest
	case errors.ErrCodeGraphInconsistent:
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
