package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/config"
	"github.com/sells-group/geo-enrich/internal/model"
)

type uploadResponse struct {
	Message    string `json:"message"`
	DatasetRef string `json:"dataset_ref"`
}

type processRequest struct {
	DatasetRef    string `json:"dataset_ref"`
	CredentialRef string `json:"credential_ref"`
}

type processResponse struct {
	Message    string            `json:"message"`
	DatasetRef string            `json:"dataset_ref"`
	Summary    *model.RunSummary `json:"summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, kindInvalidRequest, "file exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close() //nolint:errcheck

	name := sanitizeFilename(header.Filename)
	if !s.allowedExtension(name) {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "unsupported file type")
		return
	}

	ref := uuid.NewString() + "-" + name
	if err := s.saveUpload(ref, file); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, kindInvalidRequest, "file exceeds upload limit")
			return
		}
		s.log.Error("api: store upload failed", zap.String("dataset_ref", ref), zap.Error(err))
		writeError(w, http.StatusInternalServerError, string(model.KindInternal), "could not store upload")
		return
	}

	s.log.Info("api: dataset uploaded", zap.String("dataset_ref", ref), zap.Int64("bytes", header.Size))
	writeJSON(w, http.StatusOK, uploadResponse{Message: "file uploaded", DatasetRef: ref})
}

func (s *Server) saveUpload(ref string, src io.Reader) error {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return eris.Wrap(err, "api: create upload dir")
	}
	path := filepath.Join(s.cfg.UploadDir, ref)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return eris.Wrap(err, "api: create upload file")
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return eris.Wrap(err, "api: close upload file")
	}
	return nil
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.DatasetRef) == "" {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "dataset_ref is required")
		return
	}

	path, ok := s.resolveDataset(w, req.DatasetRef)
	if !ok {
		return
	}

	if !s.processing.TryLock() {
		writeError(w, http.StatusConflict, kindBusy, "another dataset is being processed")
		return
	}
	defer s.processing.Unlock()

	key, err := s.resolveCredential(req.CredentialRef)
	if err != nil {
		writeFailure(w, err)
		return
	}

	summary, err := s.enrich(r.Context(), path, key)
	if err != nil {
		s.log.Warn("api: process failed",
			zap.String("dataset_ref", req.DatasetRef),
			zap.String("kind", string(model.KindOf(err))),
		)
		writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Message:    "processing finished: " + string(summary.StopReason),
		DatasetRef: req.DatasetRef,
		Summary:    summary,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("dataset_ref")
	if strings.TrimSpace(ref) == "" {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "dataset_ref is required")
		return
	}
	path, ok := s.resolveDataset(w, ref)
	if !ok {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, kindNotFound, "dataset not found")
		return
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(model.KindInternal), "could not read dataset")
		return
	}

	w.Header().Set("Content-Type", contentType(path))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": originalName(ref)}))
	http.ServeContent(w, r, "", info.ModTime(), f)
}

// resolveDataset maps a ref to a file inside the upload dir, writing the
// error response itself when the ref is invalid or unknown.
func (s *Server) resolveDataset(w http.ResponseWriter, ref string) (string, bool) {
	path, err := safeJoin(s.cfg.UploadDir, ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidRequest, "invalid dataset_ref")
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, kindNotFound, "dataset not found")
		return "", false
	}
	return path, true
}

func (s *Server) resolveCredential(ref string) (config.Secret, error) {
	if strings.TrimSpace(ref) == "" {
		if s.credential == nil {
			return "", &model.CredentialError{Err: eris.New("no credential configured")}
		}
		return s.credential()
	}
	path, err := safeJoin(s.cfg.CredentialDir, ref)
	if err != nil {
		return "", &model.CredentialError{Err: err}
	}
	return config.LoadCredential(path)
}

// safeJoin joins a bare file name onto dir, rejecting anything that could
// leave it.
func safeJoin(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return "", eris.Errorf("api: %q is not a plain file name", name)
	}
	return filepath.Join(dir, name), nil
}

// sanitizeFilename keeps letters, digits, dot, dash, and underscore from the
// base name of an uploaded file.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "dataset"
	}
	return clean
}

// originalName strips the uuid prefix added on upload.
func originalName(ref string) string {
	if len(ref) > 37 && ref[36] == '-' {
		if _, err := uuid.Parse(ref[:36]); err == nil {
			return ref[37:]
		}
	}
	return ref
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
