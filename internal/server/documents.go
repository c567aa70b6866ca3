package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/core"
	"github.com/joseph-ayodele/docrefine/internal/entity"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

var (
	errTooLarge     = common.NewAppError("FILE_TOO_LARGE", "File too large", common.ErrTooLarge)
	errBadMultipart = common.NewAppError("BAD_REQUEST", "Invalid multipart form", common.ErrInvalidInput)
	errBadFileType  = common.NewAppError("UNSUPPORTED_FILE_TYPE", "Invalid file type. Only PDF, DOC, DOCX, and TXT files are allowed.", common.ErrInvalidInput)
)

// multipartMemory is how much of a multipart body is held in memory before spilling to disk.
const multipartMemory = 8 << 20

type uploadResponse struct {
	ID      int64                    `json:"id"`
	Status  constants.DocumentStatus `json:"status"`
	Message string                   `json:"message"`
}

type documentResponse struct {
	ID               int64                    `json:"id"`
	OriginalName     string                   `json:"originalName"`
	OriginalContent  string                   `json:"originalContent"`
	CorrectedContent *string                  `json:"correctedContent,omitempty"`
	Corrections      *entity.Corrections      `json:"corrections,omitempty"`
	Status           constants.DocumentStatus `json:"status"`
	WritingStyle     constants.WritingStyle   `json:"writingStyle"`
}

type documentSummary struct {
	ID           int64                    `json:"id"`
	OriginalName string                   `json:"originalName"`
	FileType     string                   `json:"fileType"`
	FileSize     int64                    `json:"fileSize"`
	Corrections  *entity.Corrections      `json:"corrections,omitempty"`
	Status       constants.DocumentStatus `json:"status"`
	WritingStyle constants.WritingStyle   `json:"writingStyle"`
	CreatedAt    time.Time                `json:"createdAt"`
	UpdatedAt    time.Time                `json:"updatedAt"`
}

func toDocumentResponse(d *entity.Document) documentResponse {
	return documentResponse{
		ID:               d.ID,
		OriginalName:     d.OriginalName,
		OriginalContent:  d.OriginalContent,
		CorrectedContent: d.CorrectedContent,
		Corrections:      d.Corrections,
		Status:           d.Status,
		WritingStyle:     d.WritingStyle,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, r, errTooLarge)
			return
		}
		s.writeError(w, r, errBadMultipart)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	style := r.FormValue("writingStyle")
	if style == "" {
		style = r.FormValue("writing_style")
	}

	up := core.Upload{Style: style, Temporary: true}
	file, hdr, err := r.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		file, hdr, err = r.FormFile("file")
	}
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// the processor reports the missing file after checking the style
	case err != nil:
		s.writeError(w, r, errBadMultipart)
		return
	default:
		defer file.Close()
		if constants.MediaTypeForExt(filepath.Ext(hdr.Filename)) == "" {
			s.writeError(w, r, errBadFileType)
			return
		}
		path, err := s.spool(file, filepath.Ext(hdr.Filename))
		if err != nil {
			s.writeError(w, r, common.WrapError(err, "spool upload"))
			return
		}
		up.Path = path
		up.OriginalName = filepath.Base(hdr.Filename)
		up.MediaType = hdr.Header.Get("Content-Type")
		up.Size = hdr.Size
	}

	doc, err := s.submitter.Submit(r.Context(), up)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, uploadResponse{
		ID:      doc.ID,
		Status:  constants.StatusProcessing,
		Message: "Document uploaded successfully and processing started",
	})
}

// spool copies an uploaded part into UploadDir; the processor removes it.
func (s *Server) spool(src io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func documentID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.exporter.Download(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Body)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.repo.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentSummary{
			ID:           d.ID,
			OriginalName: d.OriginalName,
			FileType:     d.FileType,
			FileSize:     d.FileSize,
			Corrections:  d.Corrections,
			Status:       d.Status,
			WritingStyle: d.WritingStyle,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportDocuments(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.DocumentsXLSX(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "documents.xlsx"}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
