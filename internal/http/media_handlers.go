package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"sac-backend-go/internal/services"
)

const uploadAccepted = "Upload done."

func writePlain(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}

// uploadTarget reads the optional binding field. At most one may be present.
func uploadTarget(r *http.Request) (*services.Target, error) {
	var target *services.Target
	for _, kind := range services.AttachmentKinds() {
		raw := strings.TrimSpace(r.FormValue(kind.FormField()))
		if raw == "" {
			continue
		}
		if target != nil {
			return nil, services.ErrBadRequest("Only one attachment target is allowed")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, services.ErrBadRequest("Invalid " + kind.FormField())
		}
		target = &services.Target{Kind: kind, EntityID: id}
	}
	return target, nil
}

// Upload validates the multipart request and hands the file to the
// dispatcher. Storage happens after the response is written.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	limit := s.Config.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writePlain(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writePlain(w, http.StatusBadRequest, "Invalid multipart payload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writePlain(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writePlain(w, http.StatusBadRequest, "Unable to read file")
		return
	}
	if len(data) == 0 {
		writePlain(w, http.StatusBadRequest, "Empty file")
		return
	}
	target, err := uploadTarget(r)
	if err != nil {
		status, message := s.resolveError(r, err)
		writePlain(w, status, message)
		return
	}

	job := services.NewUploadJob(header.Filename, data, target)
	if err := s.Uploads.Submit(r.Context(), job); err != nil {
		status, message := s.resolveError(r, err)
		writePlain(w, status, message)
		return
	}
	w.Header().Set("X-Upload-Id", job.ID)
	writePlain(w, http.StatusOK, uploadAccepted)
}

func (s *Server) ViewMedia(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimSpace(r.URL.Query().Get("hash"))
	if hash == "" {
		s.writeServiceError(w, r, services.ErrMediaNotFound)
		return
	}
	data, fileType, err := s.Media.Fetch(r.Context(), hash)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", services.ContentTypeFor(fileType))
	w.Header().Set("Cache-Control", services.CacheControlImmutable)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Attachment redirects to the newest media bound to an entity, or to the
// frontend's not-found page.
func (s *Server) Attachment(w http.ResponseWriter, r *http.Request) {
	notFound := s.Config.FrontendURL + "/not-found"
	id, err := queryInt64(r, "id")
	if err != nil {
		http.Redirect(w, r, notFound, http.StatusSeeOther)
		return
	}
	kind, err := services.ParseAttachmentKind(r.URL.Query().Get("attachment_type"))
	if err != nil {
		http.Redirect(w, r, notFound, http.StatusSeeOther)
		return
	}
	hash, err := services.Resolve(r.Context(), s.DB, services.Target{Kind: kind, EntityID: id})
	if err != nil {
		if _, ok := services.AsServiceError(err); !ok {
			s.resolveError(r, err)
		}
		http.Redirect(w, r, notFound, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/media/view?hash="+url.QueryEscape(hash), http.StatusSeeOther)
}
