package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/google"
	"github.com/teemow/attachfinder/internal/logging"
	"github.com/teemow/attachfinder/internal/search"
)

const (
	defaultDownloadType = "application/pdf"

	// maxGenerateBody bounds the /api/generate request body.
	maxGenerateBody = 16 << 10
)

// API serves the REST endpoints under /api.
type API struct {
	sc     *ServerContext
	logger *slog.Logger
	now    func() time.Time
}

// NewAPI creates the REST API handlers.
func NewAPI(sc *ServerContext) *API {
	return &API{
		sc:     sc,
		logger: logging.WithOperation(sc.Logger(), "api"),
		now:    time.Now,
	}
}

// Register mounts the API routes on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", a.handleSearch)
	mux.HandleFunc("GET /api/download/{messageId}/{attachmentId}", a.handleDownload)
	mux.HandleFunc("GET /api/download/{messageId}/{attachmentId}/{filename}", a.handleDownload)
	mux.HandleFunc("POST /api/generate", a.handleGenerate)
	mux.HandleFunc("POST /api/logout", a.handleLogout)
}

type authRequiredResponse struct {
	Error   string `json:"error"`
	AuthURL string `json:"authUrl"`
}

type generateRequest struct {
	Code string `json:"code"`
}

type generateResponse struct {
	Success bool `json:"success"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		http.Error(w, "Bad Request: Query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	session, ok := a.session(w, r)
	if !ok {
		return
	}

	pageSize, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil || pageSize <= 0 {
		pageSize = gmail.DefaultPageSize
	}
	pageSize = min(pageSize, gmail.MaxPageSize)

	page, err := session.Search.Search(r.Context(), search.Request{
		Query:     query,
		PageToken: q.Get("pageToken"),
		PageSize:  pageSize,
	})
	if err != nil {
		if a.authFailed(w, err) {
			return
		}
		a.logger.Error("search request failed", logging.QueryHash(query), logging.Err(err))
		http.Error(w, "Internal Server Error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	base := baseURL(r)
	for i := range page.Emails {
		email := &page.Emails[i]
		for j := range email.Attachments {
			att := &email.Attachments[j]
			att.DownloadURL = downloadURL(base, email.ID, att.AttachmentID, att.Filename)
		}
	}

	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("messageId")
	attachmentID := r.PathValue("attachmentId")
	filename := gmail.SanitizeFilename(r.PathValue("filename"))

	session, ok := a.session(w, r)
	if !ok {
		return
	}

	data, err := session.Mailbox.GetAttachment(r.Context(), messageID, attachmentID)
	if err != nil {
		if a.authFailed(w, err) {
			return
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			http.Error(w, "Attachment not found", http.StatusNotFound)
			return
		}
		a.logger.Error("download failed", logging.MessageID(messageID), logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Attachment not found", http.StatusNotFound)
		return
	}

	if filename == "" {
		filename = defaultFilename(a.now())
	}
	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = defaultDownloadType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody)).Decode(&req)
	if err != nil || strings.TrimSpace(req.Code) == "" {
		http.Error(w, "Bad Request: Code is required", http.StatusBadRequest)
		return
	}

	if err := a.sc.Exchange(r.Context(), req.Code); err != nil {
		a.logger.Error("code exchange failed", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Success: true})
}

func (a *API) handleLogout(w http.ResponseWriter, _ *http.Request) {
	if err := a.sc.Logout(); err != nil {
		a.logger.Error("logout failed", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// session resolves the Gmail session or writes the error response.
func (a *API) session(w http.ResponseWriter, _ *http.Request) (*Session, bool) {
	session, err := a.sc.Session()
	if err == nil {
		return session, true
	}
	if a.authFailed(w, err) {
		return nil, false
	}
	a.logger.Error("failed to create session", logging.Err(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	return nil, false
}

// IsAuthError reports whether err is caused by a missing or rejected
// credential.
func IsAuthError(err error) bool {
	var batchErr *gmail.BatchError
	var apiErr *googleapi.Error
	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.Is(err, google.ErrNoToken):
		return true
	case errors.As(err, &batchErr):
		return batchErr.StatusCode == http.StatusUnauthorized
	case errors.As(err, &apiErr):
		return apiErr.Code == http.StatusUnauthorized
	case errors.As(err, &retrieveErr):
		return true
	}
	return false
}

// authFailed writes a 401 with the consent URL when err is an auth error.
func (a *API) authFailed(w http.ResponseWriter, err error) bool {
	if !IsAuthError(err) {
		return false
	}

	writeJSON(w, http.StatusUnauthorized, authRequiredResponse{
		Error:   "Credentials have expired. Please re-authenticate.",
		AuthURL: a.sc.AuthURL(),
	})
	return true
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func downloadURL(base, messageID, attachmentID, filename string) string {
	return base + "/api/download/" + url.PathEscape(messageID) + "/" + url.PathEscape(attachmentID) + "/" + url.PathEscape(filename)
}

// defaultFilename names downloads that arrive without a filename, for
// example 20241014T101530123Z.pdf.
func defaultFilename(now time.Time) string {
	stamp := now.UTC().Format("20060102T150405.000Z")
	return strings.Replace(stamp, ".", "", 1) + ".pdf"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
