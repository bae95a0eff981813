package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/appvault/internal/collection"
	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/appvault/internal/imageurl"
	"github.com/MrSnakeDoc/appvault/internal/logger"
)

// DefaultMaxUploadBytes bounds a multipart request when deps.MaxUploadBytes is unset.
const DefaultMaxUploadBytes = 10 << 20

// appView is an App as the API returns it: the stored record plus the
// image a client should render.
type appView struct {
	domain.App
	DisplayImage string `json:"displayImage"`
}

type listResponse struct {
	State string    `json:"state"`
	Count int       `json:"count"`
	Apps  []appView `json:"apps"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func viewOf(a domain.App) appView {
	return appView{App: a, DisplayImage: imageurl.ResolveDisplayImage(a.Image, a.URL)}
}

// ListApps returns the mirrored collection, optionally filtered with
// ?category=. It answers 503 until the first snapshot arrives.
func ListApps(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.Catalog.State()
		if state == collection.StateLoading {
			writeError(w, http.StatusServiceUnavailable, "collection is loading")
			return
		}

		category := domain.Category(strings.TrimSpace(r.URL.Query().Get("category")))
		if category != "" && category != domain.CategoryAll && !category.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", category))
			return
		}

		apps := d.Catalog.Apps()
		if category != "" {
			apps = domain.FilterByCategory(apps, category)
		}

		views := make([]appView, 0, len(apps))
		for _, a := range apps {
			views = append(views, viewOf(a))
		}

		w.Header().Set("X-Collection-State", state.String())
		writeJSON(w, http.StatusOK, listResponse{State: state.String(), Count: len(views), Apps: views})
	}
}

func GetApp(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, ok := d.Catalog.App(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, viewOf(app))
	}
}

// CreateApp accepts a JSON body or a multipart form with an optional
// "image" file part.
func CreateApp(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, upload, err := decodeApp(w, r, d)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		in := domain.AppInput{AppFields: patch.ApplyTo(domain.AppFields{}), Upload: upload}
		id, err := d.Catalog.Create(r.Context(), in)
		if err != nil {
			d.Logger.Warn("create app failed", logger.Error(err))
			writeFailure(w, err)
			return
		}

		w.Header().Set("Location", "/api/apps/"+id)
		writeJSON(w, http.StatusCreated, createdResponse{ID: id})
	}
}

// UpdateApp applies a partial update. Omitted fields are left untouched.
func UpdateApp(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		patch, upload, err := decodeApp(w, r, d)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := d.Catalog.Update(r.Context(), id, patch, upload); err != nil {
			d.Logger.Warn("update app failed", logger.String("app_id", id), logger.Error(err))
			writeFailure(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteApp(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Catalog.Delete(r.Context(), id); err != nil {
			d.Logger.Warn("delete app failed", logger.String("app_id", id), logger.Error(err))
			writeFailure(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeApp reads the request body into a patch. Multipart forms set only
// the fields present in the form.
func decodeApp(w http.ResponseWriter, r *http.Request, d deps.Deps) (domain.AppPatch, *domain.Asset, error) {
	limit := d.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return decodeMultipart(r, limit)
	}

	var patch domain.AppPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		if errors.Is(err, io.EOF) {
			return patch, nil, errors.New("empty request body")
		}
		return patch, nil, fmt.Errorf("invalid json: %w", err)
	}
	return patch, nil, nil
}

func decodeMultipart(r *http.Request, limit int64) (domain.AppPatch, *domain.Asset, error) {
	var patch domain.AppPatch
	if err := r.ParseMultipartForm(limit); err != nil {
		return patch, nil, fmt.Errorf("invalid form: %w", err)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	field := func(name string) *string {
		if vs, ok := r.MultipartForm.Value[name]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	patch.Name = field("name")
	patch.URL = field("url")
	patch.Description = field("description")
	patch.Image = field("image")
	if c := field("category"); c != nil {
		category := domain.Category(*c)
		patch.Category = &category
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return patch, nil, nil
	}
	if err != nil {
		return patch, nil, fmt.Errorf("invalid image part: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return patch, nil, fmt.Errorf("read image part: %w", err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return patch, nil, fmt.Errorf("image part has content type %q", contentType)
	}

	return patch, &domain.Asset{Data: data, ContentType: contentType, Filename: header.Filename}, nil
}
