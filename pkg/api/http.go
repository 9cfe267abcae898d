package api

import (
	"errors"
	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/infradash/templates/pkg/repository"
	"github.com/infradash/templates/pkg/template"
	"net/http"
	"time"
)

const (
	RouteHealth    = "/health"
	RouteIds       = "/v1/ids"
	RouteTemplates = "/v1/templates/{id:.+}"

	ParamVersion = "version"

	HeaderRequestId = "X-Request-Id"
)

type EndPoint struct {
	repo    *repository.Repository
	start   time.Time
	router  *mux.Router
	session func() string
}

func NewApiEndPoint(repo *repository.Repository) *EndPoint {
	ep := &EndPoint{
		repo:   repo,
		start:  time.Now(),
		router: mux.NewRouter(),
	}
	ep.router.HandleFunc(RouteHealth, ep.GetHealth).Methods("GET")
	ep.router.HandleFunc(RouteIds, ep.ListIds).Methods("GET")
	ep.router.HandleFunc(RouteTemplates, ep.CreateTemplate).Methods("POST")
	ep.router.HandleFunc(RouteTemplates, ep.GetTemplate).Methods("GET")
	ep.router.HandleFunc(RouteTemplates, ep.CheckTemplate).Methods("HEAD")
	ep.router.HandleFunc(RouteTemplates, ep.DeleteTemplate).Methods("DELETE")
	return ep
}

// ServeHTTP tags every response with a request id, reusing the caller's when
// one is sent.
// SetSession reports the store session state, e.g. of the zk connection, in the
// health check.
func (this *EndPoint) SetSession(state func() string) {
	this.session = state
}

func (this *EndPoint) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	id := req.Header.Get(HeaderRequestId)
	if id == "" {
		id = uuid.New().String()
		req.Header.Set(HeaderRequestId, id)
	}
	resp.Header().Set(HeaderRequestId, id)
	glog.V(2).Infoln("api-request:", "id=", id, "method=", req.Method, "url=", req.URL)
	this.router.ServeHTTP(resp, req)
}

func status(err error) int {
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, template.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, template.ErrEncode),
		errors.Is(err, template.ErrBadPathId),
		errors.Is(err, repository.ErrNoTemplate):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func handleError(resp http.ResponseWriter, req *http.Request, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		glog.Warningln("api-error:", "id=", req.Header.Get(HeaderRequestId),
			"method=", req.Method, "url=", req.URL, "err=", err)
	}
	marshal(resp, req, code, Error{Error: err.Error()})
}

func pathId(req *http.Request) (template.PathId, error) {
	return template.NewPathId(mux.Vars(req)["id"])
}

func (this *EndPoint) GetHealth(resp http.ResponseWriter, req *http.Request) {
	health := Health{
		Initialized: this.repo.Initialized(),
		Started:     this.start,
		Now:         time.Now(),
	}
	if this.session != nil {
		health.Session = this.session()
	}
	marshal(resp, req, http.StatusOK, health)
}

func (this *EndPoint) ListIds(resp http.ResponseWriter, req *http.Request) {
	ids, err := this.repo.Ids(req.Context())
	if err != nil {
		handleError(resp, req, err)
		return
	}
	marshal(resp, req, http.StatusOK, Ids{Ids: ids})
}

func (this *EndPoint) CreateTemplate(resp http.ResponseWriter, req *http.Request) {
	id, err := pathId(req)
	if err != nil {
		handleError(resp, req, err)
		return
	}
	t := &template.Template{}
	if err := unmarshal(req, t); err != nil {
		if errors.Is(err, ErrUnknownContentType) {
			handleError(resp, req, err)
			return
		}
		glog.Warningln("Error", err)
		marshal(resp, req, http.StatusBadRequest, Error{Error: err.Error()})
		return
	}
	t.Id = id

	version, err := this.repo.Create(req.Context(), t)
	if err != nil {
		handleError(resp, req, err)
		return
	}
	marshal(resp, req, http.StatusCreated, Created{Id: id, Version: version})
}

// GetTemplate reads one version when ?version= is given, otherwise lists the
// versions of the template.
func (this *EndPoint) GetTemplate(resp http.ResponseWriter, req *http.Request) {
	id, err := pathId(req)
	if err != nil {
		handleError(resp, req, err)
		return
	}
	if v := req.URL.Query().Get(ParamVersion); v != "" {
		t, err := this.repo.Read(req.Context(), template.Hint(id), template.Version(v))
		if err != nil {
			handleError(resp, req, err)
			return
		}
		marshal(resp, req, http.StatusOK, Versioned{Template: *t, Version: template.Version(v)})
		return
	}
	versions, err := this.repo.Contents(req.Context(), id)
	if err != nil {
		handleError(resp, req, err)
		return
	}
	marshal(resp, req, http.StatusOK, Contents{Id: id, Versions: versions})
}

func (this *EndPoint) CheckTemplate(resp http.ResponseWriter, req *http.Request) {
	id, err := pathId(req)
	if err != nil {
		resp.WriteHeader(http.StatusBadRequest)
		return
	}
	var exists bool
	if v := req.URL.Query().Get(ParamVersion); v != "" {
		exists = this.repo.ExistsVersion(req.Context(), id, template.Version(v))
	} else {
		exists = this.repo.Exists(req.Context(), id)
	}
	if exists {
		resp.WriteHeader(http.StatusOK)
	} else {
		resp.WriteHeader(http.StatusNotFound)
	}
}

func (this *EndPoint) DeleteTemplate(resp http.ResponseWriter, req *http.Request) {
	id, err := pathId(req)
	if err != nil {
		handleError(resp, req, err)
		return
	}
	if v := req.URL.Query().Get(ParamVersion); v != "" {
		err = this.repo.Delete(req.Context(), id, template.Version(v))
	} else {
		err = this.repo.DeleteAll(req.Context(), id)
	}
	if err != nil {
		handleError(resp, req, err)
		return
	}
	resp.WriteHeader(http.StatusNoContent)
}
