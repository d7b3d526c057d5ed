package apicheck

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vianscientific/apicheck/internal/html"
	"github.com/vianscientific/apicheck/internal/model"
)

func (s *Server) router() *httprouter.Router {
	router := httprouter.New()

	router.POST("/runs", s.CreateRun)
	// `latest` is handled by GetRun, httprouter does not allow a static
	// segment next to a named parameter.
	router.GET("/runs/:run-id", s.GetRun)
	router.GET("/suite", s.GetSuite)
	router.GET("/ui/runs/:run-id", s.GetRunHTML)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return router
}

func (s *Server) httpError(w http.ResponseWriter, err error) {
	var notFound model.NotFoundError
	var malformedRequest model.MalformedRequestError

	if errors.As(err, &notFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	} else if errors.As(err, &malformedRequest) {
		w.WriteHeader(http.StatusBadRequest)
		return
	} else if errors.Is(err, errQueueFull) {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	s.log.WithError(err).Error("handling request failed")

	w.WriteHeader(http.StatusInternalServerError)
}

func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	params := RunParams{
		TriggeredBy: "http",
		TestFilter:  query.Get("filter"),
		Groups:      query["group"],
	}

	run, _, err := s.Enqueue(params)
	if err != nil {
		s.httpError(w, err)
		return
	}

	s.writeResponse(w, http.StatusAccepted, run)
}

func (s *Server) GetRun(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	run, err := s.runByParam(p.ByName("run-id"))
	if err != nil {
		s.httpError(w, err)
		return
	}

	s.writeResponse(w, http.StatusOK, run)
}

func (s *Server) GetRunHTML(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	run, err := s.runByParam(p.ByName("run-id"))
	if err != nil {
		s.httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := html.RenderRun(run, w); err != nil {
		s.log.WithError(err).Warn("error rendering run")
	}
}

// runByParam resolves a run id or `latest`.
func (s *Server) runByParam(param string) (SuiteRun, error) {
	if param == "latest" {
		return s.LatestRun()
	}

	runID, err := strconv.Atoi(param)
	if err != nil {
		return SuiteRun{}, model.MalformedRequestError{Param: "run-id"}
	}

	return s.Run(runID)
}

type suiteResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Groups      []string       `json:"groups"`
	Tests       []testResponse `json:"tests"`
}

type testResponse struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

func (s *Server) GetSuite(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	res := suiteResponse{
		Name:        s.suite.Name,
		Description: s.suite.Description,
		Groups:      s.suite.Groups(),
		Tests:       make([]testResponse, 0, len(s.suite.Tests)),
	}

	for _, t := range s.suite.Tests {
		res.Tests = append(res.Tests, testResponse{Name: t.Name, Group: t.Group})
	}

	s.writeResponse(w, http.StatusOK, res)
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, body any) {
	content, err := json.Marshal(body)
	if err != nil {
		s.httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err = w.Write(content); err != nil {
		s.log.WithError(err).Warn("error writing body")
	}
}
