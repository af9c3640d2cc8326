package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/pomreactor/pkg/analysis"
	"github.com/ritzau/pomreactor/pkg/lens"
	"github.com/ritzau/pomreactor/pkg/model"
	"github.com/ritzau/pomreactor/pkg/project"
)

// chainResult sorts core <- lib <- app
func chainResult(t *testing.T) *analysis.Result {
	t.Helper()
	newProject := func(id string, deps ...string) *project.Project {
		m := &model.Model{GroupID: "g", ArtifactID: id, Version: "1"}
		for _, d := range deps {
			m.Dependencies = append(m.Dependencies, model.Dependency{GroupID: "g", ArtifactID: d, Version: "1"})
		}
		return project.NewFromModel(m)
	}
	projects := []*project.Project{newProject("app", "lib"), newProject("lib", "core"), newProject("core")}
	sorter, err := project.NewSorter(projects)
	require.NoError(t, err)

	res := &analysis.Result{Sorter: sorter, Graph: sorter.Graph()}
	for _, p := range projects {
		res.Results = append(res.Results, &project.BuildingResult{ProjectID: p.ID(), Project: p})
	}
	return res
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestServer_NoResult(t *testing.T) {
	s := NewServer()
	rec := get(t, s, "/api/reactor")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Order(t *testing.T) {
	s := NewServer()
	s.SetResult(chainResult(t))

	rec := get(t, s, "/api/reactor/order")
	require.Equal(t, http.StatusOK, rec.Code)

	var order []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, []string{"g:core:1", "g:lib:1", "g:app:1"}, order)
}

func TestServer_Graph(t *testing.T) {
	s := NewServer()
	s.SetResult(chainResult(t))

	rec := get(t, s, "/api/reactor/graph?selected=g:app:1&distance=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var g model.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Contains(t, g.Nodes, "g:app:1")
	assert.Contains(t, g.Nodes, "g:lib:1")
	assert.NotContains(t, g.Nodes, "g:core:1")

	rec = get(t, s, "/api/reactor/graph?distance=far")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GraphDiff(t *testing.T) {
	s := NewServer()
	s.SetResult(chainResult(t))

	var first lens.GraphDiff
	rec := get(t, s, "/api/reactor/graph?diff=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.FullGraph)
	assert.Len(t, first.AddedNodes, 3)

	var second lens.GraphDiff
	rec = get(t, s, "/api/reactor/graph?diff=true")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.False(t, second.FullGraph)
	assert.Empty(t, second.AddedNodes)
	assert.Empty(t, second.RemovedEdges)
}

func TestServer_Project(t *testing.T) {
	s := NewServer()
	s.SetResult(chainResult(t))

	rec := get(t, s, "/api/project/g:lib:1")
	require.Equal(t, http.StatusOK, rec.Code)

	var details ProjectDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, 1, details.Order)
	assert.Equal(t, []string{"g:core:1"}, details.Dependencies)
	assert.Equal(t, []string{"g:app:1"}, details.Dependents)

	rec = get(t, s, "/api/project/g:absent:1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Reactor(t *testing.T) {
	s := NewServer()
	s.SetResult(chainResult(t))

	rec := get(t, s, "/api/reactor")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report struct {
		Projects []struct {
			ID string `json:"id"`
		} `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Projects, 3)

	rec = get(t, s, "/api/cycles")
	assert.Equal(t, "[]\n", rec.Body.String())
}
