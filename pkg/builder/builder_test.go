package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/pomreactor/pkg/artifact"
	"github.com/ritzau/pomreactor/pkg/graph"
	"github.com/ritzau/pomreactor/pkg/modelbuilder"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/repository"
	"github.com/ritzau/pomreactor/pkg/resolver"
)

func writePOM(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", dir, err)
	}
	path := filepath.Join(dir, "pom.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func newTestBuilder() *DefaultBuilder {
	return NewDefaultBuilder(repository.NewLocalSystem())
}

func newTestRequest(t *testing.T) *Request {
	req := NewRequest()
	req.LocalRepository = t.TempDir()
	return req
}

func TestBuildArtifact_Stub(t *testing.T) {
	b := newTestBuilder()

	t.Run("missing POM is replaced by a stub", func(t *testing.T) {
		res, err := b.BuildArtifact(context.Background(), artifact.New("g", "a", "1.0", "jar"), true, newTestRequest(t))
		require.NoError(t, err)
		if res.Project.ID() != "g:a:1.0" {
			t.Errorf("Expected project g:a:1.0, got %s", res.Project.ID())
		}
		assert.Equal(t, "jar", res.Project.Packaging())
		assert.Empty(t, res.Project.File())
	})

	t.Run("missing POM without stub fails", func(t *testing.T) {
		_, err := b.BuildArtifact(context.Background(), artifact.New("g", "a", "1.0", "jar"), false, newTestRequest(t))
		var buildErr *project.BuildingError
		require.ErrorAs(t, err, &buildErr)
		assert.Contains(t, err.Error(), "Error resolving project artifact")
		assert.Equal(t, "g:a:jar:1.0", buildErr.ProjectID)
	})

	t.Run("installed POM", func(t *testing.T) {
		req := newTestRequest(t)
		installPOM(t, req.LocalRepository, "g", "lib", "2", `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>lib</artifactId><version>2</version><packaging>pom</packaging>
</project>`)
		a := artifact.New("g", "lib", "2", "pom")
		res, err := b.BuildArtifact(context.Background(), a, false, req)
		require.NoError(t, err)
		assert.Equal(t, "g:lib:2", res.Project.ID())
		assert.True(t, a.Resolved)
		assert.NotEmpty(t, a.File)
	})
}

func TestBuild_SingleProject(t *testing.T) {
	dir := t.TempDir()
	file := writePOM(t, dir, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>app</artifactId><version>1</version>
  <build>
    <plugins><plugin><artifactId>maven-compiler-plugin</artifactId></plugin></plugins>
  </build>
  <dependencyManagement><dependencies>
    <dependency><groupId>g</groupId><artifactId>lib</artifactId><version>3</version></dependency>
  </dependencies></dependencyManagement>
</project>`)

	res, err := newTestBuilder().Build(context.Background(), file, newTestRequest(t))
	require.NoError(t, err)

	p := res.Project
	assert.Equal(t, file, p.File())
	assert.Equal(t, dir, p.Basedir())
	assert.Equal(t, "g:app:jar:1", p.Artifact().ID())
	assert.NotNil(t, p.OriginalModel())
	assert.Contains(t, p.PluginArtifactMap(), "org.apache.maven.plugins:maven-compiler-plugin")
	assert.Contains(t, p.ManagedVersionMap(), "g:lib:jar")
	assert.NotEmpty(t, p.RemoteProjectRepositories(), "the super POM repository is expected")
	assert.NotEmpty(t, p.CompileSourceRoots())
}

func TestBuild_ProfilesXMLWarning(t *testing.T) {
	dir := t.TempDir()
	file := writePOM(t, dir, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>app</artifactId><version>1</version>
</project>`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profiles.xml"), []byte("<profilesXml/>"), 0o644))

	res, err := newTestBuilder().Build(context.Background(), file, newTestRequest(t))
	require.NoError(t, err)

	found := false
	for _, p := range res.Problems {
		if strings.Contains(p.Message, "Detected profiles.xml alongside g:app:1") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a profiles.xml warning, got %v", res.Problems)
	}
}

func TestBuildReactor_SortsLinearChain(t *testing.T) {
	root := t.TempDir()
	app := writePOM(t, filepath.Join(root, "app"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>app</artifactId><version>1</version>
  <dependencies><dependency><groupId>g</groupId><artifactId>lib</artifactId><version>1</version></dependency></dependencies>
</project>`)
	lib := writePOM(t, filepath.Join(root, "lib"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>lib</artifactId><version>1</version>
  <dependencies><dependency><groupId>g</groupId><artifactId>core</artifactId><version>1</version></dependency></dependencies>
</project>`)
	core := writePOM(t, filepath.Join(root, "core"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>core</artifactId><version>1</version>
</project>`)

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{app, lib, core}, false, newTestRequest(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	projects := make([]*project.Project, 0, len(results))
	for _, r := range results {
		assert.True(t, r.Project.IsExecutionRoot())
		projects = append(projects, r.Project)
	}

	sorter, err := project.NewSorter(projects)
	require.NoError(t, err)

	var ids []string
	for _, p := range sorter.SortedProjects() {
		ids = append(ids, p.ArtifactID())
	}
	assert.Equal(t, []string{"core", "lib", "app"}, ids)
}

func TestBuildReactor_SharesProjects(t *testing.T) {
	root := t.TempDir()
	rootFile := writePOM(t, root, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>root</artifactId><version>1</version><packaging>pom</packaging>
  <modules><module>a</module><module>b</module></modules>
</project>`)
	for _, name := range []string{"a", "b"} {
		writePOM(t, filepath.Join(root, name), `<project>
  <modelVersion>4.0.0</modelVersion>
  <parent><groupId>g</groupId><artifactId>root</artifactId><version>1</version></parent>
  <artifactId>`+name+`</artifactId>
</project>`)
	}

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{rootFile}, true, newTestRequest(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	rootProject, a, b := results[0].Project, results[1].Project, results[2].Project
	assert.Equal(t, "root", rootProject.ArtifactID())
	assert.True(t, rootProject.IsExecutionRoot())
	assert.False(t, a.IsExecutionRoot())

	if a.Parent() != rootProject {
		t.Errorf("Expected a's parent to be the reactor root project, got %v", a.Parent())
	}
	assert.Same(t, rootProject, b.Parent())
	assert.Equal(t, rootFile, a.ParentFile())
	assert.Equal(t, []*project.Project{a, b}, rootProject.CollectedProjects())
}

func writeAggregator(t *testing.T, root string) (string, string) {
	t.Helper()
	rootFile := writePOM(t, root, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>root</artifactId><version>1</version><packaging>pom</packaging>
  <modules><module>child</module></modules>
</project>`)
	childFile := writePOM(t, filepath.Join(root, "child"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>child</artifactId><version>1</version>
</project>`)
	return rootFile, childFile
}

func TestBuildReactor_SameFileSpelledTwice(t *testing.T) {
	root := t.TempDir()
	rootFile, childFile := writeAggregator(t, root)
	spelled := root + string(filepath.Separator) + "." + string(filepath.Separator) + filepath.Join("child", "pom.xml")

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{rootFile, spelled}, true, newTestRequest(t))
	require.NoError(t, err)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	assert.Equal(t, childFile, results[1].POMFile)
	assert.True(t, results[1].Project.IsExecutionRoot())

	projects := []*project.Project{results[0].Project, results[1].Project}
	_, err = project.NewSorter(projects)
	require.NoError(t, err)
}

func TestBuildReactor_RelativeInputFile(t *testing.T) {
	root := t.TempDir()
	rootFile, _ := writeAggregator(t, root)
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, rootFile)
	require.NoError(t, err)

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{rel}, true, newTestRequest(t))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, rootFile, results[0].POMFile)
	assert.True(t, results[0].Project.IsExecutionRoot())
}

func TestBuildReactor_RootDirectory(t *testing.T) {
	root := t.TempDir()
	rootFile, _ := writeAggregator(t, root)

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{rootFile}, true, newTestRequest(t))
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.Project.RootDirectory() != root {
			t.Errorf("Expected root directory %s for %s, got %s", root, r.ProjectID, r.Project.RootDirectory())
		}
	}
}

func TestBuildReactor_RootDirectoryMarkedByMvn(t *testing.T) {
	root := t.TempDir()
	rootFile, childFile := writeAggregator(t, root)
	child := filepath.Dir(childFile)
	require.NoError(t, os.Mkdir(filepath.Join(child, ".mvn"), 0o755))

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{rootFile}, true, newTestRequest(t))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, root, results[0].Project.RootDirectory())
	assert.Equal(t, child, results[1].Project.RootDirectory())
}

func TestBuildReactor_SharesParentAcrossInputFiles(t *testing.T) {
	root := t.TempDir()
	child := writePOM(t, filepath.Join(root, "child"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <parent><groupId>g</groupId><artifactId>parent</artifactId><version>1</version></parent>
  <artifactId>child</artifactId>
</project>`)
	parent := writePOM(t, root, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>parent</artifactId><version>1</version><packaging>pom</packaging>
</project>`)

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{child, parent}, false, newTestRequest(t))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Same(t, results[1].Project, results[0].Project.Parent())
}

func TestBuildReactor_AggregatesErrors(t *testing.T) {
	root := t.TempDir()
	good := writePOM(t, filepath.Join(root, "good"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>good</artifactId><version>1</version>
</project>`)
	bad := writePOM(t, filepath.Join(root, "bad"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>bad</artifactId><version>1</version>
  <dependencies><dependency><groupId>x</groupId><artifactId>y</artifactId></dependency></dependencies>
</project>`)

	results, err := newTestBuilder().BuildReactor(context.Background(), []string{good, bad}, false, newTestRequest(t))

	var buildErr *project.BuildingError
	require.ErrorAs(t, err, &buildErr)
	require.Len(t, buildErr.Results, 2)
	assert.Len(t, results, 2)

	msg := err.Error()
	assert.Contains(t, msg, "[g:bad:1] "+bad)
	assert.Contains(t, msg, "[ERROR] 'dependencies.dependency.version' for x:y:jar is missing.")
	assert.NotContains(t, msg, "[g:good:1]")
	assert.NotNil(t, results[1].Project, "a model with errors still yields a project")
}

func TestBuildReactor_ParentCycle(t *testing.T) {
	root := t.TempDir()
	a := writePOM(t, filepath.Join(root, "a"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <parent><groupId>g</groupId><artifactId>b</artifactId><version>1</version><relativePath>../b</relativePath></parent>
  <artifactId>a</artifactId>
</project>`)
	b := writePOM(t, filepath.Join(root, "b"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <parent><groupId>g</groupId><artifactId>a</artifactId><version>1</version><relativePath>../a</relativePath></parent>
  <artifactId>b</artifactId>
</project>`)

	_, err := newTestBuilder().BuildReactor(context.Background(), []string{a, b}, false, newTestRequest(t))

	var cycleErr *project.ReactorCycleError
	require.ErrorAs(t, err, &cycleErr)
	var cycle *graph.CycleDetectedError
	assert.True(t, errors.As(err, &cycle))
	assert.Contains(t, err.Error(), "The projects in the reactor contain a cyclic reference")
}

func TestBuild_ParentPolicy(t *testing.T) {
	root := t.TempDir()
	writePOM(t, root, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>parent</artifactId><version>1</version>
  <modules><module>child</module></modules>
</project>`)
	child := writePOM(t, filepath.Join(root, "child"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <parent><groupId>g</groupId><artifactId>parent</artifactId><version>1</version></parent>
  <artifactId>child</artifactId>
</project>`)

	t.Run("lenient", func(t *testing.T) {
		res, err := newTestBuilder().Build(context.Background(), child, newTestRequest(t))
		require.NoError(t, err)
		assert.Nil(t, res.Project.Parent())
		assert.Equal(t, "g:parent:pom:1", res.Project.ParentArtifact().ID())
	})

	t.Run("strict", func(t *testing.T) {
		req := newTestRequest(t)
		req.ParentPolicy = ParentStrict
		_, err := newTestBuilder().Build(context.Background(), child, req)

		var buildErr *project.BuildingError
		require.ErrorAs(t, err, &buildErr)
		require.NotNil(t, buildErr.Result)
		require.NotNil(t, buildErr.Result.Project)
		assert.Equal(t, "g:child:1", buildErr.Result.Project.ID())
		assert.Contains(t, err.Error(), "Failed to build parent project for g:child:1")
	})
}

func TestBuild_ParentFromRepository(t *testing.T) {
	req := newTestRequest(t)
	installPOM(t, req.LocalRepository, "g", "rp", "1", `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>rp</artifactId><version>1</version><packaging>pom</packaging>
</project>`)
	child := writePOM(t, filepath.Join(t.TempDir(), "child"), `<project>
  <modelVersion>4.0.0</modelVersion>
  <parent><groupId>g</groupId><artifactId>rp</artifactId><version>1</version></parent>
  <artifactId>child</artifactId>
</project>`)

	res, err := newTestBuilder().Build(context.Background(), child, req)
	require.NoError(t, err)

	parent := res.Project.Parent()
	require.NotNil(t, parent)
	assert.Equal(t, "g:rp:1", parent.ID())
	assert.Empty(t, parent.File())
	assert.Equal(t, "g", res.Project.GroupID())
}

func TestBuild_ResolveDependencies(t *testing.T) {
	dir := t.TempDir()
	file := writePOM(t, dir, `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>app</artifactId><version>1</version>
  <dependencies><dependency><groupId>g</groupId><artifactId>missing</artifactId><version>1</version></dependency></dependencies>
</project>`)

	req := newTestRequest(t)
	req.ResolveDependencies = true
	res, err := newTestBuilder().Build(context.Background(), file, req)
	require.NoError(t, err)
	require.NotNil(t, res.DependencyResolution)
	assert.Len(t, res.DependencyResolution.UnresolvedDependencies(), 1)

	arts := res.Project.ResolvedArtifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "missing", arts[0].ArtifactID)
	assert.False(t, arts[0].Resolved)
	expected := filepath.Join(req.LocalRepository, "g", "missing", "1", "missing-1.jar")
	if arts[0].File != expected {
		t.Errorf("Expected file %s, got %s", expected, arts[0].File)
	}
	assert.Len(t, res.Project.Artifacts(), 1)
}

type resolverFunc func(ctx context.Context, req *resolver.Request) (*resolver.Result, error)

func (f resolverFunc) Resolve(ctx context.Context, req *resolver.Request) (*resolver.Result, error) {
	return f(ctx, req)
}

func TestBuild_ResolutionErrorWithoutResult(t *testing.T) {
	file := writePOM(t, t.TempDir(), `<project>
  <modelVersion>4.0.0</modelVersion>
  <groupId>g</groupId><artifactId>app</artifactId><version>1</version>
</project>`)

	b := newTestBuilder()
	b.Dependencies = resolverFunc(func(context.Context, *resolver.Request) (*resolver.Result, error) {
		return nil, &resolver.ResolutionError{Err: errors.New("offline")}
	})
	req := newTestRequest(t)
	req.ResolveDependencies = true

	res, err := b.Build(context.Background(), file, req)
	require.NoError(t, err)
	if res.DependencyResolution != nil {
		t.Errorf("Expected no dependency resolution, got %v", res.DependencyResolution)
	}
	assert.Empty(t, res.Project.ResolvedArtifacts())
	assert.Empty(t, res.Project.Artifacts())
}

func TestRequestType(t *testing.T) {
	req := NewRequest()
	assert.Equal(t, modelbuilder.RequestBuildEffective, req.requestType())

	req.ProcessPlugins = false
	assert.Equal(t, modelbuilder.RequestConsumerParent, req.requestType())

	req.ProcessPlugins = true
	req.ValidationLevel = modelbuilder.ValidationMinimal
	assert.Equal(t, modelbuilder.RequestConsumerParent, req.requestType())
}

func TestParseRequestOptions(t *testing.T) {
	m, err := ParseRepositoryMerging("request_dominant")
	require.NoError(t, err)
	assert.Equal(t, RequestDominant, m)
	assert.Equal(t, "request_dominant", m.String())

	_, err = ParseRepositoryMerging("both")
	assert.Error(t, err)

	p, err := ParseParentPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, ParentStrict, p)

	p, err = ParseParentPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ParentLenient, p)
}
