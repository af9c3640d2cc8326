package analysis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/pomreactor/pkg/builder"
	"github.com/ritzau/pomreactor/pkg/project"
	"github.com/ritzau/pomreactor/pkg/pubsub"
	"github.com/ritzau/pomreactor/pkg/repository"
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (p *recordingPublisher) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	return nil, nil
}

func (p *recordingPublisher) Publish(topic, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pubsub.Event{Topic: topic, Type: eventType, Data: raw})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) states() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.Topic == pubsub.TopicReactorStatus {
			out = append(out, e.Type)
		}
	}
	return out
}

func (p *recordingPublisher) lastGraph(t *testing.T) pubsub.ReactorGraphData {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Topic == pubsub.TopicReactorGraph {
			var data pubsub.ReactorGraphData
			require.NoError(t, json.Unmarshal(p.events[i].Data, &data))
			return data
		}
	}
	t.Fatal("Expected a reactor graph event")
	return pubsub.ReactorGraphData{}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeReactor creates an aggregator with two modules where app depends on lib
func writeReactor(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pom.xml"), `<project>
  <groupId>g</groupId><artifactId>root</artifactId><version>1</version><packaging>pom</packaging>
  <modules><module>lib</module><module>app</module></modules>
</project>`)
	writeFile(t, filepath.Join(dir, "lib", "pom.xml"), `<project>
  <parent><groupId>g</groupId><artifactId>root</artifactId><version>1</version></parent>
  <artifactId>lib</artifactId>
</project>`)
	writeFile(t, filepath.Join(dir, "app", "pom.xml"), `<project>
  <parent><groupId>g</groupId><artifactId>root</artifactId><version>1</version></parent>
  <artifactId>app</artifactId>
  <dependencies><dependency><groupId>g</groupId><artifactId>lib</artifactId><version>1</version></dependency></dependencies>
</project>`)
	return dir
}

func newTestRunner(t *testing.T, opts Options, pub pubsub.Publisher) *Runner {
	req := builder.NewRequest()
	req.LocalRepository = t.TempDir()
	opts.Request = req
	return NewRunner(builder.NewDefaultBuilder(repository.NewLocalSystem()), opts, pub)
}

func ids(projects []*project.Project) []string {
	out := make([]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.ID())
	}
	return out
}

func TestRunner_Run(t *testing.T) {
	dir := writeReactor(t)
	pub := &recordingPublisher{}
	r := newTestRunner(t, Options{Basedir: dir, Recursive: true}, pub)

	res, err := r.Run(context.Background(), "initial")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, []string{filepath.Join(dir, "pom.xml")}, res.Files)
	assert.Equal(t, []string{"g:root:1", "g:lib:1", "g:app:1"}, ids(res.Projects()))
	assert.Empty(t, res.Cycles)
	require.NotNil(t, res.Graph)
	if len(res.Graph.Nodes) != 3 {
		t.Errorf("Expected 3 nodes, got %d", len(res.Graph.Nodes))
	}
	assert.Same(t, res, r.Last())

	assert.Equal(t, []string{"discovering", "building", "sorting", "analyzing_cycles", "ready"}, pub.states())
	data := pub.lastGraph(t)
	assert.True(t, data.Complete)
	assert.Equal(t, 3, data.ProjectsCount)
	assert.Equal(t, []string{"g:root:1", "g:lib:1", "g:app:1"}, data.BuildOrder)
}

func TestRunner_NonRecursiveFindsAllFiles(t *testing.T) {
	dir := writeReactor(t)
	r := newTestRunner(t, Options{Basedir: dir}, nil)

	res, err := r.Run(context.Background(), "initial")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Len(t, res.Files, 3)
	assert.Equal(t, []string{"g:root:1", "g:lib:1", "g:app:1"}, ids(res.Projects()))
}

func TestRunner_BuildFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pom.xml"), `<project>
  <groupId>g</groupId><artifactId>bad</artifactId><version>1</version>
  <dependencies><dependency><groupId>x</groupId><artifactId>y</artifactId></dependency></dependencies>
</project>`)
	pub := &recordingPublisher{}
	r := newTestRunner(t, Options{Basedir: dir}, pub)

	res, err := r.Run(context.Background(), "initial")
	require.NoError(t, err)

	var buildErr *project.BuildingError
	require.ErrorAs(t, res.Err, &buildErr)
	assert.Nil(t, res.Sorter)
	assert.Contains(t, pub.states(), "error")
	assert.False(t, pub.lastGraph(t).Complete)
}

func TestRunner_NoPOMFiles(t *testing.T) {
	r := newTestRunner(t, Options{Basedir: t.TempDir()}, nil)

	res, err := r.Run(context.Background(), "initial")
	require.NoError(t, err)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "no POM files found")
}

func TestRunner_Rediscover(t *testing.T) {
	dir := writeReactor(t)
	r := newTestRunner(t, Options{Basedir: dir}, nil)

	res, err := r.Run(context.Background(), "initial")
	require.NoError(t, err)
	require.Len(t, res.Files, 3)

	writeFile(t, filepath.Join(dir, "extra", "pom.xml"),
		`<project><groupId>g</groupId><artifactId>extra</artifactId><version>1</version></project>`)

	res, err = r.Run(context.Background(), "pom changed")
	require.NoError(t, err)
	assert.Len(t, res.Files, 3, "files are remembered until rediscovery")

	r.Rediscover()
	res, err = r.Run(context.Background(), "structure changed")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Len(t, res.Files, 4)
	assert.Contains(t, ids(res.Projects()), "g:extra:1")
	if res.Run != 3 {
		t.Errorf("Expected run 3, got %d", res.Run)
	}
}
